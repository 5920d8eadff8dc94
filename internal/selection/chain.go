// Package selection runs the inspector chain that picks a vector for a
// request.
package selection

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/httpvec/internal/inspector"
	"github.com/vyrodovalexey/httpvec/internal/observability"
	"github.com/vyrodovalexey/httpvec/internal/util"
	"github.com/vyrodovalexey/httpvec/internal/vector"
)

// Reasons a selection produced no vector.
var (
	ErrNoVectors    = errors.New("no vectors configured")
	ErrNoInspectors = errors.New("no inspectors loaded")
	ErrNoSelection  = errors.New("no vector chosen")
)

// Result is the outcome of one chain evaluation. Exactly one of Vector
// and Err is set.
type Result struct {
	Vector    *vector.Vector
	Inspector string
	Err       error
}

// Selected reports whether a vector was chosen.
func (r Result) Selected() bool {
	return r.Vector != nil
}

// MetricsResult returns the selection outcome label for metrics.
func (r Result) MetricsResult() string {
	switch {
	case r.Vector != nil:
		return observability.ResultSelected
	case errors.Is(r.Err, ErrNoVectors):
		return observability.ResultNoVectors
	case errors.Is(r.Err, ErrNoInspectors):
		return observability.ResultNoInspectors
	default:
		return observability.ResultNoSelection
	}
}

// Chain binds a catalog and registry. It is built once at startup and
// shared read-only by every connection worker.
type Chain struct {
	vectors    *vector.Catalog
	inspectors *inspector.Registry
	logger     observability.Logger
	metrics    *observability.Metrics
}

// Option is a functional option for the chain.
type Option func(*Chain)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Chain) {
		c.metrics = metrics
	}
}

// NewChain creates a chain over vectors and inspectors.
func NewChain(vectors *vector.Catalog, inspectors *inspector.Registry, opts ...Option) *Chain {
	c := &Chain{
		vectors:    vectors,
		inspectors: inspectors,
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Vectors returns the chain's catalog.
func (c *Chain) Vectors() *vector.Catalog {
	return c.vectors
}

// Inspectors returns the chain's registry.
func (c *Chain) Inspectors() *inspector.Registry {
	return c.inspectors
}

// Select evaluates the chain for one request.
func (c *Chain) Select(headers inspector.Headers) Result {
	return c.selectWith(headers, c.logger)
}

// SelectWithLogger evaluates the chain, logging through logger.
func (c *Chain) SelectWithLogger(headers inspector.Headers, logger observability.Logger) Result {
	return c.selectWith(headers, logger)
}

func (c *Chain) selectWith(headers inspector.Headers, logger observability.Logger) Result {
	if c.vectors.Len() == 0 {
		return Result{Err: ErrNoVectors}
	}
	if c.inspectors.Len() == 0 {
		return Result{Err: ErrNoInspectors}
	}

	for _, insp := range c.inspectors.All() {
		v, err := c.invoke(insp, headers)
		if err != nil {
			logger.Error("inspector failed",
				observability.String("inspector", insp.Name),
				observability.Error(err))
			c.metrics.RecordInspectorFailure(insp.Name)
			continue
		}
		if v != nil {
			logger.Debug("inspector chose vector",
				observability.String("inspector", insp.Name),
				observability.String("vector", v.String()))
			return Result{Vector: v, Inspector: insp.Name}
		}
	}

	return Result{Err: ErrNoSelection}
}

// invoke calls one inspector, converting panics and non-member vectors
// into errors.
func (c *Chain) invoke(insp *inspector.Inspector, headers inspector.Headers) (v *vector.Vector, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = util.NewInspectorError(insp.Name, "panic", fmt.Errorf("%v", r))
		}
	}()

	d, err := insp.Select(headers, c.vectors)
	if err != nil {
		return nil, util.NewInspectorError(insp.Name, "select returned an error", err)
	}
	if !d.Chosen() {
		return nil, nil
	}
	if !c.vectors.Contains(d.Vector()) {
		return nil, util.NewInspectorError(insp.Name,
			fmt.Sprintf("returned vector %s outside the catalog", d.Vector()), nil)
	}
	return d.Vector(), nil
}

// Select evaluates inspectors over vectors for one request without a
// prebuilt chain.
func Select(
	headers inspector.Headers,
	vectors *vector.Catalog,
	inspectors *inspector.Registry,
	logger observability.Logger,
) Result {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return NewChain(vectors, inspectors, WithLogger(logger)).Select(headers)
}
