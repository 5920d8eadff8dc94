// Package relay forwards a parsed request to a vector and reads the
// complete response.
package relay

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/vyrodovalexey/httpvec/internal/observability"
	"github.com/vyrodovalexey/httpvec/internal/util"
	"github.com/vyrodovalexey/httpvec/internal/vector"
	"github.com/vyrodovalexey/httpvec/internal/wire"
)

// DefaultTimeout bounds one backend exchange when no timeout is set.
const DefaultTimeout = 30 * time.Second

// Relay sends requests to vectors. Every call uses a new connection.
type Relay struct {
	timeout        time.Duration
	tlsConfig      *tls.Config
	maxHeaderBytes int
	logger         observability.Logger
	metrics        *observability.Metrics
}

// Option is a functional option for the relay.
type Option func(*Relay)

// WithTimeout bounds the dial and every single read or write on the
// vector connection.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Relay) {
		r.timeout = timeout
	}
}

// WithTLSConfig sets the TLS client configuration for https vectors.
// ServerName is filled from the vector host when empty.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(r *Relay) {
		r.tlsConfig = cfg
	}
}

// WithMaxHeaderBytes limits the response header block.
func WithMaxHeaderBytes(n int) Option {
	return func(r *Relay) {
		r.maxHeaderBytes = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(r *Relay) {
		r.metrics = metrics
	}
}

// New creates a relay.
func New(opts ...Option) *Relay {
	r := &Relay{
		timeout:        DefaultTimeout,
		maxHeaderBytes: wire.DefaultMaxHeaderBytes,
		logger:         observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the configured exchange timeout.
func (r *Relay) Timeout() time.Duration {
	return r.timeout
}

// Forward sends req to v and returns the full response. Failures are
// returned as *util.BackendError; nothing has been written to the
// client at that point.
func (r *Relay) Forward(ctx context.Context, v *vector.Vector, req *wire.Request) (*wire.Response, error) {
	start := time.Now()

	resp, err := r.exchange(ctx, v, req)
	if err != nil {
		r.metrics.RecordBackendError(v.String())
		return nil, err
	}

	r.metrics.RecordRelay(v.Scheme(), time.Since(start))
	return resp, nil
}

func (r *Relay) exchange(ctx context.Context, v *vector.Vector, req *wire.Request) (*wire.Response, error) {
	conn, err := r.dial(ctx, v)
	if err != nil {
		return nil, r.backendError(ctx, v, "failed to connect", err)
	}
	defer conn.Close()

	// Unblock reads and writes when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	r.logger.Debug("connected to vector",
		observability.String("vector", v.String()),
		observability.String("address", conn.RemoteAddr().String()),
	)

	dc := &deadlineConn{Conn: conn, timeout: r.timeout}
	if err := req.Write(dc, v.Host()); err != nil {
		return nil, r.backendError(ctx, v, "failed to send request", err)
	}

	resp, err := wire.ReadResponse(bufio.NewReader(dc), req.Method, r.maxHeaderBytes)
	if err != nil {
		return nil, r.backendError(ctx, v, "failed to read response", err)
	}

	return resp, nil
}

func (r *Relay) dial(ctx context.Context, v *vector.Vector) (net.Conn, error) {
	netDialer := &net.Dialer{Timeout: r.timeout}

	if v.Scheme() != vector.SchemeHTTPS {
		return netDialer.DialContext(ctx, "tcp", v.Address())
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if r.tlsConfig != nil {
		cfg = r.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = v.Host()
	}
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"http/1.1"}
	}

	tlsDialer := &tls.Dialer{NetDialer: netDialer, Config: cfg}
	return tlsDialer.DialContext(ctx, "tcp", v.Address())
}

// deadlineConn bounds each read and write by timeout, so a vector that
// keeps sending is never cut off while one that goes silent is.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}

// backendError wraps err, marking timeouts.
func (r *Relay) backendError(ctx context.Context, v *vector.Vector, message string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		err = util.NewTimeoutError("backend I/O", r.timeout, err)
	}
	return util.NewBackendErrorWithCause(v.String(), message, err)
}
