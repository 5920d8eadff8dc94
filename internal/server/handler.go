package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/vyrodovalexey/httpvec/internal/inspector"
	"github.com/vyrodovalexey/httpvec/internal/observability"
	"github.com/vyrodovalexey/httpvec/internal/selection"
	"github.com/vyrodovalexey/httpvec/internal/util"
	"github.com/vyrodovalexey/httpvec/internal/vector"
	"github.com/vyrodovalexey/httpvec/internal/wire"
)

// Forwarder relays a request to a vector.
type Forwarder interface {
	Forward(ctx context.Context, v *vector.Vector, req *wire.Request) (*wire.Response, error)
}

// Handler runs one connection through the relay state machine.
type Handler struct {
	chain          *selection.Chain
	forwarder      Forwarder
	logger         observability.Logger
	metrics        *observability.Metrics
	maxHeaderBytes int
	rejectStatus   int
}

// HandlerOption is a functional option for the handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger observability.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHandlerMetrics sets the metrics.
func WithHandlerMetrics(metrics *observability.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithMaxHeaderBytes limits the request header block.
func WithMaxHeaderBytes(n int) HandlerOption {
	return func(h *Handler) {
		h.maxHeaderBytes = n
	}
}

// WithRejectStatus makes rejected connections receive a response with
// the given status instead of being dropped. 0 restores dropping.
func WithRejectStatus(status int) HandlerOption {
	return func(h *Handler) {
		h.rejectStatus = status
	}
}

// NewHandler creates a connection handler.
func NewHandler(chain *selection.Chain, forwarder Forwarder, opts ...HandlerOption) *Handler {
	h := &Handler{
		chain:          chain,
		forwarder:      forwarder,
		logger:         observability.NopLogger(),
		maxHeaderBytes: wire.DefaultMaxHeaderBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve handles one request on conn and closes it. It returns the
// state the connection reached before Closed.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) (state State) {
	logger := h.logger.WithContext(ctx)
	state = StateAccepted

	defer func() {
		_ = conn.Close()
		if r := recover(); r != nil {
			logger.Error("connection handler panicked",
				observability.String("state", state.String()),
				observability.Any("panic", r))
			state = StateFailed
		}
	}()

	req, err := wire.ReadRequest(bufio.NewReader(conn), h.maxHeaderBytes)
	if err != nil {
		logger.Warn("failed to read request",
			observability.String("remoteAddr", remoteAddr(conn)),
			observability.Error(err))
		return StateFailed
	}
	state = StateParsed
	logger.Debug("request parsed",
		observability.String("method", req.Method),
		observability.String("target", req.Target),
		observability.Int("headers", len(req.Fields)))

	state = StateSelecting
	res := h.chain.SelectWithLogger(inspector.NewHeaders(req.Fields.Header()), logger)
	h.metrics.RecordSelection(res.MetricsResult(), res.Inspector)

	if !res.Selected() {
		logger.Info("no vector chosen, hanging up",
			observability.String("method", req.Method),
			observability.String("target", req.Target),
			observability.String("reason", res.Err.Error()))
		h.reject(conn, logger)
		return StateRejected
	}
	state = StateSelected

	logger.Info("vector chosen",
		observability.String("vector", res.Vector.String()),
		observability.String("inspector", res.Inspector),
		observability.String("method", req.Method),
		observability.String("target", req.Target))

	state = StateForwarding
	resp, err := h.forwarder.Forward(ctx, res.Vector, req)
	if err != nil {
		logger.Error("relay failed",
			observability.String("vector", res.Vector.String()),
			observability.Bool("timeout", errors.Is(err, util.ErrTimeout)),
			observability.Error(err))
		return StateFailed
	}

	if _, err := resp.WriteTo(conn); err != nil {
		logger.Warn("failed to write response",
			observability.String("vector", res.Vector.String()),
			observability.Error(err))
		return StateFailed
	}

	logger.Debug("response relayed",
		observability.Int("status", resp.StatusCode),
		observability.Int("bodyBytes", len(resp.Body)),
		observability.Duration("elapsed", util.ElapsedTime(ctx)))

	return StateRelayed
}

// reject answers a rejected connection when a reject status is set.
func (h *Handler) reject(conn net.Conn, logger observability.Logger) {
	if h.rejectStatus == 0 {
		return
	}
	resp := &wire.Response{
		StatusCode: h.rejectStatus,
		Reason:     http.StatusText(h.rejectStatus),
		Fields: wire.Fields{
			{Name: "Content-Length", Value: "0"},
			{Name: "Connection", Value: "close"},
		},
	}
	if _, err := resp.WriteTo(conn); err != nil {
		logger.Debug("failed to write reject response", observability.Error(err))
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return fmt.Sprintf("%T", conn)
}
