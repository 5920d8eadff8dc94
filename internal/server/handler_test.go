package server

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/httpvec/internal/inspector"
	"github.com/vyrodovalexey/httpvec/internal/observability"
	"github.com/vyrodovalexey/httpvec/internal/selection"
	"github.com/vyrodovalexey/httpvec/internal/util"
	"github.com/vyrodovalexey/httpvec/internal/vector"
	"github.com/vyrodovalexey/httpvec/internal/wire"
)

type fakeForwarder struct {
	mu       sync.Mutex
	vectors  []*vector.Vector
	requests []*wire.Request
	resp     *wire.Response
	err      error
	panicMsg string
}

func (f *fakeForwarder) Forward(_ context.Context, v *vector.Vector, req *wire.Request) (*wire.Response, error) {
	f.mu.Lock()
	f.vectors = append(f.vectors, v)
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeForwarder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vectors)
}

func okResponse() *wire.Response {
	return &wire.Response{
		StatusCode: 200,
		Reason:     "OK",
		Fields:     wire.Fields{{Name: "Content-Length", Value: "2"}},
		Body:       []byte("ok"),
	}
}

func hostHeaderChain(t *testing.T, urls ...any) *selection.Chain {
	t.Helper()

	catalog, err := vector.Build(urls)
	require.NoError(t, err)
	sel, err := inspector.NewBuiltin(inspector.BuiltinHostHeader, nil)
	require.NoError(t, err)
	return selection.NewChain(catalog, inspector.NewRegistry(inspector.New("host_header", sel)))
}

// serve runs h on one end of a pipe, writes raw from the other end and
// returns the final state and every byte the client received.
func serve(t *testing.T, ctx context.Context, h *Handler, raw string) (State, string) {
	t.Helper()

	client, srv := net.Pipe()
	received := make(chan string, 1)
	go func() {
		defer client.Close()
		_, _ = client.Write([]byte(raw))
		data, _ := io.ReadAll(client)
		received <- string(data)
	}()

	state := h.Serve(ctx, srv)
	return state, <-received
}

func TestHandler_HostHeaderExample(t *testing.T) {
	t.Parallel()

	chain := hostHeaderChain(t, "http://a.example", "http://b.example")
	fwd := &fakeForwarder{resp: okResponse()}
	h := NewHandler(chain, fwd)

	state, out := serve(t, context.Background(), h,
		"GET /hello HTTP/1.1\r\nHost: b.example\r\nAccept: */*\r\n\r\n")

	assert.Equal(t, StateRelayed, state)
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok", out)
	require.Equal(t, 1, fwd.calls())
	assert.Same(t, chain.Vectors().At(1), fwd.vectors[0])
	assert.Equal(t, "/hello", fwd.requests[0].Path)
}

func TestHandler_NoMatchDropsConnection(t *testing.T) {
	t.Parallel()

	chain := hostHeaderChain(t, "http://a.example", "http://b.example")
	fwd := &fakeForwarder{resp: okResponse()}
	h := NewHandler(chain, fwd)

	state, out := serve(t, context.Background(), h,
		"GET / HTTP/1.1\r\nHost: c.example\r\n\r\n")

	assert.Equal(t, StateRejected, state)
	assert.Empty(t, out, "no bytes may be written to a rejected client")
	assert.Zero(t, fwd.calls())
}

func TestHandler_RejectStatus(t *testing.T) {
	t.Parallel()

	chain := hostHeaderChain(t, "http://a.example")
	h := NewHandler(chain, &fakeForwarder{}, WithRejectStatus(503))

	state, out := serve(t, context.Background(), h, "GET / HTTP/1.1\r\nHost: z.example\r\n\r\n")

	assert.Equal(t, StateRejected, state)
	assert.Equal(t, "HTTP/1.1 503 Service Unavailable\r\nContent-Length: 0\r\nConnection: close\r\n\r\n", out)
}

func TestHandler_RejectReasons(t *testing.T) {
	t.Parallel()

	empty, err := vector.Build(nil)
	require.NoError(t, err)
	some, err := vector.Build([]any{"http://a.example"})
	require.NoError(t, err)
	first, err := inspector.NewBuiltin(inspector.BuiltinFirst, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		chain  *selection.Chain
		result string
	}{
		{
			name:   "no vectors",
			chain:  selection.NewChain(empty, inspector.NewRegistry(inspector.New("first", first))),
			result: observability.ResultNoVectors,
		},
		{
			name:   "no inspectors",
			chain:  selection.NewChain(some, inspector.NewRegistry()),
			result: observability.ResultNoInspectors,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			metrics := observability.NewMetrics("test")
			fwd := &fakeForwarder{resp: okResponse()}
			h := NewHandler(tt.chain, fwd, WithHandlerMetrics(metrics))

			state, out := serve(t, context.Background(), h, "GET / HTTP/1.1\r\nHost: a.example\r\n\r\n")
			assert.Equal(t, StateRejected, state)
			assert.Empty(t, out)
			assert.Zero(t, fwd.calls())

			count, err := testutil.GatherAndCount(metrics.Registry(), "test_selections_total")
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestHandler_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		fwd  *fakeForwarder
	}{
		{
			name: "malformed request",
			raw:  "GARBAGE\r\n\r\n",
			fwd:  &fakeForwarder{resp: okResponse()},
		},
		{
			name: "header block too large",
			raw:  "GET / HTTP/1.1\r\nHost: a.example\r\nX-Pad: 0123456789012345678901234567890123456789\r\n\r\n",
			fwd:  &fakeForwarder{resp: okResponse()},
		},
		{
			name: "backend error",
			raw:  "GET / HTTP/1.1\r\nHost: a.example\r\n\r\n",
			fwd:  &fakeForwarder{err: util.NewBackendError("http://a.example", "connection refused")},
		},
		{
			name: "forwarder panic",
			raw:  "GET / HTTP/1.1\r\nHost: a.example\r\n\r\n",
			fwd:  &fakeForwarder{panicMsg: "boom"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chain := hostHeaderChain(t, "http://a.example")
			h := NewHandler(chain, tt.fwd, WithMaxHeaderBytes(64))

			state, out := serve(t, context.Background(), h, tt.raw)
			assert.Equal(t, StateFailed, state)
			assert.Empty(t, out)
		})
	}
}

func TestHandler_OneInfoLinePerConnection(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	logger := observability.NewLoggerFromZap(zap.New(core))

	chain := hostHeaderChain(t, "http://a.example")
	h := NewHandler(chain, &fakeForwarder{resp: okResponse()}, WithHandlerLogger(logger))

	ctx := observability.ContextWithConnID(context.Background(), "conn-42")
	_, _ = serve(t, ctx, h, "GET / HTTP/1.1\r\nHost: a.example\r\n\r\n")
	_, _ = serve(t, ctx, h, "GET / HTTP/1.1\r\nHost: nowhere.example\r\n\r\n")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "vector chosen", entries[0].Message)
	assert.Equal(t, "http://a.example", entries[0].ContextMap()["vector"])
	assert.Equal(t, "conn-42", entries[0].ContextMap()["conn_id"])
	assert.Equal(t, "no vector chosen, hanging up", entries[1].Message)
	assert.Equal(t, "conn-42", entries[1].ContextMap()["conn_id"])
}

func TestHandler_RelayFailureLogsTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		timeout bool
	}{
		{
			name: "timeout",
			err: util.NewBackendErrorWithCause("http://a.example", "failed to read response",
				util.NewTimeoutError("backend I/O", time.Second, nil)),
			timeout: true,
		},
		{
			name:    "refused",
			err:     util.NewBackendError("http://a.example", "connection refused"),
			timeout: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.ErrorLevel)
			logger := observability.NewLoggerFromZap(zap.New(core))

			chain := hostHeaderChain(t, "http://a.example")
			h := NewHandler(chain, &fakeForwarder{err: tt.err}, WithHandlerLogger(logger))

			state, out := serve(t, context.Background(), h, "GET / HTTP/1.1\r\nHost: a.example\r\n\r\n")
			assert.Equal(t, StateFailed, state)
			assert.Empty(t, out)

			entries := logs.FilterMessage("relay failed").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.timeout, entries[0].ContextMap()["timeout"])
		})
	}
}

func TestHandler_ClientGone(t *testing.T) {
	t.Parallel()

	chain := hostHeaderChain(t, "http://a.example")
	h := NewHandler(chain, &fakeForwarder{resp: okResponse()})

	client, srv := net.Pipe()
	go func() {
		_, _ = client.Write([]byte("GET / HTTP/1.1\r\nHost: a.example\r\n\r\n"))
		_ = client.Close()
	}()

	assert.Equal(t, StateFailed, h.Serve(context.Background(), srv))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "relayed", StateRelayed.String())
	assert.Equal(t, "rejected", StateRejected.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateForwarding.Terminal())
}
