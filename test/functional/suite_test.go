//go:build functional
// +build functional

/*
Package functional provides functional tests for the httpvec relay.
These tests run complete relays on loopback against mock backends.
*/
package functional

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	testconfig "github.com/vyrodovalexey/httpvec/test/config"
	"github.com/vyrodovalexey/httpvec/test/helpers"

	"github.com/vyrodovalexey/httpvec/internal/config"
	"github.com/vyrodovalexey/httpvec/internal/inspector"
	"github.com/vyrodovalexey/httpvec/internal/observability"
	"github.com/vyrodovalexey/httpvec/internal/relay"
	"github.com/vyrodovalexey/httpvec/internal/selection"
	"github.com/vyrodovalexey/httpvec/internal/server"
	"github.com/vyrodovalexey/httpvec/internal/vector"
)

// TestSuite holds shared test resources
type TestSuite struct {
	t            *testing.T
	env          testconfig.TestConfig
	logger       observability.Logger
	dir          string
	mockBackends []*MockBackend
	relays       []*RelayInstance
	mu           sync.Mutex
}

// MockBackend represents a mock backend server for testing
type MockBackend struct {
	Server   *httptest.Server
	URL      string
	Name     string
	Handler  http.Handler
	Requests []RecordedRequest
	Latency  time.Duration
	mu       sync.Mutex
}

// RecordedRequest stores information about a received request
type RecordedRequest struct {
	Method     string
	RequestURI string
	Host       string
	Headers    http.Header
	Body       []byte
}

// RelayInstance is a running relay.
type RelayInstance struct {
	Server  *server.Server
	Addr    string
	Metrics *observability.Metrics

	errCh    chan error
	once     sync.Once
	startErr error
}

// wait returns the error Start returned once it has exited.
func (r *RelayInstance) wait() error {
	r.once.Do(func() { r.startErr = <-r.errCh })
	return r.startErr
}

// NewTestSuite creates a new test suite
func NewTestSuite(t *testing.T) *TestSuite {
	return &TestSuite{
		t:      t,
		env:    testconfig.GetTestConfig(),
		logger: observability.NewLoggerFromZap(zaptest.NewLogger(t)),
		dir:    t.TempDir(),
	}
}

// Cleanup stops every relay and backend the suite started.
func (s *TestSuite) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.relays {
		_ = r.Server.Stop(context.Background())
		_ = r.wait()
	}
	for _, mb := range s.mockBackends {
		mb.Server.Close()
	}
}

// MockBackendOption configures a mock backend
type MockBackendOption func(*MockBackend)

// WithLatency sets the response latency
func WithLatency(d time.Duration) MockBackendOption {
	return func(mb *MockBackend) {
		mb.Latency = d
	}
}

// WithHandler sets a custom handler
func WithHandler(h http.Handler) MockBackendOption {
	return func(mb *MockBackend) {
		mb.Handler = h
	}
}

// CreateMockBackend creates a backend that records requests and answers
// with its name.
func (s *TestSuite) CreateMockBackend(name string, opts ...MockBackendOption) *MockBackend {
	mb := &MockBackend{Name: name}
	for _, opt := range opts {
		opt(mb)
	}

	if mb.Handler == nil {
		mb.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)

			mb.mu.Lock()
			mb.Requests = append(mb.Requests, RecordedRequest{
				Method:     r.Method,
				RequestURI: r.RequestURI,
				Host:       r.Host,
				Headers:    r.Header.Clone(),
				Body:       body,
			})
			latency := mb.Latency
			mb.mu.Unlock()

			if latency > 0 {
				time.Sleep(latency)
			}

			w.Header().Set("X-Backend", mb.Name)
			_, _ = w.Write([]byte(mb.Name))
		})
	}

	mb.Server = httptest.NewServer(mb.Handler)
	mb.URL = mb.Server.URL

	s.mu.Lock()
	s.mockBackends = append(s.mockBackends, mb)
	s.mu.Unlock()

	return mb
}

// GetRequests returns recorded requests
func (mb *MockBackend) GetRequests() []RecordedRequest {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	result := make([]RecordedRequest, len(mb.Requests))
	copy(result, mb.Requests)
	return result
}

// Port returns the backend's listening port.
func (mb *MockBackend) Port() string {
	_, port, _ := net.SplitHostPort(mb.Server.Listener.Addr().String())
	return port
}

// WriteManifest writes an inspector manifest into the suite's inspector
// directory and returns that directory.
func (s *TestSuite) WriteManifest(name, content string) string {
	_, err := helpers.WriteFile(s.dir, "inspectors/"+name, content)
	require.NoError(s.t, err)
	return s.dir + "/inspectors"
}

// RelayConfig returns a configuration for a loopback relay over entries.
func (s *TestSuite) RelayConfig(entries ...any) *config.RelayConfig {
	vectors, err := helpers.WriteVectorFile(s.dir, entries...)
	require.NoError(s.t, err)

	cfg := config.DefaultConfig()
	cfg.Listen.Host = "127.0.0.1"
	cfg.Listen.Port = 0
	cfg.Listen.ShutdownTimeout = config.Duration(s.env.ShutdownTimeout)
	cfg.Timeout = config.Duration(s.env.RequestTimeout)
	cfg.Vectors = vectors
	return cfg
}

// StartRelay wires and starts a relay for cfg.
func (s *TestSuite) StartRelay(cfg *config.RelayConfig) *RelayInstance {
	require.NoError(s.t, config.ValidateConfig(cfg))

	catalog, err := vector.LoadFile(cfg.Vectors)
	require.NoError(s.t, err)
	registry, err := inspector.Discover(cfg.Inspectors, inspector.WithLogger(s.logger))
	require.NoError(s.t, err)

	metrics := observability.NewMetrics("httpvec")
	chain := selection.NewChain(catalog, registry,
		selection.WithLogger(s.logger),
		selection.WithMetrics(metrics),
	)
	forwarder := relay.New(
		relay.WithTimeout(cfg.Timeout.Duration()),
		relay.WithLogger(s.logger),
		relay.WithMetrics(metrics),
	)
	handler := server.NewHandler(chain, forwarder,
		server.WithHandlerLogger(s.logger),
		server.WithHandlerMetrics(metrics),
		server.WithRejectStatus(cfg.Reject.Status),
	)
	srv := server.NewServer(&server.Config{
		Host:            cfg.Listen.Host,
		Port:            cfg.Listen.Port,
		MaxConnections:  cfg.Listen.MaxConnections,
		ShutdownTimeout: cfg.Listen.ShutdownTimeout.Duration(),
		AcceptDeadline:  50 * time.Millisecond,
	}, handler, server.WithLogger(s.logger), server.WithMetrics(metrics))

	inst := &RelayInstance{Server: srv, Metrics: metrics, errCh: make(chan error, 1)}
	go func() {
		inst.errCh <- srv.Start(context.Background())
	}()

	select {
	case <-srv.Ready():
	case err := <-inst.errCh:
		s.t.Fatalf("relay failed to start: %v", err)
	case <-time.After(s.env.StartupTimeout):
		s.t.Fatal("relay did not become ready")
	}
	inst.Addr = srv.Addr().String()

	s.mu.Lock()
	s.relays = append(s.relays, inst)
	s.mu.Unlock()

	return inst
}

// StopRelay stops r and returns the error its Start returned.
func (s *TestSuite) StopRelay(r *RelayInstance) error {
	require.NoError(s.t, r.Server.Stop(context.Background()))
	return r.wait()
}

// Send sends raw to the relay and returns the raw response.
func (s *TestSuite) Send(r *RelayInstance, raw string) string {
	out, err := helpers.SendRaw(r.Addr, raw, s.env.RequestTimeout)
	require.NoError(s.t, err)
	return out
}
