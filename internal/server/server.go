package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/httpvec/internal/observability"
	"github.com/vyrodovalexey/httpvec/internal/util"
)

// Default configuration values for context cancellation handling.
const (
	// DefaultAcceptDeadline is the default deadline for accept operations
	// to allow periodic context checks.
	DefaultAcceptDeadline = 500 * time.Millisecond

	// DefaultShutdownTimeout is the default timeout for graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds configuration for the listener.
type Config struct {
	// Host is the address to bind to.
	Host string

	// Port is the port to listen on; 0 picks a free port.
	Port int

	// MaxConnections caps concurrently handled connections; 0 is unlimited.
	MaxConnections int

	// AcceptRate limits accepted connections per second; 0 disables it.
	AcceptRate float64

	// AcceptBurst is the limiter burst size.
	AcceptBurst int

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration

	// AcceptDeadline is the deadline for accept operations to allow
	// periodic context checks.
	AcceptDeadline time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            8080,
		AcceptBurst:     1,
		ShutdownTimeout: DefaultShutdownTimeout,
		AcceptDeadline:  DefaultAcceptDeadline,
	}
}

// Address returns the host:port the listener binds.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server accepts connections and hands each to the Handler on its own
// goroutine.
type Server struct {
	listener    net.Listener
	handler     *Handler
	logger      observability.Logger
	metrics     *observability.Metrics
	config      *Config
	connections *ConnectionTracker
	limiter     *rate.Limiter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	running     bool
	stopCh      chan struct{}
	ready       chan struct{}
	cancelFunc  context.CancelFunc
}

// Option is a functional option for the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// NewServer creates a listener for handler.
func NewServer(config *Config, handler *Handler, opts ...Option) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		handler: handler,
		logger:  observability.NopLogger(),
		config:  config,
		stopCh:  make(chan struct{}),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.connections = NewConnectionTracker(config.MaxConnections, s.logger)
	if config.AcceptRate > 0 {
		burst := config.AcceptBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.AcceptRate), burst)
	}

	return s
}

// Start binds the listener and accepts connections until ctx is
// cancelled or Stop is called. It returns nil after Stop and the
// context error after cancellation.
func (s *Server) Start(ctx context.Context) error {
	serverCtx, ready, err := s.initializeServer(ctx)
	if err != nil {
		return err
	}

	acceptDeadline := s.config.AcceptDeadline
	if acceptDeadline <= 0 {
		acceptDeadline = DefaultAcceptDeadline
	}

	s.logger.Info("listening",
		observability.String("address", s.listener.Addr().String()),
		observability.Int("maxConnections", s.config.MaxConnections),
		observability.Any("acceptRate", s.config.AcceptRate),
		observability.Duration("shutdownTimeout", s.config.ShutdownTimeout),
	)
	close(ready)

	err = s.acceptLoop(serverCtx, acceptDeadline)
	if err != nil {
		// Stop still drains in-flight connections.
		s.closeListener()
	}
	return err
}

// initializeServer binds the listener and marks the server running. It
// returns the ready channel of this run.
func (s *Server) initializeServer(ctx context.Context) (context.Context, chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, nil, fmt.Errorf("server already running")
	}

	addr := s.config.Address()
	lc := &net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	s.listener = listener
	s.running = true
	s.stopCh = make(chan struct{})

	return serverCtx, s.ready, nil
}

// Ready is closed once the listener is bound. After Stop it returns a
// fresh channel for the next Start.
func (s *Server) Ready() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// acceptLoop runs the main connection accept loop.
func (s *Server) acceptLoop(serverCtx context.Context, acceptDeadline time.Duration) error {
	for {
		if err := s.checkShutdown(serverCtx); err != nil {
			return err
		}
		if s.stopping() {
			return nil
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(serverCtx); err != nil {
				return s.handleAcceptShutdown(serverCtx)
			}
		}

		if err := s.setAcceptDeadline(acceptDeadline); err != nil {
			s.logger.Warn("failed to set accept deadline", observability.Error(err))
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if s.shouldContinueOnError(serverCtx, err) {
				continue
			}
			return s.handleAcceptShutdown(serverCtx)
		}

		s.spawnConnectionHandler(serverCtx, conn)
	}
}

// checkShutdown reports a cancelled server context.
func (s *Server) checkShutdown(serverCtx context.Context) error {
	select {
	case <-serverCtx.Done():
		s.logger.Debug("server context cancelled, stopping accept loop")
		return serverCtx.Err()
	default:
		return nil
	}
}

func (s *Server) stopping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// shouldContinueOnError determines if the accept loop should continue after an error.
func (s *Server) shouldContinueOnError(serverCtx context.Context, err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if serverCtx.Err() != nil || s.stopping() || errors.Is(err, net.ErrClosed) {
		return false
	}
	s.logger.Error("accept error", observability.Error(err))
	return true
}

// handleAcceptShutdown returns the accept loop's exit error.
func (s *Server) handleAcceptShutdown(serverCtx context.Context) error {
	if s.stopping() {
		return nil
	}
	return serverCtx.Err()
}

// setAcceptDeadline sets the accept deadline on the listener.
func (s *Server) setAcceptDeadline(deadline time.Duration) error {
	if l, ok := s.listener.(interface{ SetDeadline(time.Time) error }); ok {
		return l.SetDeadline(time.Now().Add(deadline))
	}
	return nil
}

// spawnConnectionHandler spawns a goroutine to handle a new connection.
func (s *Server) spawnConnectionHandler(serverCtx context.Context, conn net.Conn) {
	connCtx, connCancel := context.WithCancel(serverCtx)

	s.wg.Add(1)
	go func(ctx context.Context, cancel context.CancelFunc, c net.Conn) {
		defer s.wg.Done()
		defer cancel()
		s.handleConnection(ctx, c)
	}(connCtx, connCancel, conn)
}

// handleConnection tracks a connection and runs the handler on it.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	tracked, err := s.connections.Add(conn)
	if err != nil {
		s.logger.Warn("connection rejected",
			observability.String("remoteAddr", conn.RemoteAddr().String()),
			observability.Error(err),
		)
		_ = conn.Close()
		return
	}
	defer s.connections.Remove(tracked.ID)
	defer func() { _ = conn.Close() }()

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("connection goroutine panicked",
				observability.String("conn_id", tracked.ID),
				observability.Any("panic", r))
		}
	}()

	// Close the connection when the server context is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	ctx = observability.ContextWithConnID(ctx, tracked.ID)
	ctx = util.ContextWithStartTime(ctx, tracked.StartTime)

	state := s.handler.Serve(ctx, NewCountingConn(conn, tracked))

	bytesIn, bytesOut, duration := tracked.Stats()
	s.logger.Debug("connection closed",
		observability.String("conn_id", tracked.ID),
		observability.String("state", state.String()),
		observability.Int64("bytesIn", bytesIn),
		observability.Int64("bytesOut", bytesOut),
		observability.Duration("duration", duration),
	)
}

// Stop stops accepting connections and waits for active ones up to the
// shutdown timeout, then force-closes the rest.
func (s *Server) Stop(ctx context.Context) error {
	shutdownTimeout, shouldStop := s.prepareShutdown()
	if !shouldStop {
		return nil
	}

	s.signalShutdown()
	s.closeListener()

	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.waitForConnectionsOrTimeout(shutdownCtx)

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.finalizeShutdown()

	s.logger.Info("listener stopped")
	return nil
}

// prepareShutdown returns the timeout and whether the server is running.
func (s *Server) prepareShutdown() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return 0, false
	}

	shutdownTimeout := s.config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	s.logger.Info("stopping listener",
		observability.Duration("shutdownTimeout", shutdownTimeout),
		observability.Int("activeConnections", s.connections.Count()),
	)

	return shutdownTimeout, true
}

// signalShutdown tells the accept loop to exit.
func (s *Server) signalShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// closeListener closes the server listener.
func (s *Server) closeListener() {
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("error closing listener", observability.Error(err))
		}
	}
}

// waitForConnectionsOrTimeout waits for handlers to finish or times out.
func (s *Server) waitForConnectionsOrTimeout(shutdownCtx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all connections closed gracefully")
	case <-shutdownCtx.Done():
		s.logger.Warn("graceful shutdown timed out, force closing remaining connections",
			observability.Int("remainingConnections", s.connections.Count()),
		)
		// Unblock handlers waiting on a vector as well as on the client.
		if s.cancelFunc != nil {
			s.cancelFunc()
		}
		s.connections.CloseAll()
		s.waitForForceClose()
	}
}

// waitForForceClose waits briefly for handlers to exit after force close.
func (s *Server) waitForForceClose() {
	forceCloseWait := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(forceCloseWait)
	}()

	select {
	case <-forceCloseWait:
		s.logger.Debug("all connection handlers exited after force close")
	case <-time.After(1 * time.Second):
		s.logger.Warn("some connection handlers may still be running")
	}
}

// finalizeShutdown finalizes the server shutdown state.
func (s *Server) finalizeShutdown() {
	s.mu.Lock()
	s.running = false
	s.cancelFunc = nil
	s.ready = make(chan struct{})
	s.mu.Unlock()
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ActiveConnections returns the number of active connections.
func (s *Server) ActiveConnections() int {
	return s.connections.Count()
}
