package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/httpvec/internal/observability"
)

// ConnectionTracker tracks active client connections for shutdown and
// the max-connections cap.
type ConnectionTracker struct {
	connections sync.Map
	maxConns    int64
	connCount   atomic.Int64
	logger      observability.Logger
}

// TrackedConnection is an active connection with its metadata.
type TrackedConnection struct {
	ID         string
	RemoteAddr string
	LocalAddr  string
	StartTime  time.Time
	bytesIn    atomic.Int64
	bytesOut   atomic.Int64
	conn       net.Conn
}

// NewConnectionTracker creates a tracker. maxConns 0 means unlimited.
func NewConnectionTracker(maxConns int, logger observability.Logger) *ConnectionTracker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ConnectionTracker{
		maxConns: int64(maxConns),
		logger:   logger,
	}
}

// Add registers conn. It fails when the connection cap is reached.
func (t *ConnectionTracker) Add(conn net.Conn) (*TrackedConnection, error) {
	for {
		count := t.connCount.Load()
		if t.maxConns > 0 && count >= t.maxConns {
			return nil, fmt.Errorf("maximum connections reached: %d", t.maxConns)
		}
		if t.connCount.CompareAndSwap(count, count+1) {
			break
		}
	}

	tracked := &TrackedConnection{
		ID:         uuid.New().String(),
		RemoteAddr: conn.RemoteAddr().String(),
		LocalAddr:  conn.LocalAddr().String(),
		StartTime:  time.Now(),
		conn:       conn,
	}
	t.connections.Store(tracked.ID, tracked)

	t.logger.Debug("connection added",
		observability.String("conn_id", tracked.ID),
		observability.String("remoteAddr", tracked.RemoteAddr),
	)

	return tracked, nil
}

// Remove unregisters a connection.
func (t *ConnectionTracker) Remove(id string) {
	if _, loaded := t.connections.LoadAndDelete(id); loaded {
		t.connCount.Add(-1)
	}
}

// Get returns a tracked connection by ID.
func (t *ConnectionTracker) Get(id string) *TrackedConnection {
	if v, ok := t.connections.Load(id); ok {
		return v.(*TrackedConnection)
	}
	return nil
}

// Count returns the number of active connections.
func (t *ConnectionTracker) Count() int {
	return int(t.connCount.Load())
}

// CloseAll closes every tracked connection.
func (t *ConnectionTracker) CloseAll() {
	t.connections.Range(func(_, value interface{}) bool {
		tracked := value.(*TrackedConnection)
		if err := tracked.Close(); err != nil {
			t.logger.Debug("error closing connection",
				observability.String("conn_id", tracked.ID),
				observability.Error(err),
			)
		}
		return true
	})
}

// Stats returns bytes read, bytes written and the connection age.
func (tc *TrackedConnection) Stats() (bytesIn, bytesOut int64, duration time.Duration) {
	return tc.bytesIn.Load(), tc.bytesOut.Load(), time.Since(tc.StartTime)
}

// Close closes the underlying connection.
func (tc *TrackedConnection) Close() error {
	if tc.conn != nil {
		return tc.conn.Close()
	}
	return nil
}

// CountingConn wraps a net.Conn to count bytes transferred.
type CountingConn struct {
	net.Conn
	tracked *TrackedConnection
}

// NewCountingConn creates a counting connection wrapper.
func NewCountingConn(conn net.Conn, tracked *TrackedConnection) *CountingConn {
	return &CountingConn{Conn: conn, tracked: tracked}
}

// Read reads data and updates the bytes-in counter.
func (c *CountingConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 && c.tracked != nil {
		c.tracked.bytesIn.Add(int64(n))
	}
	return n, err
}

// Write writes data and updates the bytes-out counter.
func (c *CountingConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 && c.tracked != nil {
		c.tracked.bytesOut.Add(int64(n))
	}
	return n, err
}
