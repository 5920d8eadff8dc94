package relay

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/httpvec/internal/observability"
	"github.com/vyrodovalexey/httpvec/internal/util"
	"github.com/vyrodovalexey/httpvec/internal/vector"
	"github.com/vyrodovalexey/httpvec/internal/wire"
)

func vectorFor(t *testing.T, rawURL string) *vector.Vector {
	t.Helper()

	catalog, err := vector.Build([]any{rawURL})
	require.NoError(t, err)
	return catalog.At(0)
}

func parseRequest(t *testing.T, raw string) *wire.Request {
	t.Helper()

	req, err := wire.ReadRequest(bufio.NewReader(strings.NewReader(raw)), 0)
	require.NoError(t, err)
	return req
}

type seenRequest struct {
	method string
	host   string
	uri    string
	body   string
	header http.Header
}

func recordingBackend(t *testing.T, tlsServer bool) (*httptest.Server, <-chan seenRequest) {
	t.Helper()

	seen := make(chan seenRequest, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- seenRequest{method: r.Method, host: r.Host, uri: r.RequestURI, body: string(body), header: r.Header.Clone()}
		w.Header().Set("X-Backend", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	})

	var srv *httptest.Server
	if tlsServer {
		srv = httptest.NewTLSServer(handler)
	} else {
		srv = httptest.NewServer(handler)
	}
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestForward_RoundTrip(t *testing.T) {
	t.Parallel()

	srv, seen := recordingBackend(t, false)
	v := vectorFor(t, srv.URL+"/ignored?x=1#frag")

	metrics := observability.NewMetrics("test")
	r := New(WithTimeout(5*time.Second), WithMetrics(metrics))

	req := parseRequest(t,
		"POST /submit?id=7#top HTTP/1.1\r\nHost: original.example\r\nX-Trace: abc\r\nContent-Length: 5\r\n\r\nhello")

	resp, err := r.Forward(context.Background(), v, req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Created", resp.Reason)
	assert.Equal(t, "yes", resp.Header("X-Backend"))
	assert.Equal(t, "created", string(resp.Body))

	got := <-seen
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "127.0.0.1", got.host)
	assert.Equal(t, "/submit?id=7", got.uri)
	assert.Equal(t, "hello", got.body)
	assert.Equal(t, "abc", got.header.Get("X-Trace"))

	count, err := testutil.GatherAndCount(metrics.Registry(), "test_relay_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestForward_HostAddedWhenAbsent(t *testing.T) {
	t.Parallel()

	srv, seen := recordingBackend(t, false)
	v := vectorFor(t, srv.URL)

	_, err := New().Forward(context.Background(), v, parseRequest(t, "GET / HTTP/1.0\r\n\r\n"))
	require.NoError(t, err)

	got := <-seen
	assert.Equal(t, "127.0.0.1", got.host)
}

func TestForward_HTTPS(t *testing.T) {
	t.Parallel()

	srv, seen := recordingBackend(t, true)
	v := vectorFor(t, srv.URL)
	require.Equal(t, "https", v.Scheme())

	clientTLS := srv.Client().Transport.(*http.Transport).TLSClientConfig
	r := New(WithTLSConfig(clientTLS))

	resp, err := r.Forward(context.Background(), v, parseRequest(t, "GET /secure HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	got := <-seen
	assert.Equal(t, "/secure", got.uri)
}

func TestForward_HTTPSUntrusted(t *testing.T) {
	t.Parallel()

	srv, _ := recordingBackend(t, true)
	v := vectorFor(t, srv.URL)

	_, err := New().Forward(context.Background(), v, parseRequest(t, "GET / HTTP/1.1\r\n\r\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrBackendUnavail)
}

func TestForward_ChunkedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello "))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("world"))
	}))
	t.Cleanup(srv.Close)

	resp, err := New().Forward(context.Background(), vectorFor(t, srv.URL), parseRequest(t, "GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	assert.Equal(t, "chunked", resp.Header("Transfer-Encoding"))
	body := string(resp.Body)
	assert.Contains(t, body, "hello ")
	assert.Contains(t, body, "world")
	assert.True(t, strings.HasSuffix(body, "0\r\n\r\n"))
}

func TestForward_HeadRequest(t *testing.T) {
	t.Parallel()

	srv, _ := recordingBackend(t, false)

	resp, err := New().Forward(context.Background(), vectorFor(t, srv.URL), parseRequest(t, "HEAD / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Empty(t, resp.Body)
}

func TestForward_DialFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	metrics := observability.NewMetrics("test")
	v := vectorFor(t, "http://"+addr)

	resp, err := New(WithTimeout(time.Second), WithMetrics(metrics)).
		Forward(context.Background(), v, parseRequest(t, "GET / HTTP/1.1\r\n\r\n"))
	assert.Nil(t, resp)
	require.Error(t, err)

	var backendErr *util.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, v.String(), backendErr.Backend)

	count, err := testutil.GatherAndCount(metrics.Registry(), "test_backend_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestForward_Timeout(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	}()

	r := New(WithTimeout(100 * time.Millisecond))
	start := time.Now()
	_, err = r.Forward(context.Background(), vectorFor(t, "http://"+ln.Addr().String()), parseRequest(t, "GET / HTTP/1.1\r\n\r\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrBackendUnavail)
	assert.ErrorIs(t, err, util.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestForward_SlowBodyWithinTimeout(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}

		_, _ = io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n")
		for _, b := range []byte("hello") {
			time.Sleep(150 * time.Millisecond)
			if _, err := conn.Write([]byte{b}); err != nil {
				return
			}
		}
	}()

	// The whole body takes longer than the timeout, no single read does.
	r := New(WithTimeout(400 * time.Millisecond))
	resp, err := r.Forward(context.Background(), vectorFor(t, "http://"+ln.Addr().String()),
		parseRequest(t, "GET / HTTP/1.1\r\nHost: a\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(resp.Body))
}

func TestForward_Cancelled(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = New(WithTimeout(time.Minute)).
		Forward(ctx, vectorFor(t, "http://"+ln.Addr().String()), parseRequest(t, "GET / HTTP/1.1\r\n\r\n"))
	assert.ErrorIs(t, err, util.ErrBackendUnavail)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultTimeout, New().Timeout())
	assert.Equal(t, time.Second, New(WithTimeout(time.Second), WithMaxHeaderBytes(1024),
		WithLogger(observability.NopLogger()), WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})).Timeout())
}
