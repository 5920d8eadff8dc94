// Package helpers provides common test utilities for the httpvec tests.
package helpers

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GetFreePort returns a port that was free at the time of the call.
func GetFreePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// WaitForServer waits until addr accepts TCP connections.
func WaitForServer(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("server %s not ready after %v", addr, timeout)
}

// SendRaw writes raw to addr and returns everything the peer sends back
// before closing the connection.
func SendRaw(addr, raw string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	if _, err := io.WriteString(conn, raw); err != nil {
		return "", err
	}

	data, err := io.ReadAll(conn)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return string(data), fmt.Errorf("no response within %v: %w", timeout, err)
	}
	return string(data), err
}

// Request builds a raw HTTP/1.1 request. headers alternate name and value.
func Request(method, target string, body string, headers ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, target)
	for i := 0; i+1 < len(headers); i += 2 {
		fmt.Fprintf(&b, "%s: %s\r\n", headers[i], headers[i+1])
	}
	if body != "" {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// StatusCode extracts the status code from a raw response, or 0.
func StatusCode(raw string) int {
	var proto string
	var code int
	if _, err := fmt.Sscanf(raw, "%s %d", &proto, &code); err != nil {
		return 0
	}
	return code
}

// ResponseBody returns the part of a raw response after the header block.
func ResponseBody(raw string) string {
	if i := strings.Index(raw, "\r\n\r\n"); i >= 0 {
		return raw[i+4:]
	}
	return ""
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(dir, name, content string) (string, error) {
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		return "", err
	}
	return p, nil
}

// WriteVectorFile writes a vector file holding entries and returns its
// path. Entries are url strings or maps with a url key.
func WriteVectorFile(dir string, entries ...any) (string, error) {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", err
	}
	return WriteFile(dir, "vectors.yaml", string(data))
}
