package wire

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/httpvec/internal/util"
)

// Request is a parsed client request.
type Request struct {
	Method string
	// Target is the request target as received.
	Target string
	// Path is the path and query sent upstream; fragments are dropped
	// and absolute-form targets reduced.
	Path   string
	Proto  string
	Fields Fields
	Body   []byte
}

// ReadRequest reads one request. The request line and header block may
// use at most maxHeaderBytes; the body is Content-Length bytes.
func ReadRequest(br *bufio.Reader, maxHeaderBytes int) (*Request, error) {
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}
	lr := &lineReader{br: br, budget: maxHeaderBytes}

	line, err := lr.readLine()
	// Tolerate blank lines ahead of the request line.
	for err == nil && line == "" {
		line, err = lr.readLine()
	}
	if err != nil {
		return nil, err
	}

	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	req.Fields, err = lr.readFields()
	if err != nil {
		return nil, err
	}

	if te := req.Fields.Get("Transfer-Encoding"); te != "" && !strings.EqualFold(te, "identity") {
		return nil, fmt.Errorf("%w: transfer-encoding %q not supported", util.ErrMalformedRequest, te)
	}

	n, err := contentLength(req.Fields)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		req.Body, err = readExactly(br, n)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	return req, nil
}

func parseRequestLine(line string) (*Request, error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: malformed request line %q", util.ErrMalformedRequest, line)
	}
	if !strings.HasPrefix(parts[2], "HTTP/1.") {
		return nil, fmt.Errorf("%w: unsupported protocol %q", util.ErrMalformedRequest, parts[2])
	}

	path, err := upstreamPath(parts[1])
	if err != nil {
		return nil, err
	}

	return &Request{
		Method: parts[0],
		Target: parts[1],
		Path:   path,
		Proto:  parts[2],
	}, nil
}

// upstreamPath reduces a request target to what is sent to the vector.
func upstreamPath(target string) (string, error) {
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return "", fmt.Errorf("%w: empty request target", util.ErrMalformedRequest)
	}
	if strings.HasPrefix(target, "/") || target == "*" {
		return target, nil
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		// authority-form, forwarded as received
		return target, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" || u.ForceQuery {
		path += "?" + u.RawQuery
	}
	return path, nil
}

// contentLength returns the declared body size, or 0.
func contentLength(fields Fields) (int64, error) {
	values := fields.Values("Content-Length")
	if len(values) == 0 {
		return 0, nil
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return 0, fmt.Errorf("%w: conflicting Content-Length values", util.ErrMalformedRequest)
		}
	}
	n, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid Content-Length %q", util.ErrMalformedRequest, values[0])
	}
	return n, nil
}

// Write sends the request to a vector as HTTP/1.1, with the Host field
// set to host. Host is added first when the client sent none; extra
// Host fields are dropped.
func (r *Request) Write(w io.Writer, host string) error {
	bw := bufio.NewWriter(w)

	_, _ = fmt.Fprintf(bw, "%s %s HTTP/1.1\r\n", r.Method, r.Path)

	fields := make(Fields, 0, len(r.Fields)+1)
	seenHost := false
	for _, f := range r.Fields {
		if !strings.EqualFold(f.Name, "Host") {
			fields = append(fields, f)
			continue
		}
		if !seenHost {
			fields = append(fields, HeaderField{Name: f.Name, Value: host})
			seenHost = true
		}
	}
	if !seenHost {
		fields = append(Fields{{Name: "Host", Value: host}}, fields...)
	}

	writeFields(bw, fields)
	_, _ = bw.Write(r.Body)

	return bw.Flush()
}
