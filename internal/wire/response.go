package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// Response is a vector response, read in full.
type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	Fields     Fields
	// Body is the body as framed on the wire; chunked bodies keep their
	// chunk lines and trailers.
	Body []byte
}

// ReadResponse reads one response to a request made with method.
// Interim 1xx responses other than 101 are discarded.
func ReadResponse(br *bufio.Reader, method string, maxHeaderBytes int) (*Response, error) {
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}

	for {
		lr := &lineReader{br: br, budget: maxHeaderBytes}

		line, err := lr.readLine()
		if err != nil {
			return nil, fmt.Errorf("failed to read status line: %w", err)
		}
		resp, err := parseStatusLine(line)
		if err != nil {
			return nil, err
		}
		resp.Fields, err = lr.readFields()
		if err != nil {
			return nil, fmt.Errorf("failed to read response headers: %w", err)
		}

		if resp.StatusCode >= 100 && resp.StatusCode < 200 && resp.StatusCode != http.StatusSwitchingProtocols {
			continue
		}

		if err := resp.readBody(br, method); err != nil {
			return nil, err
		}
		return resp, nil
	}
}

func parseStatusLine(line string) (*Response, error) {
	proto, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return nil, fmt.Errorf("malformed status line %q", line)
	}

	codeStr, reason, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeStr)
	if err != nil || len(codeStr) != 3 || code < 100 {
		return nil, fmt.Errorf("malformed status code in %q", line)
	}
	if reason == "" {
		reason = http.StatusText(code)
	}

	return &Response{Proto: proto, StatusCode: code, Reason: reason}, nil
}

// bodyless reports whether the response cannot carry a body.
func (r *Response) bodyless(method string) bool {
	return method == http.MethodHead ||
		(r.StatusCode >= 100 && r.StatusCode < 200) ||
		r.StatusCode == http.StatusNoContent ||
		r.StatusCode == http.StatusNotModified
}

func (r *Response) readBody(br *bufio.Reader, method string) error {
	if r.bodyless(method) {
		return nil
	}

	if isChunked(r.Fields) {
		body, err := readChunked(br)
		if err != nil {
			return fmt.Errorf("failed to read chunked body: %w", err)
		}
		r.Body = body
		return nil
	}

	if values := r.Fields.Values("Content-Length"); len(values) > 0 {
		n, err := strconv.ParseInt(strings.TrimSpace(values[0]), 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid Content-Length %q", values[0])
		}
		body, err := readExactly(br, n)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		r.Body = body
		return nil
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	r.Body = body
	return nil
}

func isChunked(fields Fields) bool {
	te := fields.Values("Transfer-Encoding")
	if len(te) == 0 {
		return false
	}
	codings := strings.Split(te[len(te)-1], ",")
	return strings.EqualFold(strings.TrimSpace(codings[len(codings)-1]), "chunked")
}

// readChunked copies a chunked body verbatim through the last chunk
// and trailer section.
func readChunked(br *bufio.Reader) ([]byte, error) {
	lr := &lineReader{br: br, budget: DefaultMaxHeaderBytes, keep: true}
	var body bytes.Buffer

	for {
		line, err := lr.readLine()
		if err != nil {
			return nil, err
		}
		sizeStr, _, _ := strings.Cut(line, ";")
		size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 16, 64)
		if err != nil || size < 0 || size > math.MaxInt64-2 {
			return nil, fmt.Errorf("invalid chunk size %q", line)
		}
		body.Write(lr.raw)
		lr.raw = lr.raw[:0]

		if size == 0 {
			if _, err := lr.readFields(); err != nil {
				return nil, err
			}
			body.Write(lr.raw)
			return body.Bytes(), nil
		}

		chunk, err := readExactly(br, size+2)
		if err != nil {
			return nil, err
		}
		if !bytes.HasSuffix(chunk, []byte("\r\n")) {
			return nil, fmt.Errorf("chunk not terminated by CRLF")
		}
		body.Write(chunk)
	}
}

// Header returns the first value of the named field, ignoring case.
func (r *Response) Header(name string) string {
	return r.Fields.Get(name)
}

// WriteTo writes the response as HTTP/1.1 with the header fields as
// received.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	_, _ = fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", r.StatusCode, r.Reason)
	writeFields(bw, r.Fields)
	_, _ = bw.Write(r.Body)
	if err := bw.Flush(); err != nil {
		return 0, err
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Bytes returns the serialized response.
func (r *Response) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = r.WriteTo(&buf)
	return buf.Bytes()
}
