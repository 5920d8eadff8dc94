package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/vyrodovalexey/httpvec/internal/util"
)

// ErrHeaderTooLarge is returned when a header block exceeds its limit.
var ErrHeaderTooLarge = errors.New("header block too large")

// DefaultMaxHeaderBytes bounds a header block when no limit is given.
const DefaultMaxHeaderBytes = 1 << 20

// HeaderField is one header line as received.
type HeaderField struct {
	Name  string
	Value string
}

// Fields is an ordered list of header fields.
type Fields []HeaderField

// Get returns the first value of the named field, ignoring case.
func (f Fields) Get(name string) string {
	for _, h := range f {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Values returns every value of the named field in order.
func (f Fields) Values(name string) []string {
	var out []string
	for _, h := range f {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}

// Header returns a canonicalized http.Header built from the fields.
func (f Fields) Header() http.Header {
	h := make(http.Header, len(f))
	for _, field := range f {
		h.Add(field.Name, field.Value)
	}
	return h
}

// lineReader reads CRLF or LF terminated lines within a byte budget.
type lineReader struct {
	br     *bufio.Reader
	budget int
	raw    []byte
	keep   bool
}

// readLine returns the next line without its terminator.
func (l *lineReader) readLine() (string, error) {
	var buf []byte
	for {
		chunk, err := l.br.ReadSlice('\n')
		l.budget -= len(chunk)
		if l.budget < 0 {
			return "", ErrHeaderTooLarge
		}
		buf = append(buf, chunk...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(buf) > 0 {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	if l.keep {
		l.raw = append(l.raw, buf...)
	}
	line := strings.TrimSuffix(string(buf), "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// readFields reads header lines up to and including the blank line.
func (l *lineReader) readFields() (Fields, error) {
	var fields Fields
	for {
		line, err := l.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return fields, nil
		}
		field, err := parseField(line)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
}

func parseField(line string) (HeaderField, error) {
	if line[0] == ' ' || line[0] == '\t' {
		return HeaderField{}, fmt.Errorf("%w: obsolete line folding", util.ErrMalformedRequest)
	}
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return HeaderField{}, fmt.Errorf("%w: malformed header line %q", util.ErrMalformedRequest, line)
	}
	name := line[:colon]
	if err := util.ValidateHeaderName(name); err != nil {
		return HeaderField{}, fmt.Errorf("%w: %v", util.ErrMalformedRequest, err)
	}
	return HeaderField{Name: name, Value: textproto.TrimString(line[colon+1:])}, nil
}

// writeFields writes header lines and the terminating blank line.
func writeFields(bw *bufio.Writer, fields Fields) {
	for _, f := range fields {
		_, _ = bw.WriteString(f.Name)
		_, _ = bw.WriteString(": ")
		_, _ = bw.WriteString(f.Value)
		_, _ = bw.WriteString("\r\n")
	}
	_, _ = bw.WriteString("\r\n")
}

// readExactly reads exactly n bytes from r. The buffer grows with the bytes
// received, never with the length the peer declared.
func readExactly(r io.Reader, n int64) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, n); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}
