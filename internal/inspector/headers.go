package inspector

import (
	"net/http"
	"sort"
	"strings"
)

// Headers is a read-only, case-insensitive view of request headers.
type Headers struct {
	h http.Header
}

// NewHeaders wraps h. The caller must not modify h afterwards.
func NewHeaders(h http.Header) Headers {
	return Headers{h: h}
}

// HeadersFromPairs builds a view from alternating name, value pairs.
func HeadersFromPairs(kv ...string) Headers {
	h := make(http.Header, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		h.Add(kv[i], kv[i+1])
	}
	return Headers{h: h}
}

// Get returns the first value of the named header, or "".
func (h Headers) Get(name string) string {
	return h.h.Get(name)
}

// Values returns a copy of all values of the named header.
func (h Headers) Values(name string) []string {
	vals := h.h.Values(name)
	if len(vals) == 0 {
		return nil
	}
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}

// Has reports whether the named header is present.
func (h Headers) Has(name string) bool {
	return len(h.h.Values(name)) > 0
}

// Len returns the number of distinct header names.
func (h Headers) Len() int {
	return len(h.h)
}

// Names returns the canonical header names in sorted order.
func (h Headers) Names() []string {
	names := make([]string, 0, len(h.h))
	for k := range h.h {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a lower-cased name to first value mapping.
func (h Headers) Map() map[string]string {
	out := make(map[string]string, len(h.h))
	for k, vals := range h.h {
		if len(vals) > 0 {
			out[strings.ToLower(k)] = vals[0]
		}
	}
	return out
}
