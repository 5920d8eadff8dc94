package vector

import (
	"net"
	"net/url"
	"strings"
)

// Supported vector schemes.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// Vector is a backend target. All fields are set at construction time.
type Vector struct {
	index    int
	raw      string
	scheme   string
	host     string
	port     string
	path     string
	query    string
	fragment string
	ext      map[string]any
}

// Index returns the vector's position in its catalog.
func (v *Vector) Index() int { return v.index }

// Scheme returns "http" or "https".
func (v *Vector) Scheme() string { return v.scheme }

// Host returns the hostname without port.
func (v *Vector) Host() string { return v.host }

// Port returns the configured port, or "" when the url had none.
func (v *Vector) Port() string { return v.port }

// Path returns the url path.
func (v *Vector) Path() string { return v.path }

// Query returns the raw url query.
func (v *Vector) Query() string { return v.query }

// Fragment returns the url fragment.
func (v *Vector) Fragment() string { return v.fragment }

// URL returns the url the vector was configured with.
func (v *Vector) URL() string { return v.raw }

// Address returns the dial address, defaulting the port by scheme.
func (v *Vector) Address() string {
	port := v.port
	if port == "" {
		port = DefaultPort(v.scheme)
	}
	return net.JoinHostPort(v.host, port)
}

// Ext returns a copy of an extension field from the vector entry.
func (v *Vector) Ext(key string) (any, bool) {
	val, ok := v.ext[key]
	return copyValue(val), ok
}

// ExtString returns an extension field as a string; non-string values
// report false.
func (v *Vector) ExtString(key string) (string, bool) {
	val, ok := v.ext[key]
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// Extensions returns a deep copy of all extension fields.
func (v *Vector) Extensions() map[string]any {
	out := make(map[string]any, len(v.ext))
	for k, val := range v.ext {
		out[k] = copyValue(val)
	}
	return out
}

// copyValue copies the nested maps and lists a YAML document decodes to.
func copyValue(val any) any {
	switch t := val.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return val
	}
}

// String implements fmt.Stringer.
func (v *Vector) String() string {
	return v.raw
}

// View returns a plain map representation of the vector for scripting
// and plugin boundaries.
func (v *Vector) View() map[string]any {
	return map[string]any{
		"index":    int64(v.index),
		"scheme":   v.scheme,
		"host":     v.host,
		"port":     v.port,
		"path":     v.path,
		"query":    v.query,
		"fragment": v.fragment,
		"ext":      v.Extensions(),
	}
}

// DefaultPort returns the well-known port for a scheme.
func DefaultPort(scheme string) string {
	if scheme == SchemeHTTPS {
		return "443"
	}
	return "80"
}

// newVector parses rawURL into a Vector. The caller validates the scheme.
func newVector(index int, rawURL string, ext map[string]any) (*Vector, *url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, nil, err
	}
	v := &Vector{
		index:    index,
		raw:      strings.TrimSpace(rawURL),
		scheme:   strings.ToLower(u.Scheme),
		host:     u.Hostname(),
		port:     u.Port(),
		path:     u.Path,
		query:    u.RawQuery,
		fragment: u.Fragment,
		ext:      ext,
	}
	if v.ext == nil {
		v.ext = map[string]any{}
	}
	return v, u, nil
}
