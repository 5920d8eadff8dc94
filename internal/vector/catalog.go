package vector

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/httpvec/internal/util"
)

// urlKey is the vector entry field holding the backend url.
const urlKey = "url"

// Catalog is an ordered, read-only sequence of vectors.
type Catalog struct {
	vectors []*Vector
}

// NewCatalog returns a catalog holding vs in order. It is intended for
// tests and for callers that construct vectors with Build.
func NewCatalog(vs ...*Vector) *Catalog {
	out := make([]*Vector, len(vs))
	copy(out, vs)
	return &Catalog{vectors: out}
}

// Len returns the number of vectors.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.vectors)
}

// At returns the vector at position i.
func (c *Catalog) At(i int) *Vector {
	return c.vectors[i]
}

// All returns the vectors in catalog order. The slice is a copy.
func (c *Catalog) All() []*Vector {
	if c == nil {
		return nil
	}
	out := make([]*Vector, len(c.vectors))
	copy(out, c.vectors)
	return out
}

// Contains reports whether v is one of the catalog's vectors. The
// comparison is by identity, not by field equality.
func (c *Catalog) Contains(v *Vector) bool {
	return c.Index(v) >= 0
}

// Index returns the position of v in the catalog, or -1.
func (c *Catalog) Index(v *Vector) int {
	if c == nil || v == nil {
		return -1
	}
	for i, cv := range c.vectors {
		if cv == v {
			return i
		}
	}
	return -1
}

// Views returns the plain map representation of every vector.
func (c *Catalog) Views() []map[string]any {
	views := make([]map[string]any, 0, c.Len())
	for _, v := range c.All() {
		views = append(views, v.View())
	}
	return views
}

// Build parses raw vector entries into a catalog. An entry is a url
// string or a mapping with a url key; entries without a url are
// skipped. Any url whose scheme is not http or https aborts the build.
func Build(entries []any) (*Catalog, error) {
	c := &Catalog{vectors: make([]*Vector, 0, len(entries))}

	for i, raw := range entries {
		rawURL, ext, ok := entryURL(raw)
		if !ok {
			continue
		}

		field := fmt.Sprintf("vectors[%d]", i)
		v, u, err := newVector(len(c.vectors), rawURL, ext)
		if err != nil {
			return nil, util.NewConfigErrorWithCause(field, "invalid url", err)
		}
		if v.scheme != SchemeHTTP && v.scheme != SchemeHTTPS {
			return nil, util.NewConfigError(field,
				fmt.Sprintf("url must be http:// or https://, got %q", rawURL))
		}
		if u.Host == "" || v.host == "" {
			return nil, util.NewConfigError(field, fmt.Sprintf("url %q has no host", rawURL))
		}

		c.vectors = append(c.vectors, v)
	}

	return c, nil
}

// entryURL extracts the url and extension fields from one entry.
func entryURL(raw any) (string, map[string]any, bool) {
	switch e := raw.(type) {
	case string:
		return e, nil, true
	case map[string]any:
		rawURL, ok := e[urlKey].(string)
		if !ok {
			return "", nil, false
		}
		ext := make(map[string]any, len(e))
		for k, val := range e {
			if k != urlKey {
				ext[k] = copyValue(val)
			}
		}
		return rawURL, ext, true
	default:
		return "", nil, false
	}
}

// Parse decodes a YAML vector document and builds the catalog. The
// document is either a sequence of entries or a mapping with a
// "vectors" sequence.
func Parse(data []byte) (*Catalog, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, util.NewConfigErrorWithCause("vectors", "failed to parse YAML", err)
	}

	switch d := doc.(type) {
	case nil:
		return Build(nil)
	case []any:
		return Build(d)
	case map[string]any:
		entries, ok := d["vectors"].([]any)
		if !ok {
			return nil, util.NewConfigError("vectors", "document must be a list of vectors")
		}
		return Build(entries)
	default:
		return nil, util.NewConfigError("vectors", "document must be a list of vectors")
	}
}

// LoadFile reads and parses a YAML vector file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, util.NewConfigErrorWithCause("vectors", "failed to read vector file "+path, err)
	}
	return Parse(data)
}
