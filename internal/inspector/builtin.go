package inspector

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/httpvec/internal/util"
	"github.com/vyrodovalexey/httpvec/internal/vector"
)

// Builtin strategy names.
const (
	BuiltinHostHeader = "host_header"
	BuiltinFirst      = "first"
	BuiltinChaos      = "chaos"
	BuiltinHeader     = "header"
	BuiltinHash       = "hash"
)

// defaultMatchField is the vector extension field the header builtin
// compares against when no field option is given.
const defaultMatchField = "name"

// BuiltinFactory constructs a builtin selector from manifest options.
type BuiltinFactory func(options *yaml.Node) (Selector, error)

var builtins = map[string]BuiltinFactory{
	BuiltinHostHeader: func(*yaml.Node) (Selector, error) { return SelectorFunc(selectHostHeader), nil },
	BuiltinFirst:      func(*yaml.Node) (Selector, error) { return SelectorFunc(selectFirst), nil },
	BuiltinChaos:      func(*yaml.Node) (Selector, error) { return SelectorFunc(selectChaos), nil },
	BuiltinHeader:     newHeaderSelector,
	BuiltinHash:       newHashSelector,
}

// Builtins returns the names of the compiled-in strategies.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewBuiltin constructs the named builtin selector. options may be nil.
func NewBuiltin(name string, options *yaml.Node) (Selector, error) {
	factory, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown builtin %q", name)
	}
	return factory(options)
}

// decodeOptions decodes a manifest options node into out.
func decodeOptions(options *yaml.Node, out any) error {
	if options == nil || options.Kind == 0 {
		return nil
	}
	if err := options.Decode(out); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// selectHostHeader chooses the vector whose host equals the request's
// Host header, ignoring case and port.
func selectHostHeader(headers Headers, vectors *vector.Catalog) (Decision, error) {
	host := stripPort(headers.Get("Host"))
	if host == "" {
		return NoOpinion, nil
	}
	for _, v := range vectors.All() {
		if strings.EqualFold(v.Host(), host) {
			return Choose(v), nil
		}
	}
	return NoOpinion, nil
}

func stripPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return strings.Trim(hostport, "[]")
}

func selectFirst(_ Headers, vectors *vector.Catalog) (Decision, error) {
	if vectors.Len() == 0 {
		return NoOpinion, nil
	}
	return Choose(vectors.At(0)), nil
}

func selectChaos(_ Headers, vectors *vector.Catalog) (Decision, error) {
	n := vectors.Len()
	if n == 0 {
		return NoOpinion, nil
	}
	return Choose(vectors.At(rand.Intn(n))), nil //nolint:gosec // not security sensitive
}

// headerOptions configures the header and hash builtins.
type headerOptions struct {
	Header string `yaml:"header"`
	Field  string `yaml:"field"`
}

func (o *headerOptions) validate() error {
	if o.Header == "" {
		return errors.New("option header is required")
	}
	return util.ValidateHeaderName(o.Header)
}

type headerSelector struct {
	header string
	field  string
}

func newHeaderSelector(options *yaml.Node) (Selector, error) {
	var opts headerOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Field == "" {
		opts.Field = defaultMatchField
	}
	return &headerSelector{header: opts.Header, field: opts.Field}, nil
}

// Select chooses the vector whose extension field equals the header value.
func (s *headerSelector) Select(headers Headers, vectors *vector.Catalog) (Decision, error) {
	value := headers.Get(s.header)
	if value == "" {
		return NoOpinion, nil
	}
	for _, v := range vectors.All() {
		ext, ok := v.Ext(s.field)
		if ok && fmt.Sprint(ext) == value {
			return Choose(v), nil
		}
	}
	return NoOpinion, nil
}

type hashSelector struct {
	header string
}

func newHashSelector(options *yaml.Node) (Selector, error) {
	var opts headerOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &hashSelector{header: opts.Header}, nil
}

// Select maps the header value onto the catalog with FNV-1a, so equal
// values always reach the same vector.
func (s *hashSelector) Select(headers Headers, vectors *vector.Catalog) (Decision, error) {
	n := vectors.Len()
	if n == 0 || !headers.Has(s.header) {
		return NoOpinion, nil
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(headers.Get(s.header)))
	return Choose(vectors.At(int(h.Sum32() % uint32(n)))), nil //nolint:gosec // n is a positive catalog size
}
