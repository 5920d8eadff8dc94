package inspector

import (
	"github.com/vyrodovalexey/httpvec/internal/vector"
)

// Selector chooses a vector for a request.
type Selector interface {
	Select(headers Headers, vectors *vector.Catalog) (Decision, error)
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(headers Headers, vectors *vector.Catalog) (Decision, error)

// Select implements Selector.
func (f SelectorFunc) Select(headers Headers, vectors *vector.Catalog) (Decision, error) {
	return f(headers, vectors)
}

// Kind describes how an inspector was registered.
type Kind string

// Inspector kinds.
const (
	KindBuiltin Kind = "builtin"
	KindCEL     Kind = "cel"
	KindPlugin  Kind = "plugin"
)

// Inspector is a named selection strategy.
type Inspector struct {
	Name     string
	Kind     Kind
	Source   string
	Selector Selector
}

// New creates an inspector from a selector.
func New(name string, s Selector) *Inspector {
	return &Inspector{Name: name, Kind: KindBuiltin, Selector: s}
}

// Select delegates to the inspector's selector.
func (i *Inspector) Select(headers Headers, vectors *vector.Catalog) (Decision, error) {
	return i.Selector.Select(headers, vectors)
}

// String implements fmt.Stringer.
func (i *Inspector) String() string {
	return i.Name
}

// Registry is an ordered, read-only sequence of inspectors.
type Registry struct {
	inspectors []*Inspector
}

// NewRegistry returns a registry holding inspectors in order.
func NewRegistry(inspectors ...*Inspector) *Registry {
	out := make([]*Inspector, len(inspectors))
	copy(out, inspectors)
	return &Registry{inspectors: out}
}

// Len returns the number of inspectors.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.inspectors)
}

// At returns the inspector at position i.
func (r *Registry) At(i int) *Inspector {
	return r.inspectors[i]
}

// All returns the inspectors in evaluation order. The slice is a copy.
func (r *Registry) All() []*Inspector {
	if r == nil {
		return nil
	}
	out := make([]*Inspector, len(r.inspectors))
	copy(out, r.inspectors)
	return out
}

// Names returns the inspector names in evaluation order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.Len())
	for _, i := range r.All() {
		names = append(names, i.Name)
	}
	return names
}
