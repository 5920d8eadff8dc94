package inspector

import (
	"errors"
	"fmt"
	"plugin"

	"github.com/vyrodovalexey/httpvec/internal/vector"
)

// PluginSymbol is the function a Go plugin must export.
const PluginSymbol = "Select"

// PluginSelectFunc is the signature of the exported plugin symbol. It
// returns a vector index; a negative index is no opinion.
type PluginSelectFunc = func(headers map[string]string, vectors []map[string]any) int

// errNoCapability marks a candidate that loaded but cannot select.
var errNoCapability = errors.New("candidate has no select capability")

type pluginSelector struct {
	fn PluginSelectFunc
}

// Select implements Selector.
func (s *pluginSelector) Select(headers Headers, vectors *vector.Catalog) (Decision, error) {
	return indexDecision(int64(s.fn(headers.Map(), vectors.Views())), vectors)
}

// NewPluginSelector wraps a plugin select function.
func NewPluginSelector(fn PluginSelectFunc) Selector {
	return &pluginSelector{fn: fn}
}

// openPlugin loads a Go plugin and looks up its select symbol.
func openPlugin(path string) (Selector, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin: %w", err)
	}

	sym, err := p.Lookup(PluginSymbol)
	if err != nil {
		return nil, errNoCapability
	}

	switch fn := sym.(type) {
	case PluginSelectFunc:
		return NewPluginSelector(fn), nil
	case *PluginSelectFunc:
		return NewPluginSelector(*fn), nil
	default:
		return nil, errNoCapability
	}
}
