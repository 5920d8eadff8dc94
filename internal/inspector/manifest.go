package inspector

import (
	"errors"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest declares an inspector in YAML. Exactly one of Select and
// Builtin is set.
//
//	name: canary
//	select: 'headers["x-canary"] == "1" ? 1 : -1'
//
//	name: sticky
//	builtin: hash
//	options:
//	  header: X-User
type Manifest struct {
	Name    string    `yaml:"name"`
	Select  string    `yaml:"select"`
	Builtin string    `yaml:"builtin"`
	Options yaml.Node `yaml:"options"`
}

// ParseManifest decodes manifest data. source names the file and
// provides the default inspector name.
func ParseManifest(source string, data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Name == "" {
		base := filepath.Base(source)
		m.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &m, nil
}

// Selector builds the manifest's selector. A manifest that declares
// neither select nor builtin returns errNoCapability.
func (m *Manifest) Selector() (Selector, Kind, error) {
	switch {
	case m.Select != "" && m.Builtin != "":
		return nil, "", errors.New("select and builtin are mutually exclusive")
	case m.Select != "":
		s, err := NewCELSelector(m.Select)
		return s, KindCEL, err
	case m.Builtin != "":
		s, err := NewBuiltin(m.Builtin, &m.Options)
		return s, KindBuiltin, err
	default:
		return nil, "", errNoCapability
	}
}
