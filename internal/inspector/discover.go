package inspector

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vyrodovalexey/httpvec/internal/observability"
	"github.com/vyrodovalexey/httpvec/internal/util"
)

//go:embed samples/*.yaml
var samples embed.FS

// DefaultLocation names the inspectors compiled into the binary.
const DefaultLocation = "builtin:samples"

// candidateExts are the file extensions discovery considers.
var candidateExts = map[string]bool{
	".yaml": true,
	".yml":  true,
	".so":   true,
}

// Option configures discovery.
type Option func(*discoverer)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(d *discoverer) {
		d.logger = logger
	}
}

// WithPathShortener sets the function used to display candidate paths
// in log output.
func WithPathShortener(fn func(string) string) Option {
	return func(d *discoverer) {
		d.shorten = fn
	}
}

type discoverer struct {
	logger  observability.Logger
	shorten func(string) string
}

// candidate is one file that may hold an inspector.
type candidate struct {
	path string
	read func() ([]byte, error)
}

// Discover loads inspectors from locations in order. With no locations
// the embedded samples are used; DefaultLocation names them explicitly.
// A location that does not exist is an error; a candidate that fails to
// load is logged and skipped.
func Discover(locations []string, opts ...Option) (*Registry, error) {
	d := &discoverer{
		logger:  observability.NopLogger(),
		shorten: func(p string) string { return p },
	}
	for _, opt := range opts {
		opt(d)
	}

	if len(locations) == 0 {
		locations = []string{DefaultLocation}
	}

	var candidates []candidate
	for _, loc := range locations {
		found, err := d.scan(loc)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}

	inspectors := make([]*Inspector, 0, len(candidates))
	for _, c := range candidates {
		insp, err := d.load(c)
		switch {
		case errors.Is(err, errNoCapability):
			d.logger.Debug("skipping inspector candidate without select",
				observability.String("path", d.shorten(c.path)))
		case err != nil:
			d.logger.Error("failed to load inspector",
				observability.String("path", d.shorten(c.path)),
				observability.Error(err))
		default:
			inspectors = append(inspectors, insp)
		}
	}

	return NewRegistry(inspectors...), nil
}

// scan lists the candidates at one filesystem location.
func (d *discoverer) scan(location string) ([]candidate, error) {
	if location == DefaultLocation {
		d.logger.Debug("searching embedded samples for inspectors",
			observability.String("location", DefaultLocation))
		embedded, err := embeddedCandidates(samples, "samples")
		if err != nil {
			return nil, util.NewDiscoveryError(DefaultLocation, "failed to read embedded samples", err)
		}
		return embedded, nil
	}

	info, err := os.Stat(location)
	if err != nil {
		return nil, util.NewDiscoveryError(location, "inspector location does not exist", err)
	}

	if !info.IsDir() {
		return []candidate{fileCandidate(location)}, nil
	}

	d.logger.Debug("searching for inspectors",
		observability.String("pattern", filepath.Join(d.shorten(location), "*.{yaml,yml,so}")))

	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, util.NewDiscoveryError(location, "failed to read inspector directory", err)
	}

	var out []candidate
	for _, e := range entries {
		if e.IsDir() || !candidateExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		out = append(out, fileCandidate(filepath.Join(location, e.Name())))
	}
	return out, nil
}

func fileCandidate(p string) candidate {
	return candidate{
		path: p,
		read: func() ([]byte, error) {
			return os.ReadFile(p) //nolint:gosec // path comes from operator configuration
		},
	}
}

// embeddedCandidates lists manifests in an embedded directory.
func embeddedCandidates(fsys fs.FS, dir string) ([]candidate, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && candidateExts[path.Ext(e.Name())] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]candidate, 0, len(names))
	for _, name := range names {
		p := path.Join(dir, name)
		out = append(out, candidate{
			path: p,
			read: func() ([]byte, error) { return fs.ReadFile(fsys, p) },
		})
	}
	return out, nil
}

// load turns one candidate into an inspector.
func (d *discoverer) load(c candidate) (*Inspector, error) {
	d.logger.Info("loading inspector", observability.String("path", d.shorten(c.path)))

	if strings.EqualFold(filepath.Ext(c.path), ".so") {
		sel, err := openPlugin(c.path)
		if err != nil {
			return nil, wrapLoadError(c.path, err)
		}
		base := filepath.Base(c.path)
		return &Inspector{
			Name:     strings.TrimSuffix(base, filepath.Ext(base)),
			Kind:     KindPlugin,
			Source:   c.path,
			Selector: sel,
		}, nil
	}

	data, err := c.read()
	if err != nil {
		return nil, util.NewDiscoveryError(c.path, "failed to read manifest", err)
	}

	m, err := ParseManifest(c.path, data)
	if err != nil {
		return nil, util.NewDiscoveryError(c.path, "failed to parse manifest", err)
	}

	sel, kind, err := m.Selector()
	if err != nil {
		return nil, wrapLoadError(c.path, err)
	}

	return &Inspector{Name: m.Name, Kind: kind, Source: c.path, Selector: sel}, nil
}

func wrapLoadError(p string, err error) error {
	if errors.Is(err, errNoCapability) {
		return err
	}
	return util.NewDiscoveryError(p, "failed to load inspector", err)
}
