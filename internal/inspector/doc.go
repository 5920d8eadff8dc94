// Package inspector provides the pluggable strategies that choose a
// vector for a request.
//
// An Inspector pairs a name with a Selector. Given a read-only view of
// the request headers and the vector catalog, a Selector returns either
// Choose(v) or NoOpinion. Inspectors are collected into a Registry
// whose order is evaluation priority.
//
// Inspectors come from three places:
//
//   - Builtins compiled into the binary (host_header, first, chaos,
//     header, hash), selected by a YAML manifest.
//   - CEL expressions declared in a YAML manifest with a select key.
//   - Go plugins (*.so) exporting a Select function.
//
// Discover scans the configured locations once at startup:
//
//	registry, err := inspector.Discover([]string{"./inspectors"},
//	    inspector.WithLogger(logger))
//
// Candidates that fail to load are logged and skipped.
package inspector
