// Package vector models the backend targets a request may be relayed to.
//
// A Vector is parsed once from configuration and never mutated. The
// Catalog is the ordered, read-only list of vectors shared by every
// connection worker for the lifetime of the process:
//
//	catalog, err := vector.LoadFile("vectors.yaml")
//	if err != nil {
//	    return err // *util.ConfigError on a bad url or scheme
//	}
//	for _, v := range catalog.All() {
//	    fmt.Println(v.Index(), v.URL())
//	}
//
// Vector configuration is a YAML sequence. Each entry is either a bare
// url string or a mapping with a url key; every other key of a mapping
// is carried through as an extension field that inspectors may read.
// Entries without a url are skipped.
package vector
