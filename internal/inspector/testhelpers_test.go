package inspector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/httpvec/internal/vector"
)

func testCatalog(t *testing.T, entries ...any) *vector.Catalog {
	t.Helper()

	catalog, err := vector.Build(entries)
	require.NoError(t, err)
	return catalog
}
