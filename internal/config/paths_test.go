package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/httpvec/internal/util"
)

func TestResolvePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "vectors.yaml")
	require.NoError(t, os.WriteFile(file, []byte("[]"), 0o600))

	got, err := ResolvePath(file)
	require.NoError(t, err)
	assert.Equal(t, file, got)

	got, err = ResolvePath(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = ResolvePath(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, util.ErrConfigInvalid)

	_, err = ResolvePath("")
	assert.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "inspectors"), ExpandHome("~/inspectors"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/etc/httpvec", ExpandHome("/etc/httpvec"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}

func TestShortenPath(t *testing.T) {
	t.Parallel()

	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("samples", "a.yaml"), ShortenPath(filepath.Join(wd, "samples", "a.yaml")))
	assert.Equal(t, "/", ShortenPath("/"))
}

func TestIsBuiltinLocation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBuiltinLocation("builtin:samples"))
	assert.False(t, IsBuiltinLocation("./builtin"))
	assert.False(t, IsBuiltinLocation(""))
}
