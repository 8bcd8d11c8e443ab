package cabal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
}

func TestFindManifestFirstByName(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "zeta.cabal"))
	touch(t, filepath.Join(root, "alpha.cabal"))
	touch(t, filepath.Join(root, "README.md"))

	got, ok, err := Lookup{}.FindManifest(root)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "alpha.cabal"), got)
}

func TestFindManifestIgnoresDirsAndNested(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "a.cabal"), 0o755))
	touch(t, filepath.Join(root, "sub", "inner.cabal"))

	_, ok, err := Lookup{}.FindManifest(root)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindManifestMissingRoot(t *testing.T) {
	_, ok, err := Lookup{}.FindManifest(filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestIsSource(t *testing.T) {
	assert.True(t, IsSource("src/Main.hs"))
	assert.True(t, IsSource("Lib.LHS"))
	assert.False(t, IsSource("demo.cabal"))
	assert.True(t, IsManifest("demo.cabal"))
}
