package project

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabalrun/internal/buildpipeline"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadTOMLWorkspace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cabalrun.toml"), `
[workspace]
name = "demo"

[[units]]
name = "core"
root = "libs/core"

[[units]]
root = "app/"
`)
	nested := filepath.Join(root, "app", "src")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	ws, ok, err := LoadWorkspace(nested)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "demo", ws.Name())

	units, err := ws.WorkUnits()
	require.NoError(t, err)
	assert.Equal(t, []buildpipeline.WorkUnit{
		{Name: "core", ContentRoot: filepath.Join(ws.Root, "libs", "core")},
		{Name: "app", ContentRoot: filepath.Join(ws.Root, "app")},
	}, units)
}

func TestLoadYAMLWorkspace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cabalrun.yaml"), `
units:
  - name: one
    root: one
`)
	ws, err := Load(filepath.Join(root, "cabalrun.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(ws.Root), ws.Name())
	require.Len(t, ws.Config.Units, 1)
	assert.Equal(t, "one", ws.Config.Units[0].Name)
}

func TestTOMLTakesPriorityOverYAML(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cabalrun.toml"), "[[units]]\nroot = \"a\"\n")
	writeFile(t, filepath.Join(root, "cabalrun.yaml"), "units: []\n")
	path, ok, err := FindWorkspace(root)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cabalrun.toml", filepath.Base(path))
}

func TestWorkspaceValidation(t *testing.T) {
	cases := map[string]string{
		"missing units":  "[workspace]\nname = \"x\"\n",
		"empty root":     "[[units]]\nname = \"a\"\nroot = \"\"\n",
		"duplicate name": "[[units]]\nroot = \"a\"\n[[units]]\nroot = \"x/a\"\n",
		"unknown key":    "[[units]]\nroot = \"a\"\nflavour = \"x\"\n",
		"bad toml":       "[[units]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cabalrun.toml")
			writeFile(t, path, content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestContentRoot(t *testing.T) {
	base := t.TempDir()

	got, err := ContentRoot(base, "pkg/a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "pkg", "a"), got)

	if runtime.GOOS != "windows" {
		got, err = ContentRoot(base, "file:///srv/proj")
		require.NoError(t, err)
		assert.Equal(t, "/srv/proj", got)

		got, err = ContentRoot(base, "file://localhost/srv/proj/")
		require.NoError(t, err)
		assert.Equal(t, "/srv/proj", got)
	}

	_, err = ContentRoot(base, "file://example.com/share")
	assert.Error(t, err)
	_, err = ContentRoot(base, "  ")
	assert.Error(t, err)
}

func TestUnitsFallbacks(t *testing.T) {
	dir := t.TempDir()

	units, ws, err := Units(dir, []string{"x", "y"})
	require.NoError(t, err)
	assert.Nil(t, ws)
	require.Len(t, units, 2)
	assert.Equal(t, "x", units[0].Name)

	units, ws, err = Units(dir, nil)
	require.NoError(t, err)
	if ws == nil {
		require.Len(t, units, 1)
		assert.Equal(t, dir, units[0].ContentRoot)
	}
}
