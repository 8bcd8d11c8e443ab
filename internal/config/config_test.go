package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("cabal", "cabal", "")
	fs.StringSlice("build-arg", nil, "")
	fs.String("format", "pretty", "")
	fs.Bool("pty", false, "")
	fs.Int("max-diagnostics", 100, "")
	fs.Duration("debounce", 300*time.Millisecond, "")
	return fs
}

func TestDefaultsFromFlags(t *testing.T) {
	l := NewLoader()
	l.Home = t.TempDir()
	s, err := l.Load(testFlags())
	require.NoError(t, err)
	assert.Equal(t, "cabal", s.Cabal)
	assert.Equal(t, "pretty", s.Format)
	assert.Equal(t, 100, s.MaxDiags)
	assert.Equal(t, 300*time.Millisecond, s.Debounce)
	assert.Empty(t, l.FileUsed())
}

func TestPrecedence(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, ".cabalrun.yaml"), []byte(
		"cabal: /opt/cabal\nformat: json\npty: true\nbuild-arg: [\"-j2\"]\n"), 0o600))
	t.Setenv("CABALRUN_FORMAT", "sarif")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--cabal", "/usr/bin/cabal"}))

	l := NewLoader()
	l.Home = home
	s, err := l.Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/cabal", s.Cabal, "explicit flag wins")
	assert.Equal(t, "sarif", s.Format, "env beats file")
	assert.True(t, s.PTY, "file beats flag default")
	assert.Equal(t, []string{"-j2"}, s.BuildArgs)
	assert.Equal(t, filepath.Join(home, ".cabalrun.yaml"), l.FileUsed())
}

func TestExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte("history = \"/tmp/h.db\"\n"), 0o600))

	l := NewLoader()
	l.File = path
	s, err := l.Load(testFlags())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/h.db", s.History)
}

func TestMissingExplicitFile(t *testing.T) {
	l := NewLoader()
	l.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := l.Load(testFlags())
	assert.Error(t, err)
}
