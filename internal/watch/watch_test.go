package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	tests := map[string]bool{
		"src/Main.hs":        true,
		"lib/Parser.lhs":     true,
		"demo.cabal":         true,
		"cabal.project":      true,
		"README.md":          false,
		"dist-newstyle/x.o":  false,
		"src/Main.hs.swp":    false,
		"/abs/path/Types.HS": true,
	}
	for path, want := range tests {
		assert.Equal(t, want, Relevant(path), path)
	}
}

func TestNewRequiresRoots(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("generated/\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "generated"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dist-newstyle", "build"), 0o755))

	w, err := New(Options{Roots: []string{dir}})
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.ignored(filepath.Join(dir, "generated", "Gen.hs")))
	assert.True(t, w.ignored(filepath.Join(dir, "dist-newstyle", "build", "Main.hs")))
	assert.False(t, w.ignored(filepath.Join(dir, "src", "Main.hs")))
	assert.NotContains(t, w.fsw.WatchList(), filepath.Join(dir, "generated"))
}

func TestRunRebuildsOnSourceChange(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{Roots: []string{dir}, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	var builds atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			builds.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return builds.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), builds.Load())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.hs"), []byte("main = pure ()"), 0o600))
	require.Eventually(t, func() bool { return builds.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}
