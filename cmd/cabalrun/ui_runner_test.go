package main

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabalrun/internal/buildpipeline"
)

// stuckProcess produces no output until it is killed.
type stuckProcess struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	killed chan struct{}
	once   sync.Once
}

func newStuckProcess() *stuckProcess {
	r, w := io.Pipe()
	return &stuckProcess{r: r, w: w, killed: make(chan struct{})}
}

func (p *stuckProcess) Output() io.Reader { return p.r }

func (p *stuckProcess) Wait() (int, error) {
	<-p.killed
	return -1, nil
}

func (p *stuckProcess) Kill() error {
	p.once.Do(func() {
		_ = p.w.Close()
		close(p.killed)
	})
	return nil
}

type stuckLauncher struct {
	proc    *stuckProcess
	started chan struct{}
}

func (l *stuckLauncher) Configure(context.Context, buildpipeline.Manifest) (buildpipeline.Process, error) {
	close(l.started)
	return l.proc, nil
}

func (l *stuckLauncher) Build(context.Context, buildpipeline.Manifest) (buildpipeline.Process, error) {
	return l.proc, nil
}

type foundLookup struct{}

func (foundLookup) FindManifest(root string) (string, bool, error) {
	return root + "/demo.cabal", true, nil
}

func TestRunWithUICtrlCCancelsPipeline(t *testing.T) {
	launcher := &stuckLauncher{proc: newStuckProcess(), started: make(chan struct{})}
	keys, typed := io.Pipe()
	defer typed.Close()
	go func() {
		<-launcher.started
		_, _ = typed.Write([]byte{0x03})
	}()

	done := make(chan error, 1)
	go func() {
		_, err := runWithUI(context.Background(), io.Discard, "cabal build demo", &buildpipeline.RunRequest{
			Units:    []buildpipeline.WorkUnit{{Name: "demo", ContentRoot: "/ws/demo"}},
			Lookup:   foundLookup{},
			Launcher: launcher,
		}, tea.WithInput(keys))
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, buildpipeline.ErrInterrupted)
		assert.ErrorIs(t, err, errTerminalInterrupt)
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline was not interrupted by ctrl+c")
	}
	select {
	case <-launcher.proc.killed:
	default:
		t.Fatal("cabal process was not killed")
	}
}
