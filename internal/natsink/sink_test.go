package natsink

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/diag"
)

type fakePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakePublisher) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func TestSinkSubjectsAndPayloads(t *testing.T) {
	pub := &fakePublisher{}
	s := New(pub, "ci.build", "inv-1", nil)

	s.Progress("cabal configure")
	s.Report(diag.NewLocated(diag.ToolGHC, "boom\n", diag.Location{File: "/p/A.hs", Line: 2, Column: 3}))
	s.OnEvent(buildpipeline.Event{Unit: "core", Phase: buildpipeline.PhaseBuild, Status: buildpipeline.StatusError, Err: errors.New("x"), Elapsed: time.Second})

	require.Len(t, pub.msgs, 3)
	assert.Equal(t, "ci.build.progress", pub.msgs[0].Subject)
	assert.Equal(t, "ci.build.diagnostic.error", pub.msgs[1].Subject)
	assert.Equal(t, "ci.build.event", pub.msgs[2].Subject)
	for _, m := range pub.msgs {
		assert.Equal(t, "inv-1", m.Header.Get(InvocationHeader))
	}

	var dm DiagnosticMessage
	require.NoError(t, json.Unmarshal(pub.msgs[1].Data, &dm))
	assert.Equal(t, uint64(2), dm.Seq)
	assert.Equal(t, "ghc", dm.Diagnostic.Tool)
	require.NotNil(t, dm.Diagnostic.Location)
	assert.Equal(t, "/p/A.hs", dm.Diagnostic.Location.File)

	var em EventMessage
	require.NoError(t, json.Unmarshal(pub.msgs[2].Data, &em))
	assert.Equal(t, "error", em.Status)
	assert.Equal(t, "x", em.Error)
	assert.Equal(t, int64(1000), em.ElapsedMS)
}

func TestSinkCountsFailures(t *testing.T) {
	s := New(&fakePublisher{err: nats.ErrConnectionClosed}, "", "inv", nil)
	s.Report(diag.NewInfo(diag.ToolCabal, "hello"))
	s.Progress("cabal build")
	assert.Equal(t, uint64(2), s.Failed())
}

func TestDefaultPrefix(t *testing.T) {
	pub := &fakePublisher{}
	New(pub, "", "inv", nil).Report(diag.NewWarning(diag.ToolCabal, "w"))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "cabalrun.diagnostic.warning", pub.msgs[0].Subject)
}
