package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabalrun/internal/buildpipeline"
)

func newModel(units ...string) *progressModel {
	return NewProgressModel("cabal build", units, nil, nil).(*progressModel)
}

func TestApplyEventTracksPhases(t *testing.T) {
	m := newModel("core", "app")
	m.applyEvent(buildpipeline.Event{Unit: "core", Phase: buildpipeline.PhaseConfigure, Status: buildpipeline.StatusWorking})
	assert.Equal(t, "configuring", itemLabel(m.items[0]))
	assert.InDelta(t, 0.0, m.percent(), 0.001)

	m.applyEvent(buildpipeline.Event{Unit: "core", Phase: buildpipeline.PhaseConfigure, Status: buildpipeline.StatusDone})
	m.applyEvent(buildpipeline.Event{Unit: "core", Phase: buildpipeline.PhaseBuild, Status: buildpipeline.StatusWorking})
	assert.Equal(t, "building", itemLabel(m.items[0]))
	assert.InDelta(t, 0.25, m.percent(), 0.001)

	m.applyEvent(buildpipeline.Event{Unit: "core", Status: buildpipeline.StatusDone})
	m.applyEvent(buildpipeline.Event{Unit: "app", Status: buildpipeline.StatusSkipped})
	assert.InDelta(t, 1.0, m.percent(), 0.001)
	assert.Equal(t, "skipped", itemLabel(m.items[1]))
}

func TestUnknownUnitIgnored(t *testing.T) {
	m := newModel("core")
	assert.Nil(t, m.applyEvent(buildpipeline.Event{Unit: "ghost", Status: buildpipeline.StatusDone}))
	assert.Equal(t, buildpipeline.StatusQueued, m.items[0].status)
}

func TestViewAfterFailure(t *testing.T) {
	m := newModel("core")
	m.applyEvent(buildpipeline.Event{Unit: "core", Phase: buildpipeline.PhaseBuild, Status: buildpipeline.StatusError})
	m.applyEvent(buildpipeline.Event{Status: buildpipeline.StatusError})
	_, _ = m.Update(doneMsg{})

	view := m.View()
	require.NotEmpty(t, view)
	assert.Contains(t, view, "failed: cabal build")
	assert.Contains(t, view, "error")
	assert.Contains(t, view, "core")
}

func TestListenForEventClosed(t *testing.T) {
	ch := make(chan buildpipeline.Event)
	close(ch)
	m := NewProgressModel("t", []string{"a"}, ch, nil).(*progressModel)
	assert.Equal(t, doneMsg{}, m.listenForEvent()())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestCtrlCInterruptsThenQuits(t *testing.T) {
	calls := 0
	m := NewProgressModel("cabal build", []string{"core"}, nil, func() { calls++ }).(*progressModel)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, calls)
	assert.Contains(t, m.View(), "stopping: cabal build")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 1, calls)
}

func TestQKeyInterrupts(t *testing.T) {
	calls := 0
	m := NewProgressModel("cabal build", []string{"core"}, nil, func() { calls++ }).(*progressModel)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, calls)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, calls)
}

func TestCtrlCWithoutInterruptQuits(t *testing.T) {
	m := newModel("core")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
