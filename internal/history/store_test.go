package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabalrun/internal/diagfmt"
	"cabalrun/internal/report"
)

func sampleReport(id string, started time.Time, ok bool) *report.Report {
	return &report.Report{
		ID:        id,
		Workspace: "ws",
		StartedAt: started,
		ElapsedMS: 1234,
		OK:        ok,
		Units:     []report.Unit{{Name: "core"}, {Name: "app"}},
		Diagnostics: []diagfmt.DiagnosticJSON{
			{Severity: "info", Tool: "cabal", Message: "Start configure"},
			{Severity: "warning", Tool: "cabal", Message: "careful"},
			{Severity: "error", Tool: "ghc", Message: "boom\n", Location: &diagfmt.LocationJSON{File: "/ws/A.hs", Line: 3, Column: 9}},
		},
	}
}

func TestRecordAndQuery(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, sampleReport("old", base, true)))
	require.NoError(t, s.Record(ctx, sampleReport("new", base.Add(time.Hour), false)))

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].ID)
	assert.False(t, recent[0].OK)
	assert.Equal(t, 2, recent[0].Units)
	assert.Equal(t, 1, recent[0].Errors)
	assert.Equal(t, 1, recent[0].Warnings)
	assert.Equal(t, 1234*time.Millisecond, recent[0].Elapsed)
	assert.True(t, recent[1].StartedAt.Equal(base))

	diags, err := s.Diagnostics(ctx, "new")
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.Equal(t, "careful", diags[0].Message)
	require.NotNil(t, diags[1].Location)
	assert.Equal(t, 9, diags[1].Location.Column)
	assert.Equal(t, "ghc", string(diags[1].Tool))
}

func TestDuplicateIDFails(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record(ctx, sampleReport("x", time.Now(), true)))
	assert.Error(t, s.Record(ctx, sampleReport("x", time.Now(), true)))
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	defer s.Close()

	now := time.Now()
	require.NoError(t, s.Record(ctx, sampleReport("a", now.Add(-48*time.Hour), true)))
	require.NoError(t, s.Record(ctx, sampleReport("b", now, true)))

	n, err := s.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].ID)

	diags, err := s.Diagnostics(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, diags)
}
