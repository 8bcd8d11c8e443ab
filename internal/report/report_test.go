package report

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/diag"
)

func sampleResult() buildpipeline.Result {
	var tm buildpipeline.Timings
	tm.Set(buildpipeline.PhaseConfigure, 1500*time.Millisecond)
	tm.Set(buildpipeline.PhaseBuild, 2*time.Second)
	return buildpipeline.Result{
		OK:      false,
		Elapsed: 4 * time.Second,
		Units: []buildpipeline.UnitResult{
			{
				Unit:        buildpipeline.WorkUnit{Name: "core", ContentRoot: "/ws/core"},
				Manifest:    "/ws/core/core.cabal",
				Status:      buildpipeline.StatusError,
				FailedPhase: buildpipeline.PhaseBuild,
				ExitCode:    1,
				Timings:     tm,
				Errors:      2,
			},
			{
				Unit:   buildpipeline.WorkUnit{Name: "app", ContentRoot: "/ws/app"},
				Status: buildpipeline.StatusQueued,
			},
		},
	}
}

func TestBuildReport(t *testing.T) {
	diags := []diag.Diagnostic{
		diag.NewLocated(diag.ToolGHC, "boom\n", diag.Location{File: "/ws/core/A.hs", Line: 1, Column: 2}),
		diag.NewError(diag.ToolCabal, "build errors."),
	}
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := Build("id-1", "ws", started, sampleResult(), errors.New("phase failed"), diags)

	assert.False(t, r.OK)
	assert.Equal(t, "phase failed", r.Error)
	assert.Equal(t, int64(4000), r.ElapsedMS)
	require.Len(t, r.Units, 2)
	assert.Equal(t, "build", r.Units[0].FailedPhase)
	assert.Equal(t, []PhaseTiming{{Phase: "configure", MS: 1500}, {Phase: "build", MS: 2000}}, r.Units[0].Phases)
	assert.Equal(t, "queued", r.Units[1].Status)
	require.Len(t, r.Diagnostics, 2)
	assert.Equal(t, "/ws/core/A.hs", r.Diagnostics[0].Location.File)
}

func TestWriteReadAllFormats(t *testing.T) {
	r := Build(NewInvocationID(), "ws", time.Now(), sampleResult(), nil, []diag.Diagnostic{
		diag.NewWarning(diag.ToolCabal, "careful"),
	})
	for _, f := range []Format{FormatJSON, FormatYAML, FormatMsgpack} {
		t.Run(string(f), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", "report."+string(f))
			require.NoError(t, r.WriteFile(path, f))
			got, err := ReadFile(path, f)
			require.NoError(t, err)
			assert.Equal(t, r.ID, got.ID)
			assert.Equal(t, r.Units, got.Units)
			assert.Equal(t, r.Diagnostics, got.Diagnostics)
			assert.True(t, r.StartedAt.Equal(got.StartedAt))
		})
	}
}

func TestInvocationIDIsUUID(t *testing.T) {
	_, err := uuid.Parse(NewInvocationID())
	assert.NoError(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("", "out/report.yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	f, err = ParseFormat("", "report.bin")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	f, err = ParseFormat("MSGPACK", "")
	require.NoError(t, err)
	assert.Equal(t, FormatMsgpack, f)
	_, err = ParseFormat("toml", "")
	assert.Error(t, err)
}
