package observ

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabalrun/internal/buildpipeline"
)

func fixedClock(offsets ...time.Duration) func() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	return func() time.Time {
		off := offsets[min(i, len(offsets)-1)]
		i++
		return base.Add(off)
	}
}

func TestTimerBeginEnd(t *testing.T) {
	tm := NewTimer()
	tm.now = fixedClock(0, 20*time.Millisecond)
	idx := tm.Begin("resolve")
	tm.End(idx, "2 units")
	tm.End(42, "ignored")

	rep := tm.Report()
	require.Len(t, rep.Phases, 1)
	assert.Equal(t, "resolve", rep.Phases[0].Name)
	assert.InDelta(t, 20.0, rep.Phases[0].DurationMS, 0.001)
	assert.Equal(t, "2 units", rep.Phases[0].Note)
	assert.InDelta(t, 20.0, rep.TotalMS, 0.001)
}

func TestEmptyReport(t *testing.T) {
	assert.Equal(t, Report{}, NewTimer().Report())
}

func TestAddResult(t *testing.T) {
	var ok, failed buildpipeline.Timings
	ok.Set(buildpipeline.PhaseConfigure, 10*time.Millisecond)
	ok.Set(buildpipeline.PhaseBuild, 30*time.Millisecond)
	failed.Set(buildpipeline.PhaseConfigure, 5*time.Millisecond)

	tm := NewTimer()
	tm.AddResult(buildpipeline.Result{Units: []buildpipeline.UnitResult{
		{Unit: buildpipeline.WorkUnit{Name: "core"}, Status: buildpipeline.StatusDone, Timings: ok},
		{Unit: buildpipeline.WorkUnit{Name: "docs"}, Status: buildpipeline.StatusSkipped},
		{Unit: buildpipeline.WorkUnit{Name: "app"}, Status: buildpipeline.StatusError, FailedPhase: buildpipeline.PhaseConfigure, Timings: failed},
	}})

	rep := tm.Report()
	require.Len(t, rep.Phases, 4)
	assert.Equal(t, "core/configure", rep.Phases[0].Name)
	assert.Equal(t, "core/build", rep.Phases[1].Name)
	assert.Equal(t, PhaseReport{Name: "docs", Note: "skipped"}, rep.Phases[2])
	assert.Equal(t, "failed", rep.Phases[3].Note)
	assert.InDelta(t, 45.0, rep.TotalMS, 0.001)
}

func TestSummary(t *testing.T) {
	tm := NewTimer()
	tm.Record("core/build", 1500*time.Microsecond, "")
	tm.Record("app/configure", 2*time.Millisecond, "failed")

	want := "timings:\n" +
		"  core/build          1.5 ms\n" +
		"  app/configure       2.0 ms  // failed\n" +
		"  total               3.5 ms\n"
	assert.Equal(t, want, tm.Summary())
}
