package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/diag"
)

func gather(t *testing.T, pr *PrometheusRecorder) map[string]*dto.MetricFamily {
	t.Helper()
	mfs, err := pr.Registry().Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

func TestPrometheusRecorder(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.PhaseFinished("demo", buildpipeline.PhaseConfigure, buildpipeline.StatusDone, 150*time.Millisecond)
	pr.PhaseFinished("demo", buildpipeline.PhaseBuild, buildpipeline.StatusError, time.Second)
	pr.DiagnosticReported(diag.NewWarning(diag.ToolCabal, "w"))
	pr.DiagnosticReported(diag.NewError(diag.ToolGHC, "e"))
	pr.DiagnosticReported(diag.NewError(diag.ToolGHC, "e2"))
	pr.RunFinished(false, 2*time.Second)

	mfs := gather(t, pr)
	require.Contains(t, mfs, "cabalrun_phase_duration_seconds")
	require.Contains(t, mfs, "cabalrun_phase_results_total")

	diags := mfs["cabalrun_diagnostics_total"]
	require.NotNil(t, diags)
	var ghcErrors float64
	for _, m := range diags.GetMetric() {
		labels := map[string]string{}
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["severity"] == "error" && labels["tool"] == "ghc" {
			ghcErrors = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, ghcErrors)

	last := mfs["cabalrun_last_run_success"]
	require.NotNil(t, last)
	assert.Equal(t, 0.0, last.GetMetric()[0].GetGauge().GetValue())

	pr.RunFinished(true, time.Second)
	last = gather(t, pr)["cabalrun_last_run_success"]
	assert.Equal(t, 1.0, last.GetMetric()[0].GetGauge().GetValue())
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.PhaseFinished("x", buildpipeline.PhaseBuild, buildpipeline.StatusDone, 0)
	pr.DiagnosticReported(diag.NewInfo(diag.ToolCabal, "i"))
	pr.RunFinished(true, 0)
	assert.NoError(t, pr.WriteTextfile("ignored"))
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.RunFinished(true, time.Second)

	path := filepath.Join(t.TempDir(), "nested", "cabalrun.prom")
	require.NoError(t, pr.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cabalrun_run_outcomes_total{outcome="success"} 1`)
}
