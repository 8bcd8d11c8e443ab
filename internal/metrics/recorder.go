// Package metrics exports pipeline outcomes as Prometheus metrics.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/diag"
)

const namespace = "cabalrun"

// PrometheusRecorder implements buildpipeline.Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg           *prom.Registry
	once          sync.Once
	phaseDuration *prom.HistogramVec
	phaseResults  *prom.CounterVec
	diagnostics   *prom.CounterVec
	runDuration   prom.Histogram
	runOutcome    *prom.CounterVec
	lastRunOK     prom.Gauge
}

var _ buildpipeline.Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs and registers the pipeline metrics. A nil
// registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.once.Do(func() {
		pr.phaseDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of cabal phases per work unit",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase", "status"})
		pr.phaseResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "phase_results_total",
			Help:      "Phase results by unit and final status",
		}, []string{"unit", "phase", "status"})
		pr.diagnostics = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics reported by severity and tool",
		}, []string{"severity", "tool"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"outcome"})
		pr.lastRunOK = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the most recent run succeeded, 0 otherwise",
		})
		reg.MustRegister(pr.phaseDuration, pr.phaseResults, pr.diagnostics, pr.runDuration, pr.runOutcome, pr.lastRunOK)
	})
	return pr
}

// Registry returns the registry the metrics live in.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	if p == nil {
		return nil
	}
	return p.reg
}

func (p *PrometheusRecorder) PhaseFinished(unit string, phase buildpipeline.Phase, status buildpipeline.Status, elapsed time.Duration) {
	if p == nil || p.phaseDuration == nil {
		return
	}
	p.phaseDuration.WithLabelValues(string(phase), string(status)).Observe(elapsed.Seconds())
	p.phaseResults.WithLabelValues(unit, string(phase), string(status)).Inc()
}

func (p *PrometheusRecorder) DiagnosticReported(d diag.Diagnostic) {
	if p == nil || p.diagnostics == nil {
		return
	}
	p.diagnostics.WithLabelValues(d.Severity.Label(), string(d.Tool)).Inc()
}

func (p *PrometheusRecorder) RunFinished(ok bool, elapsed time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(elapsed.Seconds())
	outcome := "failed"
	if ok {
		outcome = "success"
		p.lastRunOK.Set(1)
	} else {
		p.lastRunOK.Set(0)
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the current metrics in the text exposition format,
// suitable for the node_exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if p == nil {
		return nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("metrics dir: %w", err)
		}
	}
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
