// Package observ collects wall-clock timings for an invocation and renders
// them as a table or a serialisable report.
package observ

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cabalrun/internal/buildpipeline"
)

// Span is one timed step of an invocation.
type Span struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks the steps of an invocation in start order.
type Timer struct {
	spans []Span
	now   func() time.Time
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{spans: make([]Span, 0, 8), now: time.Now} }

// Begin starts a step and returns its index.
func (t *Timer) Begin(name string) int {
	t.spans = append(t.spans, Span{Name: name, Start: t.now()})
	return len(t.spans) - 1
}

// End finishes a step by its index. Unknown indexes are ignored.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.spans) {
		return
	}
	s := &t.spans[idx]
	s.Dur = t.now().Sub(s.Start)
	s.Note = note
}

// Record appends an already measured step.
func (t *Timer) Record(name string, d time.Duration, note string) {
	t.spans = append(t.spans, Span{Name: name, Dur: d, Note: note})
}

// AddResult records one step per unit phase of a pipeline result, named
// "<unit>/<phase>". Skipped units are noted without a duration.
func (t *Timer) AddResult(res buildpipeline.Result) {
	for _, u := range res.Units {
		if u.Status == buildpipeline.StatusSkipped {
			t.Record(u.Unit.Name, 0, "skipped")
			continue
		}
		for _, phase := range buildpipeline.Phases() {
			if !u.Timings.Has(phase) {
				continue
			}
			note := ""
			if u.Status == buildpipeline.StatusError && u.FailedPhase == phase {
				note = "failed"
			}
			t.Record(u.Unit.Name+"/"+string(phase), u.Timings.Duration(phase), note)
		}
	}
}

// PhaseReport is the serialisable form of one step.
type PhaseReport struct {
	Name       string  `json:"name" yaml:"name"`
	DurationMS float64 `json:"duration_ms" yaml:"duration_ms"`
	Note       string  `json:"note,omitempty" yaml:"note,omitempty"`
}

// Report aggregates every recorded step.
type Report struct {
	TotalMS float64       `json:"total_ms" yaml:"total_ms"`
	Phases  []PhaseReport `json:"phases" yaml:"phases"`
}

// Report returns the steps and their total in milliseconds.
func (t *Timer) Report() Report {
	if len(t.spans) == 0 {
		return Report{}
	}
	report := Report{
		Phases: make([]PhaseReport, len(t.spans)),
	}
	var total time.Duration
	for i, s := range t.spans {
		total += s.Dur
		report.Phases[i] = PhaseReport{
			Name:       s.Name,
			DurationMS: Millis(s.Dur),
			Note:       s.Note,
		}
	}
	report.TotalMS = Millis(total)
	return report
}

// Summary returns the report as an aligned table.
func (t *Timer) Summary() string {
	var b strings.Builder
	_ = t.WriteSummary(&b)
	return b.String()
}

// WriteSummary writes the table returned by Summary to w.
func (t *Timer) WriteSummary(w io.Writer) error {
	report := t.Report()
	width := len("total")
	for _, p := range report.Phases {
		width = max(width, len(p.Name))
	}
	if _, err := fmt.Fprintln(w, "timings:"); err != nil {
		return err
	}
	for _, p := range report.Phases {
		line := fmt.Sprintf("  %-*s %9.1f ms", width, p.Name, p.DurationMS)
		if p.Note != "" {
			line += "  // " + p.Note
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "  %-*s %9.1f ms\n", width, "total", report.TotalMS)
	return err
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
