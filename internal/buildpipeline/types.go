package buildpipeline

import (
	"context"
	"io"
	"time"

	"cabalrun/internal/diag"
)

// Phase is one of the two sequential steps run per work unit.
type Phase string

const (
	// PhaseConfigure runs `cabal configure`.
	PhaseConfigure Phase = "configure"
	// PhaseBuild runs `cabal build`.
	PhaseBuild Phase = "build"
)

// Phases lists the phases in execution order.
func Phases() []Phase {
	return []Phase{PhaseConfigure, PhaseBuild}
}

// Status captures progress state of a unit or phase.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
	// StatusSkipped marks a unit without a manifest.
	StatusSkipped Status = "skipped"
)

// Event reports progress for a unit (or for the overall pipeline when Unit is empty).
type Event struct {
	Unit    string
	Phase   Phase
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// WorkUnit is one compilable cabal package.
type WorkUnit struct {
	Name        string
	ContentRoot string // absolute directory
}

// Manifest is a work unit together with its resolved .cabal file.
type Manifest struct {
	Path string
	Unit WorkUnit
}

// ManifestLookup finds the manifest file inside a content root.
// found is false when the directory has none.
type ManifestLookup interface {
	FindManifest(contentRoot string) (path string, found bool, err error)
}

// Launcher starts toolchain processes for a manifest.
type Launcher interface {
	Configure(ctx context.Context, m Manifest) (Process, error)
	Build(ctx context.Context, m Manifest) (Process, error)
}

// Process is a started toolchain process owned by the pipeline.
//
// Output must be drained before Wait is called. Wait returns the exit
// code; its error is reserved for failures to observe the exit. Kill may
// be called at any time, including after the process has exited.
type Process interface {
	Output() io.Reader
	Wait() (int, error)
	Kill() error
}

// IdentifiedProcess is a Process that knows its OS process ID. The ID
// labels the process in traces and heartbeats.
type IdentifiedProcess interface {
	Process
	PID() int
}

// Recorder observes pipeline outcomes, typically for metrics.
type Recorder interface {
	PhaseFinished(unit string, phase Phase, status Status, elapsed time.Duration)
	DiagnosticReported(d diag.Diagnostic)
	RunFinished(ok bool, elapsed time.Duration)
}

// Timings holds phase durations.
type Timings struct {
	phases map[Phase]time.Duration
}

func (t *Timings) ensure() {
	if t.phases == nil {
		t.phases = make(map[Phase]time.Duration)
	}
}

// Set stores a duration for the given phase.
func (t *Timings) Set(phase Phase, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.phases[phase] = dur
}

// Add accumulates dur onto the given phase.
func (t *Timings) Add(phase Phase, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.phases[phase] += dur
}

// Has reports whether a duration for phase is recorded.
func (t Timings) Has(phase Phase) bool {
	if t.phases == nil {
		return false
	}
	_, ok := t.phases[phase]
	return ok
}

// Duration returns the recorded duration for phase.
func (t Timings) Duration(phase Phase) time.Duration {
	if t.phases == nil {
		return 0
	}
	return t.phases[phase]
}

// Sum returns the sum of durations across the provided phases.
func (t Timings) Sum(phases ...Phase) time.Duration {
	if t.phases == nil {
		return 0
	}
	var total time.Duration
	for _, phase := range phases {
		total += t.phases[phase]
	}
	return total
}
