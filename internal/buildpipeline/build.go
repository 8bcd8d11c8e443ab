// Package buildpipeline runs cabal configure and build over a list of work
// units and streams classified output to a reporter.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cabalrun/internal/diag"
	"cabalrun/internal/trace"
)

// RunRequest configures one pipeline invocation.
type RunRequest struct {
	Units    []WorkUnit
	Lookup   ManifestLookup
	Launcher Launcher
	Reporter diag.Reporter
	Progress ProgressSink
	Recorder Recorder
	Logger   *slog.Logger
}

// UnitResult captures what happened to one work unit.
type UnitResult struct {
	Unit     WorkUnit
	Manifest string
	Status   Status
	// FailedPhase is set when Status is StatusError during a phase.
	FailedPhase Phase
	ExitCode    int
	Timings     Timings
	Warnings    int
	Errors      int
}

// Result is the outcome of a pipeline invocation.
type Result struct {
	OK      bool
	Units   []UnitResult
	Timings Timings
	Elapsed time.Duration
}

// Run processes units in order. Each unit runs configure, then build. The
// first failure of any kind is reported once to req.Reporter and stops the
// whole run; units without a manifest are skipped.
//
// The returned error wraps one of ErrPhaseFailed, ErrOutput,
// ErrInterrupted, ErrLookup or ErrLaunch.
func Run(ctx context.Context, req *RunRequest) (Result, error) {
	var result Result
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing run request")
	}
	if req.Lookup == nil {
		return result, fmt.Errorf("missing manifest lookup")
	}
	if req.Launcher == nil {
		return result, fmt.Errorf("missing process launcher")
	}

	r := &runner{
		req: req,
		rep: req.Reporter,
		log: req.Logger,
	}
	if r.rep == nil {
		r.rep = diag.NopReporter{}
	}
	if req.Recorder != nil {
		r.rep = recordingReporter{next: r.rep, rec: req.Recorder}
	}
	if r.log == nil {
		r.log = slog.Default()
	}

	start := time.Now()
	ctx, span := trace.StartRun(ctx, len(req.Units))

	result.Units = make([]UnitResult, len(req.Units))
	for i, unit := range req.Units {
		result.Units[i] = UnitResult{Unit: unit, Status: StatusQueued}
		r.emit(Event{Unit: unit.Name, Status: StatusQueued})
	}
	r.emit(Event{Status: StatusWorking})

	var err error
	for i := range result.Units {
		ur := &result.Units[i]
		if err = r.runUnit(ctx, ur); err != nil {
			break
		}
		for _, phase := range Phases() {
			if ur.Timings.Has(phase) {
				result.Timings.Add(phase, ur.Timings.Duration(phase))
			}
		}
	}

	result.OK = err == nil
	result.Elapsed = time.Since(start)
	if req.Recorder != nil {
		req.Recorder.RunFinished(result.OK, result.Elapsed)
	}
	if result.OK {
		r.emit(Event{Status: StatusDone, Elapsed: result.Elapsed})
		r.log.Info("pipeline finished", "units", len(req.Units), "elapsed", result.Elapsed)
		span.End("ok")
		return result, nil
	}
	r.emit(Event{Status: StatusError, Err: err, Elapsed: result.Elapsed})
	r.log.Error("pipeline aborted", "err", err)
	span.End(err.Error())
	return result, err
}

type runner struct {
	req *RunRequest
	rep diag.Reporter
	log *slog.Logger
}

func (r *runner) emit(evt Event) {
	if r.req.Progress != nil {
		r.req.Progress.OnEvent(evt)
	}
}

func (r *runner) runUnit(ctx context.Context, ur *UnitResult) error {
	unit := ur.Unit
	ctx, span := trace.StartUnit(ctx, unit.Name)
	log := r.log.With("unit", unit.Name)

	if err := ctx.Err(); err != nil {
		ur.Status = StatusError
		err = r.interrupted(ctx)
		r.rep.Report(diag.NewError(diag.ToolCabal, err.Error()))
		r.emit(Event{Unit: unit.Name, Status: StatusError, Err: err})
		span.End("interrupted")
		return err
	}

	path, found, err := r.req.Lookup.FindManifest(unit.ContentRoot)
	if err != nil {
		ur.Status = StatusError
		err = fmt.Errorf("%w in %s: %w", ErrLookup, unit.ContentRoot, err)
		r.rep.Report(diag.NewError(diag.ToolCabal, err.Error()))
		r.emit(Event{Unit: unit.Name, Status: StatusError, Err: err})
		log.Error("manifest lookup failed", "root", unit.ContentRoot, "err", err)
		span.End("lookup failed")
		return err
	}
	if !found {
		ur.Status = StatusSkipped
		r.emit(Event{Unit: unit.Name, Status: StatusSkipped})
		log.Debug("no manifest, skipping", "root", unit.ContentRoot)
		span.End("skipped")
		return nil
	}
	ur.Manifest = path
	m := Manifest{Path: path, Unit: unit}

	counter := &diag.CountingReporter{Next: r.rep}
	defer func() {
		ur.Warnings = counter.Count(diag.SevWarning)
		ur.Errors = counter.Count(diag.SevError)
	}()

	ur.Status = StatusWorking
	for _, phase := range Phases() {
		if err := r.runPhase(ctx, m, phase, counter, ur); err != nil {
			ur.Status = StatusError
			ur.FailedPhase = phase
			span.End(string(phase) + " failed")
			return err
		}
	}
	ur.Status = StatusDone
	r.emit(Event{Unit: unit.Name, Status: StatusDone, Elapsed: ur.Timings.Sum(Phases()...)})
	span.End("")
	return nil
}

func (r *runner) runPhase(ctx context.Context, m Manifest, phase Phase, rep diag.Reporter, ur *UnitResult) error {
	ctx, span := trace.StartPhase(ctx, string(phase))
	unit := m.Unit.Name
	log := r.log.With("unit", unit, "phase", phase)

	rep.Progress("cabal " + string(phase))
	rep.Report(startMessage(phase))
	r.emit(Event{Unit: unit, Phase: phase, Status: StatusWorking})
	log.Debug("phase started", "manifest", m.Path)

	start := time.Now()
	fail := func(err error, msg string) error {
		elapsed := time.Since(start)
		ur.Timings.Set(phase, elapsed)
		rep.Report(diag.NewError(diag.ToolCabal, msg))
		r.emit(Event{Unit: unit, Phase: phase, Status: StatusError, Err: err, Elapsed: elapsed})
		r.observe(unit, phase, StatusError, elapsed)
		log.Error("phase failed", "err", err, "elapsed", elapsed)
		span.End(err.Error())
		return err
	}

	proc, err := r.launch(ctx, m, phase)
	if err != nil {
		err = fmt.Errorf("%w: cabal %s: %w", ErrLaunch, phase, err)
		return fail(err, err.Error())
	}

	code, err := r.drive(ctx, proc, m.Unit.ContentRoot, rep)
	if err != nil {
		return fail(err, err.Error())
	}
	ur.ExitCode = code
	if code != 0 {
		err = fmt.Errorf("%w: cabal %s exited with status %d", ErrPhaseFailed, phase, code)
		return fail(err, failureMessage(phase))
	}

	elapsed := time.Since(start)
	ur.Timings.Set(phase, elapsed)
	r.emit(Event{Unit: unit, Phase: phase, Status: StatusDone, Elapsed: elapsed})
	r.observe(unit, phase, StatusDone, elapsed)
	log.Debug("phase finished", "elapsed", elapsed)
	span.End("")
	return nil
}

func (r *runner) launch(ctx context.Context, m Manifest, phase Phase) (Process, error) {
	switch phase {
	case PhaseConfigure:
		return r.req.Launcher.Configure(ctx, m)
	case PhaseBuild:
		return r.req.Launcher.Build(ctx, m)
	default:
		return nil, fmt.Errorf("unknown phase %q", phase)
	}
}

func (r *runner) observe(unit string, phase Phase, status Status, elapsed time.Duration) {
	if r.req.Recorder != nil {
		r.req.Recorder.PhaseFinished(unit, phase, status, elapsed)
	}
}

func (r *runner) interrupted(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = errors.New("cancelled")
	}
	return fmt.Errorf("%w: %w", ErrInterrupted, cause)
}

func startMessage(phase Phase) diag.Diagnostic {
	if phase == PhaseBuild {
		return diag.NewInfo(diag.ToolGHC, "Start build")
	}
	return diag.NewInfo(diag.ToolCabal, "Start configure")
}

func failureMessage(phase Phase) string {
	if phase == PhaseBuild {
		return "build errors."
	}
	return "configure failed."
}

type recordingReporter struct {
	next diag.Reporter
	rec  Recorder
}

func (r recordingReporter) Report(d diag.Diagnostic) {
	r.rec.DiagnosticReported(d)
	r.next.Report(d)
}

func (r recordingReporter) Progress(msg string) {
	r.next.Progress(msg)
}
