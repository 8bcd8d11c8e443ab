// Package trace records span events for cabalrun pipeline runs.
//
// Spans nest as run → unit → phase → process → line, and every event
// below the run carries the unit and phase it belongs to. The level
// decides how deep the recorded tree goes:
//
//   - LevelOff: nothing
//   - LevelError: phase boundaries into a ring buffer, dumped on abort
//   - LevelPhase: run, unit and phase boundaries
//   - LevelDetail: plus toolchain process start and exit
//   - LevelDebug: plus every classified diagnostic
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, unit := trace.StartUnit(ctx, "core")
//	ctx, phase := trace.StartPhase(ctx, "configure")
//	proc := trace.StartProcess(ctx)
//
// An Activity in the context lists the processes being drained; a
// Heartbeat reports them periodically with their PID and line count.
package trace
