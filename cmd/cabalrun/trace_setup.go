package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/trace"
)

// setupTracing inspects trace-related flags and initializes the tracer.
// It returns a cleanup function and an error if initialization fails.
func setupTracing(cmd *cobra.Command) (func(), error) {
	flags := cmd.Flags()

	traceOutput, err := flags.GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := flags.GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := flags.GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	// --trace without a level means phase-level tracing.
	if level == trace.LevelOff && traceOutput != "" && !flags.Changed("trace-level") {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: traceOutput,
		RingSize:   ringSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	activity := trace.NewActivity()
	ctx := trace.WithActivity(trace.WithTracer(cmd.Context(), tracer), activity)
	cmd.SetContext(ctx)

	heartbeat := trace.StartHeartbeat(tracer, activity, heartbeatInterval)

	cleanup := func() {
		heartbeat.Stop()
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}

// dumpTrace writes the events retained in ring mode after a failed run,
// narrowed to the unit that failed. Stream modes already printed
// everything.
func dumpTrace(ctx context.Context, w io.Writer, res buildpipeline.Result) {
	d, ok := trace.FromContext(ctx).(*trace.RingTracer)
	if !ok {
		return
	}
	unit := failedUnit(res)
	if unit != "" {
		fmt.Fprintf(w, "trace: last events of %s before failure\n", unit)
	} else {
		fmt.Fprintln(w, "trace: last events before failure")
	}
	if err := d.Dump(w, trace.FormatText, unit); err != nil {
		fmt.Fprintf(w, "trace: dump error: %v\n", err)
	}
}

func failedUnit(res buildpipeline.Result) string {
	for _, u := range res.Units {
		if u.Status == buildpipeline.StatusError {
			return u.Unit.Name
		}
	}
	return ""
}
