package main

import (
	"fmt"
	"io"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/observ"
)

// printTimings writes the per-unit step table followed by the total of
// each phase across units.
func printTimings(out io.Writer, timer *observ.Timer, res buildpipeline.Result) error {
	if out == nil || timer == nil {
		return nil
	}
	timer.AddResult(res)
	if err := timer.WriteSummary(out); err != nil {
		return err
	}
	for _, phase := range buildpipeline.Phases() {
		if !res.Timings.Has(phase) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s %.1f ms\n", phase, observ.Millis(res.Timings.Duration(phase))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "elapsed %.1f ms\n", observ.Millis(res.Elapsed))
	return err
}
