package buildpipeline

import (
	"context"
	"fmt"

	"cabalrun/internal/classify"
	"cabalrun/internal/diag"
	"cabalrun/internal/trace"
)

type waitResult struct {
	code int
	err  error
}

// drive owns proc for one phase: it drains the output through the
// classifier, then waits for exit. Cancelling ctx kills the process. On
// every return path the process has been waited for.
func (r *runner) drive(ctx context.Context, proc Process, contentRoot string, rep diag.Reporter) (int, error) {
	stop := context.AfterFunc(ctx, func() { _ = proc.Kill() })
	defer stop()

	pspan := trace.StartProcess(ctx)
	if p, ok := proc.(IdentifiedProcess); ok {
		pspan.SetPID(p.PID())
	}

	if err := r.drain(proc, contentRoot, rep, pspan); err != nil {
		reap(proc)
		pspan.End("output error")
		if ctx.Err() != nil {
			return 0, r.interrupted(ctx)
		}
		return 0, fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if ctx.Err() != nil {
		reap(proc)
		pspan.End("interrupted")
		return 0, r.interrupted(ctx)
	}

	waited := make(chan waitResult, 1)
	go func() {
		code, err := proc.Wait()
		waited <- waitResult{code: code, err: err}
	}()

	select {
	case w := <-waited:
		if ctx.Err() != nil {
			pspan.End("interrupted")
			return 0, r.interrupted(ctx)
		}
		if w.err != nil {
			pspan.End("wait error")
			return 0, fmt.Errorf("%w: waiting for exit: %w", ErrOutput, w.err)
		}
		pspan.WithExtra("exit", fmt.Sprint(w.code)).End("")
		return w.code, nil
	case <-ctx.Done():
		_ = proc.Kill()
		<-waited
		pspan.End("interrupted")
		return 0, r.interrupted(ctx)
	}
}

// drain classifies every output line. A classifier panic still reaps the
// process before it propagates.
func (r *runner) drain(proc Process, contentRoot string, rep diag.Reporter, pspan *trace.Span) error {
	defer func() {
		if p := recover(); p != nil {
			reap(proc)
			panic(p)
		}
	}()

	for d, err := range classify.New(classify.ScanLines(proc.Output()), contentRoot).All() {
		if err != nil {
			return err
		}
		pspan.Line(d.Severity.Label())
		rep.Report(d)
	}
	return nil
}

func reap(proc Process) {
	_ = proc.Kill()
	_, _ = proc.Wait()
}
