package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/ui"
)

// errTerminalInterrupt is the cancellation cause when ctrl+c is pressed
// inside the progress UI. Raw mode swallows SIGINT, so the signal context
// never sees it.
var errTerminalInterrupt = errors.New("interrupted from terminal")

type runOutcome struct {
	result buildpipeline.Result
	err    error
}

// runWithUI runs the pipeline in the background and renders its progress
// events until the pipeline closes the channel. Pressing ctrl+c or q in
// the UI cancels the pipeline, which kills the running cabal process.
func runWithUI(ctx context.Context, out io.Writer, title string, req *buildpipeline.RunRequest, opts ...tea.ProgramOption) (buildpipeline.Result, error) {
	if req == nil {
		return buildpipeline.Result{}, fmt.Errorf("missing run request")
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	names := make([]string, len(req.Units))
	for i, u := range req.Units {
		names[i] = u.Name
	}

	go func() {
		reqCopy := *req
		sink := buildpipeline.ProgressSink(buildpipeline.ChannelSink{Ch: events})
		if req.Progress != nil {
			sink = buildpipeline.MultiSink{req.Progress, sink}
		}
		reqCopy.Progress = sink
		res, err := buildpipeline.Run(runCtx, &reqCopy)
		outcomeCh <- runOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, names, events, func() { cancel(errTerminalInterrupt) })
	opts = append([]tea.ProgramOption{tea.WithOutput(out), tea.WithContext(ctx)}, opts...)
	_, uiErr := tea.NewProgram(model, opts...).Run()
	// The UI may stop before the channel is closed: on error, or on a
	// second ctrl+c. Keep draining so the pipeline never blocks.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil && ctx.Err() == nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
