package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/cabal"
	"cabalrun/internal/config"
	"cabalrun/internal/diag"
	"cabalrun/internal/diagfmt"
	"cabalrun/internal/history"
	"cabalrun/internal/metrics"
	"cabalrun/internal/natsink"
	"cabalrun/internal/observ"
	"cabalrun/internal/project"
	"cabalrun/internal/report"
	"cabalrun/internal/version"
)

// errReported marks failures that already reached the user as diagnostics.
var errReported = errors.New("build failed")

var buildCmd = &cobra.Command{
	Use:   "build [flags] [unit-root...]",
	Short: "Configure and build every unit of the workspace",
	Long: `Run cabal configure and cabal build for each work unit in order.

Units come from the given roots, else from cabalrun.toml (or cabalrun.yaml)
found above the current directory, else the current directory alone. The
first failure stops the run.`,
	RunE: buildExecution,
}

func init() {
	addPipelineFlags(buildCmd.Flags())
}

// addPipelineFlags registers the flags shared by build and watch.
func addPipelineFlags(fs *pflag.FlagSet) {
	fs.String("cabal", "cabal", "cabal executable")
	fs.StringSlice("configure-arg", nil, "extra argument for cabal configure (repeatable)")
	fs.StringSlice("build-arg", nil, "extra argument for cabal build (repeatable)")
	fs.String("env-file", "", "dotenv file merged into the cabal environment")
	fs.String("encoding", "", "charset of cabal output (default utf-8)")
	fs.Bool("pty", false, "run cabal under a pseudo-terminal")
	fs.String("format", "pretty", "diagnostics format (pretty|json|sarif|lsp|msgpack)")
	fs.String("path-mode", "auto", "how to print paths (auto|absolute|relative|basename)")
	fs.String("ui", "off", "progress view (auto|on|off)")
	fs.String("report", "", "write a build report to this file")
	fs.String("report-format", "", "report encoding (json|yaml|msgpack, default from extension)")
	fs.String("nats-url", "", "publish diagnostics and progress to this NATS server")
	fs.String("nats-subject", natsink.DefaultSubject, "NATS subject prefix")
	fs.String("metrics-file", "", "write Prometheus metrics to this textfile")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	_, err := runPipeline(cmd.Context(), newPipelineEnv(cmd), args)
	return err
}

// pipelineEnv is what one pipeline run needs from the command.
type pipelineEnv struct {
	settings config.Settings
	log      *slog.Logger
	stdout   io.Writer
	stderr   io.Writer
	// tty is stdout when it is the process stdout, for terminal checks.
	tty  *os.File
	args []string
}

func newPipelineEnv(cmd *cobra.Command) pipelineEnv {
	env := pipelineEnv{
		settings: current.settings,
		log:      slog.Default(),
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
		args:     os.Args[1:],
	}
	if current.log != nil {
		env.log = current.log.Logger
	}
	if f, ok := env.stdout.(*os.File); ok && f == os.Stdout {
		env.tty = f
	}
	return env
}

// runPipeline resolves units, runs them and emits every configured output.
// A pipeline failure is returned wrapped in errReported once the
// diagnostics describing it have been written.
func runPipeline(ctx context.Context, env pipelineEnv, roots []string) (buildpipeline.Result, error) {
	var res buildpipeline.Result
	s := env.settings

	format, err := diagfmt.ParseFormat(s.Format)
	if err != nil {
		return res, err
	}
	pathMode, ok := diagfmt.ParsePathMode(s.PathMode)
	if !ok {
		return res, fmt.Errorf("invalid --path-mode value %q (expected auto|absolute|relative|basename)", s.PathMode)
	}
	mode, err := readUIMode(s.UI)
	if err != nil {
		return res, err
	}
	useColor, err := colorEnabled(s.Color, env.tty)
	if err != nil {
		return res, err
	}
	var reportFormat report.Format
	if s.Report != "" {
		if reportFormat, err = report.ParseFormat(s.ReportFormat, s.Report); err != nil {
			return res, err
		}
	}

	timer := observ.NewTimer()
	cwd, err := os.Getwd()
	if err != nil {
		return res, err
	}
	step := timer.Begin("resolve units")
	units, ws, err := project.Units(cwd, roots)
	if err != nil {
		return res, err
	}
	timer.End(step, fmt.Sprintf("%d units", len(units)))
	baseDir, wsName := cwd, filepath.Base(cwd)
	if ws != nil {
		baseDir, wsName = ws.Root, ws.Name()
	}

	launcher, err := cabal.NewLauncher(cabal.Options{
		Binary:        s.Cabal,
		ConfigureArgs: s.ConfigureArgs,
		BuildArgs:     s.BuildArgs,
		EnvFile:       s.EnvFile,
		PTY:           s.PTY,
		Encoding:      s.Encoding,
		Logger:        env.log,
	})
	if err != nil {
		return res, err
	}

	id := report.NewInvocationID()
	started := time.Now()
	log := env.log.With("invocation", id)

	minSev := diag.SevInfo
	if s.Quiet {
		minSev = diag.SevWarning
	}
	prettyOpts := diagfmt.PrettyOpts{
		Color:    useColor,
		PathMode: pathMode,
		BaseDir:  baseDir,
		Width:    termWidth(env.tty),
		Min:      minSev,
		Progress: !s.Quiet,
	}
	useTUI := format == diagfmt.FormatPretty && shouldUseTUI(mode)
	streaming := format.Streaming() && !useTUI

	bag := diag.NewBag(s.MaxDiags)
	reporters := []diag.Reporter{diag.BagReporter{Bag: bag}}
	var sinks buildpipeline.MultiSink
	if streaming {
		reporters = append(reporters, diagfmt.NewPrettyReporter(env.stdout, prettyOpts))
	}
	if s.NATSURL != "" {
		sink, conn, err := natsink.Connect(s.NATSURL, s.NATSSubject, id, log)
		if err != nil {
			return res, err
		}
		defer func() {
			if err := conn.Flush(); err != nil {
				log.Warn("NATS flush failed", "err", err)
			}
			conn.Close()
			if n := sink.Failed(); n > 0 {
				log.Warn("NATS publish failures", "count", n)
			}
		}()
		reporters = append(reporters, sink)
		sinks = append(sinks, sink)
	}

	req := &buildpipeline.RunRequest{
		Units:    units,
		Lookup:   cabal.Lookup{},
		Launcher: launcher,
		Reporter: diag.NewMultiReporter(reporters...),
		Logger:   log,
	}
	if len(sinks) > 0 {
		req.Progress = sinks
	}
	var recorder *metrics.PrometheusRecorder
	if s.MetricsFile != "" {
		recorder = metrics.NewPrometheusRecorder(nil)
		req.Recorder = recorder
	}

	step = timer.Begin("pipeline")
	var runErr error
	if useTUI {
		res, runErr = runWithUI(ctx, env.stdout, "cabal build "+wsName, req)
	} else {
		res, runErr = buildpipeline.Run(ctx, req)
	}
	timer.End(step, outcomeNote(runErr))

	if !streaming {
		opts := diagfmt.Options{
			Pretty: prettyOpts,
			JSON:   diagfmt.JSONOpts{PathMode: pathMode, BaseDir: baseDir, Max: s.MaxDiags, Min: minSev},
			Sarif: diagfmt.SarifRunMeta{
				ToolName:       cabal.PresentableName,
				ToolVersion:    version.Get().Version,
				InvocationArgs: env.args,
				BaseDir:        baseDir,
			},
			LSP: diagfmt.LSPOpts{Source: cabal.PresentableName},
		}
		if err := diagfmt.Write(env.stdout, format, bag.Items(), opts); err != nil {
			return res, fmt.Errorf("write diagnostics: %w", err)
		}
	}
	if n := bag.Dropped(); n > 0 {
		log.Warn("diagnostics dropped", "count", n, "max", s.MaxDiags)
	}

	rep := report.Build(id, wsName, started, res, runErr, bag.Items())
	if s.Report != "" {
		if err := rep.WriteFile(s.Report, reportFormat); err != nil {
			return res, err
		}
		log.Info("report written", "path", s.Report, "format", reportFormat)
	}
	if s.History != "" {
		if err := recordHistory(context.WithoutCancel(ctx), s.History, rep); err != nil {
			log.Warn("history not recorded", "err", err)
		}
	}
	if recorder != nil {
		if err := recorder.WriteTextfile(s.MetricsFile); err != nil {
			log.Warn("metrics not written", "err", err)
		}
	}
	if s.Timings {
		if err := printTimings(env.stderr, timer, res); err != nil {
			return res, err
		}
	}

	if runErr != nil {
		dumpTrace(ctx, env.stderr, res)
		return res, fmt.Errorf("%w: %w", errReported, runErr)
	}
	return res, nil
}

func recordHistory(ctx context.Context, path string, rep *report.Report) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(ctx, rep)
}

func outcomeNote(err error) string {
	if err != nil {
		return "failed"
	}
	return ""
}

// termWidth is the wrap width for pretty output; 0 disables wrapping.
func termWidth(f *os.File) int {
	if f == nil || !isTerminal(f) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 0
	}
	return w
}
