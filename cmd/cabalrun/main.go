// Package main implements the cabalrun CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cabalrun/internal/config"
	"cabalrun/internal/logging"
	"cabalrun/internal/prof"
	"cabalrun/internal/version"
)

var rootCmd = &cobra.Command{
	Use:               "cabalrun",
	Short:             "Run cabal configure and build over a workspace",
	Long:              `cabalrun drives cabal over every unit of a workspace and turns its output into structured diagnostics`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupInvocation,
}

// invocation holds what the persistent pre-run resolved for the command
// that is executing.
type invocation struct {
	settings config.Settings
	log      *logging.Logger
	cleanup  []func()
}

var current invocation

func (inv *invocation) close() {
	for i := len(inv.cleanup) - 1; i >= 0; i-- {
		inv.cleanup[i]()
	}
	inv.cleanup = nil
	if inv.log != nil {
		_ = inv.log.Close()
	}
}

// main registers subcommands and persistent flags, then executes the root
// command. Interrupts cancel the running pipeline. A failed command exits
// with status 1.
func main() {
	rootCmd.Version = version.Colored(version.Get().Version)

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(unitsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	current.close()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "settings file (default is $HOME/.cabalrun.yaml)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress informational output")
	pf.Bool("timings", false, "show timing information")
	pf.Int("max-diagnostics", 0, "maximum number of diagnostics to keep (0 = unlimited)")
	pf.String("history", "", "sqlite database recording every invocation")
	pf.String("log-level", "warn", "log level (debug|info|warn|error)")
	pf.String("log-format", "text", "log format (text|json)")
	pf.String("log-file", "", "write logs to a rotating file instead of stderr")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.Int("trace-ring-size", 4096, "events kept in ring mode")
	pf.Duration("trace-heartbeat", 0, "report running cabal processes in the trace at this interval")
	pf.String("cpu-profile", "", "write a CPU profile to this file")
	pf.String("mem-profile", "", "write a heap profile to this file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")
}

// setupInvocation layers settings, builds the logger and attaches the tracer.
func setupInvocation(cmd *cobra.Command, _ []string) error {
	settingsFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	loader := config.NewLoader()
	loader.File = settingsFile
	settings, err := loader.Load(cmd.Flags())
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		File:   settings.LogFile,
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	current = invocation{settings: settings, log: log}
	if used := loader.FileUsed(); used != "" {
		log.Debug("settings loaded", "file", used)
	}

	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	current.cleanup = append(current.cleanup, cleanup)

	profiles, err := startProfiles(cmd)
	if err != nil {
		return err
	}
	current.cleanup = append(current.cleanup, func() {
		if err := profiles.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
		}
	})
	return nil
}

func startProfiles(cmd *cobra.Command) (*prof.Session, error) {
	var opts prof.Options
	var err error
	flags := cmd.Flags()
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	return prof.Start(opts)
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// colorEnabled resolves the --color setting against out.
func colorEnabled(mode string, out *os.File) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "auto":
		return out != nil && isTerminal(out) && os.Getenv("NO_COLOR") == "", nil
	case "on", "always":
		return true, nil
	case "off", "never":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
}
