package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"cabalrun/internal/project"
	"cabalrun/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] [unit-root...]",
	Short: "Rebuild whenever Haskell sources or cabal files change",
	Long: `Run a full build, then run it again after every change to a .hs,
.lhs, .cabal or cabal.project file under the unit content roots.`,
	RunE: watchExecution,
}

func init() {
	addPipelineFlags(watchCmd.Flags())
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a rebuild")
}

func watchExecution(cmd *cobra.Command, args []string) error {
	env := newPipelineEnv(cmd)
	// The progress view would take over the terminal between rebuilds.
	env.settings.UI = string(uiModeOff)

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	units, _, err := project.Units(cwd, args)
	if err != nil {
		return err
	}
	roots := make([]string, 0, len(units))
	for _, u := range units {
		if !slices.Contains(roots, u.ContentRoot) {
			roots = append(roots, u.ContentRoot)
		}
	}

	w, err := watch.New(watch.Options{
		Roots:    roots,
		Debounce: env.settings.Debounce,
		Logger:   env.log,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	return w.Run(cmd.Context(), func(ctx context.Context) error {
		_, err := runPipeline(ctx, env, args)
		if !env.settings.Quiet {
			fmt.Fprintf(env.stderr, "watching %d content roots, Ctrl-C to stop\n", len(roots))
		}
		if errors.Is(err, errReported) {
			return nil
		}
		return err
	})
}
