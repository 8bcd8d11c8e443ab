package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cabalrun/internal/diagfmt"
	"cabalrun/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded invocations",
	Long:  "List, show and prune invocations recorded with --history.",
	RunE:  historyList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <invocation-id>",
	Short: "Print the warnings and errors of one invocation",
	Args:  cobra.ExactArgs(1),
	RunE:  historyShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete invocations older than a duration",
	RunE:  historyPrune,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of invocations to list")
	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "age of invocations to delete")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

func openHistory() (*history.Store, error) {
	path := current.settings.History
	if path == "" {
		return nil, errors.New("no history database configured (use --history or CABALRUN_HISTORY)")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("history database: %w", err)
	}
	return history.Open(path)
}

func historyList(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to get limit flag: %w", err)
	}
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return writeHistoryTable(cmd.OutOrStdout(), runs)
}

func writeHistoryTable(out io.Writer, runs []history.Invocation) error {
	t := newTable("ID", "STARTED", "WORKSPACE", "UNITS", "RESULT", "ERRORS", "WARNINGS", "ELAPSED")
	for _, r := range runs {
		result := "ok"
		if !r.OK {
			result = "failed"
		}
		t.Row(r.ID, r.StartedAt.Local().Format(time.DateTime), r.Workspace, strconv.Itoa(r.Units),
			result, strconv.Itoa(r.Errors), strconv.Itoa(r.Warnings), r.Elapsed.Round(time.Millisecond).String())
	}
	_, err := fmt.Fprintln(out, t.String())
	return err
}

func historyShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	diags, err := store.Diagnostics(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	useColor, err := colorEnabled(current.settings.Color, os.Stdout)
	if err != nil {
		return err
	}
	diagfmt.Pretty(cmd.OutOrStdout(), diags, diagfmt.PrettyOpts{Color: useColor, PathMode: diagfmt.PathModeAbsolute})
	return nil
}

func historyPrune(cmd *cobra.Command, _ []string) error {
	age, err := cmd.Flags().GetDuration("older-than")
	if err != nil {
		return fmt.Errorf("failed to get older-than flag: %w", err)
	}
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Prune(cmd.Context(), time.Now().Add(-age))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d invocations\n", n)
	return nil
}
