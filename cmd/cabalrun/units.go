package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/cabal"
	"cabalrun/internal/project"
)

var unitsCmd = &cobra.Command{
	Use:   "units [flags] [unit-root...]",
	Short: "List work units, their content roots and manifests",
	RunE:  unitsExecution,
}

func init() {
	unitsCmd.Flags().Bool("json", false, "print units as JSON")
}

// unitInfo is one row of the units listing.
type unitInfo struct {
	Name        string `json:"name"`
	ContentRoot string `json:"content_root"`
	Manifest    string `json:"manifest,omitempty"`
	Error       string `json:"error,omitempty"`
}

func unitsExecution(cmd *cobra.Command, args []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to get json flag: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	units, ws, err := project.Units(cwd, args)
	if err != nil {
		return err
	}
	infos, err := describeUnits(cmd.Context(), units, cabal.Lookup{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	if ws != nil {
		fmt.Fprintf(out, "workspace %s (%s)\n", ws.Name(), ws.Path)
	}
	return writeUnitTable(out, infos)
}

// describeUnits looks up every manifest concurrently; results keep the
// order of units.
func describeUnits(ctx context.Context, units []buildpipeline.WorkUnit, lookup buildpipeline.ManifestLookup) ([]unitInfo, error) {
	infos := make([]unitInfo, len(units))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, u := range units {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info := unitInfo{Name: u.Name, ContentRoot: u.ContentRoot}
			path, found, err := lookup.FindManifest(u.ContentRoot)
			switch {
			case err != nil:
				info.Error = err.Error()
			case found:
				info.Manifest = path
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func writeUnitTable(out io.Writer, infos []unitInfo) error {
	t := newTable("UNIT", "CONTENT ROOT", "MANIFEST")
	for _, info := range infos {
		manifest := info.Manifest
		switch {
		case info.Error != "":
			manifest = "error: " + info.Error
		case manifest == "":
			manifest = "(none, skipped)"
		}
		t.Row(info.Name, info.ContentRoot, manifest)
	}
	_, err := fmt.Fprintln(out, t.String())
	return err
}

// newTable returns a borderless table with bold headers.
func newTable(headers ...string) *table.Table {
	bold := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return bold
			}
			return cell
		})
}
