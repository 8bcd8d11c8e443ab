package diagfmt

import (
	"path/filepath"

	"cabalrun/internal/diag"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto chooses relative or absolute path automatically.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color    bool
	PathMode PathMode
	BaseDir  string        // anchor for relative paths
	Width    int           // wrap message bodies at this width, 0 - no wrapping
	Min      diag.Severity // lower severities are not printed
	Progress bool          // print progress notifications
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode PathMode
	BaseDir  string
	Max      int // truncate output, not the Bag
	Min      diag.Severity
}

// SarifRunMeta provides metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
	BaseDir        string
}

// formatPath renders an absolute diagnostic path for display.
func formatPath(p string, mode PathMode, baseDir string) string {
	switch mode {
	case PathModeAbsolute:
		return p
	case PathModeBasename:
		return filepath.Base(p)
	case PathModeRelative:
		return diag.RelativePath(p, baseDir)
	default:
		if baseDir == "" {
			return p
		}
		return diag.RelativePath(p, baseDir)
	}
}

// ParsePathMode converts a flag value to a PathMode.
func ParsePathMode(s string) (PathMode, bool) {
	switch s {
	case "", "auto":
		return PathModeAuto, true
	case "absolute":
		return PathModeAbsolute, true
	case "relative":
		return PathModeRelative, true
	case "basename":
		return PathModeBasename, true
	default:
		return PathModeAuto, false
	}
}

func filterMin(items []diag.Diagnostic, min diag.Severity, max int) []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0, len(items))
	for _, d := range items {
		if d.Severity < min {
			continue
		}
		if max > 0 && len(out) == max {
			break
		}
		out = append(out, d)
	}
	return out
}
