package diag

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// FormatShortDiagnostics renders diagnostics one per line, in arrival order:
//
//	<severity> <tool> [<path>:<line>:<col>] <message>
//
// Message newlines are folded into single spaces. When baseDir is set,
// locations inside it are shown relative to it.
func FormatShortDiagnostics(diags []Diagnostic, baseDir string) string {
	if len(diags) == 0 {
		return ""
	}
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		lines = append(lines, formatShort(d, baseDir))
	}
	return strings.Join(lines, "\n")
}

func formatShort(d Diagnostic, baseDir string) string {
	var b strings.Builder
	b.WriteString(d.Severity.Label())
	if d.Tool != "" {
		b.WriteByte(' ')
		b.WriteString(string(d.Tool))
	}
	if d.Location != nil {
		fmt.Fprintf(&b, " %s:%d:%d", RelativePath(d.Location.File, baseDir), d.Location.Line, d.Location.Column)
	}
	if msg := foldMessage(d.Message); msg != "" {
		b.WriteByte(' ')
		b.WriteString(msg)
	}
	return b.String()
}

// RelativePath shows p relative to baseDir when p lives below it.
func RelativePath(p, baseDir string) string {
	if baseDir == "" {
		return p
	}
	base := filepath.ToSlash(baseDir)
	p = filepath.ToSlash(p)
	if !path.IsAbs(p) || !strings.HasPrefix(p, strings.TrimSuffix(base, "/")+"/") {
		return p
	}
	return strings.TrimPrefix(p, strings.TrimSuffix(base, "/")+"/")
}

func foldMessage(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}
