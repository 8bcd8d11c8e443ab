package diagfmt

import (
	"encoding/json"
	"io"

	"cabalrun/internal/diag"
)

// LocationJSON is a file position in JSON output.
type LocationJSON struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// DiagnosticJSON is one diagnostic in JSON output.
type DiagnosticJSON struct {
	Severity string        `json:"severity"`
	Tool     string        `json:"tool,omitempty"`
	Message  string        `json:"message"`
	Location *LocationJSON `json:"location,omitempty"`
}

// DiagnosticsOutput is the root of JSON output.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Errors      int              `json:"errors"`
	Warnings    int              `json:"warnings"`
}

// MakeDiagnosticJSON converts one diagnostic.
func MakeDiagnosticJSON(d diag.Diagnostic, mode PathMode, baseDir string) DiagnosticJSON {
	out := DiagnosticJSON{
		Severity: d.Severity.Label(),
		Tool:     string(d.Tool),
		Message:  d.Message,
	}
	if d.Location != nil {
		out.Location = &LocationJSON{
			File:   formatPath(d.Location.File, mode, baseDir),
			Line:   d.Location.Line,
			Column: d.Location.Column,
		}
	}
	return out
}

// BuildDiagnosticsOutput builds the JSON document without serializing it.
func BuildDiagnosticsOutput(diags []diag.Diagnostic, opts JSONOpts) DiagnosticsOutput {
	items := filterMin(diags, opts.Min, opts.Max)
	out := DiagnosticsOutput{Diagnostics: make([]DiagnosticJSON, 0, len(items))}
	for _, d := range items {
		out.Diagnostics = append(out.Diagnostics, MakeDiagnosticJSON(d, opts.PathMode, opts.BaseDir))
		switch d.Severity {
		case diag.SevError:
			out.Errors++
		case diag.SevWarning:
			out.Warnings++
		}
	}
	out.Count = len(out.Diagnostics)
	return out
}

// JSON writes diags as an indented JSON document.
func JSON(w io.Writer, diags []diag.Diagnostic, opts JSONOpts) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildDiagnosticsOutput(diags, opts))
}
