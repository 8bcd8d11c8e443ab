package diag

import "fmt"

// Tool tags the external program a diagnostic originated from.
type Tool string

const (
	// ToolCabal marks output attributed to the cabal driver itself.
	ToolCabal Tool = "cabal"
	// ToolGHC marks compiler output.
	ToolGHC Tool = "ghc"
)

// Location is a position inside a project source file. Line and Column are
// reported by the toolchain and are 1-based.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is one classified unit of toolchain output.
// Location is set only for Error diagnostics extracted from a
// file:line:col: header.
type Diagnostic struct {
	Severity Severity
	Tool     Tool
	Message  string
	Location *Location
}

// HasLocation reports whether the diagnostic points into a source file.
func (d Diagnostic) HasLocation() bool {
	return d.Location != nil
}
