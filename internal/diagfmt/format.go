// Package diagfmt renders diagnostics for terminals, tools and editors.
package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"cabalrun/internal/diag"
)

// Format selects a batch renderer.
type Format string

const (
	FormatPretty  Format = "pretty"
	FormatJSON    Format = "json"
	FormatSarif   Format = "sarif"
	FormatLSP     Format = "lsp"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatPretty, nil
	case FormatPretty, FormatJSON, FormatSarif, FormatLSP, FormatMsgpack:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected: pretty|json|sarif|lsp|msgpack)", s)
	}
}

// Streaming reports whether the format prints diagnostics as they arrive.
func (f Format) Streaming() bool {
	return f == FormatPretty
}

// Options bundles the settings of every renderer.
type Options struct {
	Pretty PrettyOpts
	JSON   JSONOpts
	Sarif  SarifRunMeta
	LSP    LSPOpts
}

// Write renders diags in the chosen batch format.
func Write(w io.Writer, f Format, diags []diag.Diagnostic, opts Options) error {
	switch f {
	case FormatPretty:
		Pretty(w, diags, opts.Pretty)
		return nil
	case FormatJSON:
		return JSON(w, diags, opts.JSON)
	case FormatSarif:
		return Sarif(w, diags, opts.Sarif)
	case FormatLSP:
		return LSP(w, diags, opts.LSP)
	case FormatMsgpack:
		return Msgpack(w, diags, opts.JSON)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}
