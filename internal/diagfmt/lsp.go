package diagfmt

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"fortio.org/safecast"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"cabalrun/internal/diag"
)

// LSPNotification is a JSON-RPC notification as sent to a language client.
type LSPNotification struct {
	JSONRPC string                            `json:"jsonrpc"`
	Method  string                            `json:"method"`
	Params  *protocol.PublishDiagnosticsParams `json:"params"`
}

// LSPOpts configures LSP payload generation.
type LSPOpts struct {
	Source string // diagnostic source shown by the editor
	// Clear lists files that should receive an empty diagnostic set, so an
	// editor drops errors fixed since the last build.
	Clear []string
}

// LSPDiagnostics groups located diagnostics by file into
// textDocument/publishDiagnostics parameters, ordered by URI. Diagnostics
// without a location have no document and are left out.
func LSPDiagnostics(diags []diag.Diagnostic, opts LSPOpts) []*protocol.PublishDiagnosticsParams {
	byURI := make(map[string]*protocol.PublishDiagnosticsParams)
	get := func(file string) *protocol.PublishDiagnosticsParams {
		uri := FileURI(file)
		p, ok := byURI[uri]
		if !ok {
			p = &protocol.PublishDiagnosticsParams{URI: protocol.DocumentUri(uri), Diagnostics: []protocol.Diagnostic{}}
			byURI[uri] = p
		}
		return p
	}
	for _, file := range opts.Clear {
		get(file)
	}
	for _, d := range diags {
		if d.Location == nil {
			continue
		}
		p := get(d.Location.File)
		p.Diagnostics = append(p.Diagnostics, toLSP(d, opts.Source))
	}

	out := make([]*protocol.PublishDiagnosticsParams, 0, len(byURI))
	for _, p := range byURI {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// LSP writes one publishDiagnostics notification per line.
func LSP(w io.Writer, diags []diag.Diagnostic, opts LSPOpts) error {
	enc := json.NewEncoder(w)
	for _, params := range LSPDiagnostics(diags, opts) {
		n := LSPNotification{
			JSONRPC: "2.0",
			Method:  protocol.ServerTextDocumentPublishDiagnostics,
			Params:  params,
		}
		if err := enc.Encode(n); err != nil {
			return err
		}
	}
	return nil
}

func toLSP(d diag.Diagnostic, source string) protocol.Diagnostic {
	pos := protocol.Position{
		Line:      toLSPIndex(d.Location.Line),
		Character: toLSPIndex(d.Location.Column),
	}
	sev := lspSeverity(d.Severity)
	out := protocol.Diagnostic{
		Range:    protocol.Range{Start: pos, End: pos},
		Severity: &sev,
		Message:  strings.TrimRight(d.Message, "\n"),
	}
	if source != "" {
		out.Source = &source
	}
	if d.Tool != "" {
		out.Code = &protocol.IntegerOrString{Value: string(d.Tool)}
	}
	return out
}

// toLSPIndex converts a 1-based position to LSP's 0-based UInteger,
// clamping values that do not fit.
func toLSPIndex(n int) protocol.UInteger {
	if n > 0 {
		n--
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		if n < 0 {
			return 0
		}
		return protocol.UInteger(^uint32(0))
	}
	return protocol.UInteger(v)
}

func lspSeverity(sev diag.Severity) protocol.DiagnosticSeverity {
	switch sev {
	case diag.SevError:
		return protocol.DiagnosticSeverityError
	case diag.SevWarning:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityInformation
	}
}
