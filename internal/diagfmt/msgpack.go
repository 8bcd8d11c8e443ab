package diagfmt

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"cabalrun/internal/diag"
)

// Msgpack writes the same document as JSON in MessagePack encoding.
func Msgpack(w io.Writer, diags []diag.Diagnostic, opts JSONOpts) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc.Encode(BuildDiagnosticsOutput(diags, opts))
}

// DecodeMsgpack reads a document written by Msgpack.
func DecodeMsgpack(r io.Reader) (DiagnosticsOutput, error) {
	var out DiagnosticsOutput
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	err := dec.Decode(&out)
	return out, err
}
