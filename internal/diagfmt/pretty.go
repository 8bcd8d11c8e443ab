package diagfmt

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"cabalrun/internal/diag"
)

const bodyIndent = 4

// Pretty writes diags in human-readable form, in order.
func Pretty(w io.Writer, diags []diag.Diagnostic, opts PrettyOpts) {
	r := NewPrettyReporter(w, opts)
	for _, d := range diags {
		r.Report(d)
	}
}

// PrettyReporter prints diagnostics as they arrive. Located errors look
// like
//
//	src/Main.hs:4:7: ERROR [ghc] Variable not in scope: foo
//	    • Perhaps you meant 'for'
//
// Info lines are echoed verbatim, the way cabal printed them.
type PrettyReporter struct {
	mu   sync.Mutex
	w    io.Writer
	opts PrettyOpts

	errColor  *color.Color
	warnColor *color.Color
	locColor  *color.Color
	dimColor  *color.Color
}

// NewPrettyReporter returns a reporter writing to w.
func NewPrettyReporter(w io.Writer, opts PrettyOpts) *PrettyReporter {
	r := &PrettyReporter{
		w:         w,
		opts:      opts,
		errColor:  color.New(color.FgRed, color.Bold),
		warnColor: color.New(color.FgYellow, color.Bold),
		locColor:  color.New(color.Bold),
		dimColor:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{r.errColor, r.warnColor, r.locColor, r.dimColor} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

func (r *PrettyReporter) Report(d diag.Diagnostic) {
	if d.Severity < r.opts.Min {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.w, r.render(d))
}

func (r *PrettyReporter) Progress(msg string) {
	if !r.opts.Progress {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, r.dimColor.Sprint("==> "+msg))
}

func (r *PrettyReporter) render(d diag.Diagnostic) string {
	if d.Severity == diag.SevInfo && d.Location == nil {
		return d.Message + "\n"
	}

	summary, body, _ := strings.Cut(strings.TrimRight(d.Message, "\n"), "\n")

	var b strings.Builder
	if d.Location != nil {
		loc := fmt.Sprintf("%s:%d:%d:", formatPath(d.Location.File, r.opts.PathMode, r.opts.BaseDir), d.Location.Line, d.Location.Column)
		b.WriteString(r.locColor.Sprint(loc))
		b.WriteByte(' ')
	}
	b.WriteString(r.severity(d.Severity))
	if d.Tool != "" {
		b.WriteString(" [")
		b.WriteString(string(d.Tool))
		b.WriteString("]")
	}
	if summary != "" {
		b.WriteByte(' ')
		b.WriteString(summary)
	}
	b.WriteByte('\n')

	if body != "" {
		if r.opts.Width > bodyIndent {
			body = wordwrap.String(body, r.opts.Width-bodyIndent)
		}
		b.WriteString(indent.String(body, bodyIndent))
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *PrettyReporter) severity(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return r.errColor.Sprint(sev.String())
	case diag.SevWarning:
		return r.warnColor.Sprint(sev.String())
	default:
		return sev.String()
	}
}
