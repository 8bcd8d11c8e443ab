// Package classify turns raw cabal/GHC output lines into diagnostics.
package classify

import (
	"iter"
	"regexp"
	"strings"

	"cabalrun/internal/diag"
)

const warningPrefix = "Warning: "

// Classifier is a pull-based cursor over one output stream. It is
// stateless between streams; within a stream it consumes exactly the
// lines each diagnostic needs. Not safe for concurrent use.
type Classifier struct {
	lines  LineStream
	root   string
	header *regexp.Regexp
	done   bool
}

// New returns a classifier reading from lines. contentRoot anchors the
// relative file paths found in error headers.
func New(lines LineStream, contentRoot string) *Classifier {
	return &Classifier{
		lines:  lines,
		root:   contentRoot,
		header: headerPattern,
	}
}

// Next returns the next diagnostic. ok is false once the stream is
// exhausted; err is non-nil when reading the stream failed.
//
// Next panics with *PatternMismatchError if a line passes IsErrorHeader
// but cannot be parsed as a header.
func (c *Classifier) Next() (d diag.Diagnostic, ok bool, err error) {
	if c.done {
		return diag.Diagnostic{}, false, nil
	}
	line, ok := c.lines.Next()
	if !ok {
		return diag.Diagnostic{}, false, c.finish()
	}
	switch {
	case strings.HasPrefix(line, warningPrefix):
		return c.warning(strings.TrimPrefix(line, warningPrefix))
	case IsErrorHeader(line):
		return c.located(line)
	default:
		return diag.NewInfo(diag.ToolCabal, line), true, nil
	}
}

// All adapts the cursor to a range-over-func iterator. Iteration stops
// after the first error, which is yielded with a zero Diagnostic.
func (c *Classifier) All() iter.Seq2[diag.Diagnostic, error] {
	return func(yield func(diag.Diagnostic, error) bool) {
		for {
			d, ok, err := c.Next()
			if err != nil {
				yield(diag.Diagnostic{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

// warning consumes the continuation line that always follows a
// "Warning: " summary. A stream that ends right after the summary yields
// the summary alone.
func (c *Classifier) warning(summary string) (diag.Diagnostic, bool, error) {
	cont, ok := c.lines.Next()
	if !ok {
		if err := c.finish(); err != nil {
			return diag.Diagnostic{}, false, err
		}
		return diag.NewWarning(diag.ToolCabal, summary), true, nil
	}
	return diag.NewWarning(diag.ToolCabal, summary+"\n"+cont), true, nil
}

// located accumulates the body that follows a file:line:col: header up to
// the first blank line. The blank line is consumed, not kept.
func (c *Classifier) located(line string) (diag.Diagnostic, bool, error) {
	h := parseHeader(c.header, line)

	var body strings.Builder
	if rest := strings.TrimSpace(h.rest); rest != "" {
		body.WriteString(rest)
		body.WriteByte('\n')
	}
	for {
		next, ok := c.lines.Next()
		if !ok {
			if err := c.finish(); err != nil {
				return diag.Diagnostic{}, false, err
			}
			break
		}
		if strings.TrimSpace(next) == "" {
			break
		}
		body.WriteString(next)
		body.WriteByte('\n')
	}

	loc := diag.Location{
		File:   ResolvePath(c.root, h.file),
		Line:   h.line,
		Column: h.column,
	}
	return diag.NewLocated(diag.ToolGHC, body.String(), loc), true, nil
}

func (c *Classifier) finish() error {
	c.done = true
	return c.lines.Err()
}

// Classify drains lines and hands every diagnostic to r as soon as it is
// complete.
func Classify(lines LineStream, contentRoot string, r diag.Reporter) error {
	for d, err := range New(lines, contentRoot).All() {
		if err != nil {
			return err
		}
		r.Report(d)
	}
	return nil
}
