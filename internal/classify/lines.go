package classify

import (
	"bufio"
	"io"
	"strings"
)

// maxLineBytes bounds a single output line. GHC type errors can be long.
const maxLineBytes = 1 << 20

// LineStream is a forward-only, single-pass sequence of output lines.
// Next returns false once the stream is exhausted or failed; Err tells the
// two apart.
type LineStream interface {
	Next() (string, bool)
	Err() error
}

type scannerLines struct {
	sc *bufio.Scanner
}

// ScanLines reads newline separated lines from r. A trailing carriage
// return is stripped from every line.
func ScanLines(r io.Reader) LineStream {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &scannerLines{sc: sc}
}

func (s *scannerLines) Next() (string, bool) {
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSuffix(s.sc.Text(), "\r"), true
}

func (s *scannerLines) Err() error {
	return s.sc.Err()
}

type sliceLines struct {
	lines []string
	pos   int
}

// Lines returns an in-memory LineStream over the given lines.
func Lines(lines ...string) LineStream {
	return &sliceLines{lines: lines}
}

func (s *sliceLines) Next() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	line := s.lines[s.pos]
	s.pos++
	return line, true
}

func (s *sliceLines) Err() error { return nil }
