package classify

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// headerPattern extracts file, line, column and the trailing text from a
// compiler error header. It must accept exactly the lines IsErrorHeader
// accepts.
var headerPattern = regexp.MustCompile(`(?s)^(.*):(\d+):(\d+):(.*)$`)

// IsErrorHeader reports whether line contains a ":<digits>:<digits>:" run,
// the shape GHC uses for file:line:column: headers.
func IsErrorHeader(line string) bool {
	for i := 0; i < len(line); i++ {
		if line[i] != ':' {
			continue
		}
		j := skipDigits(line, i+1)
		if j == i+1 || j >= len(line) || line[j] != ':' {
			continue
		}
		k := skipDigits(line, j+1)
		if k == j+1 || k >= len(line) || line[k] != ':' {
			continue
		}
		return true
	}
	return false
}

func skipDigits(s string, from int) int {
	for from < len(s) && s[from] >= '0' && s[from] <= '9' {
		from++
	}
	return from
}

// PatternMismatchError reports that IsErrorHeader and the extraction
// pattern disagreed on a line. It is raised with panic: it means the two
// checks drifted apart, not that the toolchain printed something odd.
type PatternMismatchError struct {
	Line   string
	Reason string
}

func (e *PatternMismatchError) Error() string {
	return fmt.Sprintf("error header pattern not matched (%s): %q", e.Reason, e.Line)
}

type header struct {
	file   string
	line   int
	column int
	rest   string
}

func parseHeader(re *regexp.Regexp, line string) header {
	m := re.FindStringSubmatch(line)
	if m == nil {
		panic(&PatternMismatchError{Line: line, Reason: "no match"})
	}
	lineNum, err := parsePosition(m[2])
	if err != nil {
		panic(&PatternMismatchError{Line: line, Reason: err.Error()})
	}
	colNum, err := parsePosition(m[3])
	if err != nil {
		panic(&PatternMismatchError{Line: line, Reason: err.Error()})
	}
	return header{
		file:   m[1],
		line:   lineNum,
		column: colNum,
		rest:   m[4],
	}
}

func parsePosition(s string) (int, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad position %q: %w", s, err)
	}
	n, err := safecast.Conv[int](v)
	if err != nil {
		return 0, fmt.Errorf("position %q out of range: %w", s, err)
	}
	return n, nil
}

// ResolvePath turns a tool-relative file into a project path: backslashes
// become forward slashes, then the file is joined onto contentRoot.
// Files that are already absolute are returned normalized but unjoined.
func ResolvePath(contentRoot, file string) string {
	file = strings.ReplaceAll(file, `\`, "/")
	if contentRoot == "" || isAbsPath(file) {
		return file
	}
	return path.Join(filepath.ToSlash(contentRoot), file)
}

func isAbsPath(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	// drive-letter form, C:/...
	return len(p) >= 3 && p[1] == ':' && p[2] == '/' &&
		((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}
