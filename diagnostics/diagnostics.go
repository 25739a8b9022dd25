// Package diagnostics formats errors in clock plans and prints them in a
// consistent way, pointing at the line of the plan that caused them.
package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rvpico/bringup/internal/plan"
	"gopkg.in/yaml.v2"
)

// Position in a plan file. A zero Line means the line is unknown.
type Position struct {
	Filename string
	Line     int
}

func (pos Position) String() string {
	if pos.Line == 0 {
		return pos.Filename
	}
	return pos.Filename + ":" + strconv.Itoa(pos.Line)
}

// A single diagnostic.
type Diagnostic struct {
	Pos Position

	// Dotted path of the offending field, as in "clocks[1].src", if known.
	Field string
	Msg   string
}

// All diagnostics of one plan file.
type FileDiagnostic struct {
	Filename    string
	Diagnostics []Diagnostic
}

// yaml.v2 reports positions only as a "line N:" prefix of the message.
var yamlLine = regexp.MustCompile(`^(?:yaml: )?line (\d+): (.*)$`)

// CreateDiagnostics reads the underlying errors in the error object and creates
// a set of diagnostics that's sorted and can be readily printed. The plan
// source is used to find the line of field errors; it may be nil.
func CreateDiagnostics(filename string, src []byte, err error) FileDiagnostic {
	diag := FileDiagnostic{Filename: filename}
	if err == nil {
		return diag
	}

	var typeErr *yaml.TypeError
	var planErrs plan.Errors
	var fieldErr *plan.FieldError
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &typeErr):
		for _, msg := range typeErr.Errors {
			diag.Diagnostics = append(diag.Diagnostics, yamlDiagnostic(filename, msg))
		}
	case errors.As(err, &planErrs):
		for _, err := range planErrs {
			diag.Diagnostics = append(diag.Diagnostics, fieldDiagnostic(filename, src, err))
		}
	case errors.As(err, &fieldErr):
		diag.Diagnostics = append(diag.Diagnostics, fieldDiagnostic(filename, src, fieldErr))
	case errors.As(err, &pathErr):
		// The file itself could not be read.
		diag.Diagnostics = append(diag.Diagnostics, Diagnostic{
			Pos: Position{Filename: pathErr.Path},
			Msg: pathErr.Err.Error(),
		})
	default:
		diag.Diagnostics = append(diag.Diagnostics, yamlDiagnostic(filename, err.Error()))
	}

	// Sort these diagnostics by line. Field errors come in field order, which
	// is kept for those on the same (or an unknown) line.
	sort.SliceStable(diag.Diagnostics, func(i, j int) bool {
		return diag.Diagnostics[i].Pos.Line < diag.Diagnostics[j].Pos.Line
	})
	return diag
}

func yamlDiagnostic(filename, msg string) Diagnostic {
	d := Diagnostic{Pos: Position{Filename: filename}, Msg: msg}
	if m := yamlLine.FindStringSubmatch(msg); m != nil {
		d.Pos.Line, _ = strconv.Atoi(m[1])
		d.Msg = m[2]
	}
	return d
}

func fieldDiagnostic(filename string, src []byte, err *plan.FieldError) Diagnostic {
	return Diagnostic{
		Pos:   Position{Filename: filename, Line: Locate(src, err.Field)},
		Field: err.Field,
		Msg:   err.Err.Error(),
	}
}

// Locate returns the 1-based line of the field with the given dotted path in
// a YAML document, or of its closest enclosing field that is present. It
// returns 0 if not even the first element of the path is found.
func Locate(src []byte, field string) int {
	lines := strings.Split(string(src), "\n")
	lo, hi := 0, len(lines)
	line := 0
	for _, seg := range strings.Split(field, ".") {
		key, index := seg, -1
		if i := strings.IndexByte(seg, '['); i >= 0 && strings.HasSuffix(seg, "]") {
			n, err := strconv.Atoi(seg[i+1 : len(seg)-1])
			if err != nil {
				return line
			}
			key, index = seg[:i], n
		}

		at := findKey(lines, lo, hi, key)
		if at < 0 {
			return line
		}
		line = at + 1
		lo, hi = at+1, blockEnd(lines, at, hi)

		if index >= 0 {
			at = findItem(lines, lo, hi, index)
			if at < 0 {
				return line
			}
			line = at + 1
			lo, hi = at, itemEnd(lines, at, hi)
		}
	}
	return line
}

func isContent(line string) bool {
	s := strings.TrimSpace(line)
	return s != "" && !strings.HasPrefix(s, "#")
}

// Column of the key on a line, past any sequence dashes.
func keyIndent(line string) int {
	return len(line) - len(strings.TrimLeft(line, " -"))
}

func dashIndent(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

func isItem(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " "), "-")
}

// findKey looks for key among the shallowest keys of lines[lo:hi].
func findKey(lines []string, lo, hi int, key string) int {
	level := -1
	for i := lo; i < hi; i++ {
		if !isContent(lines[i]) {
			continue
		}
		if level < 0 {
			level = keyIndent(lines[i])
		}
		if keyIndent(lines[i]) != level {
			continue
		}
		if strings.HasPrefix(strings.TrimLeft(lines[i], " -"), key+":") {
			return i
		}
	}
	return -1
}

// blockEnd returns the end of the value of the key on line at.
func blockEnd(lines []string, at, hi int) int {
	indent := keyIndent(lines[at])
	for i := at + 1; i < hi; i++ {
		if isContent(lines[i]) && keyIndent(lines[i]) <= indent {
			return i
		}
	}
	return hi
}

func findItem(lines []string, lo, hi, index int) int {
	level := -1
	n := 0
	for i := lo; i < hi; i++ {
		if !isContent(lines[i]) || !isItem(lines[i]) {
			continue
		}
		if level < 0 {
			level = dashIndent(lines[i])
		}
		if dashIndent(lines[i]) != level {
			continue
		}
		if n == index {
			return i
		}
		n++
	}
	return -1
}

func itemEnd(lines []string, at, hi int) int {
	indent := dashIndent(lines[at])
	for i := at + 1; i < hi; i++ {
		if isContent(lines[i]) && dashIndent(lines[i]) <= indent {
			return i
		}
	}
	return hi
}

// Write file diagnostics to the given writer with 'wd' as the relative
// working directory.
func (fileDiag FileDiagnostic) WriteTo(w io.Writer, wd string) {
	for _, diag := range fileDiag.Diagnostics {
		diag.WriteTo(w, wd)
	}
}

// Write this diagnostic to the given writer with 'wd' as the relative working
// directory.
func (diag Diagnostic) WriteTo(w io.Writer, wd string) {
	msg := diag.Msg
	if diag.Field != "" {
		msg = diag.Field + ": " + msg
	}
	if diag.Pos == (Position{}) {
		fmt.Fprintln(w, msg)
		return
	}
	pos := RelativePosition(diag.Pos, wd)
	fmt.Fprintf(w, "%s: %s\n", pos, msg)
}

// Convert the position in pos (assumed to have an absolute path) into a
// relative path if possible.
func RelativePosition(pos Position, wd string) Position {
	// Check whether we even have a working directory.
	if wd == "" || !filepath.IsAbs(pos.Filename) {
		return pos
	}

	// Make the path relative, for easier reading. Ignore any errors in the
	// process (falling back to the absolute path).
	relpath, err := filepath.Rel(wd, pos.Filename)
	if err == nil && !strings.HasPrefix(relpath, "..") {
		pos.Filename = relpath
	}
	return pos
}
