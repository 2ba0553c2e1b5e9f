// Package report prints errors for people.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"gitlab.com/tozd/go/errors"

	"github.com/andrewchambers/cstubgen/lex"
)

// Error writes err, its details and, when it carries a source position,
// the offending header line with a caret under the column.
func Error(w io.Writer, err error) {
	fmt.Fprintln(w, err)

	details := errors.AllDetails(err)
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, details[k])
	}

	var errLoc lex.ErrorLoc
	if !errors.As(err, &errLoc) {
		return
	}
	line, ok := sourceLine(errLoc.Pos)
	if !ok {
		return
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, Caret(line, errLoc.Pos.Col))
}

// Caret returns a line that puts '^' under column col of line. Tabs are 4
// columns wide, as in the lexer.
func Caret(line string, col int) string {
	linelen := 0
	for _, v := range line {
		switch v {
		case '\t':
			linelen += 4
		case '\n', '\r':
		default:
			linelen += 1
		}
	}
	if col > linelen {
		linelen = col
	}
	b := make([]byte, 0, linelen)
	for i := 0; i < linelen; i++ {
		if i+1 == col {
			b = append(b, '^')
			break
		}
		b = append(b, ' ')
	}
	return string(b)
}

func sourceLine(pos lex.FilePos) (string, bool) {
	f, err := os.Open(pos.File)
	if err != nil {
		return "", false
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for lineno := 1; s.Scan(); lineno++ {
		if lineno == pos.Line {
			return s.Text(), true
		}
	}
	return "", false
}
