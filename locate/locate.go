package locate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/andrewchambers/cstubgen/lex"
)

var (
	ErrSymbolNotFound          = errors.Base("symbol not found")
	ErrSymbolAmbiguous         = errors.Base("symbol declared more than once")
	ErrUnterminatedDeclaration = errors.Base("declaration has no terminator")
)

// RawDeclaration is the text of one exported declaration as it appears in
// a header. Text starts at the export marker and ends with the ';' that
// terminates the declaration. Line and Col give the position of its first
// byte.
type RawDeclaration struct {
	File string
	Line int
	Col  int
	Text string
}

// Pos returns the position of the start of the declaration.
func (r RawDeclaration) Pos() lex.FilePos {
	return lex.FilePos{File: r.File, Line: r.Line, Col: r.Col}
}

// Locator finds the declarations of exported symbols in a header tree.
type Locator struct {
	Searcher Searcher
	Root     string
	Marker   string
	Globs    []string
}

// Locate returns the single exported declaration of symbol. Only lines
// that carry the export marker and name symbol as a whole word followed by
// '(' are candidates, and exactly one candidate must remain.
func (l *Locator) Locate(ctx context.Context, symbol string) (RawDeclaration, error) {
	pattern := symbol + "("
	found, err := l.Searcher.Search(ctx, Query{Pattern: pattern, Dir: l.Root, Globs: l.Globs})
	if err != nil {
		return RawDeclaration{}, errors.Errorf("searching for %s: %w", symbol, err)
	}

	var candidates []Match
	for _, m := range found {
		if indexWord(m.Text, l.Marker) >= 0 && indexWord(m.Text, pattern) >= 0 {
			candidates = append(candidates, m)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].File != candidates[j].File {
			return candidates[i].File < candidates[j].File
		}
		return candidates[i].Line < candidates[j].Line
	})

	switch len(candidates) {
	case 0:
		return RawDeclaration{}, errors.WithDetails(ErrSymbolNotFound, "symbol", symbol, "root", l.Root)
	case 1:
	default:
		var where []string
		for _, c := range candidates {
			where = append(where, fmt.Sprintf("%s:%d", c.File, c.Line))
		}
		return RawDeclaration{}, errors.WithDetails(ErrSymbolAmbiguous, "symbol", symbol, "candidates", where)
	}

	m := candidates[0]
	start := indexWord(m.Text, l.Marker)
	first := m.Text[start:]
	raw := RawDeclaration{
		File: m.File,
		Line: m.Line,
		Col:  lex.PosAt(lex.FilePos{Col: 1}, m.Text, start).Col,
	}

	if t := strings.TrimRight(first, " \t\r"); strings.HasSuffix(t, ";") {
		raw.Text = t
	} else {
		raw.Text, err = stitch(m.File, m.Line, first)
		if err != nil {
			return RawDeclaration{}, errors.WithDetails(err, "symbol", symbol)
		}
	}
	slog.DebugContext(ctx, "located declaration", "symbol", symbol, "file", raw.File, "line", raw.Line)
	return raw, nil
}

// stitch joins the lines of a declaration that starts on line of file and
// continues until a line ends in ';'.
func stitch(file string, line int, first string) (string, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return "", errors.WithStack(err)
	}
	lines := strings.Split(string(buf), "\n")
	out := []string{strings.TrimRight(first, " \t\r")}
	for i := line; i < len(lines); i++ {
		l := strings.TrimRight(lines[i], " \t\r")
		out = append(out, l)
		if strings.HasSuffix(l, ";") {
			return strings.Join(out, "\n"), nil
		}
	}
	return "", errors.WithDetails(ErrUnterminatedDeclaration, "file", file, "line", line)
}

// indexWord returns the offset of the first occurrence of w in s that is
// not part of a longer identifier, or -1.
func indexWord(s, w string) int {
	if w == "" {
		return -1
	}
	for off := 0; ; {
		i := strings.Index(s[off:], w)
		if i < 0 {
			return -1
		}
		i += off
		end := i + len(w)
		before := i > 0 && isIdentByte(s[i-1]) && isIdentByte(w[0])
		after := end < len(s) && isIdentByte(s[end]) && isIdentByte(w[len(w)-1])
		if !before && !after {
			return i
		}
		off = i + 1
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
