package locate

import (
	"bufio"
	"bytes"
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Query is a fixed-string search over the files under Dir whose names
// match one of Globs.
type Query struct {
	Pattern string
	Dir     string
	Globs   []string
}

// Match is one line containing the pattern. Line is 1 based.
type Match struct {
	File string
	Line int
	Text string
}

// Searcher runs free-text queries. It returns raw matching lines only and
// does not interpret them.
type Searcher interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Match, error)
}

// Names of the available searchers.
const (
	Auto     = "auto"
	Ripgrep  = "ripgrep"
	WalkName = "walk"
)

// NewSearcher returns the named searcher. Auto uses ripgrep when rg is on
// the PATH and the directory walker otherwise.
func NewSearcher(name string) (Searcher, error) {
	switch name {
	case Auto, "":
		if path, err := exec.LookPath("rg"); err == nil {
			return &RipgrepSearcher{Path: path}, nil
		}
		return &WalkSearcher{}, nil
	case Ripgrep:
		path, err := exec.LookPath("rg")
		if err != nil {
			return nil, errors.Errorf("ripgrep not found: %w", err)
		}
		return &RipgrepSearcher{Path: path}, nil
	case WalkName:
		return &WalkSearcher{}, nil
	}
	return nil, errors.Errorf("unknown searcher %q", name)
}

// RipgrepSearcher runs rg as a subprocess.
type RipgrepSearcher struct {
	Path string
}

func (*RipgrepSearcher) Name() string { return Ripgrep }

func (r *RipgrepSearcher) Search(ctx context.Context, q Query) ([]Match, error) {
	args := []string{"--fixed-strings", "--line-number", "--with-filename", "--no-heading", "--color", "never"}
	for _, g := range q.Globs {
		args = append(args, "--glob", g)
	}
	args = append(args, "--", q.Pattern, q.Dir)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			// rg exits 1 when nothing matched.
			return nil, nil
		}
		return nil, errors.WithDetails(
			errors.Errorf("rg failed: %w", err),
			"stderr", strings.TrimSpace(stderr.String()),
		)
	}

	var matches []Match
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line == "" {
			continue
		}
		m, err := parseRipgrepLine(line)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// parseRipgrepLine splits a `path:line:text` record.
func parseRipgrepLine(line string) (Match, error) {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		return Match{}, errors.Errorf("malformed rg output %q", line)
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return Match{}, errors.Errorf("malformed rg line number in %q: %w", line, err)
	}
	return Match{File: parts[0], Line: n, Text: strings.TrimSuffix(parts[2], "\r")}, nil
}

// WalkSearcher scans the directory tree in process. It is slower than rg
// but has no external requirements.
type WalkSearcher struct{}

func (*WalkSearcher) Name() string { return WalkName }

func (*WalkSearcher) Search(ctx context.Context, q Query) ([]Match, error) {
	var matches []Match
	err := filepath.WalkDir(q.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !matchGlobs(q.Globs, q.Dir, path) {
			return nil
		}
		found, err := searchFile(path, q.Pattern)
		if err != nil {
			return err
		}
		matches = append(matches, found...)
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", q.Dir, err)
	}
	return matches, nil
}

func matchGlobs(globs []string, root, path string) bool {
	if len(globs) == 0 {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	for _, g := range globs {
		name := filepath.Base(path)
		if strings.Contains(g, "/") {
			name = filepath.ToSlash(rel)
		}
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

func searchFile(path, pattern string) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []Match
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimSuffix(sc.Text(), "\r")
		if strings.Contains(text, pattern) {
			matches = append(matches, Match{File: path, Line: n, Text: text})
		}
	}
	return matches, sc.Err()
}
