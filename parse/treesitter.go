//go:build cgo

package parse

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"gitlab.com/tozd/go/errors"

	"github.com/andrewchambers/cstubgen/lex"
)

const haveTreeSitter = true

// TreeSitterParser parses declarations with tree-sitter-c.
type TreeSitterParser struct {
	lang *sitter.Language
}

func newTreeSitter() Parser {
	return &TreeSitterParser{lang: c.GetLanguage()}
}

func (*TreeSitterParser) Name() string { return TreeSitter }

func (ts *TreeSitterParser) Parse(ctx context.Context, file string, line int, src string) (*Tree, error) {
	source := []byte(src)

	// Parsers are not safe for concurrent use, so every call gets its own.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(ts.lang)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errors.Errorf("tree-sitter: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		bad := firstError(root)
		pos := lex.FilePos{File: file, Line: line, Col: 1}
		msg := "unexpected input"
		if bad != nil {
			pt := bad.StartPoint()
			pos.Line += int(pt.Row)
			pos.Col = int(pt.Column) + 1
			pos.Off = int(bad.StartByte())
			if bad.IsMissing() {
				msg = "missing " + bad.Type()
			} else {
				msg = "unexpected " + quoteSnippet(bad.Content(source))
			}
		}
		return nil, lex.ErrWithLoc(errors.Errorf("%w: %s", ErrSyntax, msg), pos)
	}
	return &Tree{Source: src, Root: convert(root, "")}, nil
}

// convert copies the named, non-comment part of a tree-sitter tree.
func convert(n *sitter.Node, field string) *Node {
	out := &Node{
		Kind:  n.Type(),
		Field: field,
		Start: int(n.StartByte()),
		End:   int(n.EndByte()),
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() || child.Type() == KindComment {
			continue
		}
		out.Children = append(out.Children, convert(child, n.FieldNameForChild(i)))
	}
	return out
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if bad := firstError(child); bad != nil {
			return bad
		}
	}
	return nil
}

func quoteSnippet(s string) string {
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return "'" + s + "'"
}
