// Package decl rebuilds the parameter list of an exported C function from
// its header declaration.
package decl

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/andrewchambers/cstubgen/lex"
	"github.com/andrewchambers/cstubgen/locate"
	"github.com/andrewchambers/cstubgen/parse"
)

var (
	ErrUnsupportedDeclaratorShape = errors.Base("unsupported declarator shape")
	ErrMissingFunctionDeclarator  = errors.Base("expected exactly one function declarator")
)

// Shape is how a parameter is declared. It decides both how the parameter
// type is spelled and how a harness local is initialized.
type Shape interface {
	shape()
}

// Primitive is a parameter declared by a bare primitive type, as in
// `int f(int)`.
type Primitive struct{}

// Identifier is a named parameter that is not a pointer.
type Identifier struct{}

// Pointer is a pointer of the given depth.
type Pointer struct {
	Depth int
}

// Array is an array parameter. It decays to a pointer whose depth counts
// the array itself plus any stars in the element type.
type Array struct {
	Depth int
}

// FunctionPointer is a pointer to a function. Params is the parameter list
// text, parentheses included, copied verbatim from the header.
type FunctionPointer struct {
	Params string
}

func (Primitive) shape()       {}
func (Identifier) shape()      {}
func (Pointer) shape()         {}
func (Array) shape()           {}
func (FunctionPointer) shape() {}

// Parameter is a reconstructed parameter. Type is the base type without
// the stars recorded in Shape. For a FunctionPointer Type is the return
// type.
type Parameter struct {
	Type  string
	Name  string
	Shape Shape
}

// Decl returns the C declaration of the parameter, e.g. `uv_buf_t **arg1`.
func (p Parameter) Decl() string {
	switch s := p.Shape.(type) {
	case FunctionPointer:
		sep := " "
		if strings.HasSuffix(p.Type, "*") {
			sep = ""
		}
		return p.Type + sep + "(*" + p.Name + ")" + s.Params
	case Pointer:
		return p.Type + " " + strings.Repeat("*", s.Depth) + p.Name
	case Array:
		return p.Type + " " + strings.Repeat("*", s.Depth) + p.Name
	default:
		return p.Type + " " + p.Name
	}
}

// Depth is the number of pointer levels, arrays included.
func (p Parameter) Depth() int {
	switch s := p.Shape.(type) {
	case Pointer:
		return s.Depth
	case Array:
		return s.Depth
	case FunctionPointer:
		return 1
	}
	return 0
}

// Named builds a parameter from authored type text such as `char**`.
// Trailing stars become the pointer depth.
func Named(typ, name string) Parameter {
	base := strings.TrimSpace(typ)
	depth := 0
	for strings.HasSuffix(base, "*") {
		base = strings.TrimSpace(strings.TrimSuffix(base, "*"))
		depth++
	}
	if depth == 0 {
		return Parameter{Type: base, Name: name, Shape: Identifier{}}
	}
	return Parameter{Type: base, Name: name, Shape: Pointer{Depth: depth}}
}

// ArgName is the synthesized name of the i-th reconstructed parameter.
func ArgName(i int) string {
	return fmt.Sprintf("arg%d", i)
}

// StripMarker blanks out every whole-word occurrence of marker. Byte
// offsets into the text are unchanged.
func StripMarker(text, marker string) string {
	if marker == "" {
		return text
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(marker) + `\b`)
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
}

// Parse parses raw with p and classifies each parameter. The original
// parameter names are dropped and replaced with arg0, arg1 and so on.
func Parse(ctx context.Context, p parse.Parser, raw locate.RawDeclaration, marker string) ([]Parameter, error) {
	src := StripMarker(raw.Text, marker)
	tree, err := p.Parse(ctx, raw.File, raw.Line, src)
	if err != nil {
		return nil, rebase(err, raw)
	}
	c := &classifier{tree: tree, raw: raw}
	fn, err := c.functionDeclarator()
	if err != nil {
		return nil, err
	}
	return c.parameters(fn.ChildByField(parse.FieldParameters))
}

// rebase moves positions on the first line of a declaration to the
// column the declaration starts at in its file.
func rebase(err error, raw locate.RawDeclaration) error {
	var loc lex.ErrorLoc
	if !errors.As(err, &loc) || loc.Pos.Line != raw.Line {
		return err
	}
	loc.Pos.Col += raw.Col - 1
	return loc
}

type classifier struct {
	tree *parse.Tree
	raw  locate.RawDeclaration
}

func (c *classifier) errorAt(n *parse.Node, err error) error {
	pos := lex.PosAt(c.raw.Pos(), c.tree.Source, n.Start)
	return lex.ErrWithLoc(err, pos)
}

// functionDeclarator finds the function declarator of the top level
// declaration, looking through pointer declarators for functions that
// return pointers.
func (c *classifier) functionDeclarator() (*parse.Node, error) {
	var found []*parse.Node
	for _, top := range c.tree.Root.Children {
		if top.Kind != parse.KindDeclaration {
			continue
		}
		for _, d := range top.Children {
			if d.Field != parse.FieldDeclarator {
				continue
			}
			for d != nil && d.Kind == parse.KindPointerDeclarator {
				d = d.ChildByField(parse.FieldDeclarator)
			}
			if d != nil && d.Kind == parse.KindFunctionDeclarator {
				found = append(found, d)
			}
		}
	}
	if len(found) != 1 {
		err := errors.WithDetails(ErrMissingFunctionDeclarator, "found", len(found))
		return nil, c.errorAt(c.tree.Root, err)
	}
	return found[0], nil
}

func (c *classifier) parameters(list *parse.Node) ([]Parameter, error) {
	if list == nil {
		return nil, c.errorAt(c.tree.Root, errors.WithDetails(ErrMissingFunctionDeclarator, "found", 0))
	}
	var params []Parameter
	for _, n := range list.Children {
		if n.Kind != parse.KindParameterDeclaration {
			// Variadic parameters stay in the prototype only.
			continue
		}
		last := n.LastChild()
		if last.Kind == parse.KindPrimitiveType && c.tree.Text(n) == "void" {
			return nil, nil
		}
		p, err := c.classify(n, last, ArgName(len(params)))
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func (c *classifier) classify(n, last *parse.Node, name string) (Parameter, error) {
	switch last.Kind {
	case parse.KindPrimitiveType:
		return Parameter{Type: c.join(n.Children), Name: name, Shape: Primitive{}}, nil
	case parse.KindIdentifier,
		parse.KindPointerDeclarator, parse.KindAbstractPointerDeclarator,
		parse.KindArrayDeclarator, parse.KindAbstractArrayDeclarator,
		parse.KindFunctionDeclarator, parse.KindAbstractFunctionDeclarator,
		parse.KindParenthesizedDeclarator, parse.KindAbstractParenthesizedDeclr:
		return c.declarator(n, last, name)
	default:
		return Parameter{}, c.unsupported(last)
	}
}

// declarator walks the declarator chain from the outside in, counting
// pointer levels. An array decays and counts as one level. Only an array
// innermost in the chain decays to a plain pointer, so an array of arrays
// or a pointer to an array is unsupported.
func (c *classifier) declarator(n, last *parse.Node, name string) (Parameter, error) {
	base := c.join(n.Children[:len(n.Children)-1])
	depth := 0
	array := false
	for d := last; d != nil; {
		switch d.Kind {
		case parse.KindPointerDeclarator, parse.KindAbstractPointerDeclarator:
			if array {
				return Parameter{}, c.unsupported(d)
			}
			depth++
			d = d.ChildByField(parse.FieldDeclarator)
		case parse.KindArrayDeclarator, parse.KindAbstractArrayDeclarator:
			if array {
				return Parameter{}, c.unsupported(d)
			}
			depth++
			array = true
			d = d.ChildByField(parse.FieldDeclarator)
		case parse.KindParenthesizedDeclarator, parse.KindAbstractParenthesizedDeclr:
			d = d.LastChild()
		case parse.KindIdentifier:
			d = nil
		case parse.KindFunctionDeclarator, parse.KindAbstractFunctionDeclarator:
			if array {
				return Parameter{}, c.unsupported(d)
			}
			return c.functionPointer(d, base, depth, name)
		default:
			return Parameter{}, c.unsupported(d)
		}
	}
	switch {
	case array:
		return Parameter{Type: base, Name: name, Shape: Array{Depth: depth}}, nil
	case depth > 0:
		return Parameter{Type: base, Name: name, Shape: Pointer{Depth: depth}}, nil
	default:
		return Parameter{Type: base, Name: name, Shape: Identifier{}}, nil
	}
}

// functionPointer handles `ret (*name)(params)`. Stars counted before the
// function declarator belong to the return type. The declarator inside
// must be a single pointer, or nothing for a parameter of function type.
func (c *classifier) functionPointer(fn *parse.Node, base string, depth int, name string) (Parameter, error) {
	ret := base
	if depth > 0 {
		ret += " " + strings.Repeat("*", depth)
	}
	inner := fn.ChildByField(parse.FieldDeclarator)
	for inner != nil && (inner.Kind == parse.KindParenthesizedDeclarator || inner.Kind == parse.KindAbstractParenthesizedDeclr) {
		inner = inner.LastChild()
	}
	if inner != nil {
		switch inner.Kind {
		case parse.KindPointerDeclarator, parse.KindAbstractPointerDeclarator:
			if next := inner.ChildByField(parse.FieldDeclarator); next != nil && next.Kind != parse.KindIdentifier {
				return Parameter{}, c.unsupported(next)
			}
		case parse.KindIdentifier:
		default:
			return Parameter{}, c.unsupported(inner)
		}
	}
	params := fn.ChildByField(parse.FieldParameters)
	if params == nil {
		return Parameter{}, c.unsupported(fn)
	}
	return Parameter{Type: ret, Name: name, Shape: FunctionPointer{Params: c.tree.Text(params)}}, nil
}

func (c *classifier) unsupported(n *parse.Node) error {
	err := errors.WithDetails(ErrUnsupportedDeclaratorShape, "kind", n.Kind, "text", c.tree.Text(n))
	return c.errorAt(n, err)
}

func (c *classifier) join(nodes []*parse.Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		parts = append(parts, c.tree.Text(n))
	}
	return strings.Join(parts, " ")
}
