package parse

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"

	"github.com/andrewchambers/cstubgen/lex"
)

// ErrSyntax is returned, wrapped in a lex.ErrorLoc, when a backend cannot
// parse a declaration.
var ErrSyntax = errors.Base("syntax error")

// Parser turns the text of a declaration into a syntax tree. file and line
// say where src starts and are only used to position errors.
type Parser interface {
	Name() string
	Parse(ctx context.Context, file string, line int, src string) (*Tree, error)
}

// Names of the available backends.
const (
	Auto       = "auto"
	Native     = "native"
	TreeSitter = "treesitter"
)

// Backends lists the backends compiled into this binary.
func Backends() []string {
	if haveTreeSitter {
		return []string{Native, TreeSitter}
	}
	return []string{Native}
}

// New returns the named backend. Auto prefers tree-sitter when it was
// compiled in.
func New(name string) (Parser, error) {
	switch name {
	case Auto, "":
		if haveTreeSitter {
			return newTreeSitter(), nil
		}
		return NativeParser{}, nil
	case Native:
		return NativeParser{}, nil
	case TreeSitter:
		if !haveTreeSitter {
			return nil, errors.Errorf("parser %q needs a cgo build", name)
		}
		return newTreeSitter(), nil
	}
	return nil, errors.Errorf("unknown parser %q", name)
}

// NativeParser is a recursive descent parser for C declarations. It covers
// the declaration subset found in library headers: specifiers, pointer,
// array and function declarators, abstract declarators and variadic
// parameter lists. The trees it builds use the same node kinds and fields
// as tree-sitter-c.
type NativeParser struct{}

func (NativeParser) Name() string { return Native }

func (NativeParser) Parse(ctx context.Context, file string, line int, src string) (tree *Tree, errRet error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	p := &parser{
		src: src,
		lx:  lex.Lex(file, line, src),
	}
	defer func() {
		if e := recover(); e != nil {
			peb := e.(parseErrorBreakOut) // Will re-panic if not a breakout.
			errRet = peb.err
		}
	}()
	p.next()
	p.next()
	root := p.parseTranslationUnit()
	return &Tree{Source: src, Root: root}, nil
}

type parser struct {
	src         string
	lx          *lex.Lexer
	curt, nextt *lex.Token
	prevEnd     int
}

type parseErrorBreakOut struct {
	err error
}

func (p *parser) errorPos(m string, pos lex.FilePos, vals ...interface{}) {
	err := errors.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(m, vals...))
	panic(parseErrorBreakOut{lex.ErrWithLoc(err, pos)})
}

func (p *parser) expect(k lex.TokenKind) {
	if p.curt.Kind != k {
		p.errorPos("expected %s got %s", p.curt.Pos, k, p.curt.Kind)
	}
	p.next()
}

func (p *parser) next() {
	if p.curt != nil {
		p.prevEnd = p.curt.End
	}
	p.curt = p.nextt
	t, err := p.lx.Next()
	if err != nil {
		var loc lex.ErrorLoc
		if errors.As(err, &loc) {
			p.errorPos("%s", loc.Pos, loc.Err)
		}
		panic(parseErrorBreakOut{errors.Errorf("%w: %s", ErrSyntax, err)})
	}
	p.nextt = t
}

// leaf makes a node for the current token and advances past it.
func (p *parser) leaf(kind string) *Node {
	n := &Node{Kind: kind, Start: p.curt.Pos.Off, End: p.curt.End}
	p.next()
	return n
}

func (p *parser) parseTranslationUnit() *Node {
	root := &Node{Kind: KindTranslationUnit, End: len(p.src)}
	for p.curt.Kind != lex.EOF {
		root.Children = append(root.Children, p.parseDeclaration())
	}
	return root
}

func (p *parser) parseDeclaration() *Node {
	n := &Node{Kind: KindDeclaration, Start: p.curt.Pos.Off}
	if !p.parseDeclarationSpecifiers(n) {
		p.errorPos("expected a type specifier got %s", p.curt.Pos, p.curt.Kind)
	}
	for {
		d := p.parseDeclarator(false)
		d.Field = FieldDeclarator
		n.Children = append(n.Children, d)
		if p.curt.Kind != ',' {
			break
		}
		p.next()
	}
	if p.curt.Kind != ';' {
		p.errorPos("expected ',' or ';'", p.curt.Pos)
	}
	p.expect(';')
	n.End = p.prevEnd
	return n
}

func (p *parser) parseParameterDeclaration() *Node {
	n := &Node{Kind: KindParameterDeclaration, Start: p.curt.Pos.Off}
	if !p.parseDeclarationSpecifiers(n) {
		p.errorPos("expected a parameter type got %s", p.curt.Pos, p.curt.Kind)
	}
	if d := p.parseDeclarator(true); d != nil {
		d.Field = FieldDeclarator
		n.Children = append(n.Children, d)
	}
	n.End = p.prevEnd
	return n
}

// parseDeclarationSpecifiers appends the specifier nodes to n and reports
// whether a type specifier was among them.
func (p *parser) parseDeclarationSpecifiers(n *Node) bool {
	seenType := false
	typeNode := func(c *Node) {
		if seenType {
			p.errorPos("two or more data types in declaration specifiers", p.curt.Pos)
		}
		seenType = true
		c.Field = FieldType
		n.Children = append(n.Children, c)
	}
	for {
		switch p.curt.Kind {
		case lex.REGISTER, lex.EXTERN, lex.STATIC, lex.INLINE:
			n.Children = append(n.Children, p.leaf(KindStorageClassSpecifier))
		case lex.CONST, lex.VOLATILE, lex.RESTRICT:
			n.Children = append(n.Children, p.leaf(KindTypeQualifier))
		case lex.SIGNED, lex.UNSIGNED, lex.SHORT, lex.LONG:
			if seenType {
				p.errorPos("%s after the type", p.curt.Pos, p.curt.Kind)
			}
			typeNode(p.parseSizedTypeSpecifier())
		case lex.VOID, lex.CHAR, lex.INT, lex.FLOAT, lex.DOUBLE, lex.BOOL:
			typeNode(p.leaf(KindPrimitiveType))
		case lex.STRUCT:
			typeNode(p.parseTagged(KindStructSpecifier))
		case lex.UNION:
			typeNode(p.parseTagged(KindUnionSpecifier))
		case lex.ENUM:
			typeNode(p.parseTagged(KindEnumSpecifier))
		case lex.IDENT:
			if seenType {
				return true
			}
			if isPrimitiveName(p.curt.Val) {
				typeNode(p.leaf(KindPrimitiveType))
			} else {
				typeNode(p.leaf(KindTypeIdentifier))
			}
		default:
			return seenType
		}
	}
}

// parseSizedTypeSpecifier reads a run of signed, unsigned, short and long
// with an optional primitive type, e.g. `unsigned long int`.
func (p *parser) parseSizedTypeSpecifier() *Node {
	n := &Node{Kind: KindSizedTypeSpecifier, Start: p.curt.Pos.Off}
	for {
		switch p.curt.Kind {
		case lex.SIGNED, lex.UNSIGNED, lex.SHORT, lex.LONG:
			p.next()
			continue
		case lex.CHAR, lex.INT, lex.DOUBLE:
			if len(n.Children) == 0 {
				c := p.leaf(KindPrimitiveType)
				c.Field = FieldType
				n.Children = append(n.Children, c)
				continue
			}
		}
		break
	}
	n.End = p.prevEnd
	return n
}

// parseTagged reads struct, union and enum specifiers. A body is skipped
// as a single opaque node.
func (p *parser) parseTagged(kind string) *Node {
	n := &Node{Kind: kind, Start: p.curt.Pos.Off}
	p.next()
	if p.curt.Kind == lex.IDENT {
		c := p.leaf(KindTypeIdentifier)
		c.Field = "name"
		n.Children = append(n.Children, c)
	}
	if p.curt.Kind == '{' {
		bodyKind := "field_declaration_list"
		if kind == KindEnumSpecifier {
			bodyKind = "enumerator_list"
		}
		body := &Node{Kind: bodyKind, Field: "body", Start: p.curt.Pos.Off}
		p.skipBalanced('{', '}')
		body.End = p.prevEnd
		n.Children = append(n.Children, body)
	}
	if len(n.Children) == 0 {
		p.errorPos("expected a tag or body after %s", p.curt.Pos, kind)
	}
	n.End = p.prevEnd
	return n
}

func (p *parser) skipBalanced(open, close lex.TokenKind) {
	depth := 0
	for {
		switch p.curt.Kind {
		case open:
			depth++
		case close:
			depth--
		case lex.EOF:
			p.errorPos("unbalanced %s", p.curt.Pos, open)
		}
		p.next()
		if depth == 0 {
			return
		}
	}
}

// Declarator
// ----------
//
// parseDeclarator reads a declarator. When abstract is true the identifier
// may be missing, and nil is returned if there is no declarator at all.
//
// Pointer declarators bind looser than the array and function suffixes, so
// `*a[3]` is a pointer declarator wrapping an array declarator. Node kinds
// get the abstract_ prefix when no identifier is inside them.
func (p *parser) parseDeclarator(abstract bool) *Node {
	switch p.curt.Kind {
	case '*':
		n := &Node{Start: p.curt.Pos.Off}
		p.next()
		for p.curt.Kind == lex.CONST || p.curt.Kind == lex.VOLATILE || p.curt.Kind == lex.RESTRICT {
			n.Children = append(n.Children, p.leaf(KindTypeQualifier))
		}
		inner := p.parseDeclarator(abstract)
		n.Kind = KindPointerDeclarator
		if inner == nil || isAbstract(inner) {
			n.Kind = KindAbstractPointerDeclarator
		}
		if inner != nil {
			inner.Field = FieldDeclarator
			n.Children = append(n.Children, inner)
		}
		n.End = p.prevEnd
		return n
	case '(':
		if abstract && p.nextt.Kind != '*' && p.nextt.Kind != '(' {
			// A parameter list, as in `void (int)`.
			return p.parseDeclaratorTail(nil)
		}
		start := p.curt.Pos.Off
		p.next()
		inner := p.parseDeclarator(abstract)
		if inner == nil {
			p.errorPos("expected a declarator got %s", p.curt.Pos, p.curt.Kind)
		}
		p.expect(')')
		n := &Node{Kind: KindParenthesizedDeclarator, Start: start, End: p.prevEnd, Children: []*Node{inner}}
		if isAbstract(inner) {
			n.Kind = KindAbstractParenthesizedDeclr
		}
		return p.parseDeclaratorTail(n)
	case lex.IDENT:
		return p.parseDeclaratorTail(p.leaf(KindIdentifier))
	default:
		if abstract {
			return p.parseDeclaratorTail(nil)
		}
		p.errorPos("expected ident, '(' or '*' but got %s", p.curt.Pos, p.curt.Kind)
	}
	panic("unreachable")
}

func (p *parser) parseDeclaratorTail(base *Node) *Node {
	ret := base
	for {
		start := p.curt.Pos.Off
		if ret != nil {
			start = ret.Start
		}
		abstract := ret == nil || isAbstract(ret)
		switch p.curt.Kind {
		case '[':
			n := &Node{Kind: KindArrayDeclarator, Start: start}
			if abstract {
				n.Kind = KindAbstractArrayDeclarator
			}
			if ret != nil {
				ret.Field = FieldDeclarator
				n.Children = append(n.Children, ret)
			}
			p.next()
			for p.curt.Kind == lex.CONST || p.curt.Kind == lex.VOLATILE || p.curt.Kind == lex.RESTRICT || p.curt.Kind == lex.STATIC {
				n.Children = append(n.Children, p.leaf(KindTypeQualifier))
			}
			if p.curt.Kind != ']' {
				n.Children = append(n.Children, p.parseArraySize())
			}
			p.expect(']')
			n.End = p.prevEnd
			ret = n
		case '(':
			n := &Node{Kind: KindFunctionDeclarator, Start: start}
			if abstract {
				n.Kind = KindAbstractFunctionDeclarator
			}
			if ret != nil {
				ret.Field = FieldDeclarator
				n.Children = append(n.Children, ret)
			}
			params := p.parseParameterList()
			params.Field = FieldParameters
			n.Children = append(n.Children, params)
			n.End = p.prevEnd
			ret = n
		default:
			return ret
		}
	}
}

func (p *parser) parseParameterList() *Node {
	n := &Node{Kind: KindParameterList, Start: p.curt.Pos.Off}
	p.expect('(')
	if p.curt.Kind != ')' {
		for {
			if p.curt.Kind == lex.ELLIPSIS {
				n.Children = append(n.Children, p.leaf(KindVariadicParameter))
			} else {
				n.Children = append(n.Children, p.parseParameterDeclaration())
			}
			if p.curt.Kind == ',' {
				p.next()
				continue
			}
			break
		}
	}
	p.expect(')')
	n.End = p.prevEnd
	return n
}

// parseArraySize reads the constant expression between brackets. Only its
// extent matters, so anything but a lone literal or name becomes a generic
// expression node.
func (p *parser) parseArraySize() *Node {
	n := &Node{Kind: "expression", Field: "size", Start: p.curt.Pos.Off}
	first := p.curt.Kind
	count := 0
	depth := 0
	for depth > 0 || p.curt.Kind != ']' {
		switch p.curt.Kind {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case lex.EOF, ';':
			p.errorPos("unterminated array size", p.curt.Pos)
		}
		p.next()
		count++
	}
	if count == 1 {
		switch first {
		case lex.INT_CONSTANT, lex.FLOAT_CONSTANT:
			n.Kind = "number_literal"
		case lex.IDENT:
			n.Kind = KindIdentifier
		}
	}
	n.End = p.prevEnd
	return n
}

func isAbstract(n *Node) bool {
	switch n.Kind {
	case KindAbstractPointerDeclarator, KindAbstractArrayDeclarator,
		KindAbstractFunctionDeclarator, KindAbstractParenthesizedDeclr:
		return true
	}
	return false
}

// tree-sitter-c lexes these typedef names as primitive types.
var primitiveNames = map[string]bool{
	"size_t":      true,
	"ssize_t":     true,
	"ptrdiff_t":   true,
	"intptr_t":    true,
	"uintptr_t":   true,
	"charptr_t":   true,
	"nullptr_t":   true,
	"max_align_t": true,
	"int8_t":      true,
	"int16_t":     true,
	"int32_t":     true,
	"int64_t":     true,
	"uint8_t":     true,
	"uint16_t":    true,
	"uint32_t":    true,
	"uint64_t":    true,
	"char8_t":     true,
	"char16_t":    true,
	"char32_t":    true,
}

func isPrimitiveName(s string) bool {
	return primitiveNames[s]
}
