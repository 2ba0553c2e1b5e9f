package parse

import (
	"strings"
)

// Node kinds. The names follow the tree-sitter C grammar so that trees from
// either backend can be walked by the same code.
const (
	KindTranslationUnit             = "translation_unit"
	KindDeclaration                 = "declaration"
	KindFunctionDeclarator          = "function_declarator"
	KindAbstractFunctionDeclarator  = "abstract_function_declarator"
	KindParameterList               = "parameter_list"
	KindParameterDeclaration        = "parameter_declaration"
	KindVariadicParameter           = "variadic_parameter"
	KindPointerDeclarator           = "pointer_declarator"
	KindAbstractPointerDeclarator   = "abstract_pointer_declarator"
	KindArrayDeclarator             = "array_declarator"
	KindAbstractArrayDeclarator     = "abstract_array_declarator"
	KindParenthesizedDeclarator     = "parenthesized_declarator"
	KindAbstractParenthesizedDeclr  = "abstract_parenthesized_declarator"
	KindIdentifier                  = "identifier"
	KindPrimitiveType               = "primitive_type"
	KindSizedTypeSpecifier          = "sized_type_specifier"
	KindTypeIdentifier              = "type_identifier"
	KindTypeQualifier               = "type_qualifier"
	KindStorageClassSpecifier       = "storage_class_specifier"
	KindStructSpecifier             = "struct_specifier"
	KindUnionSpecifier              = "union_specifier"
	KindEnumSpecifier               = "enum_specifier"
	KindComment                     = "comment"
	KindError                       = "ERROR"
)

// Field names used on children.
const (
	FieldDeclarator = "declarator"
	FieldParameters = "parameters"
	FieldType       = "type"
)

// Node is a named syntax node. Start and End are byte offsets into the
// source the tree was parsed from. Anonymous tokens (punctuation, keywords
// that are not nodes of their own) are not represented.
type Node struct {
	Kind     string
	Field    string
	Start    int
	End      int
	Children []*Node
}

// ChildByField returns the first child carrying the given field name.
func (n *Node) ChildByField(field string) *Node {
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// LastChild returns the last child or nil.
func (n *Node) LastChild() *Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// Walk calls fn for n and every descendant in pre-order, skipping the
// children of any node for which fn returns false.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Tree is the parse of a single declaration.
type Tree struct {
	Source string
	Root   *Node
}

// Text returns the source text covered by n.
func (t *Tree) Text(n *Node) string {
	return t.Source[n.Start:n.End]
}

// String renders the tree as an s-expression in the style of tree-sitter,
// which is handy for tests and debugging.
func (t *Tree) String() string {
	var sb strings.Builder
	writeSexp(&sb, t.Root)
	return sb.String()
}

func writeSexp(sb *strings.Builder, n *Node) {
	if n.Field != "" {
		sb.WriteString(n.Field)
		sb.WriteString(": ")
	}
	sb.WriteString("(")
	sb.WriteString(n.Kind)
	for _, c := range n.Children {
		sb.WriteString(" ")
		writeSexp(sb, c)
	}
	sb.WriteString(")")
}
