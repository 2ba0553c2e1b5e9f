package lex

import (
	"fmt"
)

// The list of tokens.
const (

	// Single char tokens are themselves.
	ADD       = '+'
	SUB       = '-'
	MUL       = '*'
	QUO       = '/'
	REM       = '%'
	AND       = '&'
	OR        = '|'
	XOR       = '^'
	QUESTION  = '?'
	LSS       = '<'
	GTR       = '>'
	ASSIGN    = '='
	NOT       = '!'
	BNOT      = '~'
	LPAREN    = '('
	LBRACK    = '['
	LBRACE    = '{'
	COMMA     = ','
	PERIOD    = '.'
	RPAREN    = ')'
	RBRACK    = ']'
	RBRACE    = '}'
	SEMICOLON = ';'
	COLON     = ':'

	ERROR = 10000 + iota
	EOF
	// Identifiers and basic type literals
	// (these tokens stand for classes of literals)
	IDENT          // main
	INT_CONSTANT   // 12345
	FLOAT_CONSTANT // 123.45
	CHAR_CONSTANT  // 'a'
	STRING         // "abc"

	SHL      // <<
	SHR      // >>
	LAND     // &&
	LOR      // ||
	ARROW    // ->
	EQL      // ==
	NEQ      // !=
	LEQ      // <=
	GEQ      // >=
	ELLIPSIS // ...

	// Keywords
	REGISTER
	EXTERN
	STATIC
	INLINE
	CONST
	VOLATILE
	RESTRICT
	STRUCT
	UNION
	ENUM
	VOID
	CHAR
	SHORT
	INT
	LONG
	FLOAT
	DOUBLE
	SIGNED
	UNSIGNED
	BOOL
)

var tokenKindToStr = [...]string{
	EOF:            "EOF",
	CHAR_CONSTANT:  "charconst",
	INT_CONSTANT:   "intconst",
	FLOAT_CONSTANT: "floatconst",
	IDENT:          "ident",
	STRING:         "string",
	ADD:            "'+'",
	SUB:            "'-'",
	MUL:            "'*'",
	QUO:            "'/'",
	REM:            "'%'",
	AND:            "'&'",
	OR:             "'|'",
	XOR:            "'^'",
	SHL:            "'<<'",
	SHR:            "'>>'",
	LAND:           "'&&'",
	LOR:            "'||'",
	ARROW:          "'->'",
	EQL:            "'=='",
	LSS:            "'<'",
	GTR:            "'>'",
	ASSIGN:         "'='",
	NOT:            "'!'",
	BNOT:           "'~'",
	NEQ:            "'!='",
	LEQ:            "'<='",
	GEQ:            "'>='",
	ELLIPSIS:       "'...'",
	LPAREN:         "'('",
	LBRACK:         "'['",
	LBRACE:         "'{'",
	COMMA:          "','",
	PERIOD:         "'.'",
	RPAREN:         "')'",
	RBRACK:         "']'",
	RBRACE:         "'}'",
	SEMICOLON:      "';'",
	COLON:          "':'",
	QUESTION:       "'?'",
	REGISTER:       "register",
	EXTERN:         "extern",
	STATIC:         "static",
	INLINE:         "inline",
	CONST:          "const",
	VOLATILE:       "volatile",
	RESTRICT:       "restrict",
	STRUCT:         "struct",
	UNION:          "union",
	ENUM:           "enum",
	VOID:           "void",
	CHAR:           "char",
	SHORT:          "short",
	INT:            "int",
	LONG:           "long",
	FLOAT:          "float",
	DOUBLE:         "double",
	SIGNED:         "signed",
	UNSIGNED:       "unsigned",
	BOOL:           "bool",
}

// Only the keywords that can appear in a declaration are recognised,
// everything else lexes as IDENT.
var keywordLUT = map[string]TokenKind{
	"register":   REGISTER,
	"extern":     EXTERN,
	"static":     STATIC,
	"inline":     INLINE,
	"const":      CONST,
	"volatile":   VOLATILE,
	"restrict":   RESTRICT,
	"__restrict": RESTRICT,
	"struct":     STRUCT,
	"union":      UNION,
	"enum":       ENUM,
	"void":       VOID,
	"char":       CHAR,
	"short":      SHORT,
	"int":        INT,
	"long":       LONG,
	"float":      FLOAT,
	"double":     DOUBLE,
	"signed":     SIGNED,
	"unsigned":   UNSIGNED,
	"bool":       BOOL,
	"_Bool":      BOOL,
}

type TokenKind uint32

func (tk TokenKind) String() string {
	if uint32(tk) >= uint32(len(tokenKindToStr)) {
		return "Unknown"
	}
	ret := tokenKindToStr[tk]
	if ret == "" {
		return "Unknown"
	}
	return ret
}

// FilePos is a location in a source file. Off is the byte offset from the
// start of the lexed text, Line and Col are 1 based.
type FilePos struct {
	File string
	Line int
	Col  int
	Off  int
}

func (pos FilePos) String() string {
	return fmt.Sprintf("%s:%d:%d", pos.File, pos.Line, pos.Col)
}

// Token represents a grouping of characters
// that provide semantic meaning in a C declaration.
// The token's source text is src[Pos.Off:End].
type Token struct {
	Kind TokenKind
	Val  string
	Pos  FilePos
	End  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s at %s", t.Val, t.Pos)
}
