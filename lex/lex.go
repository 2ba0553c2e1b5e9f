package lex

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"gitlab.com/tozd/go/errors"
)

// Lexer turns the text of a single C declaration into tokens.
//
// Unlike a translation unit lexer there is no preprocessing: directives are
// rejected and comments are skipped. Every token records the byte range it
// came from so callers can slice the original text back out.
type Lexer struct {
	src       string
	pos       FilePos
	lastPos   FilePos
	markedPos FilePos
	lastChar  rune
	// Set to true if we have hit the end of the text.
	eof bool
	tok *Token

	err error
}

type breakout struct{}

// Lex returns a lexer over src. fname and line describe where src starts in
// its file and are only used for positions in tokens and errors.
func Lex(fname string, line int, src string) *Lexer {
	lx := new(Lexer)
	lx.src = src
	lx.pos.File = fname
	lx.pos.Line = line
	lx.pos.Col = 1
	lx.markedPos = lx.pos
	lx.lastPos = lx.pos
	return lx
}

// Next returns the next token. Once an error has been returned every later
// call returns the same error.
func (lx *Lexer) Next() (tok *Token, err error) {
	if lx.err != nil {
		return &Token{Kind: ERROR, Pos: lx.pos, End: lx.pos.Off}, lx.err
	}
	defer func() {
		if e := recover(); e != nil {
			_ = e.(*breakout) // Will re-panic if not a breakout.
			tok = &Token{Kind: ERROR, Pos: lx.pos, End: lx.pos.Off}
			err = lx.err
		}
	}()
	lx.tok = nil
	for lx.tok == nil {
		lx.lexOne()
	}
	return lx.tok, nil
}

// All lexes the remaining text, the EOF token is not included.
func (lx *Lexer) All() ([]*Token, error) {
	var toks []*Token
	for {
		t, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if t.Kind == EOF {
			return toks, nil
		}
		toks = append(toks, t)
	}
}

func (lx *Lexer) markPos() {
	lx.markedPos = lx.pos
}

func (lx *Lexer) sendTok(kind TokenKind, val string) {
	lx.tok = &Token{
		Kind: kind,
		Val:  val,
		Pos:  lx.markedPos,
		End:  lx.pos.Off,
	}
}

func (lx *Lexer) unreadRune() {
	lx.pos = lx.lastPos
	lx.eof = false
}

func (lx *Lexer) readRune() (rune, bool) {
	lx.lastPos = lx.pos
	if lx.pos.Off >= len(lx.src) {
		lx.eof = true
		lx.lastChar = 0
		return 0, true
	}
	r, size := utf8.DecodeRuneInString(lx.src[lx.pos.Off:])
	lx.pos.Off += size
	switch r {
	case '\n':
		lx.pos.Line += 1
		lx.pos.Col = 1
	case '\t':
		lx.pos.Col += 4
	default:
		lx.pos.Col += 1
	}
	lx.lastChar = r
	return r, false
}

func (lx *Lexer) peekString(s string) bool {
	return strings.HasPrefix(lx.src[lx.pos.Off:], s)
}

func (lx *Lexer) Error(e string) {
	lx.err = ErrWithLoc(errors.New(e), lx.pos)
	panic(&breakout{})
}

func (lx *Lexer) lexOne() {
	lx.markPos()
	first, eof := lx.readRune()
	if eof {
		lx.sendTok(EOF, "")
		return
	}
	switch {
	case isAlpha(first) || first == '_':
		lx.unreadRune()
		lx.readIdentOrKeyword()
	case isNumeric(first):
		lx.unreadRune()
		lx.readConstant()
	case isWhiteSpace(first):
		lx.unreadRune()
		lx.skipWhiteSpace()
	default:
		switch first {
		case '!':
			lx.twoCharTok('!', NOT, alt{"=", NEQ})
		case '?':
			lx.sendTok(QUESTION, "?")
		case ':':
			lx.sendTok(COLON, ":")
		case '\'':
			lx.unreadRune()
			lx.readQuoted('\'', CHAR_CONSTANT)
		case '"':
			lx.unreadRune()
			lx.readQuoted('"', STRING)
		case '(':
			lx.sendTok(LPAREN, "(")
		case ')':
			lx.sendTok(RPAREN, ")")
		case '{':
			lx.sendTok(LBRACE, "{")
		case '}':
			lx.sendTok(RBRACE, "}")
		case '[':
			lx.sendTok(LBRACK, "[")
		case ']':
			lx.sendTok(RBRACK, "]")
		case '<':
			lx.twoCharTok('<', LSS, alt{"<", SHL}, alt{"=", LEQ})
		case '>':
			lx.twoCharTok('>', GTR, alt{">", SHR}, alt{"=", GEQ})
		case '-':
			lx.twoCharTok('-', SUB, alt{">", ARROW})
		case '&':
			lx.twoCharTok('&', AND, alt{"&", LAND})
		case '|':
			lx.twoCharTok('|', OR, alt{"|", LOR})
		case '=':
			lx.twoCharTok('=', ASSIGN, alt{"=", EQL})
		case '+':
			lx.sendTok(ADD, "+")
		case '~':
			lx.sendTok(BNOT, "~")
		case '^':
			lx.sendTok(XOR, "^")
		case '%':
			lx.sendTok(REM, "%")
		case ',':
			lx.sendTok(COMMA, ",")
		case '*':
			lx.sendTok(MUL, "*")
		case ';':
			lx.sendTok(SEMICOLON, ";")
		case '.':
			if lx.peekString("..") {
				lx.readRune()
				lx.readRune()
				lx.sendTok(ELLIPSIS, "...")
				return
			}
			lx.sendTok(PERIOD, ".")
		case '\\':
			r, _ := lx.readRune()
			if r == '\n' {
				break
			}
			lx.Error("misplaced '\\'.")
		case '/':
			lx.readSlash()
		case '#':
			lx.Error("preprocessor directive in declaration.")
		default:
			lx.Error(fmt.Sprintf("unexpected character %q", first))
		}
	}
}

type alt struct {
	suffix string
	kind   TokenKind
}

// twoCharTok sends single unless one of alts follows the character just read.
func (lx *Lexer) twoCharTok(first rune, single TokenKind, alts ...alt) {
	for _, a := range alts {
		if lx.peekString(a.suffix) {
			lx.readRune()
			lx.sendTok(a.kind, string(first)+a.suffix)
			return
		}
	}
	lx.sendTok(single, string(first))
}

// readSlash handles comments and division after a '/' has been read.
func (lx *Lexer) readSlash() {
	second, _ := lx.readRune()
	switch second {
	case '*':
		for {
			c, eof := lx.readRune()
			if eof {
				lx.Error("unclosed comment.")
			}
			if c == '*' && lx.peekString("/") {
				lx.readRune()
				return
			}
		}
	case '/':
		for {
			c, eof := lx.readRune()
			if c == '\n' || eof {
				return
			}
		}
	default:
		lx.unreadRune()
		lx.sendTok(QUO, "/")
	}
}

func (lx *Lexer) readIdentOrKeyword() {
	var buff bytes.Buffer
	lx.markPos()
	first, _ := lx.readRune()
	if !isValidIdentStart(first) {
		panic("internal error")
	}
	buff.WriteRune(first)
	for {
		b, eof := lx.readRune()
		if !eof && isValidIdentTail(b) {
			buff.WriteRune(b)
			continue
		}
		if !eof {
			lx.unreadRune()
		}
		str := buff.String()
		tokType, ok := keywordLUT[str]
		if !ok {
			tokType = IDENT
		}
		lx.sendTok(tokType, str)
		return
	}
}

func (lx *Lexer) skipWhiteSpace() {
	for {
		r, eof := lx.readRune()
		if eof {
			return
		}
		if !isWhiteSpace(r) {
			lx.unreadRune()
			return
		}
	}
}

// readConstant reads an integer or floating constant. Declarations only
// contain them inside array sizes, so the suffix grammar is not validated.
func (lx *Lexer) readConstant() {
	var buff bytes.Buffer
	lx.markPos()
	kind := TokenKind(INT_CONSTANT)
	hex := false
	for {
		r, eof := lx.readRune()
		if eof {
			break
		}
		if !isValidIdentTail(r) && r != '.' {
			lx.unreadRune()
			break
		}
		switch {
		case r == 'x' || r == 'X':
			hex = true
		case r == '.':
			kind = FLOAT_CONSTANT
		case (r == 'e' || r == 'E') && !hex:
			kind = FLOAT_CONSTANT
			buff.WriteRune(r)
			sign, _ := lx.readRune()
			if sign != '+' && sign != '-' {
				lx.unreadRune()
				continue
			}
			r = sign
		}
		buff.WriteRune(r)
	}
	lx.sendTok(kind, buff.String())
}

func (lx *Lexer) readQuoted(quote rune, kind TokenKind) {
	var buff bytes.Buffer
	lx.markPos()
	lx.readRune()
	buff.WriteRune(quote)
	escaped := false
	for {
		r, eof := lx.readRune()
		if eof {
			lx.Error(fmt.Sprintf("eof in %s literal", kind))
		}
		buff.WriteRune(r)
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == quote:
			lx.sendTok(kind, buff.String())
			return
		}
	}
}

func isValidIdentTail(b rune) bool {
	return isValidIdentStart(b) || isNumeric(b) || b == '$'
}

func isValidIdentStart(b rune) bool {
	return b == '_' || isAlpha(b)
}

func isAlpha(b rune) bool {
	if b >= 'a' && b <= 'z' {
		return true
	}
	if b >= 'A' && b <= 'Z' {
		return true
	}
	return false
}

func isWhiteSpace(b rune) bool {
	return b == ' ' || b == '\r' || b == '\n' || b == '\t' || b == '\f'
}

func isNumeric(b rune) bool {
	if b >= '0' && b <= '9' {
		return true
	}
	return false
}
