package lex

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenDump(t *testing.T, src string) []string {
	t.Helper()
	lx := Lex("decl.h", 1, src)
	var out []string
	for {
		tok, err := lx.Next()
		require.NoError(t, err)
		out = append(out, fmt.Sprintf("%s:%s:%d:%d", tok.Kind, tok.Val, tok.Pos.Line, tok.Pos.Col))
		if tok.Kind == EOF {
			return out
		}
	}
}

func TestLexDeclaration(t *testing.T) {
	got := tokenDump(t, "int uv_accept(uv_stream_t* server,\n    const char *p[3]);")
	want := []string{
		"int:int:1:1",
		"ident:uv_accept:1:5",
		"'(':(:1:14",
		"ident:uv_stream_t:1:15",
		"'*':*:1:26",
		"ident:server:1:28",
		"',':,:1:34",
		"const:const:2:5",
		"char:char:2:11",
		"'*':*:2:16",
		"ident:p:2:17",
		"'[':[:2:18",
		"intconst:3:2:19",
		"']':]:2:20",
		"')':):2:21",
		"';':;:2:22",
		"EOF::2:23",
	}
	assert.Equal(t, want, got)
}

func TestLexOffsetsSliceSource(t *testing.T) {
	src := "void (*cb)(int, ...); /* trailing */"
	toks, err := Lex("decl.h", 10, src).All()
	require.NoError(t, err)
	var vals []string
	for _, tok := range toks {
		assert.Equal(t, tok.Val, src[tok.Pos.Off:tok.End], "token %s", tok)
		assert.Equal(t, 10, tok.Pos.Line)
		vals = append(vals, tok.Val)
	}
	assert.Equal(t, "void ( * cb ) ( int , ... ) ;", strings.Join(vals, " "))
}

func TestLexSkipsComments(t *testing.T) {
	got := tokenDump(t, "uv_buf_t* bufs[/*count*/], // tail\nint")
	assert.Equal(t, []string{
		"ident:uv_buf_t:1:1",
		"'*':*:1:9",
		"ident:bufs:1:11",
		"'[':[:1:15",
		"']':]:1:25",
		"',':,:1:26",
		"int:int:2:1",
		"EOF::2:4",
	}, got)
}

var constantCases = []struct {
	src  string
	kind TokenKind
	val  string
}{
	{"3", INT_CONSTANT, "3"},
	{"0x1F", INT_CONSTANT, "0x1F"},
	{"16u", INT_CONSTANT, "16u"},
	{"1.5", FLOAT_CONSTANT, "1.5"},
	{"1e-3", FLOAT_CONSTANT, "1e-3"},
	{"0x1e", INT_CONSTANT, "0x1e"},
}

func TestLexConstants(t *testing.T) {
	for _, tc := range constantCases {
		toks, err := Lex("c.h", 1, tc.src).All()
		require.NoError(t, err, tc.src)
		require.Len(t, toks, 1, tc.src)
		assert.Equal(t, tc.kind, toks[0].Kind, tc.src)
		assert.Equal(t, tc.val, toks[0].Val, tc.src)
	}
}

func TestLexErrors(t *testing.T) {
	for _, src := range []string{
		"int f(void) /* never closed",
		"#define X 1",
		"int @",
		"char *s = \"abc",
	} {
		_, err := Lex("bad.h", 7, src).All()
		require.Error(t, err, src)
		var loc ErrorLoc
		require.ErrorAs(t, err, &loc, src)
		assert.Equal(t, "bad.h", loc.Pos.File)
		assert.Equal(t, 7, loc.Pos.Line)
	}
}

func TestPosAt(t *testing.T) {
	start := FilePos{File: "uv.h", Line: 40, Col: 1}
	src := "UV_EXTERN int uv_foo(\n\tint a);"
	pos := PosAt(start, src, len("UV_EXTERN int uv_foo(\n\tint"))
	assert.Equal(t, FilePos{File: "uv.h", Line: 41, Col: 8, Off: 26}, pos)
	assert.Equal(t, start, PosAt(start, src, 0))
}
