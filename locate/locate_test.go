package locate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

const uvHeader = `#ifndef UV_H
#define UV_H

/* uv_accept(server, client) accepts a pending connection. */
UV_EXTERN int uv_accept(uv_stream_t* server, uv_stream_t* client);
UV_EXTERN int myuv_accept(void);
static int uv_close_internal(uv_handle_t* h);
  UV_EXTERN void uv_close(uv_handle_t* handle, uv_close_cb close_cb);

UV_EXTERN int uv_spawn(uv_loop_t* loop,
                       uv_process_t* handle,
                       const uv_process_options_t* options);

UV_EXTERN int uv_broken(int a,
                        int b)
#endif
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func searchers(t *testing.T) []Searcher {
	out := []Searcher{&WalkSearcher{}}
	if path, err := exec.LookPath("rg"); err == nil {
		out = append(out, &RipgrepSearcher{Path: path})
	} else {
		t.Log("rg not on PATH, only testing the walker")
	}
	return out
}

func TestLocate(t *testing.T) {
	root := writeTree(t, map[string]string{
		"include/uv.h":    uvHeader,
		"src/uv-common.c": "UV_EXTERN int uv_accept(uv_stream_t* a, uv_stream_t* b) { return 0; }\n",
	})
	header := filepath.Join(root, "include", "uv.h")

	for _, s := range searchers(t) {
		t.Run(s.Name(), func(t *testing.T) {
			l := &Locator{Searcher: s, Root: root, Marker: "UV_EXTERN", Globs: []string{"*.h"}}
			ctx := context.Background()

			raw, err := l.Locate(ctx, "uv_accept")
			require.NoError(t, err)
			assert.Equal(t, RawDeclaration{
				File: header,
				Line: 5,
				Col:  1,
				Text: "UV_EXTERN int uv_accept(uv_stream_t* server, uv_stream_t* client);",
			}, raw)

			raw, err = l.Locate(ctx, "uv_close")
			require.NoError(t, err)
			assert.Equal(t, 8, raw.Line)
			assert.Equal(t, 3, raw.Col)
			assert.Equal(t, "UV_EXTERN void uv_close(uv_handle_t* handle, uv_close_cb close_cb);", raw.Text)

			raw, err = l.Locate(ctx, "uv_spawn")
			require.NoError(t, err)
			assert.Equal(t, 10, raw.Line)
			assert.Equal(t, "UV_EXTERN int uv_spawn(uv_loop_t* loop,\n"+
				"                       uv_process_t* handle,\n"+
				"                       const uv_process_options_t* options);", raw.Text)

			_, err = l.Locate(ctx, "uv_run")
			assert.True(t, errors.Is(err, ErrSymbolNotFound), "%+v", err)

			_, err = l.Locate(ctx, "uv_close_internal")
			assert.True(t, errors.Is(err, ErrSymbolNotFound), "lines without the marker are not candidates: %+v", err)

			_, err = l.Locate(ctx, "uv_broken")
			assert.True(t, errors.Is(err, ErrUnterminatedDeclaration), "%+v", err)
		})
	}
}

func TestLocateAmbiguous(t *testing.T) {
	root := writeTree(t, map[string]string{
		"uv.h":      "UV_EXTERN int uv_fileno(const uv_handle_t* handle, uv_os_fd_t* fd);\n",
		"uv/unix.h": "UV_EXTERN int uv_fileno(const uv_handle_t* handle, int* fd);\n",
	})
	for _, s := range searchers(t) {
		t.Run(s.Name(), func(t *testing.T) {
			l := &Locator{Searcher: s, Root: root, Marker: "UV_EXTERN", Globs: []string{"*.h"}}
			_, err := l.Locate(context.Background(), "uv_fileno")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSymbolAmbiguous))
			details := errors.AllDetails(err)
			assert.Len(t, details["candidates"], 2)
		})
	}
}

func TestIndexWord(t *testing.T) {
	for _, tc := range []struct {
		s, w string
		want int
	}{
		{"uv_close(h);", "uv_close(", 0},
		{"int *uv_close(h);", "uv_close(", 5},
		{"myuv_close(a); uv_close(b);", "uv_close(", 15},
		{"int myuv_close(h);", "uv_close(", -1},
		{"int uv_close2(h);", "uv_close(", -1},
		{"UV_EXTERN int uv_x(void);", "UV_EXTERN", 0},
		{"MY_UV_EXTERN int uv_x(void);", "UV_EXTERN", -1},
		{"UV_EXTERNAL int uv_x(void);", "UV_EXTERN", -1},
		{"MY_UV_EXTERN UV_EXTERN int uv_x(void);", "UV_EXTERN", 13},
		{"int uv_x(void);", "", -1},
	} {
		assert.Equal(t, tc.want, indexWord(tc.s, tc.w), "%q in %q", tc.w, tc.s)
	}
}

func TestLocateMarkerIsWholeWord(t *testing.T) {
	root := writeTree(t, map[string]string{
		"uv.h": "MY_UV_EXTERN int uv_x(void);\n" +
			"#define WRAP(x) x\n" +
			"  UV_EXTERN int uv_y(int a);\n" +
			"MY_UV_EXTERN int uv_y(void);\n",
	})
	for _, s := range searchers(t) {
		t.Run(s.Name(), func(t *testing.T) {
			l := &Locator{Searcher: s, Root: root, Marker: "UV_EXTERN", Globs: []string{"*.h"}}

			_, err := l.Locate(context.Background(), "uv_x")
			assert.True(t, errors.Is(err, ErrSymbolNotFound), "%+v", err)

			raw, err := l.Locate(context.Background(), "uv_y")
			require.NoError(t, err)
			assert.Equal(t, 3, raw.Line)
			assert.Equal(t, 3, raw.Col)
			assert.Equal(t, "UV_EXTERN int uv_y(int a);", raw.Text)
		})
	}
}

func TestParseRipgrepLine(t *testing.T) {
	m, err := parseRipgrepLine("/h/uv.h:12:UV_EXTERN int uv_run(uv_loop_t*, uv_run_mode mode);")
	require.NoError(t, err)
	assert.Equal(t, Match{File: "/h/uv.h", Line: 12, Text: "UV_EXTERN int uv_run(uv_loop_t*, uv_run_mode mode);"}, m)

	_, err = parseRipgrepLine("garbage")
	assert.Error(t, err)
	_, err = parseRipgrepLine("/h/uv.h:x:text")
	assert.Error(t, err)
}

func TestNewSearcher(t *testing.T) {
	s, err := NewSearcher(WalkName)
	require.NoError(t, err)
	assert.Equal(t, WalkName, s.Name())

	s, err = NewSearcher(Auto)
	require.NoError(t, err)
	assert.Contains(t, []string{WalkName, Ripgrep}, s.Name())

	_, err = NewSearcher("grep")
	assert.Error(t, err)
}
