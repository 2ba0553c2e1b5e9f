package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = `#pragma once

EXPORT void f_void(void);
EXPORT int f_ptr(char *s);
EXPORT int f_arr(int a[3]);
`

// project lays out a header tree and a config for it and returns the
// config path.
func project(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include", "lib.h"), []byte(header), 0o644))
	cfg := `symbols: [f_void, f_ptr, f_arr]
headerRoot: ` + filepath.Join(dir, "include") + `
exportMarker: EXPORT
search: walk
parser: native
formatter: clang-format -i {{.Path}}
stub:
  path: ` + filepath.Join(dir, "out", "stubs.c") + `
  include: '"lib.h"'
  guard: defined(__linux__)
harness:
  path: ` + filepath.Join(dir, "out", "plugin.c") + `
  includes: [<node_api.h>]
`
	cfgPath = filepath.Join(dir, "cstubgen.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return dir, cfgPath
}

func cstubgen(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append([]string{"cstubgen", "--no-color", "--log-level", "error"}, args...)
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestGenerate(t *testing.T) {
	dir, cfg := project(t)
	stubOut := filepath.Join(dir, "elsewhere", "stubs.c")

	code, stdout, stderr := cstubgen(t, "--config", cfg, "generate", "--no-format", "--stub-out", stubOut)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "3 stubs -> "+stubOut)
	assert.Contains(t, stdout, "3 harness branches -> ")

	stub, err := os.ReadFile(stubOut)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(stub), "__builtin_unreachable();"))
	assert.FileExists(t, filepath.Join(dir, "out", "plugin.c"))
	assert.NoFileExists(t, filepath.Join(dir, "out", "stubs.c"))
}

func TestGenerateIsDefault(t *testing.T) {
	dir, cfg := project(t)
	code, _, stderr := cstubgen(t, "--config", cfg)
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(dir, "out", "stubs.c"))
}

func TestResolve(t *testing.T) {
	_, cfg := project(t)
	code, stdout, stderr := cstubgen(t, "--config", cfg, "resolve", "f_arr")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `Symbol:`)
	assert.Contains(t, stdout, `"f_arr"`)
	assert.Contains(t, stdout, `"EXPORT int f_arr(int a[3])"`)
	assert.NotContains(t, stdout, `"f_ptr"`)
}

func TestLocate(t *testing.T) {
	dir, cfg := project(t)
	code, stdout, stderr := cstubgen(t, "--config", cfg, "locate", "f_ptr")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, filepath.Join(dir, "include", "lib.h")+":4:1\nEXPORT int f_ptr(char *s);\n", stdout)

	code, _, _ = cstubgen(t, "--config", cfg, "locate")
	assert.Equal(t, 1, code)
}

func TestFailureIsReported(t *testing.T) {
	dir, cfg := project(t)
	code, _, stderr := cstubgen(t, "--config", cfg, "--header-root", filepath.Join(dir, "missing"), "resolve", "f_ptr")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "resolving f_ptr")

	code, _, stderr = cstubgen(t, "--config", cfg, "--parser", "gcc")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown parser "gcc"`)

	code, _, stderr = cstubgen(t, "--config", filepath.Join(dir, "nope.yaml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "nope.yaml")
}
