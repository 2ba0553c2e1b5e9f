package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Symbols, 305)
	assert.Equal(t, "uv_accept", cfg.Symbols[0])
	assert.Equal(t, "uv_wtf8_to_utf16", cfg.Symbols[len(cfg.Symbols)-1])
	assert.Len(t, cfg.Harness.Skip, 11)
	assert.True(t, cfg.Harness.SkipSet()["uv_udp_try_send2"])

	assert.Equal(t, "UV_EXTERN", cfg.ExportMarker)
	assert.Equal(t, "_cb", cfg.CallbackSuffix)
	assert.Equal(t, []string{"*.h"}, cfg.HeaderGlobs)
	assert.Equal(t, `"uv-posix-polyfills.h"`, cfg.Stub.Include)
	assert.Equal(t, "OS(LINUX) || OS(DARWIN)", cfg.Stub.Guard)
	assert.Equal(t, "clang-format -i {{.Path}}", cfg.Formatter)
	assert.Equal(t, "<node_api.h>", cfg.Harness.Includes[0])

	o, ok := cfg.OverrideTable()["uv_setup_args"]
	require.True(t, ok)
	assert.Equal(t, Override{
		Symbol:  "uv_setup_args",
		Returns: "char**",
		Params:  []OverrideParam{{Type: "int", Name: "argc"}, {Type: "char**", Name: "argv"}},
	}, o)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbols: [f_void, f_ptr]
headerRoot: include
exportMarker: EXPORT
stub:
  path: out/stubs.c
harness:
  path: out/plugin.c
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"f_void", "f_ptr"}, cfg.Symbols)
	assert.Equal(t, "auto", cfg.Parser)
	assert.Equal(t, "auto", cfg.Search)
	assert.Equal(t, "__bun_throw_not_implemented", cfg.Stub.Trap)
	assert.Equal(t, "call_uv_func", cfg.Harness.Dispatch)
	assert.Empty(t, cfg.Formatter)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("symbols: [a]\nsymbol_list: [b]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol_list")
}

func TestValidateCollectsEverything(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
symbols: [uv_run, uv_run, ""]
exportMarker: ""
parser: bison
search: grep
jobs: -1
harness:
  skip: [uv_stop]
overrides:
  - symbol: uv_stop
    params:
      - type: int
  - symbol: uv_run
    returns: int
  - symbol: uv_run
    returns: int
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))

	var msgs []string
	for _, e := range merr.Errors {
		msgs = append(msgs, e.Error())
	}
	assert.ElementsMatch(t, []string{
		"empty symbol name",
		"symbol uv_run listed twice",
		"exportMarker is required",
		"headerRoot is required",
		"stub.path is required",
		"harness.path is required",
		"jobs must not be negative",
		`unknown parser "bison"`,
		`unknown search "grep"`,
		"harness.skip names unknown symbol uv_stop",
		"override for unknown symbol uv_stop",
		"override uv_stop has no return type",
		"override uv_stop parameter 0 needs a type and a name",
		"symbol uv_run overridden twice",
	}, msgs)
}

func TestValidateEmpty(t *testing.T) {
	cfg, err := Decode(strings.NewReader("exportMarker: X\nheaderRoot: .\nstub: {path: a}\nharness: {path: b}\n"))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no symbols")
}
