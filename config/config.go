// Package config holds the authored generator configuration: the symbol
// list, where to find headers, override entries and the output documents.
package config

import (
	"bytes"
	_ "embed"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

//go:embed uv.yaml
var defaultConfig []byte

type Config struct {
	Symbols        []string   `yaml:"symbols"`
	HeaderRoot     string     `yaml:"headerRoot"`
	HeaderGlobs    []string   `yaml:"headerGlobs"`
	ExportMarker   string     `yaml:"exportMarker"`
	CallbackSuffix string     `yaml:"callbackSuffix"`
	Overrides      []Override `yaml:"overrides"`
	Stub           Stub       `yaml:"stub"`
	Harness        Harness    `yaml:"harness"`
	// Formatter is a command template run on each written file, with
	// {{.Path}} expanding to the file. Empty disables formatting.
	Formatter string `yaml:"formatter"`
	Parser    string `yaml:"parser"`
	Search    string `yaml:"search"`
	// Jobs limits how many symbols resolve at once, 0 means no limit.
	Jobs int `yaml:"jobs"`
}

// Override replaces the parsed signature of a symbol. Returns is the return
// type used to write the stub prototype.
type Override struct {
	Symbol  string          `yaml:"symbol"`
	Returns string          `yaml:"returns"`
	Params  []OverrideParam `yaml:"params"`
}

type OverrideParam struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

// Stub describes the stub document.
type Stub struct {
	Path    string `yaml:"path"`
	Banner  string `yaml:"banner"`
	Include string `yaml:"include"`
	Guard   string `yaml:"guard"`
	Trap    string `yaml:"trap"`
}

// Harness describes the napi dispatch document.
type Harness struct {
	Path     string   `yaml:"path"`
	Banner   string   `yaml:"banner"`
	Includes []string `yaml:"includes"`
	Dispatch string   `yaml:"dispatch"`
	Export   string   `yaml:"export"`
	Skip     []string `yaml:"skip"`
}

// Default returns the embedded libuv configuration.
func Default() (*Config, error) {
	return Decode(bytes.NewReader(defaultConfig))
}

// Load reads the configuration at path, or the embedded default when path
// is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return nil, errors.WithDetails(err, "path", path)
	}
	return cfg, nil
}

// Decode reads YAML from r. Unknown keys are an error. Defaults are filled
// in but the result is not validated.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Errorf("decoding config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.HeaderGlobs) == 0 {
		c.HeaderGlobs = []string{"*.h"}
	}
	if c.CallbackSuffix == "" {
		c.CallbackSuffix = "_cb"
	}
	if c.Parser == "" {
		c.Parser = "auto"
	}
	if c.Search == "" {
		c.Search = "auto"
	}
	if c.Stub.Trap == "" {
		c.Stub.Trap = "__bun_throw_not_implemented"
	}
	if c.Harness.Dispatch == "" {
		c.Harness.Dispatch = "call_uv_func"
	}
	if c.Harness.Export == "" {
		c.Harness.Export = "callUVFunc"
	}
}

var (
	parsers  = map[string]bool{"auto": true, "native": true, "treesitter": true}
	searches = map[string]bool{"auto": true, "ripgrep": true, "walk": true}
)

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var result error
	add := func(format string, args ...interface{}) {
		result = multierror.Append(result, errors.Errorf(format, args...))
	}

	if len(c.Symbols) == 0 {
		add("no symbols")
	}
	known := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if s == "" {
			add("empty symbol name")
			continue
		}
		if known[s] {
			add("symbol %s listed twice", s)
		}
		known[s] = true
	}
	if c.ExportMarker == "" {
		add("exportMarker is required")
	}
	if c.HeaderRoot == "" && c.needsHeaders() {
		add("headerRoot is required")
	}
	if c.Stub.Path == "" {
		add("stub.path is required")
	}
	if c.Harness.Path == "" {
		add("harness.path is required")
	}
	if c.Jobs < 0 {
		add("jobs must not be negative")
	}
	if !parsers[c.Parser] {
		add("unknown parser %q", c.Parser)
	}
	if !searches[c.Search] {
		add("unknown search %q", c.Search)
	}
	for _, s := range c.Harness.Skip {
		if !known[s] {
			add("harness.skip names unknown symbol %s", s)
		}
	}

	seen := map[string]bool{}
	for _, o := range c.Overrides {
		if !known[o.Symbol] {
			add("override for unknown symbol %s", o.Symbol)
		}
		if seen[o.Symbol] {
			add("symbol %s overridden twice", o.Symbol)
		}
		seen[o.Symbol] = true
		if o.Returns == "" {
			add("override %s has no return type", o.Symbol)
		}
		for i, p := range o.Params {
			if p.Type == "" || p.Name == "" {
				add("override %s parameter %d needs a type and a name", o.Symbol, i)
			}
		}
	}

	if result != nil {
		return errors.Errorf("invalid config: %w", result)
	}
	return nil
}

// needsHeaders reports whether any symbol has to be found in the headers.
func (c *Config) needsHeaders() bool {
	table := c.OverrideTable()
	for _, s := range c.Symbols {
		if _, ok := table[s]; !ok {
			return true
		}
	}
	return false
}

// OverrideTable indexes the overrides by symbol.
func (c *Config) OverrideTable() map[string]Override {
	table := make(map[string]Override, len(c.Overrides))
	for _, o := range c.Overrides {
		table[o.Symbol] = o
	}
	return table
}

// SkipSet returns the symbols left out of the harness.
func (h Harness) SkipSet() map[string]bool {
	skip := make(map[string]bool, len(h.Skip))
	for _, s := range h.Skip {
		skip[s] = true
	}
	return skip
}
