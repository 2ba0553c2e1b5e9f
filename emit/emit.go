// Package emit writes the stub and harness documents for a set of
// resolved signatures.
package emit

import (
	"fmt"
	"io"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/andrewchambers/cstubgen/config"
	"github.com/andrewchambers/cstubgen/decl"
	"github.com/andrewchambers/cstubgen/resolve"
)

type emitter struct {
	o   io.Writer
	err error
}

func (e *emitter) emit(s string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.o, s, args...)
}

func (e *emitter) emiti(s string, args ...interface{}) {
	e.emit("  "+s, args...)
}

// raw writes s without formatting.
func (e *emitter) raw(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.o, s)
}

func (e *emitter) done() error {
	if e.err != nil {
		return errors.Errorf("writing generated code: %w", e.err)
	}
	return nil
}

// Stub writes a definition of sig that traps when called. The header is
// the declaration's prototype so the definition matches what the header
// promises.
func Stub(w io.Writer, sig resolve.Signature, cfg config.Stub) error {
	e := &emitter{o: w}
	e.stub(sig, cfg)
	return e.done()
}

func (e *emitter) stub(sig resolve.Signature, cfg config.Stub) {
	e.raw(sig.Prototype)
	e.raw("\n{\n")
	e.emit("    %s(\"%s\");\n", cfg.Trap, sig.Symbol)
	e.raw("    __builtin_unreachable();\n")
	e.raw("}\n")
}

// StubDocument writes the stub for every signature, in order, inside the
// configured platform guard.
func StubDocument(w io.Writer, sigs []resolve.Signature, cfg config.Stub) error {
	e := &emitter{o: w}
	if cfg.Banner != "" {
		e.emit("%s\n", cfg.Banner)
	}
	if cfg.Include != "" {
		e.emit("#include %s\n", cfg.Include)
	}
	e.raw("\n")
	if cfg.Guard != "" {
		e.emit("#if %s\n", cfg.Guard)
	}
	for i, sig := range sigs {
		if i > 0 {
			e.raw("\n")
		}
		e.stub(sig, cfg)
	}
	if cfg.Guard != "" {
		e.raw("#endif\n")
	}
	return e.done()
}

// HarnessOptions configures the dispatcher.
type HarnessOptions struct {
	config.Harness
	// Parameters whose type ends in CallbackSuffix start out NULL.
	CallbackSuffix string
}

// Harness writes the napi module whose single export calls any covered
// symbol by name. It returns the number of dispatch branches written.
func Harness(w io.Writer, sigs []resolve.Signature, opts HarnessOptions) (int, error) {
	e := &emitter{o: w}
	skip := opts.SkipSet()

	if opts.Banner != "" {
		e.emit("%s\n", opts.Banner)
	}
	for _, inc := range opts.Includes {
		e.emit("#include %s\n", inc)
	}
	e.raw("\n")
	e.emit("napi_value %s(napi_env env, napi_callback_info info) {\n", opts.Dispatch)
	e.raw(dispatchPrologue)

	branches := 0
	for _, sig := range sigs {
		if skip[sig.Symbol] {
			continue
		}
		if branches == 0 {
			e.emiti("if (strcmp(buffer, \"%s\") == 0) {\n", sig.Symbol)
		} else {
			e.emiti("} else if (strcmp(buffer, \"%s\") == 0) {\n", sig.Symbol)
		}
		e.branch(sig, opts.CallbackSuffix)
		branches++
	}
	if branches > 0 {
		e.emiti("}\n\n")
	}

	e.raw(dispatchEpilogue)
	e.raw("\n")
	e.emit(initTemplate, opts.Dispatch, opts.Export)
	return branches, e.done()
}

func (e *emitter) branch(sig resolve.Signature, suffix string) {
	names := make([]string, 0, len(sig.Params))
	for _, p := range sig.Params {
		e.emiti("  %s%s;\n", p.Decl(), Initializer(p, suffix))
		names = append(names, p.Name)
	}
	if len(sig.Params) > 0 {
		e.raw("\n")
	}
	e.emiti("  %s(%s);\n", sig.Symbol, strings.Join(names, ", "))
	e.emiti("  return NULL;\n")
}

// Initializer returns the default for a harness local, including the
// leading " = ". Pointers of any depth, arrays, function pointers and
// callback typedefs start out NULL, everything else is zeroed as an
// aggregate. argc and argv are passed through from the caller and get no
// default.
func Initializer(p decl.Parameter, callbackSuffix string) string {
	if p.Name == "argc" || p.Name == "argv" {
		return ""
	}
	if p.Depth() > 0 || callbackSuffix != "" && strings.HasSuffix(p.Type, callbackSuffix) {
		return " = NULL"
	}
	return " = {0}"
}

const dispatchPrologue = `  napi_status status;

  size_t argc = 2;
  napi_value args[2];
  status = napi_get_cb_info(env, info, &argc, args, NULL, NULL);
  if (status != napi_ok) {
    napi_throw_error(env, NULL, "Failed to parse arguments");
    return NULL;
  }

  if (argc < 1) {
    napi_throw_error(env, NULL, "Wrong number of arguments");
    return NULL;
  }

  napi_value arg = args[0];
  char buffer[256];
  size_t buffer_size = sizeof(buffer);
  size_t copied;

  status = napi_get_value_string_utf8(env, arg, buffer, buffer_size, &copied);
  if (status != napi_ok) {
    napi_throw_error(env, NULL, "Failed to get string value");
    return NULL;
  }

  buffer[copied] = '\0';
  printf("Got string: %s\n", buffer);

`

const dispatchEpilogue = `  napi_throw_error(env, NULL, "Function not found");

  return NULL;
}
`

const initTemplate = `napi_value Init(napi_env env, napi_value exports) {
  napi_status status;
  napi_value fn_%[1]s;

  status = napi_create_function(env, NULL, 0, %[1]s, NULL, &fn_%[1]s);
  if (status != napi_ok) {
    napi_throw_error(env, NULL, "Failed to create %[1]s function");
    return NULL;
  }

  status = napi_set_named_property(env, exports, "%[2]s", fn_%[1]s);
  if (status != napi_ok) {
    napi_throw_error(env, NULL, "Failed to add %[1]s function to exports");
    return NULL;
  }

  return exports;
}

NAPI_MODULE(NODE_GYP_MODULE_NAME, Init)
`
