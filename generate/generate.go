// Package generate runs the whole pipeline: resolve every configured
// symbol, render the stub and harness documents and commit them.
package generate

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"gitlab.com/tozd/go/errors"

	"github.com/andrewchambers/cstubgen/config"
	"github.com/andrewchambers/cstubgen/emit"
	"github.com/andrewchambers/cstubgen/format"
	"github.com/andrewchambers/cstubgen/locate"
	"github.com/andrewchambers/cstubgen/parse"
	"github.com/andrewchambers/cstubgen/resolve"
)

type Result struct {
	Signatures  []resolve.Signature
	StubPath    string
	HarnessPath string
	Branches    int
}

// NewLocator builds the header locator cfg describes.
func NewLocator(cfg *config.Config) (*locate.Locator, error) {
	searcher, err := locate.NewSearcher(cfg.Search)
	if err != nil {
		return nil, err
	}
	return &locate.Locator{
		Searcher: searcher,
		Root:     cfg.HeaderRoot,
		Marker:   cfg.ExportMarker,
		Globs:    cfg.HeaderGlobs,
	}, nil
}

// NewResolver builds the resolver cfg describes.
func NewResolver(ctx context.Context, cfg *config.Config) (*resolve.Resolver, error) {
	loc, err := NewLocator(cfg)
	if err != nil {
		return nil, err
	}
	p, err := parse.New(cfg.Parser)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "backends", "parser", p.Name(), "search", loc.Searcher.Name())
	return &resolve.Resolver{
		Locator:   loc,
		Parser:    p,
		Overrides: cfg.OverrideTable(),
		Marker:    cfg.ExportMarker,
		Jobs:      cfg.Jobs,
	}, nil
}

// Render writes both documents for sigs into memory.
func Render(sigs []resolve.Signature, cfg *config.Config) (stub, harness []byte, branches int, err error) {
	var sb, hb bytes.Buffer
	if err := emit.StubDocument(&sb, sigs, cfg.Stub); err != nil {
		return nil, nil, 0, err
	}
	branches, err = emit.Harness(&hb, sigs, emit.HarnessOptions{
		Harness:        cfg.Harness,
		CallbackSuffix: cfg.CallbackSuffix,
	})
	if err != nil {
		return nil, nil, 0, err
	}
	return sb.Bytes(), hb.Bytes(), branches, nil
}

// Run resolves every symbol in cfg and writes the stub and harness
// documents. Nothing is written unless every symbol resolves. The two
// documents are replaced together: when one cannot be put in place the
// other keeps its previous content.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r, err := NewResolver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "resolving", "symbols", len(cfg.Symbols))
	sigs, err := r.ResolveAll(ctx, cfg.Symbols)
	if err != nil {
		return nil, err
	}
	stub, harness, branches, err := Render(sigs, cfg)
	if err != nil {
		return nil, err
	}

	err = commit(ctx, []output{
		{path: cfg.Stub.Path, data: stub},
		{path: cfg.Harness.Path, data: harness},
	})
	if err != nil {
		return nil, err
	}

	f := format.New(cfg.Formatter)
	for _, path := range []string{cfg.Stub.Path, cfg.Harness.Path} {
		err := f.Format(ctx, path)
		switch {
		case err == nil:
		case errors.Is(err, format.ErrFormatterMissing):
			slog.DebugContext(ctx, "formatter not available", "path", path, "error", err)
		default:
			slog.WarnContext(ctx, "formatting failed", "path", path, "error", err)
		}
	}

	return &Result{
		Signatures:  sigs,
		StubPath:    cfg.Stub.Path,
		HarnessPath: cfg.Harness.Path,
		Branches:    branches,
	}, nil
}

type output struct {
	path string
	data []byte
	tmp  string

	// previous content of path, restored if a later rename fails
	old     []byte
	existed bool
}

// commit writes every output to a temporary file next to its destination
// and renames them all into place once every write has succeeded. If a
// rename fails the destinations already replaced get their old content
// back.
func commit(ctx context.Context, outs []output) (errRet error) {
	defer func() {
		if errRet == nil {
			return
		}
		for _, o := range outs {
			if o.tmp != "" {
				os.Remove(o.tmp)
			}
		}
	}()

	for i := range outs {
		o := &outs[i]
		dir := filepath.Dir(o.path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WithStack(err)
		}
		f, err := os.CreateTemp(dir, "."+filepath.Base(o.path)+".*")
		if err != nil {
			return errors.WithStack(err)
		}
		o.tmp = f.Name()
		_, err = f.Write(o.data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			err = os.Chmod(o.tmp, 0o644)
		}
		if err != nil {
			return errors.WithDetails(errors.Errorf("writing %s: %w", o.path, err), "path", o.path)
		}
	}

	for i := range outs {
		o := &outs[i]
		if err := o.replace(); err != nil {
			err = errors.WithDetails(errors.Errorf("replacing %s: %w", o.path, err), "path", o.path)
			if rerr := restore(outs[:i]); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
	}
	for _, o := range outs {
		slog.InfoContext(ctx, "wrote", "path", o.path, "size", humanize.Bytes(uint64(len(o.data))))
	}
	return nil
}

// replace saves the current content of the destination and renames the
// temporary file over it.
func (o *output) replace() error {
	old, err := os.ReadFile(o.path)
	switch {
	case err == nil:
		o.old, o.existed = old, true
	case errors.Is(err, fs.ErrNotExist):
	default:
		return err
	}
	if err := os.Rename(o.tmp, o.path); err != nil {
		return err
	}
	o.tmp = ""
	return nil
}

// restore puts back what was at each path before commit replaced it.
func restore(outs []output) error {
	var errs []error
	for _, o := range outs {
		var err error
		if o.existed {
			err = os.WriteFile(o.path, o.old, 0o644)
		} else {
			err = os.Remove(o.path)
		}
		if err != nil {
			errs = append(errs, errors.Errorf("restoring %s: %w", o.path, err))
		}
	}
	return errors.Join(errs...)
}
