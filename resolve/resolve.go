// Package resolve turns symbol names into signatures, from the override
// table when there is an entry and from the headers otherwise.
package resolve

import (
	"context"
	"log/slog"
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/andrewchambers/cstubgen/config"
	"github.com/andrewchambers/cstubgen/decl"
	"github.com/andrewchambers/cstubgen/locate"
	"github.com/andrewchambers/cstubgen/parse"
)

// Signature is everything the emitters need to know about one symbol.
// Prototype is the declaration without its terminating ';'.
type Signature struct {
	Symbol     string
	Params     []decl.Parameter
	Prototype  string
	Source     *locate.RawDeclaration
	Overridden bool
}

// Locator finds the raw declaration of a symbol.
type Locator interface {
	Locate(ctx context.Context, symbol string) (locate.RawDeclaration, error)
}

type Resolver struct {
	Locator   Locator
	Parser    parse.Parser
	Overrides map[string]config.Override
	Marker    string
	// Jobs limits concurrent resolution in ResolveAll, 0 means no limit.
	Jobs int
}

// Resolve returns the signature of symbol. An override is used as is and
// the headers are not consulted for that symbol.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (Signature, error) {
	if o, ok := r.Overrides[symbol]; ok {
		sig := r.fromOverride(o)
		slog.DebugContext(ctx, "resolved from override", "symbol", symbol, "params", len(sig.Params))
		return sig, nil
	}

	raw, err := r.Locator.Locate(ctx, symbol)
	if err != nil {
		return Signature{}, err
	}
	params, err := decl.Parse(ctx, r.Parser, raw, r.Marker)
	if err != nil {
		return Signature{}, err
	}
	proto := strings.TrimRight(raw.Text, " \t\r\n")
	proto = strings.TrimRight(strings.TrimSuffix(proto, ";"), " \t")
	slog.DebugContext(ctx, "resolved", "symbol", symbol, "params", len(params), "parser", r.Parser.Name())
	return Signature{
		Symbol:    symbol,
		Params:    params,
		Prototype: proto,
		Source:    &raw,
	}, nil
}

func (r *Resolver) fromOverride(o config.Override) Signature {
	params := make([]decl.Parameter, 0, len(o.Params))
	decls := make([]string, 0, len(o.Params))
	for _, p := range o.Params {
		params = append(params, decl.Named(p.Type, p.Name))
		decls = append(decls, p.Type+" "+p.Name)
	}
	list := "void"
	if len(decls) > 0 {
		list = strings.Join(decls, ", ")
	}
	proto := o.Returns + " " + o.Symbol + "(" + list + ")"
	if r.Marker != "" {
		proto = r.Marker + " " + proto
	}
	return Signature{
		Symbol:     o.Symbol,
		Params:     params,
		Prototype:  proto,
		Overridden: true,
	}
}

// ResolveAll resolves every symbol concurrently. The result is in the
// order of symbols. The first failure cancels the remaining work.
func (r *Resolver) ResolveAll(ctx context.Context, symbols []string) ([]Signature, error) {
	sigs := make([]Signature, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	if r.Jobs > 0 {
		g.SetLimit(r.Jobs)
	}
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			sig, err := r.Resolve(gctx, symbol)
			if err != nil {
				return errors.WithDetails(errors.Errorf("resolving %s: %w", symbol, err), "symbol", symbol)
			}
			sigs[i] = sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sigs, nil
}
