// Package logging sets up the process logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
)

const timeFormat = "2006-01-02 15:04 05.0000"

type Options struct {
	Level     slog.Level
	Color     bool
	AddSource bool
}

// Setup installs a tint handler writing to w as the default logger and
// returns ctx carrying it.
func Setup(ctx context.Context, w io.Writer, opts Options) context.Context {
	h := tint.NewHandler(w, &tint.Options{
		Level:       opts.Level,
		TimeFormat:  timeFormat,
		AddSource:   opts.AddSource,
		NoColor:     !opts.Color,
		ReplaceAttr: detailAttrs,
	})
	logger := slog.New(slogctx.NewHandler(h, &slogctx.HandlerOptions{}))
	slog.SetDefault(logger)
	return slogctx.NewCtx(ctx, logger)
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, errors.WithDetails(errors.Errorf("unknown log level %q", s), "level", s)
	}
	return l, nil
}

// detailAttrs expands an error attribute into the error and its details.
func detailAttrs(groups []string, a slog.Attr) slog.Attr {
	if a.Key != "error" {
		return a
	}
	err, ok := a.Value.Any().(error)
	if !ok {
		return a
	}
	details := errors.AllDetails(err)
	if len(details) == 0 {
		return a
	}
	attrs := []slog.Attr{slog.String("msg", err.Error())}
	for k, v := range details {
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.Attr{Key: a.Key, Value: slog.GroupValue(attrs...)}
}
