package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
	"gitlab.com/tozd/go/errors"

	"github.com/andrewchambers/cstubgen/config"
	"github.com/andrewchambers/cstubgen/generate"
	"github.com/andrewchambers/cstubgen/logging"
	"github.com/andrewchambers/cstubgen/parse"
	"github.com/andrewchambers/cstubgen/report"
)

const version = "0.1.0"

// session carries what the global flags set up to the commands.
type session struct {
	ctx     context.Context
	cfg     *config.Config
	noColor bool
}

func (s *session) before(c *cli.Context) error {
	level, err := logging.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	s.noColor = c.Bool("no-color")
	s.ctx = logging.Setup(c.Context, c.App.ErrWriter, logging.Options{Level: level, Color: !s.noColor})

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("header-root") {
		cfg.HeaderRoot = c.String("header-root")
	}
	if c.IsSet("parser") {
		cfg.Parser = c.String("parser")
	}
	if c.IsSet("search") {
		cfg.Search = c.String("search")
	}
	if c.IsSet("jobs") {
		cfg.Jobs = c.Int("jobs")
	}
	s.cfg = cfg
	return nil
}

func (s *session) generate(c *cli.Context) error {
	if c.IsSet("stub-out") {
		s.cfg.Stub.Path = c.String("stub-out")
	}
	if c.IsSet("harness-out") {
		s.cfg.Harness.Path = c.String("harness-out")
	}
	if c.Bool("no-format") {
		s.cfg.Formatter = ""
	}
	res, err := generate.Run(s.ctx, s.cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d stubs -> %s\n", len(res.Signatures), res.StubPath)
	fmt.Fprintf(c.App.Writer, "%d harness branches -> %s\n", res.Branches, res.HarnessPath)
	return nil
}

func (s *session) resolve(c *cli.Context) error {
	symbols := c.Args().Slice()
	if len(symbols) == 0 {
		symbols = s.cfg.Symbols
	}
	r, err := generate.NewResolver(s.ctx, s.cfg)
	if err != nil {
		return err
	}
	sigs, err := r.ResolveAll(s.ctx, symbols)
	if err != nil {
		return err
	}
	p := pp.New()
	p.SetColoringEnabled(!s.noColor)
	p.SetExportedOnly(true)
	for _, sig := range sigs {
		p.Fprintln(c.App.Writer, sig)
	}
	return nil
}

func (s *session) locate(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("locate takes exactly one symbol")
	}
	loc, err := generate.NewLocator(s.cfg)
	if err != nil {
		return err
	}
	raw, err := loc.Locate(s.ctx, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s\n%s\n", raw.Pos(), raw.Text)
	return nil
}

func newApp(stdout, stderr io.Writer) *cli.App {
	s := &session{}
	generateFlags := []cli.Flag{
		&cli.StringFlag{Name: "stub-out", Usage: "write the stub document to `FILE`"},
		&cli.StringFlag{Name: "harness-out", Usage: "write the harness document to `FILE`"},
		&cli.BoolFlag{Name: "no-format", Usage: "do not run the formatter"},
	}
	return &cli.App{
		Name:      "cstubgen",
		Usage:     "generate trapping C stubs and a napi test harness from library headers",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "load configuration from `FILE` instead of the built in libuv one"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colored output"},
			&cli.StringFlag{Name: "header-root", Usage: "search headers under `DIR`"},
			&cli.StringFlag{Name: "parser", Usage: fmt.Sprintf("declaration parser: auto or one of %v", parse.Backends())},
			&cli.StringFlag{Name: "search", Usage: "header search: auto, ripgrep or walk"},
			&cli.IntFlag{Name: "jobs", Usage: "resolve at most `N` symbols at once, 0 for no limit"},
		},
		Before: s.before,
		Action: s.generate,
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "resolve every symbol and write both documents",
				Flags:  generateFlags,
				Action: s.generate,
			},
			{
				Name:      "resolve",
				Usage:     "print resolved signatures without writing anything",
				ArgsUsage: "[SYMBOL...]",
				Action:    s.resolve,
			},
			{
				Name:      "locate",
				Usage:     "print the raw declaration of a symbol",
				ArgsUsage: "SYMBOL",
				Action:    s.locate,
			},
		},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := newApp(stdout, stderr).RunContext(ctx, args); err != nil {
		report.Error(stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}
