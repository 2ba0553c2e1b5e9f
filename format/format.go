// Package format runs an external code formatter over generated files.
package format

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"text/template"
	"time"

	"gitlab.com/tozd/go/errors"
)

// ErrFormatterMissing is returned when the formatter binary is not on the
// PATH.
var ErrFormatterMissing = errors.Base("formatter not found")

const DefaultTimeout = 30 * time.Second

// Formatter runs a command line built from Template, a text/template in
// which {{.Path}} is the file to format. Each word of the template is
// expanded on its own, so actions must not contain spaces. An empty
// template does nothing.
type Formatter struct {
	Template string
	Timeout  time.Duration
}

func New(templ string) *Formatter {
	return &Formatter{Template: templ, Timeout: DefaultTimeout}
}

// Command expands the template for path into an argument list. The
// template is split into words first, so a path with spaces stays one
// argument.
func (f *Formatter) Command(path string) ([]string, error) {
	data := struct{ Path string }{Path: path}
	words := strings.Fields(f.Template)
	if len(words) == 0 {
		return nil, errors.Errorf("malformed command %q", f.Template)
	}
	args := make([]string, 0, len(words))
	for _, w := range words {
		t, err := template.New("formatcmd").Option("missingkey=error").Parse(w)
		if err != nil {
			return nil, errors.Errorf("formatter template: %w", err)
		}
		var b bytes.Buffer
		if err := t.Execute(&b, data); err != nil {
			return nil, errors.Errorf("formatter template: %w", err)
		}
		args = append(args, b.String())
	}
	return args, nil
}

// Format formats the file at path in place.
func (f *Formatter) Format(ctx context.Context, path string) error {
	if f.Template == "" {
		return nil
	}
	args, err := f.Command(path)
	if err != nil {
		return err
	}
	bin, err := exec.LookPath(args[0])
	if err != nil {
		return errors.WithDetails(ErrFormatterMissing, "command", args[0])
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	c := exec.CommandContext(ctx, bin, args[1:]...)
	c.Stdout = &out
	c.Stderr = &out
	err = c.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Errorf("%s timed out after %s", args[0], timeout)
	}
	if err != nil {
		return errors.WithDetails(
			errors.Errorf("%s failed: %w", args[0], err),
			"output", strings.TrimSpace(out.String()),
		)
	}
	return nil
}
