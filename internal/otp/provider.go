package otp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// Provider produces a one-time code.
type Provider interface {
	Code(ctx context.Context) (string, error)
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Manual returns a fixed, validated code.
type Manual struct {
	Value string
}

func (m Manual) Code(context.Context) (string, error) {
	if err := ValidateCode(m.Value); err != nil {
		return "", err
	}
	return m.Value, nil
}

// File extracts a code from the contents of a file. A leading ~ is expanded.
type File struct {
	Path string
}

func (f File) Code(context.Context) (string, error) {
	path, err := homedir.Expand(f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to expand otp file path %q: %w", f.Path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read otp from file %s: %w", f.Path, err)
	}
	code, err := Extract(strings.TrimSpace(string(content)))
	if err != nil {
		return "", fmt.Errorf("could not extract otp from file %s: %w", f.Path, err)
	}
	return code, nil
}

// clipboardCommand is one way of reading the system clipboard.
type clipboardCommand struct {
	name string
	args []string
}

// clipboardCommands lists the readers tried for each platform, in order.
var clipboardCommands = map[string][]clipboardCommand{
	"darwin": {{name: "pbpaste"}},
	"linux": {
		{name: "xclip", args: []string{"-selection", "clipboard", "-o"}},
		{name: "xsel", args: []string{"--clipboard", "--output"}},
	},
	"windows": {{name: "powershell", args: []string{"-command", "Get-Clipboard"}}},
}

// Clipboard extracts a code from the system clipboard.
type Clipboard struct {
	GOOS string
	Run  CommandRunner
}

func (c Clipboard) Code(ctx context.Context) (string, error) {
	goos := c.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	run := c.Run
	if run == nil {
		run = execRunner
	}

	commands, ok := clipboardCommands[goos]
	if !ok {
		return "", fmt.Errorf("%w: clipboard access on %s", ErrUnsupported, goos)
	}

	var errs []error
	for _, cmd := range commands {
		out, err := run(ctx, cmd.name, cmd.args...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cmd.name, err))
			continue
		}
		code, err := Extract(strings.TrimSpace(string(out)))
		if err != nil {
			return "", fmt.Errorf("could not read otp from clipboard, make sure the code is copied: %w", err)
		}
		return code, nil
	}
	return "", fmt.Errorf("failed to read clipboard: %w", errors.Join(errs...))
}

// Unsupported is a placeholder for sources without an integration.
type Unsupported struct {
	Kind Kind
}

func (u Unsupported) Code(context.Context) (string, error) {
	return "", fmt.Errorf("%w: %s, use OTP FROM FILE or OTP MANUAL instead", ErrUnsupported, u.Kind)
}

// Resolver maps a Source to its Provider.
type Resolver struct {
	logger *zap.Logger
	// Clipboard is used for KindClipboard. Tests replace its runner.
	Clipboard Clipboard
}

// NewResolver creates a Resolver using the host clipboard.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.Named("otp")}
}

// Provider returns the provider for src.
func (r *Resolver) Provider(src Source) Provider {
	switch src.Kind {
	case KindManual:
		return Manual{Value: src.Code}
	case KindFile:
		return File{Path: src.Path}
	case KindClipboard:
		return r.Clipboard
	default:
		return Unsupported{Kind: src.Kind}
	}
}

// Resolve fetches a code from src.
func (r *Resolver) Resolve(ctx context.Context, src Source) (string, error) {
	code, err := r.Provider(src).Code(ctx)
	if err != nil {
		return "", err
	}
	r.logger.Debug("Resolved one-time code.", zap.String("source", src.String()), zap.Int("digits", len(code)))
	return code, nil
}
