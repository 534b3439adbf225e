// Package executor runs decoded script instructions against a browser, one
// at a time, stopping at the first failure.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/assure-cli/internal/browser"
	"github.com/xkilldash9x/assure-cli/internal/browser/wait"
	"github.com/xkilldash9x/assure-cli/internal/config"
	"github.com/xkilldash9x/assure-cli/internal/otp"
	"github.com/xkilldash9x/assure-cli/internal/script"
)

// Browser is the page surface instructions act on.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	TypeText(ctx context.Context, selector, text string) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	GetTextContent(ctx context.Context, selector string) (string, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (*browser.ElementHandle, error)
	WaitForElementVisibleAndClickable(ctx context.Context, selector string, timeout time.Duration) (*browser.ElementHandle, error)
	WaitForText(ctx context.Context, selector, substr string, timeout time.Duration) error
	WaitForURL(ctx context.Context, substr string, timeout time.Duration) error
}

// CodeResolver produces one-time codes.
type CodeResolver interface {
	Resolve(ctx context.Context, src otp.Source) (string, error)
}

// Reporter observes instruction progress.
type Reporter interface {
	CommandStarted(cmd script.Command)
	CommandPassed(cmd script.Command, elapsed time.Duration)
	CommandFailed(cmd script.Command, elapsed time.Duration, err error)
}

// Config holds the waits and defaults instructions use.
type Config struct {
	Timeouts config.TimeoutConfig
	// OTPSelector is the target when an OTP instruction names none.
	OTPSelector string
}

// ConfigFrom extracts executor settings.
func ConfigFrom(cfg config.Interface) Config {
	return Config{Timeouts: cfg.Timeouts(), OTPSelector: cfg.OTP().DefaultSelector}
}

// Executor runs instructions sequentially.
type Executor struct {
	browser  Browser
	codes    CodeResolver
	reporter Reporter
	cfg      Config
	logger   *zap.Logger
}

// New creates an executor. A nil reporter discards progress.
func New(b Browser, codes CodeResolver, reporter Reporter, cfg Config, logger *zap.Logger) *Executor {
	if reporter == nil {
		reporter = nopReporter{}
	}
	if cfg.OTPSelector == "" {
		cfg.OTPSelector = config.DefaultOTPSelector
	}
	return &Executor{
		browser:  b,
		codes:    codes,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger.Named("executor"),
	}
}

// Run executes instructions in order. The first failure halts the run and
// is returned as a *CommandError.
func (e *Executor) Run(ctx context.Context, instructions []script.Instruction) error {
	for i, ins := range instructions {
		cmd := ins.Source()
		e.reporter.CommandStarted(cmd)
		start := time.Now()

		err := e.execute(ctx, ins)
		elapsed := time.Since(start)
		if err != nil {
			e.logger.Debug("Command failed.", zap.Int("line", cmd.Line), zap.String("action", cmd.Action), zap.Error(err))
			e.reporter.CommandFailed(cmd, elapsed, err)
			return &CommandError{Index: i, Line: cmd.Line, Raw: cmd.Raw, Err: err}
		}
		e.logger.Debug("Command passed.", zap.Int("line", cmd.Line), zap.String("action", cmd.Action), zap.Duration("elapsed", elapsed))
		e.reporter.CommandPassed(cmd, elapsed)
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, ins script.Instruction) error {
	t := e.cfg.Timeouts
	switch in := ins.(type) {
	case script.Open:
		if err := e.browser.Navigate(ctx, in.URL); err != nil {
			return err
		}
		return e.browser.WaitForNetworkIdle(ctx, t.NetworkIdle)
	case script.Click:
		return e.browser.Click(ctx, in.Selector)
	case script.Type:
		return e.browser.TypeText(ctx, in.Selector, in.Text)
	case script.Sleep:
		return wait.Sleep(ctx, in.Duration)
	case script.Expect:
		return e.expect(ctx, in)
	case script.EnterOTP:
		return e.enterOTP(ctx, in)
	case script.WaitFor:
		switch in.Kind {
		case script.WaitElement:
			_, err := e.browser.WaitForSelector(ctx, in.Selector, t.Element)
			return err
		case script.WaitText:
			return e.browser.WaitForText(ctx, in.Selector, in.Value, t.Text)
		case script.WaitURL:
			return e.browser.WaitForURL(ctx, in.Value, t.URL)
		case script.WaitNetwork:
			return e.browser.WaitForNetworkIdle(ctx, t.NetworkIdle)
		}
		return fmt.Errorf("%w: WAIT FOR %s", script.ErrInvalidArgument, in.Kind)
	case script.Test:
		return nil
	}
	return fmt.Errorf("%w: %s", script.ErrUnknownCommand, ins.Source().Action)
}

func (e *Executor) expect(ctx context.Context, in script.Expect) error {
	var (
		actual string
		err    error
	)
	switch in.Subject {
	case script.SubjectVisible:
		visible, err := e.browser.IsVisible(ctx, in.Selector)
		if err != nil {
			return err
		}
		if !visible {
			return &AssertionFailed{Subject: in.Subject, Expected: in.Selector}
		}
		return nil
	case script.SubjectTitle:
		actual, err = e.browser.Title(ctx)
	case script.SubjectURL:
		actual, err = e.browser.URL(ctx)
	case script.SubjectText:
		actual, err = e.browser.GetTextContent(ctx, in.Selector)
	default:
		return fmt.Errorf("%w: EXPECT %s", script.ErrInvalidArgument, in.Subject)
	}
	if err != nil {
		return err
	}

	expected := in.Value
	if in.Subject == script.SubjectText {
		actual = strings.TrimSpace(actual)
		expected = strings.TrimSpace(expected)
	}
	var ok bool
	switch in.Condition {
	case script.ConditionContains:
		ok = strings.Contains(actual, expected)
	case script.ConditionEquals:
		ok = actual == expected
	default:
		return fmt.Errorf("%w: condition %s", script.ErrInvalidArgument, in.Condition)
	}
	if !ok {
		return &AssertionFailed{Subject: in.Subject, Condition: in.Condition, Expected: in.Value, Actual: actual}
	}
	return nil
}

func (e *Executor) enterOTP(ctx context.Context, in script.EnterOTP) error {
	selector := in.Selector
	if selector == "" {
		selector = e.cfg.OTPSelector
	}
	if _, err := e.browser.WaitForElementVisibleAndClickable(ctx, selector, e.cfg.Timeouts.Element); err != nil {
		return err
	}
	if e.codes == nil {
		return fmt.Errorf("%w: no code resolver configured", otp.ErrUnsupported)
	}
	code, err := e.codes.Resolve(ctx, in.From)
	if err != nil {
		return fmt.Errorf("failed to get one-time code from %s: %w", in.From, err)
	}
	e.logger.Debug("Entering one-time code.", zap.String("source", in.From.String()), zap.String("selector", selector))
	return e.browser.TypeText(ctx, selector, code)
}

type nopReporter struct{}

func (nopReporter) CommandStarted(script.Command)                      {}
func (nopReporter) CommandPassed(script.Command, time.Duration)        {}
func (nopReporter) CommandFailed(script.Command, time.Duration, error) {}
