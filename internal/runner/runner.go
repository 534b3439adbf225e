// Package runner ties a script file to a browser session: it validates and
// decodes the script, launches the browser, executes every instruction and
// hands the outcome to the configured reporters.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/assure-cli/internal/browser"
	"github.com/xkilldash9x/assure-cli/internal/browser/session"
	"github.com/xkilldash9x/assure-cli/internal/config"
	"github.com/xkilldash9x/assure-cli/internal/executor"
	"github.com/xkilldash9x/assure-cli/internal/otp"
	"github.com/xkilldash9x/assure-cli/internal/report"
	"github.com/xkilldash9x/assure-cli/internal/script"
	"github.com/xkilldash9x/assure-cli/internal/store"
)

// Extension is the required script file extension.
const Extension = ".assure"

var (
	ErrBadExtension   = errors.New("script must have the " + Extension + " extension")
	ErrScriptNotFound = errors.New("script file not found")
	ErrNoCommands     = errors.New("no commands found")
)

var _ executor.Browser = (*browser.Engine)(nil)

// Result is the outcome of one script run.
type Result struct {
	Passed   bool
	Executed int
	Total    int
	Duration time.Duration
	// FailedLine is the script line of the failing command, or 0 when the
	// run failed before any command executed.
	FailedLine int
	Err        error
}

// Runner executes script files.
type Runner struct {
	cfg    config.Interface
	logger *zap.Logger

	sessions *session.Manager
	codes    executor.CodeResolver
	reporter report.Reporter
	history  store.RunWriter
	now      func() time.Time
}

// Option customizes a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	sessionOpts []session.Option
	codes       executor.CodeResolver
	reporters   []report.Reporter
	history     store.RunWriter
}

// WithSessionOptions passes options to the session manager.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *runnerOptions) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// WithCodeResolver replaces the OTP resolver.
func WithCodeResolver(r executor.CodeResolver) Option {
	return func(o *runnerOptions) { o.codes = r }
}

// WithReporter adds a reporter. Reporters are called in the order added.
func WithReporter(r report.Reporter) Option {
	return func(o *runnerOptions) { o.reporters = append(o.reporters, r) }
}

// WithHistory records every run to w.
func WithHistory(w store.RunWriter) Option {
	return func(o *runnerOptions) { o.history = w }
}

// New creates a Runner.
func New(cfg config.Interface, logger *zap.Logger, opts ...Option) *Runner {
	var o runnerOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger = logger.Named("runner")
	if o.codes == nil {
		o.codes = otp.NewResolver(logger)
	}
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		sessions: session.NewManager(cfg.Browser(), logger, o.sessionOpts...),
		codes:    o.codes,
		reporter: report.Multi(o.reporters),
		history:  o.history,
		now:      time.Now,
	}
}

// Load validates path and returns its decoded instructions along with the
// raw commands.
func Load(path string) ([]script.Command, []script.Instruction, error) {
	if !strings.EqualFold(filepath.Ext(path), Extension) {
		return nil, nil, fmt.Errorf("%w: %s", ErrBadExtension, path)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return nil, nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	commands, err := script.Parse(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	if len(commands) == 0 {
		return nil, nil, fmt.Errorf("%w in %s", ErrNoCommands, path)
	}

	instructions, err := script.Decode(commands)
	if err != nil {
		return nil, nil, err
	}
	return commands, instructions, nil
}

// RunFile loads and executes the script at path. A rejected script returns
// an error and no result. Once the script is accepted the result carries the
// outcome, including a browser that failed to start; the error is then only
// set when a reporter could not finish.
func (r *Runner) RunFile(ctx context.Context, path string) (*Result, error) {
	commands, instructions, err := Load(path)
	if err != nil {
		return nil, err
	}

	reporter := r.reporter
	var recorder *store.Recorder
	if r.history != nil {
		recorder = store.NewRecorder(ctx, r.history)
		reporter = append(report.Multi{reporter}, recorder)
	}

	log := r.logger.With(zap.String("script", path))
	log.Info("Running script.", zap.Int("commands", len(commands)))

	reporter.Begin(path, commands)
	start := r.now()
	executed, runErr := r.execute(ctx, instructions, reporter, log)

	res := &Result{
		Passed:   runErr == nil,
		Executed: executed,
		Total:    len(instructions),
		Duration: r.now().Sub(start),
		Err:      runErr,
	}
	var cmdErr *executor.CommandError
	if errors.As(runErr, &cmdErr) {
		res.FailedLine = cmdErr.Line
	}

	finishErr := reporter.Finish(report.Summary{
		Script:     path,
		Total:      res.Total,
		Executed:   res.Executed,
		Passed:     res.Passed,
		Duration:   res.Duration,
		FailedLine: res.FailedLine,
		Err:        res.Err,
	})
	if recorder != nil && finishErr == nil {
		log.Info("Run recorded.", zap.String("run_id", recorder.RunID()))
	}

	if res.Passed {
		log.Info("Script passed.", zap.Duration("duration", res.Duration))
	} else {
		log.Warn("Script failed.", zap.Int("line", res.FailedLine), zap.Error(res.Err))
	}
	if finishErr != nil {
		return res, fmt.Errorf("failed to finish reports: %w", finishErr)
	}
	return res, nil
}

// execute runs instructions in a fresh browser session and reports how many
// instructions ran, counting the failing one.
func (r *Runner) execute(ctx context.Context, instructions []script.Instruction, reporter report.Reporter, log *zap.Logger) (int, error) {
	sess, err := r.sessions.CreateSession(ctx, r.cfg.Browser().Headless)
	if err != nil {
		return 0, fmt.Errorf("failed to start browser: %w", err)
	}
	defer r.sessions.CloseSession(sess)

	engine := browser.New(sess.Transport, browser.OptionsFromConfig(r.cfg), log)
	engine.Start(ctx)
	defer engine.Stop()

	ex := executor.New(engine, r.codes, reporter, executor.ConfigFrom(r.cfg), log)
	err = ex.Run(ctx, instructions)
	if err == nil {
		return len(instructions), nil
	}

	var cmdErr *executor.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Index + 1, err
	}
	return 0, err
}
