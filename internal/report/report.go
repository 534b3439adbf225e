// Package report renders run progress and results.
package report

import (
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/xkilldash9x/assure-cli/internal/script"
)

// Reporter receives run progress. Implementations must be safe to call from
// the executor's goroutine while Finish runs on the runner's.
type Reporter interface {
	// Begin is called once before the first command.
	Begin(scriptPath string, commands []script.Command)
	CommandStarted(cmd script.Command)
	CommandPassed(cmd script.Command, elapsed time.Duration)
	CommandFailed(cmd script.Command, elapsed time.Duration, err error)
	// Finish is called once with the outcome, after the browser closed.
	Finish(s Summary) error
}

// Summary is the outcome of one run.
type Summary struct {
	Script   string
	Total    int
	Executed int
	Passed   bool
	Duration time.Duration
	// FailedLine is the script line that failed, or 0.
	FailedLine int
	Err        error
}

// Multi fans every call out to each reporter in order.
type Multi []Reporter

func (m Multi) Begin(path string, commands []script.Command) {
	for _, r := range m {
		r.Begin(path, commands)
	}
}

func (m Multi) CommandStarted(cmd script.Command) {
	for _, r := range m {
		r.CommandStarted(cmd)
	}
}

func (m Multi) CommandPassed(cmd script.Command, elapsed time.Duration) {
	for _, r := range m {
		r.CommandPassed(cmd, elapsed)
	}
}

func (m Multi) CommandFailed(cmd script.Command, elapsed time.Duration, err error) {
	for _, r := range m {
		r.CommandFailed(cmd, elapsed, err)
	}
}

// Finish calls every reporter and combines their errors.
func (m Multi) Finish(s Summary) error {
	var errs error
	for _, r := range m {
		errs = multierr.Append(errs, r.Finish(s))
	}
	return errs
}

func isTest(cmd script.Command) bool {
	return strings.EqualFold(cmd.Action, "TEST")
}

func label(cmd script.Command) string {
	return strings.Join(cmd.Args, " ")
}
