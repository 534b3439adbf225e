package executor

import (
	"fmt"

	"github.com/xkilldash9x/assure-cli/internal/script"
)

// CommandError attributes a failure to the script line that caused it.
type CommandError struct {
	// Index is the position of the failing instruction in the run.
	Index int
	Line  int
	Raw   string
	Err   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Raw, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// AssertionFailed reports an EXPECT whose condition did not hold.
type AssertionFailed struct {
	Subject   script.Subject
	Condition script.Condition
	Expected  string
	Actual    string
}

func (e *AssertionFailed) Error() string {
	if e.Subject == script.SubjectVisible {
		return fmt.Sprintf("expected %s to be visible", e.Expected)
	}
	return fmt.Sprintf("expected %s %s %q, got %q", e.Subject, e.Condition, e.Expected, e.Actual)
}
