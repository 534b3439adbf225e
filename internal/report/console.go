package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/xkilldash9x/assure-cli/internal/script"
)

// Console writes human readable progress, one line per command.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console reporter writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

func (c *Console) Begin(path string, commands []script.Command) {
	c.printf("\n🚀 Assure Test Runner\n📄 Running: %s (%d commands)\n\n", path, len(commands))
}

func (c *Console) CommandStarted(cmd script.Command) {
	if isTest(cmd) {
		c.printf("\n▶ TEST %s\n", label(cmd))
	}
}

func (c *Console) CommandPassed(cmd script.Command, _ time.Duration) {
	if isTest(cmd) {
		return
	}
	c.printf("✓ Line %d: %s\n", cmd.Line, cmd.Raw)
}

func (c *Console) CommandFailed(cmd script.Command, _ time.Duration, err error) {
	c.printf("\n❌ Error at line %d: %s\n   %v\n", cmd.Line, cmd.Raw, err)
}

func (c *Console) Finish(s Summary) error {
	if s.Passed {
		c.printf("\n✅ TEST COMPLETED SUCCESSFULLY (%d commands in %s)\n", s.Executed, s.Duration.Round(time.Millisecond))
		return nil
	}
	if s.Err != nil {
		c.printf("\n❌ TEST FAILED: %v\n", s.Err)
	} else {
		c.printf("\n❌ TEST FAILED\n")
	}
	c.printf("   %d of %d commands executed in %s\n", s.Executed, s.Total, s.Duration.Round(time.Millisecond))
	return nil
}
