package session

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Process is a running browser.
type Process interface {
	Pid() int
	// Kill terminates the process and its children.
	Kill() error
	// Wait blocks until the process has exited.
	Wait() error
}

// Launcher starts browser processes.
type Launcher interface {
	Launch(ctx context.Context, executable string, args []string) (Process, error)
}

// ExecLauncher starts the browser as a child process in its own process
// group where the platform supports it.
type ExecLauncher struct{}

func (ExecLauncher) Launch(_ context.Context, executable string, args []string) (Process, error) {
	// Not CommandContext: the process must outlive a canceled launch context
	// until CloseSession kills its whole group.
	cmd := exec.Command(executable, args...)
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Kill() error { return killProcessGroup(p.cmd) }

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// A killed browser always exits non-zero.
		return nil
	}
	return err
}

// waitTimeout bounds how long teardown waits for a killed process to be reaped.
const waitTimeout = 5 * time.Second

func terminate(p Process) error {
	if p == nil {
		return nil
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("failed to kill browser process %d: %w", p.Pid(), err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to reap browser process %d: %w", p.Pid(), err)
		}
		return nil
	case <-time.After(waitTimeout):
		return fmt.Errorf("browser process %d did not exit within %s", p.Pid(), waitTimeout)
	}
}
