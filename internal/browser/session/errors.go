package session

import (
	"errors"
	"fmt"
)

var (
	// ErrExecutableNotFound means no browser binary could be located.
	ErrExecutableNotFound = errors.New("browser executable not found")
	// ErrConnectionFailed means the retry budget ran out before the
	// debugging endpoint accepted a connection.
	ErrConnectionFailed = errors.New("failed to connect to browser")
	// ErrSessionActive is returned when a session is requested while another
	// is still open.
	ErrSessionActive = errors.New("a browser session is already active")
)

// LaunchError reports a failure to find or start the browser process.
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	if e.Executable == "" {
		return fmt.Sprintf("failed to launch browser: %v", e.Err)
	}
	return fmt.Sprintf("failed to launch browser %s: %v", e.Executable, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ConnectionError reports an exhausted connection retry budget. It matches
// ErrConnectionFailed with errors.Is.
type ConnectionError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%v: %s after %d attempts: %v", ErrConnectionFailed, e.Endpoint, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnectionFailed, e.Err} }

// EnableError reports a protocol domain that could not be enabled.
type EnableError struct {
	Domain string
	Err    error
}

func (e *EnableError) Error() string {
	return fmt.Sprintf("failed to enable %s domain: %v", e.Domain, e.Err)
}

func (e *EnableError) Unwrap() error { return e.Err }
