package browser

import (
	"fmt"
	"time"
)

// ElementNotFoundError reports a selector that never reached the required
// state within its timeout.
type ElementNotFoundError struct {
	Selector string
	Timeout  time.Duration
	// Reason is the last unmet condition observed, if any.
	Reason string
	Err    error
}

func (e *ElementNotFoundError) Error() string {
	msg := fmt.Sprintf("element %q not found within %s", e.Selector, e.Timeout)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ElementNotFoundError) Unwrap() error { return e.Err }

// StaleElementError reports a node that detached between lookup and use.
type StaleElementError struct {
	Selector string
	Err      error
}

func (e *StaleElementError) Error() string {
	return fmt.Sprintf("element %q went stale: %v", e.Selector, e.Err)
}

func (e *StaleElementError) Unwrap() error { return e.Err }

// NavigationError reports a failed or timed out page load.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }
