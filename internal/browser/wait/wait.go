// Package wait implements bounded polling against an eventually consistent
// target.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Check reports whether a condition holds. An error means "not yet" and is
// kept only to explain a timeout.
type Check func(ctx context.Context) (bool, error)

// Condition describes one wait.
type Condition struct {
	Check    Check
	Interval time.Duration
	Timeout  time.Duration
	// Description names the condition in timeout messages.
	Description string
}

// TimeoutError reports a condition that never held within its budget.
type TimeoutError struct {
	Description string
	Timeout     time.Duration
	Attempts    int
	// LastErr is the error from the final failing check, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.Description)
	if e.LastErr != nil {
		msg += fmt.Sprintf(" (last error: %v)", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.LastErr }

// ErrInvalidCondition is returned for a condition without a check or with a
// non-positive interval.
var ErrInvalidCondition = errors.New("invalid wait condition")

// PollUntil runs the check immediately and then every Interval until it
// returns true or Timeout elapses. Each check gets a context bounded by the
// remaining budget. Cancellation of ctx is returned as ctx.Err().
func PollUntil(ctx context.Context, c Condition) error {
	if c.Check == nil || c.Interval <= 0 {
		return fmt.Errorf("%w: check and positive interval required", ErrInvalidCondition)
	}
	if c.Description == "" {
		c.Description = "condition"
	}

	deadline := time.Now().Add(c.Timeout)
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	var (
		lastErr  error
		attempts int
	)
	for {
		attempts++
		ok, err := runCheck(ctx, c.Check, deadline)
		if ok && err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &TimeoutError{Description: c.Description, Timeout: c.Timeout, Attempts: attempts, LastErr: lastErr}
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-ticker.C:
			timer.Stop()
		case <-timer.C:
			// One last look at the deadline so a condition that becomes
			// true exactly at the budget still passes.
			attempts++
			if ok, err := runCheck(ctx, c.Check, time.Now().Add(c.Interval)); ok && err == nil {
				return nil
			} else if err != nil {
				lastErr = err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TimeoutError{Description: c.Description, Timeout: c.Timeout, Attempts: attempts, LastErr: lastErr}
		}
	}
}

func runCheck(ctx context.Context, check Check, deadline time.Time) (bool, error) {
	checkCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	return check(checkCtx)
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
