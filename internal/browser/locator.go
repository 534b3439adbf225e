package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/assure-cli/internal/browser/protocol"
	"github.com/xkilldash9x/assure-cli/internal/browser/wait"
)

// ElementHandle is a located node. It is valid until the document changes.
type ElementHandle struct {
	NodeID   protocol.NodeID
	Selector string
}

// QuerySelector returns the first match for selector, or nil if none.
func (e *Engine) QuerySelector(ctx context.Context, selector string) (*ElementHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query(ctx, selector)
}

// WaitForSelector waits until selector matches an element that is rendered
// and inside the viewport.
func (e *Engine) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (*ElementHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waitFor(ctx, selector, timeout, jsVisible)
}

// WaitForElementVisibleAndClickable waits until selector matches a visible,
// enabled element that receives pointer events at its center.
func (e *Engine) WaitForElementVisibleAndClickable(ctx context.Context, selector string, timeout time.Duration) (*ElementHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waitFor(ctx, selector, timeout, jsClickable)
}

// WaitForPresence waits until selector matches any element.
func (e *Engine) WaitForPresence(ctx context.Context, selector string, timeout time.Duration) (*ElementHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waitFor(ctx, selector, timeout, "")
}

// WaitForText waits until the text of the element matching selector contains
// substr. Matching is case sensitive.
func (e *Engine) WaitForText(ctx context.Context, selector, substr string, timeout time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var last string
	err := wait.PollUntil(ctx, wait.Condition{
		Check: func(ctx context.Context) (bool, error) {
			h, err := e.query(ctx, selector)
			if err != nil || h == nil {
				return false, err
			}
			text, err := e.text(ctx, h)
			if err != nil {
				return false, err
			}
			last = text
			return strings.Contains(text, substr), nil
		},
		Interval:    e.opts.TextPoll,
		Timeout:     timeout,
		Description: fmt.Sprintf("text %q in %q", substr, selector),
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("last text was %q: %w", truncate(last, 120), err)
	}
	return err
}

// WaitForURL waits until the current location contains substr.
func (e *Engine) WaitForURL(ctx context.Context, substr string, timeout time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var last string
	err := wait.PollUntil(ctx, wait.Condition{
		Check: func(ctx context.Context) (bool, error) {
			u, err := e.evalString(ctx, "window.location.href")
			if err != nil {
				return false, err
			}
			last = u
			return strings.Contains(u, substr), nil
		},
		Interval:    e.opts.TextPoll,
		Timeout:     timeout,
		Description: fmt.Sprintf("url containing %q", substr),
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("last url was %q: %w", last, err)
	}
	return err
}

// GetTextContent waits for selector to be present and returns its text.
func (e *Engine) GetTextContent(ctx context.Context, selector string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.waitFor(ctx, selector, e.opts.ElementTimeout, "")
	if err != nil {
		return "", err
	}
	text, err := e.text(ctx, h)
	if err != nil {
		return "", nodeError(selector, "failed to read text", err)
	}
	return text, nil
}

// IsVisible reports whether selector currently matches a rendered element.
// A missing element is not visible. Geometry is not considered. Any failure
// to inspect the element also reads as not visible; only cancellation of ctx
// is returned as an error.
func (e *Engine) IsVisible(ctx context.Context, selector string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	visible, err := e.visible(ctx, selector)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		e.logger.Debug("Visibility check failed, treating element as hidden.", zap.String("selector", selector), zap.Error(err))
		return false, nil
	}
	return visible, nil
}

func (e *Engine) visible(ctx context.Context, selector string) (bool, error) {
	h, err := e.query(ctx, selector)
	if err != nil || h == nil {
		return false, err
	}
	v, err := e.callOn(ctx, h, jsStyleVisible)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

func (e *Engine) query(ctx context.Context, selector string) (*ElementHandle, error) {
	root, err := e.t.GetDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	id, err := e.t.QuerySelector(ctx, root, selector)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}
	if id == 0 {
		return nil, nil
	}
	return &ElementHandle{NodeID: id, Selector: selector}, nil
}

func (e *Engine) callOn(ctx context.Context, h *ElementHandle, function string) (protocol.RemoteValue, error) {
	obj, err := e.t.ResolveNode(ctx, h.NodeID)
	if err != nil {
		return protocol.RemoteValue{}, err
	}
	return e.t.CallFunctionOn(ctx, obj, function)
}

func (e *Engine) text(ctx context.Context, h *ElementHandle) (string, error) {
	v, err := e.callOn(ctx, h, jsTextContent)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// waitFor polls for selector and, when probe is set, until the probe
// reports ok. Timeouts become *ElementNotFoundError.
func (e *Engine) waitFor(ctx context.Context, selector string, timeout time.Duration, probe string) (*ElementHandle, error) {
	var (
		found  *ElementHandle
		reason string
	)
	err := wait.PollUntil(ctx, wait.Condition{
		Check: func(ctx context.Context) (bool, error) {
			h, err := e.query(ctx, selector)
			if err != nil {
				reason = err.Error()
				return false, err
			}
			if h == nil {
				reason = "no element matches"
				return false, nil
			}
			if probe != "" {
				v, err := e.callOn(ctx, h, probe)
				if err != nil {
					reason = err.Error()
					return false, err
				}
				var res probeResult
				if err := v.Decode(&res); err != nil {
					reason = err.Error()
					return false, err
				}
				if !res.OK {
					reason = res.Reason
					return false, nil
				}
			}
			found = h
			return true, nil
		},
		Interval:    e.opts.ElementPoll,
		Timeout:     timeout,
		Description: fmt.Sprintf("element %q", selector),
	})
	if err == nil {
		return found, nil
	}
	var te *wait.TimeoutError
	if errors.As(err, &te) {
		return nil, &ElementNotFoundError{Selector: selector, Timeout: timeout, Reason: reason, Err: te}
	}
	return nil, err
}

func nodeError(selector, op string, err error) error {
	if errors.Is(err, protocol.ErrStaleNode) {
		return &StaleElementError{Selector: selector, Err: err}
	}
	return fmt.Errorf("%s for %q: %w", op, selector, err)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
