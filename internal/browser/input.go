package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/assure-cli/internal/browser/protocol"
)

// Click waits for selector to be clickable and presses the left button at
// the center of its content box.
func (e *Engine) Click(ctx context.Context, selector string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Debug("Clicking element.", zap.String("selector", selector))
	h, err := e.waitFor(ctx, selector, e.opts.ElementTimeout, jsClickable)
	if err != nil {
		return err
	}
	quad, err := e.t.GetContentQuad(ctx, h.NodeID)
	if err != nil {
		return nodeError(selector, "failed to get box model", err)
	}
	x, y := quad.Center()
	for _, typ := range []string{protocol.MousePressed, protocol.MouseReleased} {
		ev := protocol.MouseEvent{Type: typ, X: x, Y: y, Button: protocol.ButtonLeft, ClickCount: 1}
		if err := e.t.DispatchMouseEvent(ctx, ev); err != nil {
			return fmt.Errorf("failed to dispatch %s on %q: %w", typ, selector, err)
		}
	}
	return e.sleep(ctx, e.opts.ClickSettle)
}

// TypeText focuses selector, clears its value and types text one character
// event per rune.
func (e *Engine) TypeText(ctx context.Context, selector, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Debug("Typing into element.", zap.String("selector", selector), zap.Int("text_length", len(text)))
	h, err := e.waitFor(ctx, selector, e.opts.ElementTimeout, jsClickable)
	if err != nil {
		return err
	}
	if err := e.t.Focus(ctx, h.NodeID); err != nil {
		return nodeError(selector, "failed to focus", err)
	}
	if _, err := e.callOn(ctx, h, jsClearValue); err != nil {
		return nodeError(selector, "failed to clear value", err)
	}

	var limiter *rate.Limiter
	if e.opts.KeyDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(e.opts.KeyDelay), 1)
	}
	for _, r := range text {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("typing into %q interrupted: %w", selector, err)
			}
		}
		if err := e.t.DispatchKeyEvent(ctx, protocol.KeyEvent{Type: protocol.KeyChar, Text: string(r)}); err != nil {
			return fmt.Errorf("failed to type into %q: %w", selector, err)
		}
	}
	return nil
}
