// Package browser drives a single page over a protocol.Transport: navigation,
// script evaluation, element lookup, waits and synthetic input.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/assure-cli/internal/browser/netwatch"
	"github.com/xkilldash9x/assure-cli/internal/browser/protocol"
	"github.com/xkilldash9x/assure-cli/internal/browser/wait"
	"github.com/xkilldash9x/assure-cli/internal/config"
)

// Options tunes engine timing. Unset timeouts and poll intervals take the
// package defaults; delays may be zero and negative delays take defaults.
type Options struct {
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	ElementPoll       time.Duration
	TextPoll          time.Duration

	KeyDelay    time.Duration
	ClickSettle time.Duration

	IdleStrategy string
	IdleGrace    time.Duration
	IdleSettle   time.Duration
	QuietPeriod  time.Duration
}

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultElementTimeout    = 10 * time.Second
	defaultElementPoll       = 100 * time.Millisecond
	defaultTextPoll          = 200 * time.Millisecond
	defaultClickSettle       = 100 * time.Millisecond
	defaultIdleGrace         = 500 * time.Millisecond
	defaultIdleSettle        = 500 * time.Millisecond
	defaultQuietPeriod       = 500 * time.Millisecond
	readyStatePoll           = 100 * time.Millisecond
)

// OptionsFromConfig collects the engine settings spread across config sections.
func OptionsFromConfig(cfg config.Interface) Options {
	t, in, n := cfg.Timeouts(), cfg.Input(), cfg.Network()
	return Options{
		NavigationTimeout: t.Navigation,
		ElementTimeout:    t.Element,
		ElementPoll:       t.ElementPoll,
		TextPoll:          t.TextPoll,
		KeyDelay:          in.KeyDelay,
		ClickSettle:       in.ClickSettle,
		IdleStrategy:      n.IdleStrategy,
		IdleGrace:         n.IdleGrace,
		IdleSettle:        n.IdleSettle,
		QuietPeriod:       n.QuietPeriod,
	}
}

func (o *Options) applyDefaults() {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = defaultNavigationTimeout
	}
	if o.ElementTimeout <= 0 {
		o.ElementTimeout = defaultElementTimeout
	}
	if o.ElementPoll <= 0 {
		o.ElementPoll = defaultElementPoll
	}
	if o.TextPoll <= 0 {
		o.TextPoll = defaultTextPoll
	}
	if o.ClickSettle < 0 {
		o.ClickSettle = defaultClickSettle
	}
	if o.KeyDelay < 0 {
		o.KeyDelay = 0
	}
	if o.IdleStrategy == "" {
		o.IdleStrategy = config.IdleStrategyReadyState
	}
	if o.IdleGrace < 0 {
		o.IdleGrace = defaultIdleGrace
	}
	if o.IdleSettle < 0 {
		o.IdleSettle = defaultIdleSettle
	}
	if o.QuietPeriod <= 0 {
		o.QuietPeriod = defaultQuietPeriod
	}
}

// Engine performs page operations against one transport. All exported
// methods are serialized; the transport is never used concurrently.
type Engine struct {
	t       protocol.Transport
	opts    Options
	logger  *zap.Logger
	tracker *netwatch.Tracker

	mu sync.Mutex
	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an engine over t.
func New(t protocol.Transport, opts Options, logger *zap.Logger) *Engine {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("engine")
	e := &Engine{
		t:      t,
		opts:   opts,
		logger: logger,
		sleep:  wait.Sleep,
	}
	if opts.IdleStrategy == config.IdleStrategyRequests {
		e.tracker = netwatch.New(logger)
	}
	return e
}

// Start begins request tracking when the requests idle strategy is in use.
// The subscription ends when ctx is done or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	if e.tracker != nil {
		e.tracker.Start(ctx, e.t)
	}
}

// Stop releases event subscriptions. The transport stays open.
func (e *Engine) Stop() {
	if e.tracker != nil {
		e.tracker.Stop()
	}
}

// Navigate loads url and blocks until the page fires its load event.
func (e *Engine) Navigate(ctx context.Context, url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Debug("Navigating.", zap.String("url", url))
	navCtx, cancel := context.WithTimeout(ctx, e.opts.NavigationTimeout)
	defer cancel()

	loaded, unsubscribe := e.t.SubscribeLoad(navCtx)
	defer unsubscribe()

	res, err := e.t.Navigate(navCtx, url)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NavigationError{URL: url, Err: err}
	}
	if res.ErrorText != "" {
		return &NavigationError{URL: url, Err: errors.New(res.ErrorText)}
	}

	select {
	case <-loaded:
		e.logger.Debug("Page loaded.", zap.String("url", url), zap.String("frame_id", res.FrameID))
		return nil
	case <-navCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NavigationError{
			URL: url,
			Err: fmt.Errorf("load event not received within %s: %w", e.opts.NavigationTimeout, context.DeadlineExceeded),
		}
	}
}

// Evaluate runs expression in the page and returns its value.
func (e *Engine) Evaluate(ctx context.Context, expression string) (protocol.RemoteValue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t.Evaluate(ctx, expression)
}

// Title returns document.title.
func (e *Engine) Title(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evalString(ctx, "document.title")
}

// URL returns the current location.
func (e *Engine) URL(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evalString(ctx, "window.location.href")
}

func (e *Engine) evalString(ctx context.Context, expression string) (string, error) {
	v, err := e.t.Evaluate(ctx, expression)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate %s: %w", expression, err)
	}
	return v.AsString()
}

// WaitForNetworkIdle gives the page a chance to settle. It never fails on
// timeout; only cancellation of ctx is returned.
func (e *Engine) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	grace := min(e.opts.IdleGrace, timeout)
	if err := e.sleep(ctx, grace); err != nil {
		return err
	}
	remaining := timeout - time.Since(start)

	var err error
	switch e.opts.IdleStrategy {
	case config.IdleStrategyRequests:
		err = e.tracker.WaitIdle(ctx, e.opts.QuietPeriod, remaining)
	default:
		err = wait.PollUntil(ctx, wait.Condition{
			Check: func(ctx context.Context) (bool, error) {
				state, err := e.evalString(ctx, "document.readyState")
				return state == "complete", err
			},
			Interval:    readyStatePoll,
			Timeout:     remaining,
			Description: "document ready",
		})
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Debug("Network idle wait expired, continuing.", zap.Duration("timeout", timeout), zap.Error(err))
	}
	return e.sleep(ctx, e.opts.IdleSettle)
}
