// Package netwatch tracks in-flight network requests for a page so callers
// can wait for the network to go quiet.
package netwatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/assure-cli/internal/browser/protocol"
	"github.com/xkilldash9x/assure-cli/internal/browser/wait"
)

// idleCheckFrequency is how often WaitIdle samples the tracker.
const idleCheckFrequency = 50 * time.Millisecond

// Tracker counts requests between Network.requestWillBeSent and
// Network.loadingFinished or Network.loadingFailed.
type Tracker struct {
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	inflight   map[string]string // request id -> url
	lastChange time.Time
	total      int
	stop       func()
}

// New creates a stopped tracker.
func New(logger *zap.Logger) *Tracker {
	return &Tracker{
		logger:   logger.Named("netwatch"),
		now:      time.Now,
		inflight: make(map[string]string),
	}
}

// Start subscribes to request events. The subscription ends when ctx is done
// or Stop is called. Starting a running tracker is a no-op.
func (t *Tracker) Start(ctx context.Context, network protocol.Network) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.lastChange = t.now()
	t.stop = network.SubscribeRequests(ctx, t.Observe)
}

// Stop ends the subscription and forgets in-flight requests.
func (t *Tracker) Stop() {
	t.mu.Lock()
	stop := t.stop
	t.stop = nil
	t.inflight = make(map[string]string)
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Observe applies one request event. It is the subscription callback and is
// exported for callers that feed events themselves.
func (t *Tracker) Observe(ev protocol.RequestEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Phase {
	case protocol.RequestStarted:
		// Redirects reuse the request id; count them once.
		if _, ok := t.inflight[ev.RequestID]; !ok {
			t.total++
		}
		t.inflight[ev.RequestID] = ev.URL
	case protocol.RequestFinished, protocol.RequestFailed:
		if _, ok := t.inflight[ev.RequestID]; !ok {
			return
		}
		delete(t.inflight, ev.RequestID)
	default:
		return
	}
	t.lastChange = t.now()
}

// Active returns the number of requests in flight.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// Total returns how many distinct requests have been seen.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// IdleFor reports whether no request has been in flight for at least quiet.
func (t *Tracker) IdleFor(quiet time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && t.now().Sub(t.lastChange) >= quiet
}

// Pending lists the URLs still in flight.
func (t *Tracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	urls := make([]string, 0, len(t.inflight))
	for _, u := range t.inflight {
		urls = append(urls, u)
	}
	return urls
}

// WaitIdle blocks until the network has been quiet for quiet, or timeout
// elapses. A timeout is returned as a *wait.TimeoutError.
func (t *Tracker) WaitIdle(ctx context.Context, quiet, timeout time.Duration) error {
	err := wait.PollUntil(ctx, wait.Condition{
		Check:       func(context.Context) (bool, error) { return t.IdleFor(quiet), nil },
		Interval:    idleCheckFrequency,
		Timeout:     timeout,
		Description: "network idle",
	})
	if err != nil {
		t.logger.Debug("Network did not go idle.", zap.Int("active", t.Active()), zap.Strings("pending", t.Pending()), zap.Error(err))
		return err
	}
	t.logger.Debug("Network is idle.", zap.Int("requests_seen", t.Total()))
	return nil
}
