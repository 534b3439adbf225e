package netwatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/assure-cli/internal/browser/protocol"
	"github.com/xkilldash9x/assure-cli/internal/browser/wait"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeNetwork records the subscription so tests can push events.
type fakeNetwork struct {
	mu       sync.Mutex
	fn       func(protocol.RequestEvent)
	canceled bool
}

func (f *fakeNetwork) EnableNetwork(context.Context) error { return nil }

func (f *fakeNetwork) SubscribeRequests(_ context.Context, fn func(protocol.RequestEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.canceled = true
	}
}

func (f *fakeNetwork) emit(id string, phase protocol.RequestPhase) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	fn(protocol.RequestEvent{RequestID: id, Phase: phase, URL: "https://example.com/" + id})
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestTracker(t *testing.T) (*Tracker, *fakeNetwork, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	tr := New(zaptest.NewLogger(t))
	tr.now = clock.now
	net := &fakeNetwork{}
	tr.Start(context.Background(), net)
	t.Cleanup(tr.Stop)
	return tr, net, clock
}

func TestTrackerCounts(t *testing.T) {
	tr, net, _ := newTestTracker(t)

	net.emit("1", protocol.RequestStarted)
	net.emit("2", protocol.RequestStarted)
	net.emit("1", protocol.RequestStarted) // redirect
	assert.Equal(t, 2, tr.Active())
	assert.Equal(t, 2, tr.Total())
	assert.ElementsMatch(t, []string{"https://example.com/1", "https://example.com/2"}, tr.Pending())

	net.emit("1", protocol.RequestFinished)
	net.emit("2", protocol.RequestFailed)
	assert.Equal(t, 0, tr.Active())

	// Unknown completions never drive the count negative.
	net.emit("ghost", protocol.RequestFinished)
	assert.Equal(t, 0, tr.Active())
}

func TestTrackerIdleFor(t *testing.T) {
	tr, net, clock := newTestTracker(t)

	assert.False(t, tr.IdleFor(500*time.Millisecond), "quiet period starts at Start")
	clock.advance(500 * time.Millisecond)
	assert.True(t, tr.IdleFor(500*time.Millisecond))

	net.emit("a", protocol.RequestStarted)
	clock.advance(time.Second)
	assert.False(t, tr.IdleFor(500*time.Millisecond), "busy while a request is in flight")

	net.emit("a", protocol.RequestFinished)
	clock.advance(499 * time.Millisecond)
	assert.False(t, tr.IdleFor(500*time.Millisecond))
	clock.advance(time.Millisecond)
	assert.True(t, tr.IdleFor(500*time.Millisecond))
}

func TestTrackerWaitIdle(t *testing.T) {
	t.Run("returns when quiet", func(t *testing.T) {
		tr := New(zaptest.NewLogger(t))
		net := &fakeNetwork{}
		tr.Start(context.Background(), net)
		defer tr.Stop()

		net.emit("x", protocol.RequestStarted)
		go func() {
			time.Sleep(30 * time.Millisecond)
			net.emit("x", protocol.RequestFinished)
		}()

		start := time.Now()
		require.NoError(t, tr.WaitIdle(context.Background(), 20*time.Millisecond, 2*time.Second))
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("times out while busy", func(t *testing.T) {
		tr := New(zaptest.NewLogger(t))
		net := &fakeNetwork{}
		tr.Start(context.Background(), net)
		defer tr.Stop()

		net.emit("long-poll", protocol.RequestStarted)
		err := tr.WaitIdle(context.Background(), 10*time.Millisecond, 120*time.Millisecond)
		var timeoutErr *wait.TimeoutError
		assert.ErrorAs(t, err, &timeoutErr)
	})
}

func TestTrackerStop(t *testing.T) {
	tr := New(zaptest.NewLogger(t))
	net := &fakeNetwork{}
	tr.Start(context.Background(), net)
	net.emit("1", protocol.RequestStarted)

	tr.Stop()
	assert.True(t, net.canceled)
	assert.Equal(t, 0, tr.Active())
	assert.NotPanics(t, tr.Stop, "stop is idempotent")
}
