package tracker

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deliverytrack/internal/model"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs due timers on the calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of armed timers.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// NextDelay returns the delay until the earliest armed timer.
func (c *fakeClock) NextDelay() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var best *fakeTimer
	for _, t := range c.timers {
		if t.stopped || t.fired {
			continue
		}
		if best == nil || t.at.Before(best.at) {
			best = t
		}
	}
	if best == nil {
		return 0, false
	}
	return best.at.Sub(c.now), true
}

// fakeLister blocks each ListOrders call until a result is pushed.
type fakeLister struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	results chan listResult
}

func newFakeLister() *fakeLister {
	return &fakeLister{started: make(chan struct{}, 16), results: make(chan listResult)}
}

func (f *fakeLister) ListOrders(ctx context.Context) ([]model.OrderSummary, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.started <- struct{}{}
	select {
	case r := <-f.results:
		return r.orders, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeLister) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLister) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for fetch to start")
	}
}

func (f *fakeLister) respond(t *testing.T, orders []model.OrderSummary, err error) {
	t.Helper()
	select {
	case f.results <- listResult{orders: orders, err: err}:
	case <-time.After(time.Second):
		t.Fatal("timeout delivering fetch result")
	}
}

func (f *fakeLister) assertNoStart(t *testing.T) {
	t.Helper()
	select {
	case <-f.started:
		t.Fatal("unexpected fetch")
	case <-time.After(30 * time.Millisecond):
	}
}

// recorder is a Subscriber that keeps every update it sees.
type recorder struct {
	mu      sync.Mutex
	updates []Update
	ch      chan Update
}

func newRecorder() *recorder { return &recorder{ch: make(chan Update, 16)} }

func (r *recorder) HandleUpdate(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	r.ch <- u
}

func (r *recorder) next(t *testing.T) Update {
	t.Helper()
	select {
	case u := <-r.ch:
		return u
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for update")
	}
	return Update{}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (d *Dispatcher) isFetching() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetching
}

func waitSettled(t *testing.T, d *Dispatcher) {
	t.Helper()
	require.Eventually(t, func() bool { return !d.isFetching() }, time.Second, time.Millisecond)
}

func waitArmed(t *testing.T, c *fakeClock) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Pending() == 1 }, time.Second, time.Millisecond)
}

func summary(id int, status model.Status) model.OrderSummary {
	return model.OrderSummary{ID: id, Status: status, CreatedAt: time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)}
}
