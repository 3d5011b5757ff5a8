// Package tracker keeps subscribers in sync with the backend order list by
// polling it on a single shared loop.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"deliverytrack/internal/metrics"
	"deliverytrack/internal/model"
)

// Lister is the part of the transport the dispatcher polls.
type Lister interface {
	ListOrders(ctx context.Context) ([]model.OrderSummary, error)
}

type State int

const (
	Idle State = iota
	Polling
	Fetching
	Backoff
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Fetching:
		return "fetching"
	case Backoff:
		return "backoff"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configure a Dispatcher. Zero values get defaults.
type Options struct {
	Interval     time.Duration // delay between successful polls
	FetchTimeout time.Duration // a fetch running longer counts as failed
	MaxBackoff   time.Duration // cap for the delay after repeated failures
	Clock        Clock
	Logger       *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = o.Interval
	}
	if o.MaxBackoff < o.Interval {
		o.MaxBackoff = 12 * o.Interval
	}
	if o.Clock == nil {
		o.Clock = RealClock
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Dispatcher polls a Lister while it has subscribers and fans each result
// out to all of them. The zero value is not usable; call New.
//
// A timer is armed only after a poll settles and its update has been
// delivered, so polls never overlap. PollNow calls that arrive while a fetch
// is in flight are folded into a single follow-up fetch.
type Dispatcher struct {
	src   Lister
	opts  Options
	log   *zap.Logger
	clock Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	subs     []Subscriber
	timer    Timer
	timerSeq uint64
	fetching bool
	pending  bool
	session  uint64
	failures int
	last     map[int]model.OrderSummary
	closed   bool
}

func New(src Lister, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		src:    src,
		opts:   opts,
		log:    opts.Logger.Named("tracker"),
		clock:  opts.Clock,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers s. The first subscriber starts polling; registering a
// subscriber twice is a no-op.
func (d *Dispatcher) Subscribe(s Subscriber) {
	if s == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.indexOf(s) >= 0 {
		return
	}
	d.subs = append(d.subs, s)
	metrics.Subscribers.Set(float64(len(d.subs)))
	if len(d.subs) == 1 {
		d.session++
		d.failures = 0
		d.last = nil
		d.arm(0)
		d.log.Debug("polling started", zap.Uint64("session", d.session))
	}
}

// Unsubscribe removes s. Removing the last subscriber stops the timer
// before returning; a fetch already in flight completes but its result is
// dropped. Unknown subscribers are ignored.
func (d *Dispatcher) Unsubscribe(s Subscriber) {
	if s == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexOf(s)
	if i < 0 {
		return
	}
	d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
	metrics.Subscribers.Set(float64(len(d.subs)))
	if len(d.subs) == 0 {
		d.idle()
		d.log.Debug("polling stopped")
	}
}

// PollNow asks for a poll without waiting for the timer. If a fetch is in
// flight the request is deferred until it settles.
func (d *Dispatcher) PollNow() {
	d.mu.Lock()
	if d.closed || len(d.subs) == 0 {
		d.mu.Unlock()
		return
	}
	if d.fetching {
		d.pending = true
		d.mu.Unlock()
		metrics.CoalescedTicks.Inc()
		return
	}
	d.stopTimer()
	d.fetching = true
	session := d.session
	d.mu.Unlock()
	go d.run(session)
}

// Close stops polling for good and drops every subscriber.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.subs = nil
	d.idle()
	d.mu.Unlock()
	metrics.Subscribers.Set(0)
	d.cancel()
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		return Closed
	case len(d.subs) == 0:
		return Idle
	case d.fetching:
		return Fetching
	case d.failures > 0:
		return Backoff
	default:
		return Polling
	}
}

// Subscribers returns the number of registered subscribers.
func (d *Dispatcher) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

func (d *Dispatcher) indexOf(s Subscriber) int {
	for i, x := range d.subs {
		if x == s {
			return i
		}
	}
	return -1
}

// idle resets the session. Callers hold d.mu.
func (d *Dispatcher) idle() {
	d.stopTimer()
	d.session++
	d.pending = false
	d.failures = 0
	d.last = nil
	metrics.BackoffSeconds.Set(0)
}

// arm schedules the next tick. Callers hold d.mu.
func (d *Dispatcher) arm(delay time.Duration) {
	d.stopTimer()
	d.timerSeq++
	seq := d.timerSeq
	d.timer = d.clock.AfterFunc(delay, func() { d.tick(seq) })
}

func (d *Dispatcher) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.timerSeq++
}

func (d *Dispatcher) tick(seq uint64) {
	d.mu.Lock()
	if d.closed || seq != d.timerSeq || len(d.subs) == 0 {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if d.fetching {
		d.pending = true
		d.mu.Unlock()
		metrics.CoalescedTicks.Inc()
		return
	}
	d.fetching = true
	session := d.session
	d.mu.Unlock()
	go d.run(session)
}

// run performs fetches until nothing is pending, then arms the next tick.
// d.fetching is true for the whole call, delivery included.
func (d *Dispatcher) run(session uint64) {
	for {
		orders, err := d.fetch()

		d.mu.Lock()
		if d.closed {
			d.fetching = false
			d.mu.Unlock()
			return
		}
		if session != d.session || len(d.subs) == 0 {
			metrics.Polls.WithLabelValues("discarded").Inc()
			if d.pending && len(d.subs) > 0 {
				// a new session queued a tick while this fetch was in flight
				d.pending = false
				session = d.session
				d.mu.Unlock()
				continue
			}
			d.fetching = false
			d.mu.Unlock()
			return
		}
		if err != nil {
			d.failures++
			delay := d.backoff()
			d.pending = false
			d.fetching = false
			d.arm(delay)
			failures := d.failures
			d.mu.Unlock()
			metrics.Polls.WithLabelValues("error").Inc()
			metrics.BackoffSeconds.Set(delay.Seconds())
			d.log.Warn("order poll failed", zap.Error(err), zap.Int("failures", failures), zap.Duration("retry_in", delay))
			return
		}
		d.failures = 0
		changed := diff(d.last, orders)
		d.last = index(orders)
		upd := Update{Orders: orders, ChangedOrderIDs: changed, Timestamp: d.clock.Now()}
		subs := append([]Subscriber(nil), d.subs...)
		d.mu.Unlock()

		metrics.Polls.WithLabelValues("ok").Inc()
		metrics.BackoffSeconds.Set(0)
		metrics.ChangedOrders.Add(float64(len(changed)))
		if len(changed) > 0 {
			d.log.Debug("orders changed", zap.Ints("order_ids", changed))
		}
		d.deliver(session, subs, upd)

		d.mu.Lock()
		if d.closed || session != d.session || len(d.subs) == 0 {
			d.fetching = false
			d.mu.Unlock()
			return
		}
		if d.pending {
			d.pending = false
			d.mu.Unlock()
			continue
		}
		d.fetching = false
		d.arm(d.opts.Interval)
		d.mu.Unlock()
		return
	}
}

type listResult struct {
	orders []model.OrderSummary
	err    error
}

// fetch lists orders within FetchTimeout. A Lister that ignores its context
// is abandoned when the deadline passes; its late result is dropped.
func (d *Dispatcher) fetch() ([]model.OrderSummary, error) {
	ctx, cancel := context.WithTimeout(d.ctx, d.opts.FetchTimeout)
	defer cancel()
	start := time.Now()
	done := make(chan listResult, 1)
	go func() {
		orders, err := d.src.ListOrders(ctx)
		done <- listResult{orders: orders, err: err}
	}()
	var res listResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("order list fetch abandoned: %w", ctx.Err())
	}
	metrics.PollDuration.Observe(time.Since(start).Seconds())
	if res.err != nil {
		return nil, res.err
	}
	if err := validate(res.orders); err != nil {
		return nil, fmt.Errorf("malformed order list: %w", err)
	}
	return res.orders, nil
}

// deliver hands upd to each subscriber in registration order, skipping any
// that unsubscribed during the pass.
func (d *Dispatcher) deliver(session uint64, subs []Subscriber, upd Update) {
	for _, s := range subs {
		d.mu.Lock()
		live := !d.closed && session == d.session && d.indexOf(s) >= 0
		d.mu.Unlock()
		if !live {
			continue
		}
		d.call(s, upd)
	}
}

func (d *Dispatcher) call(s Subscriber, upd Update) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("subscriber panicked", zap.Any("panic", r))
		}
	}()
	s.HandleUpdate(upd)
}

// backoff returns Interval * 2^failures, capped at MaxBackoff.
func (d *Dispatcher) backoff() time.Duration {
	n := d.failures
	if n > 16 {
		n = 16
	}
	delay := d.opts.Interval * time.Duration(1<<n)
	if delay <= 0 || delay > d.opts.MaxBackoff {
		delay = d.opts.MaxBackoff
	}
	return delay
}
