package views

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"deliverytrack/internal/model"
	"deliverytrack/internal/tracker"
	"deliverytrack/internal/tracking"
	"deliverytrack/internal/transport"
)

// ErrNotLoaded is returned by ApplyOptimistic before the first successful load.
var ErrNotLoaded = errors.New("tracking page not loaded")

// TransitionError rejects an optimistic status change the lifecycle forbids.
type TransitionError struct {
	From, To model.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// invalidator is satisfied by transport.CachedClient.
type invalidator interface {
	Invalidate(ctx context.Context, orderIDs ...int)
}

type PageOptions struct {
	Timeout time.Duration // bound for each detail fetch; default 10s
	Logger  *zap.Logger
	Now     func() time.Time
	OnLoad  func(model.TrackingSnapshot) // called after each successful load
}

// TrackingPage follows one order. When the dispatcher reports the order as
// changed the page re-fetches its detail in the background and rebuilds the
// snapshot. Fetch errors keep the last good snapshot and are exposed through
// LastError.
type TrackingPage struct {
	OrderID int

	client  transport.Client
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
	onLoad  func(model.TrackingSnapshot)

	// ctx bounds background refreshes and is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	snap       model.TrackingSnapshot
	loaded     bool
	optimistic bool
	lastErr    error
	seq        uint64
	closed     bool
}

func NewTrackingPage(client transport.Client, orderID int, opts PageOptions) *TrackingPage {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TrackingPage{
		ctx:     ctx,
		cancel:  cancel,
		OrderID: orderID,
		client:  client,
		log:     opts.Logger.Named("tracking").With(zap.Int("order_id", orderID)),
		timeout: opts.Timeout,
		now:     opts.Now,
		onLoad:  opts.OnLoad,
	}
}

// Load fetches the order detail and replaces the snapshot. A result that
// arrives after a newer Load started is dropped.
func (p *TrackingPage) Load(ctx context.Context) error {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	remote, err := p.client.GetOrderTracking(ctx, p.OrderID)
	var snap model.TrackingSnapshot
	if err == nil {
		snap, err = tracking.Snapshot(remote.Order, remote.RecentNotifications, p.now())
	}

	p.mu.Lock()
	if seq != p.seq {
		p.mu.Unlock()
		return err
	}
	if err != nil {
		if p.closed && errors.Is(err, context.Canceled) {
			p.mu.Unlock()
			return err
		}
		p.lastErr = err
		p.mu.Unlock()
		p.log.Warn("tracking fetch failed", zap.Error(err))
		return err
	}
	if p.loaded {
		snap = pinCancelled(p.snap, snap)
	}
	if p.optimistic && snap.Order.Status != p.snap.Order.Status {
		p.log.Debug("optimistic status replaced",
			zap.String("shown", string(p.snap.Order.Status)),
			zap.String("server", string(snap.Order.Status)))
	}
	p.snap = snap
	p.loaded = true
	p.optimistic = false
	p.lastErr = nil
	p.mu.Unlock()
	if p.onLoad != nil {
		p.onLoad(snap)
	}
	return nil
}

// HandleUpdate starts a refresh when the update names this order. It does
// not block the dispatcher.
func (p *TrackingPage) HandleUpdate(u tracker.Update) {
	if !u.Changed(p.OrderID) {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()
	go func() {
		defer p.wg.Done()
		ctx := p.ctx
		if inv, ok := p.client.(invalidator); ok {
			inv.Invalidate(ctx, p.OrderID)
		}
		_ = p.Load(ctx)
	}()
}

// Wait blocks until background refreshes finish.
func (p *TrackingPage) Wait() { p.wg.Wait() }

// Close cancels background refreshes and waits for them to return. Later
// updates are ignored. Close is idempotent.
func (p *TrackingPage) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}

// Snapshot returns the current snapshot and whether one has been loaded.
func (p *TrackingPage) Snapshot() (model.TrackingSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap, p.loaded
}

func (p *TrackingPage) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Optimistic reports whether the shown status came from ApplyOptimistic and
// has not yet been confirmed by a fetch.
func (p *TrackingPage) Optimistic() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.optimistic
}

// ApplyOptimistic shows the order as already moved to status at the given
// instant. The next successful Load replaces it with whatever the backend
// reports.
func (p *TrackingPage) ApplyOptimistic(status model.Status, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return ErrNotLoaded
	}
	from := p.snap.Order.Status
	if !model.CanTransition(from, status) {
		return &TransitionError{From: from, To: status}
	}
	o := advance(p.snap.Order, status, at)
	snap, err := tracking.Snapshot(o, p.snap.RecentNotifications, at)
	if err != nil {
		return err
	}
	p.snap = pinCancelled(p.snap, snap)
	p.optimistic = true
	return nil
}

// pinCancelled keeps a cancelled order at the progress it had already shown,
// since a cancelled order's timestamps may cover fewer steps than its last
// status did.
func pinCancelled(prev, next model.TrackingSnapshot) model.TrackingSnapshot {
	if next.Order.Status != model.StatusCancelled || prev.Order.ID != next.Order.ID ||
		prev.ProgressPercentage <= next.ProgressPercentage {
		return next
	}
	next.ProgressPercentage = prev.ProgressPercentage
	steps := append([]model.TrackingStep(nil), next.TrackingSteps...)
	for i := range steps {
		if i < len(prev.TrackingSteps) && prev.TrackingSteps[i].Completed && !steps[i].Completed {
			steps[i].Completed = true
			steps[i].Timestamp = prev.TrackingSteps[i].Timestamp
		}
	}
	next.TrackingSteps = steps
	return next
}

// advance sets status and fills the timestamps of every step up to it that
// the order has not recorded yet.
// A cancellation fills the steps up to the status being left, so the
// progress already shown is kept.
func advance(o model.Order, status model.Status, at time.Time) model.Order {
	reached := status.Rank()
	if status == model.StatusCancelled {
		reached = o.Status.Rank()
	}
	o.Status = status
	stamp := func(p **time.Time) {
		if *p == nil {
			t := at
			*p = &t
		}
	}
	fields := []**time.Time{&o.AssignedAt, &o.PickedUpAt, &o.InTransitAt, &o.DeliveredAt}
	for i := 0; i < reached; i++ {
		stamp(fields[i])
	}
	if status == model.StatusCancelled {
		stamp(&o.CancelledAt)
	}
	return o
}
