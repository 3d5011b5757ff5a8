// Package views holds the consumers of the tracker: an order list and a
// per-order tracking page. They only read what the dispatcher hands them and
// fetch order detail through the transport themselves.
package views

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"deliverytrack/internal/model"
	"deliverytrack/internal/tracker"
)

// OrderList keeps the latest authoritative order list.
type OrderList struct {
	log *zap.Logger

	mu      sync.RWMutex
	orders  []model.OrderSummary
	changed []int
	updated time.Time
	polls   int
}

func NewOrderList(log *zap.Logger) *OrderList {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderList{log: log.Named("orders")}
}

// HandleUpdate replaces the list wholesale. The payload is shared with other
// subscribers, so it is copied rather than kept.
func (l *OrderList) HandleUpdate(u tracker.Update) {
	orders := append([]model.OrderSummary(nil), u.Orders...)
	changed := append([]int(nil), u.ChangedOrderIDs...)
	l.mu.Lock()
	l.orders = orders
	l.changed = changed
	l.updated = u.Timestamp
	l.polls++
	l.mu.Unlock()
	if len(changed) > 0 {
		l.log.Info("orders updated", zap.Int("total", len(orders)), zap.Ints("changed", changed))
	}
}

func (l *OrderList) Orders() []model.OrderSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.OrderSummary(nil), l.orders...)
}

// Get returns the summary for id from the latest update.
func (l *OrderList) Get(id int) (model.OrderSummary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, o := range l.orders {
		if o.ID == id {
			return o, true
		}
	}
	return model.OrderSummary{}, false
}

// Changed returns the ids reported as changed by the latest update.
func (l *OrderList) Changed() []int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]int(nil), l.changed...)
}

// UpdatedAt is the timestamp of the latest update, zero before the first.
func (l *OrderList) UpdatedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.updated
}

func (l *OrderList) Polls() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.polls
}

// Loader is implemented by views that need an initial fetch before they
// start following updates.
type Loader interface {
	Load(ctx context.Context) error
}

// Closer is implemented by views that own background work.
type Closer interface {
	Close()
}

// Open mounts views on d. Views implementing Loader are loaded first; their
// errors are joined into err but do not stop the mount, so a view can
// recover on the next update. The returned release unsubscribes every view
// and then closes those implementing Closer. It may be called more than once
// and also runs when ctx is done.
func Open(ctx context.Context, d *tracker.Dispatcher, vs ...tracker.Subscriber) (release func(), err error) {
	var errs []error
	for _, v := range vs {
		if l, ok := v.(Loader); ok {
			if err := l.Load(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	releases := make([]func(), 0, len(vs))
	for _, v := range vs {
		releases = append(releases, d.Watch(ctx, v))
	}

	var (
		once sync.Once
		mu   sync.Mutex
		stop func() bool
	)
	release = func() {
		once.Do(func() {
			mu.Lock()
			if stop != nil {
				stop()
			}
			mu.Unlock()
			for i := len(releases) - 1; i >= 0; i-- {
				releases[i]()
			}
			for i := len(vs) - 1; i >= 0; i-- {
				if c, ok := vs[i].(Closer); ok {
					c.Close()
				}
			}
		})
	}
	mu.Lock()
	stop = context.AfterFunc(ctx, release)
	mu.Unlock()
	return release, errors.Join(errs...)
}
