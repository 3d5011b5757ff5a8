package tracker

import (
	"context"
	"sync"
	"time"

	"deliverytrack/internal/model"
)

// Update is delivered to every subscriber after a successful poll. Orders is
// the full current list; ChangedOrderIDs names the orders that are new or
// differ from the previous poll. Subscribers must treat both as read-only.
type Update struct {
	Orders          []model.OrderSummary
	ChangedOrderIDs []int
	Timestamp       time.Time
}

// Changed reports whether id is among the changed orders.
func (u Update) Changed(id int) bool {
	for _, c := range u.ChangedOrderIDs {
		if c == id {
			return true
		}
	}
	return false
}

// Subscriber receives updates. Implementations must be comparable (pointer
// receivers are the usual choice) since subscriptions are keyed by value.
type Subscriber interface {
	HandleUpdate(Update)
}

// Callback adapts a plain function to Subscriber. Keep the returned pointer to
// unsubscribe later; two Func calls with the same function are distinct
// subscriptions.
type Callback struct {
	fn func(Update)
}

func Func(fn func(Update)) *Callback { return &Callback{fn: fn} }

func (c *Callback) HandleUpdate(u Update) { c.fn(u) }

// Watch subscribes s and returns a release function. The subscription ends
// when release is called or ctx is done, whichever happens first; release is
// safe to call more than once.
func (d *Dispatcher) Watch(ctx context.Context, s Subscriber) (release func()) {
	d.Subscribe(s)
	var once sync.Once
	stop := make(chan struct{})
	release = func() {
		once.Do(func() {
			close(stop)
			d.Unsubscribe(s)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			release()
		case <-stop:
		}
	}()
	return release
}
