package tracker

import (
	"fmt"
	"time"

	"deliverytrack/internal/model"
)

// validate rejects lists the dispatcher cannot key by id.
func validate(orders []model.OrderSummary) error {
	seen := make(map[int]struct{}, len(orders))
	for i, o := range orders {
		if o.ID <= 0 {
			return fmt.Errorf("order at index %d has invalid id %d", i, o.ID)
		}
		if o.Status == "" {
			return fmt.Errorf("order %d has no status", o.ID)
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("order %d listed twice", o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}

// diff returns the ids in next that are new or changed relative to prev, in
// the order they appear in next.
func diff(prev map[int]model.OrderSummary, next []model.OrderSummary) []int {
	changed := []int{}
	for _, o := range next {
		old, ok := prev[o.ID]
		if !ok || orderChanged(old, o) {
			changed = append(changed, o.ID)
		}
	}
	return changed
}

// orderChanged compares the fields that drive tracking: status, courier and
// the recorded lifecycle timestamps.
func orderChanged(a, b model.OrderSummary) bool {
	if a.Status != b.Status || a.CourierID() != b.CourierID() {
		return true
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return true
	}
	pairs := [][2]*time.Time{
		{a.AssignedAt, b.AssignedAt},
		{a.PickedUpAt, b.PickedUpAt},
		{a.InTransitAt, b.InTransitAt},
		{a.DeliveredAt, b.DeliveredAt},
		{a.CancelledAt, b.CancelledAt},
	}
	for _, p := range pairs {
		if !sameInstant(p[0], p[1]) {
			return true
		}
	}
	return false
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func index(orders []model.OrderSummary) map[int]model.OrderSummary {
	m := make(map[int]model.OrderSummary, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return m
}
