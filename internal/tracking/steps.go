// Package tracking derives the checklist and progress of an order from its
// status and timestamps.
package tracking

import (
	"fmt"
	"sort"
	"time"

	"deliverytrack/internal/model"
)

// MalformedOrderError is returned when an order lacks a status entirely.
type MalformedOrderError struct {
	OrderID int
	Reason  string
}

func (e *MalformedOrderError) Error() string {
	return fmt.Sprintf("malformed order %d: %s", e.OrderID, e.Reason)
}

type stepDef struct {
	status   model.Status
	label    string
	progress int
}

// steps follows model.Progression.
var steps = []stepDef{
	{model.StatusCreated, "Order placed", 0},
	{model.StatusAssigned, "Courier assigned", 25},
	{model.StatusPickedUp, "Picked up", 50},
	{model.StatusInTransit, "On the way", 75},
	{model.StatusDelivered, "Delivered", 100},
}

// StepProgress returns the percentage associated with reaching s, or -1 if s
// is not a progression status.
func StepProgress(s model.Status) int {
	for _, d := range steps {
		if d.status == s {
			return d.progress
		}
	}
	return -1
}

// Steps returns one entry per progression status, in canonical order.
func Steps(o model.Order) ([]model.TrackingStep, error) {
	if o.Status == "" {
		return nil, &MalformedOrderError{OrderID: o.ID, Reason: "status is missing"}
	}
	reached := reachedRank(o)
	out := make([]model.TrackingStep, len(steps))
	for i, d := range steps {
		st := model.TrackingStep{
			Status:      d.status,
			Label:       d.label,
			Description: Description(d.status),
			Progress:    d.progress,
		}
		if i <= reached {
			st.Completed = true
			st.Timestamp = o.Timestamp(d.status)
		}
		out[i] = st
	}
	return out, nil
}

// Progress returns the progress of the highest completed step.
func Progress(o model.Order) (int, error) {
	if o.Status == "" {
		return 0, &MalformedOrderError{OrderID: o.ID, Reason: "status is missing"}
	}
	return steps[reachedRank(o)].progress, nil
}

// Snapshot rebuilds the full tracking view of an order.
func Snapshot(o model.Order, notes []model.Notification, now time.Time) (model.TrackingSnapshot, error) {
	st, err := Steps(o)
	if err != nil {
		return model.TrackingSnapshot{}, err
	}
	recent := append([]model.Notification(nil), notes...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	return model.TrackingSnapshot{
		Order:               o,
		ProgressPercentage:  steps[reachedRank(o)].progress,
		TrackingSteps:       st,
		RecentNotifications: recent,
		LastUpdated:         now,
	}, nil
}

// reachedRank is the index of the last completed step. For progression
// statuses the status is authoritative. For CANCELLED and unrecognised values
// only the contiguous prefix of recorded timestamps counts, which freezes
// progress where the order stopped. CREATED always counts.
func reachedRank(o model.Order) int {
	if r := o.Status.Rank(); r >= 0 {
		return r
	}
	reached := 0
	for i := 1; i < len(steps); i++ {
		if o.Timestamp(steps[i].status) == nil {
			break
		}
		reached = i
	}
	return reached
}
