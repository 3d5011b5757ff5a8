package model

// Status is the lifecycle state of an order as reported by the backend.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusAssigned  Status = "ASSIGNED"
	StatusPickedUp  Status = "PICKED_UP"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// Progression lists the canonical forward order of statuses. CANCELLED is
// outside it.
var Progression = []Status{
	StatusCreated,
	StatusAssigned,
	StatusPickedUp,
	StatusInTransit,
	StatusDelivered,
}

// Rank returns the position of s in Progression, or -1 for CANCELLED and
// values the client does not recognise.
func (s Status) Rank() int {
	for i, p := range Progression {
		if p == s {
			return i
		}
	}
	return -1
}

// Known reports whether s is one of the six enum members.
func (s Status) Known() bool { return s == StatusCancelled || s.Rank() >= 0 }

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool { return s == StatusDelivered || s == StatusCancelled }

// CanTransition reports whether an order may move from one status to another.
// Forward moves may skip states because polling can miss intermediate ones;
// backward moves only happen through cancellation.
func CanTransition(from, to Status) bool {
	if !from.Known() || !to.Known() || from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return to.Rank() > from.Rank()
}
