package model

import "time"

// Core domain types shared by the pricing, tracking and tracker packages.

type UserRef struct {
	ID    int    `json:"id"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Order struct {
	ID                  int        `json:"id"`
	Customer            UserRef    `json:"customer"`
	AssignedCourier     *UserRef   `json:"assignedCourier,omitempty"`
	PickupAddress       string     `json:"pickupAddress"`
	DeliveryAddress     string     `json:"deliveryAddress"`
	DistanceKm          float64    `json:"distanceKm"`
	Price               float64    `json:"price"`
	Status              Status     `json:"status"`
	SpecialInstructions string     `json:"specialInstructions,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	AssignedAt          *time.Time `json:"assignedAt,omitempty"`
	PickedUpAt          *time.Time `json:"pickedUpAt,omitempty"`
	InTransitAt         *time.Time `json:"inTransitAt,omitempty"`
	DeliveredAt         *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt         *time.Time `json:"cancelledAt,omitempty"`
}

// Timestamp returns the instant the order reached s, or nil.
// CreatedAt is reported as nil only when it is the zero time.
func (o Order) Timestamp(s Status) *time.Time {
	switch s {
	case StatusCreated:
		if o.CreatedAt.IsZero() {
			return nil
		}
		t := o.CreatedAt
		return &t
	case StatusAssigned:
		return o.AssignedAt
	case StatusPickedUp:
		return o.PickedUpAt
	case StatusInTransit:
		return o.InTransitAt
	case StatusDelivered:
		return o.DeliveredAt
	case StatusCancelled:
		return o.CancelledAt
	}
	return nil
}

// Summary projects an order onto the list-level shape returned by the orders index.
func (o Order) Summary() OrderSummary {
	return OrderSummary{
		ID:              o.ID,
		Status:          o.Status,
		PickupAddress:   o.PickupAddress,
		DeliveryAddress: o.DeliveryAddress,
		Price:           o.Price,
		AssignedCourier: o.AssignedCourier,
		CreatedAt:       o.CreatedAt,
		AssignedAt:      o.AssignedAt,
		PickedUpAt:      o.PickedUpAt,
		InTransitAt:     o.InTransitAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
	}
}

// OrderSummary is the read model for order list responses.
type OrderSummary struct {
	ID              int        `json:"id"`
	Status          Status     `json:"status"`
	PickupAddress   string     `json:"pickupAddress,omitempty"`
	DeliveryAddress string     `json:"deliveryAddress,omitempty"`
	Price           float64    `json:"price"`
	AssignedCourier *UserRef   `json:"assignedCourier,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	AssignedAt      *time.Time `json:"assignedAt,omitempty"`
	PickedUpAt      *time.Time `json:"pickedUpAt,omitempty"`
	InTransitAt     *time.Time `json:"inTransitAt,omitempty"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
}

// CourierID returns the assigned courier id, or 0 when unassigned.
func (s OrderSummary) CourierID() int {
	if s.AssignedCourier == nil {
		return 0
	}
	return s.AssignedCourier.ID
}

type TrackingStep struct {
	Status      Status     `json:"status"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Progress    int        `json:"progress"`
}

type Notification struct {
	ID        string    `json:"id"`
	OrderID   int       `json:"orderId"`
	Type      string    `json:"type,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	Read      bool      `json:"read,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TrackingSnapshot is the render-ready view of one order. It is always
// rebuilt in full, never patched.
type TrackingSnapshot struct {
	Order               Order          `json:"order"`
	ProgressPercentage  int            `json:"progressPercentage"`
	TrackingSteps       []TrackingStep `json:"trackingSteps"`
	RecentNotifications []Notification `json:"recentNotifications"`
	LastUpdated         time.Time      `json:"lastUpdated"`
}

type CreateOrderRequest struct {
	PickupAddress       string  `json:"pickupAddress"`
	DeliveryAddress     string  `json:"deliveryAddress"`
	DistanceKm          float64 `json:"distanceKm"`
	SpecialInstructions string  `json:"specialInstructions,omitempty"`
}
