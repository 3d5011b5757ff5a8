package model

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks a creation request before it is priced or sent.
func (r CreateOrderRequest) Validate() error {
	if strings.TrimSpace(r.PickupAddress) == "" {
		return fmt.Errorf("pickupAddress is required")
	}
	if strings.TrimSpace(r.DeliveryAddress) == "" {
		return fmt.Errorf("deliveryAddress is required")
	}
	if math.IsNaN(r.DistanceKm) || math.IsInf(r.DistanceKm, 0) {
		return fmt.Errorf("distanceKm must be a finite number")
	}
	if r.DistanceKm < 0 {
		return fmt.Errorf("distanceKm must be >= 0")
	}
	return nil
}
