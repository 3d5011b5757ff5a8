// Package pricing computes delivery prices from distance.
package pricing

import (
	"fmt"
	"math"

	"deliverytrack/internal/model"
)

// Config holds the tariff. Both fields must be non-negative.
type Config struct {
	BaseFee   float64 `yaml:"baseFee" json:"baseFee"`
	PerKmRate float64 `yaml:"perKmRate" json:"perKmRate"`
}

// InvalidInputError reports a negative or non-finite pricing input.
type InvalidInputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Value)
}

// ComputePrice returns baseFee + distanceKm*perKmRate rounded half-up to cents.
func ComputePrice(distanceKm float64, cfg Config) (float64, error) {
	if err := check("distanceKm", distanceKm); err != nil {
		return 0, err
	}
	if err := check("baseFee", cfg.BaseFee); err != nil {
		return 0, err
	}
	if err := check("perKmRate", cfg.PerKmRate); err != nil {
		return 0, err
	}
	return roundCents(cfg.BaseFee + distanceKm*cfg.PerKmRate), nil
}

// Quote prices a creation request so the estimate can be shown before submit.
func Quote(req model.CreateOrderRequest, cfg Config) (float64, error) {
	if err := req.Validate(); err != nil {
		return 0, &InvalidInputError{Field: "request", Value: req.DistanceKm, Reason: err.Error()}
	}
	return ComputePrice(req.DistanceKm, cfg)
}

func check(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return &InvalidInputError{Field: field, Value: v}
	}
	return nil
}

// roundCents rounds a non-negative amount half-up to 2 decimals. The scaled
// value is first snapped to 1e-6 so binary noise (1.005*100 = 100.49999…)
// does not push a half cent down.
func roundCents(v float64) float64 {
	scaled := math.Round(v*100*1e6) / 1e6
	return math.Floor(scaled+0.5) / 100
}
