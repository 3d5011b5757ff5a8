package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliverytrack/internal/model"
)

func TestComputePrice(t *testing.T) {
	got, err := ComputePrice(5, Config{BaseFee: 50, PerKmRate: 20})
	require.NoError(t, err)
	assert.Equal(t, 150.00, got)

	got, err = ComputePrice(0, Config{BaseFee: 50, PerKmRate: 20})
	require.NoError(t, err)
	assert.Equal(t, 50.00, got)
}

func TestComputePriceRoundsHalfUp(t *testing.T) {
	cases := []struct {
		km   float64
		cfg  Config
		want float64
	}{
		{1.005, Config{PerKmRate: 1}, 1.01},
		{1.004, Config{PerKmRate: 1}, 1.00},
		{2.5, Config{BaseFee: 0.125, PerKmRate: 0.01}, 0.15},
		{3.333, Config{BaseFee: 10, PerKmRate: 3}, 20.00},
	}
	for _, c := range cases {
		got, err := ComputePrice(c.km, c.cfg)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "km=%v cfg=%+v", c.km, c.cfg)
	}
}

func TestComputePriceRejectsInvalidInput(t *testing.T) {
	inputs := []struct {
		km    float64
		cfg   Config
		field string
	}{
		{-1, Config{BaseFee: 1, PerKmRate: 1}, "distanceKm"},
		{1, Config{BaseFee: -1, PerKmRate: 1}, "baseFee"},
		{1, Config{BaseFee: 1, PerKmRate: -0.5}, "perKmRate"},
		{math.NaN(), Config{}, "distanceKm"},
		{math.Inf(1), Config{}, "distanceKm"},
	}
	for _, in := range inputs {
		_, err := ComputePrice(in.km, in.cfg)
		var iie *InvalidInputError
		require.True(t, errors.As(err, &iie), "expected InvalidInputError for %+v", in)
		assert.Equal(t, in.field, iie.Field)
	}
}

func TestComputePriceMonotonicAndDeterministic(t *testing.T) {
	cfg := Config{BaseFee: 49.99, PerKmRate: 17.35}
	prev := -1.0
	for km := 0.0; km <= 50; km += 0.137 {
		a, err := ComputePrice(km, cfg)
		require.NoError(t, err)
		b, _ := ComputePrice(km, cfg)
		assert.Equal(t, a, b)
		assert.GreaterOrEqual(t, a, prev, "km=%v", km)
		prev = a
	}
}

func TestQuote(t *testing.T) {
	cfg := Config{BaseFee: 50, PerKmRate: 20}
	got, err := Quote(model.CreateOrderRequest{PickupAddress: "A", DeliveryAddress: "B", DistanceKm: 2.5}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 100.00, got)

	_, err = Quote(model.CreateOrderRequest{DeliveryAddress: "B", DistanceKm: 1}, cfg)
	var iie *InvalidInputError
	require.ErrorAs(t, err, &iie)
	assert.Equal(t, "request", iie.Field)
}
