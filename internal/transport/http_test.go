package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliverytrack/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewHTTPClient(srv.URL+"/", 2*time.Second, 0, 0)
	c.HTTP = srv.Client()
	return c
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func TestListOrdersSendsAuthAndDecodes(t *testing.T) {
	var gotAuth, gotReqID, gotUA, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-Id")
		gotUA = r.Header.Get("User-Agent")
		gotPath = r.URL.Path
		writeEnvelope(w, 200, []map[string]any{
			{"id": 1, "status": "CREATED", "createdAt": "2024-06-01T12:00:00Z"},
			{"id": 2, "status": "ASSIGNED", "createdAt": "2024-06-01T12:00:00Z", "assignedAt": "2024-06-01T12:05:00Z", "assignedCourier": map[string]any{"id": 9}},
		})
	})
	c.SetAuthToken("tok")

	orders, err := c.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.NotEmpty(t, gotReqID)
	assert.Contains(t, gotUA, "deliverytrack/")
	assert.Equal(t, "/api/orders", gotPath)
	assert.Equal(t, model.StatusAssigned, orders[1].Status)
	assert.Equal(t, 9, orders[1].CourierID())
	require.NotNil(t, orders[1].AssignedAt)
}

func TestListOrdersEmptyArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, []any{})
	})
	orders, err := c.ListOrders(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestListOrdersErrors(t *testing.T) {
	cases := []struct {
		name      string
		handler   http.HandlerFunc
		status    int
		malformed bool
		msg       string
	}{
		{
			name: "server error envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(500)
				_, _ = io.WriteString(w, `{"success":false,"error":"db down"}`)
			},
			status: 500,
			msg:    "db down",
		},
		{
			name: "problem details",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(503)
				_, _ = io.WriteString(w, `{"type":"about:blank","title":"Unavailable","status":503,"detail":"maintenance"}`)
			},
			status: 503,
			msg:    "Unavailable: maintenance",
		},
		{
			name: "unsuccessful envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"success":false,"message":"token expired"}`)
			},
			status: 200,
			msg:    "token expired",
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `<html>`)
			},
			status:    200,
			malformed: true,
		},
		{
			name: "wrong shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"success":true,"data":{"orders":"nope"}}`)
			},
			status:    200,
			malformed: true,
		},
		{
			name: "missing data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"success":true}`)
			},
			status:    200,
			malformed: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.handler)
			_, err := c.ListOrders(context.Background())
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, "listOrders", te.Op)
			assert.Equal(t, tc.status, te.StatusCode)
			assert.Equal(t, tc.malformed, IsMalformed(err))
			if tc.msg != "" {
				assert.Contains(t, err.Error(), tc.msg)
			}
		})
	}
}

func TestTimeoutIsTransportError(t *testing.T) {
	block := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.ListOrders(ctx)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGetOrderTracking(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/123/tracking", r.URL.Path)
		writeEnvelope(w, 200, map[string]any{
			"order":              map[string]any{"id": 123, "status": "PICKED_UP", "createdAt": "2024-06-01T12:00:00Z"},
			"progressPercentage": 50,
			"recentNotifications": []map[string]any{
				{"id": "n1", "orderId": 123, "message": "picked up", "createdAt": "2024-06-01T12:20:00Z"},
			},
		})
	})
	snap, err := c.GetOrderTracking(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, 123, snap.Order.ID)
	assert.Equal(t, model.StatusPickedUp, snap.Order.Status)
	assert.Equal(t, 50, snap.ProgressPercentage)
	require.Len(t, snap.RecentNotifications, 1)
}

func TestGetOrderTrackingRejectsOtherOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, map[string]any{"order": map[string]any{"id": 5, "status": "CREATED"}})
	})
	_, err := c.GetOrderTracking(context.Background(), 6)
	assert.True(t, IsMalformed(err))
}

func TestCreateOrder(t *testing.T) {
	var got model.CreateOrderRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeEnvelope(w, 201, map[string]any{"id": 77, "status": "CREATED", "price": 150, "distanceKm": got.DistanceKm})
	})
	req := model.CreateOrderRequest{PickupAddress: "A st", DeliveryAddress: "B st", DistanceKm: 5, SpecialInstructions: "ring twice"}
	o, err := c.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req, got)
	assert.Equal(t, 77, o.ID)
	assert.Equal(t, 150.0, o.Price)
}

func TestCreateOrderValidatesLocally(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { atomic.AddInt32(&calls, 1) })
	_, err := c.CreateOrder(context.Background(), model.CreateOrderRequest{PickupAddress: "A", DistanceKm: 1})
	require.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { writeEnvelope(w, 200, []any{}) })
	c.Limiter = NewHTTPClient("", 0, 0.001, 1).Limiter
	_, err := c.ListOrders(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListOrders(ctx)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
}
