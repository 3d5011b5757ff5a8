package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"deliverytrack/internal/buildinfo"
	"deliverytrack/internal/metrics"
	"deliverytrack/internal/model"
)

const maxBodyBytes = 4 << 20

// envelope is the result-or-error wrapper every API response uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// problem is an RFC7807 body some gateway errors come back with.
type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// HTTPClient implements Client over the JSON REST API.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter

	mu    sync.RWMutex
	token string
}

// NewHTTPClient builds a client. rps <= 0 disables rate limiting.
func NewHTTPClient(baseURL string, timeout time.Duration, rps float64, burst int) *HTTPClient {
	lim := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Limiter: lim,
	}
}

// SetAuthToken sets the bearer token sent with every request.
func (c *HTTPClient) SetAuthToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) ListOrders(ctx context.Context) ([]model.OrderSummary, error) {
	var out []model.OrderSummary
	if err := c.do(ctx, "listOrders", http.MethodGet, "/api/orders", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.OrderSummary{}
	}
	return out, nil
}

func (c *HTTPClient) GetOrderTracking(ctx context.Context, orderID int) (model.TrackingSnapshot, error) {
	var out model.TrackingSnapshot
	path := "/api/orders/" + strconv.Itoa(orderID) + "/tracking"
	if err := c.do(ctx, "getOrderTracking", http.MethodGet, path, nil, &out); err != nil {
		return model.TrackingSnapshot{}, err
	}
	if out.Order.ID == 0 {
		out.Order.ID = orderID
	} else if out.Order.ID != orderID {
		return model.TrackingSnapshot{}, &TransportError{Op: "getOrderTracking", Malformed: true, Err: fmt.Errorf("asked for order %d, got %d", orderID, out.Order.ID)}
	}
	return out, nil
}

func (c *HTTPClient) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error) {
	if err := req.Validate(); err != nil {
		return model.Order{}, err
	}
	var out model.Order
	if err := c.do(ctx, "createOrder", http.MethodPost, "/api/orders", req, &out); err != nil {
		return model.Order{}, err
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, in, out any) error {
	status := "error"
	defer func() { metrics.TransportRequests.WithLabelValues(op, status).Inc() }()

	if err := c.Limiter.Wait(ctx); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("X-Request-Id", uuid.New().String())
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	status = strconv.Itoa(resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(errorText(raw, resp.Status))}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Malformed: true, Err: err}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = "request was not successful"
		}
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	if out != nil {
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return &TransportError{Op: op, StatusCode: resp.StatusCode, Malformed: true, Err: errors.New("missing data")}
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &TransportError{Op: op, StatusCode: resp.StatusCode, Malformed: true, Err: err}
		}
	}
	return nil
}

// errorText extracts a message from an error body, trying the envelope then
// problem details, and falling back to the HTTP status line.
func errorText(raw []byte, fallback string) string {
	var env envelope
	if json.Unmarshal(raw, &env) == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	var p problem
	if json.Unmarshal(raw, &p) == nil && p.Title != "" {
		if p.Detail != "" {
			return p.Title + ": " + p.Detail
		}
		return p.Title
	}
	return fallback
}
