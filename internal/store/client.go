// Package store is the HTTP client for the backend store API that holds
// products, customers and orders.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashutoshrp06/parcel-agent/internal/types"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// ErrNotFound is matched by errors for missing resources (HTTP 404).
var ErrNotFound = errors.New("resource not found")

// APIError is returned for non-2xx responses and unsuccessful envelopes.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// Unwrap lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Config holds client configuration.
type Config struct {
	BaseURL    string        // e.g. "http://localhost:3000/api"
	Timeout    time.Duration // per request
	MaxRetries int           // extra attempts for reads; writes are never retried
}

// Client talks to the backend store API. Every write maps to exactly one
// HTTP request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

// NewClient creates a new backend client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the response shape of every backend endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// ListProducts returns the whole catalogue.
func (c *Client) ListProducts(ctx context.Context) ([]types.Product, error) {
	var products []types.Product
	if err := c.get(ctx, "/products", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns one product.
func (c *Client) GetProduct(ctx context.Context, id int64) (*types.Product, error) {
	var p types.Product
	if err := c.get(ctx, fmt.Sprintf("/products/%d", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct adds a product.
func (c *Client) CreateProduct(ctx context.Context, in types.ProductInput) (*types.Product, error) {
	var p types.Product
	if err := c.send(ctx, http.MethodPost, "/products", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct changes the non-nil fields of a product.
func (c *Client) UpdateProduct(ctx context.Context, id int64, in types.ProductInput) (*types.Product, error) {
	var p types.Product
	if err := c.send(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil, nil)
}

// ListCustomers returns every customer.
func (c *Client) ListCustomers(ctx context.Context) ([]types.Customer, error) {
	var customers []types.Customer
	if err := c.get(ctx, "/customers", &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// GetCustomer returns one customer.
func (c *Client) GetCustomer(ctx context.Context, id int64) (*types.Customer, error) {
	var cust types.Customer
	if err := c.get(ctx, fmt.Sprintf("/customers/%d", id), &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

// CreateCustomer adds a customer.
func (c *Client) CreateCustomer(ctx context.Context, in types.CustomerInput) (*types.Customer, error) {
	var cust types.Customer
	if err := c.send(ctx, http.MethodPost, "/customers", in, &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

// ListOrders returns every order.
func (c *Client) ListOrders(ctx context.Context) ([]types.Order, error) {
	var orders []types.Order
	if err := c.get(ctx, "/orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder places a single-unit order of productID for customerID.
func (c *Client) CreateOrder(ctx context.Context, customerID, productID int64) (*types.Order, error) {
	var order types.Order
	body := map[string]int64{"product_id": productID}
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/customers/%d/orders", customerID), body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// get performs an idempotent read, retrying transport errors and 5xx
// responses with exponential backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err == nil {
			return struct{}{}, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return struct{}{}, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		c.logger.Debug("Backend read failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return struct{}{}, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
	)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
			if len(msg) > 200 {
				msg = msg[:200]
			}
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return fmt.Errorf("%s %s: malformed response: %w", method, path, decodeErr)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "request was not successful"
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}
