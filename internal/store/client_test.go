package store

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

	"github.com/ashutoshrp06/parcel-agent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second, MaxRetries: 2}, nil)
}

func TestListProductsDecodesStringPrices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"data":[{"id":1,"name":"Laptop","price":"999.99","stock":3},{"id":2,"name":"Mouse","price":19.5,"stock":10}]}`)
	})

	products, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.InDelta(t, 999.99, float64(products[0].Price), 1e-9)
	assert.InDelta(t, 19.5, float64(products[1].Price), 1e-9)
}

func TestGetCustomerNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"error":"Customer with ID 9 not found"}`)
	})

	_, err := client.GetCustomer(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Customer with ID 9 not found", apiErr.Message)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"data":[]}`)
	})

	orders, err := client.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success":false,"error":"bad id"}`)
	})

	_, err := client.GetProduct(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateOrderIsSingleRequest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/customers/4/orders", r.URL.Path)

		var body map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(7), body["product_id"])

		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"success":false,"error":"db down"}`)
	})

	_, err := client.CreateOrder(context.Background(), 4, 7)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateCustomer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in types.CustomerInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "jane@example.com", in.Email)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":11,"name":"Jane","email":"jane@example.com"}}`)
	})

	c, err := client.CreateCustomer(context.Background(), types.CustomerInput{Name: "Jane", Email: "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), c.ID)
}

func TestUnsuccessfulEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"error":"validation failed"}`)
	})

	err := client.DeleteProduct(context.Background(), 3)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "validation failed", apiErr.Message)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestUpdateProductSendsOnlySetFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"stock": float64(5)}, body)
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":3,"name":"Mug","price":"12.00","stock":5}}`)
	})

	stock := 5
	p, err := client.UpdateProduct(context.Background(), 3, types.ProductInput{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}
