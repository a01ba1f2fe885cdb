package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": status < 300, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]any{"code": code, "message": message, "requestId": "req-1"},
	})
}

func newTestAPI(t *testing.T, h http.HandlerFunc) *API {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	api, err := NewAPI(srv.URL, zap.NewNop())
	require.NoError(t, err)
	return api
}

func TestNewAPI_Validates(t *testing.T) {
	_, err := NewAPI("", zap.NewNop())
	assert.Error(t, err)

	_, err = NewAPI("ftp://example.com", zap.NewNop())
	assert.Error(t, err)

	api, err := NewAPI("http://localhost:8080/", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", api.BaseURL().String())
}

func TestAPI_GetOrder(t *testing.T) {
	id := uuid.New()
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/orders/"+id.String(), r.URL.Path)
		writeEnvelope(w, http.StatusOK, map[string]any{
			"id":          id,
			"orderNumber": "ORD-1",
			"status":      "processing",
			"items": []map[string]any{
				{"productId": 7, "sku": "SKU-7", "fulfilled": true},
			},
		})
	})

	o, err := api.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, o.ID)
	item, ok := o.Item(7)
	require.True(t, ok)
	assert.True(t, item.Fulfilled)
	_, ok = o.Item(8)
	assert.False(t, ok)
}

func TestAPI_PackItem(t *testing.T) {
	orderID := uuid.New()
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders/"+orderID.String()+"/pack-item", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"productId": 42}`, string(body))
		writeEnvelope(w, http.StatusOK, map[string]any{
			"order":   map[string]any{"id": orderID},
			"changed": true,
		})
	})

	res, err := api.PackItem(context.Background(), orderID, 42)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, orderID, res.Order.ID)
}

func TestAPI_ErrorResponses(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/notifications":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		default:
			writeError(w, http.StatusNotFound, "ORDER_ITEM_NOT_FOUND", "Item not found in order")
		}
	})

	_, err := api.PackItem(context.Background(), uuid.New(), 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "ORDER_ITEM_NOT_FOUND", apiErr.Code)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.True(t, IsNotFound(err))

	_, err = api.ListNotifications(context.Background(), false)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.False(t, IsNotFound(err))
}

func TestAPI_Notifications(t *testing.T) {
	readID := uuid.New()
	var (
		mu     sync.Mutex
		marked []string
	)
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/notifications":
			assert.Equal(t, "true", r.URL.Query().Get("unread"))
			writeEnvelope(w, http.StatusOK, []map[string]any{
				{"id": readID, "type": "order_updated", "isRead": false},
			})
		case r.Method == http.MethodPut:
			mu.Lock()
			marked = append(marked, r.URL.Path)
			mu.Unlock()
			writeEnvelope(w, http.StatusOK, map[string]any{"id": readID, "isRead": true})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	items, err := api.ListNotifications(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "order_updated", items[0].Type)

	require.NoError(t, api.MarkNotificationRead(context.Background(), readID))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/api/notifications/" + readID.String() + "/read"}, marked)
}

func TestAPI_ListOrdersQuery(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "processing", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("pageSize"))
		writeEnvelope(w, http.StatusOK, []map[string]any{{"orderNumber": "ORD-1"}})
	})

	orders, err := api.ListOrders(context.Background(), ListOrdersOptions{Status: "processing", Page: 2, PageSize: 5})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-1", orders[0].OrderNumber)
}
