// Package client talks to the order service: a REST client, the live
// channel listener and the order cache it keeps fresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// API is a REST client for the order service. Calls are never retried;
// callers decide whether to try again.
type API struct {
	httpClient *http.Client
	baseURL    *url.URL
	headers    map[string]string
	logger     *zap.Logger
}

// APIOption configures an API
type APIOption func(*API)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) {
		a.httpClient = c
	}
}

// WithHeader adds a header to every request
func WithHeader(key, value string) APIOption {
	return func(a *API) {
		a.headers[key] = value
	}
}

// NewAPI creates a client for the server at baseURL
func NewAPI(baseURL string, logger *zap.Logger, opts ...APIOption) (*API, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL scheme %q", u.Scheme)
	}

	a := &API{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    u,
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "doobie-scanner/1.0",
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// BaseURL returns the server root
func (a *API) BaseURL() *url.URL {
	u := *a.baseURL
	return &u
}

// GetOrder fetches one order with its items
func (a *API) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	if err := a.do(ctx, http.MethodGet, "/api/orders/"+id.String(), nil, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders fetches one page of orders
func (a *API) ListOrders(ctx context.Context, opts ListOrdersOptions) ([]Order, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}

	var orders []Order
	if err := a.do(ctx, http.MethodGet, "/api/orders", q, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// PackItem marks the item for productID packed
func (a *API) PackItem(ctx context.Context, orderID uuid.UUID, productID int64) (*PackResult, error) {
	body := map[string]int64{"productId": productID}
	var result PackResult
	if err := a.do(ctx, http.MethodPost, "/api/orders/"+orderID.String()+"/pack-item", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListNotifications fetches the staff feed, newest first
func (a *API) ListNotifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}

	var items []Notification
	if err := a.do(ctx, http.MethodGet, "/api/notifications", q, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkNotificationRead acknowledges one notification
func (a *API) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	return a.do(ctx, http.MethodPut, "/api/notifications/"+id.String()+"/read", nil, nil, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func (a *API) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := a.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	a.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.RequestID = env.Error.RequestID
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}
