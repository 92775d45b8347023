package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/store"
)

// APIError is a non-2xx answer of the tracker.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracker returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the tracker HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(server string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(server, "/") + "/api/v1",
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func withStatus(path, status string) string {
	if status == "" {
		return path
	}
	return path + "?" + url.Values{"status": {status}}.Encode()
}

func (c *Client) Drivers(ctx context.Context, status string) ([]model.Driver, error) {
	var out []model.Driver
	return out, c.do(ctx, http.MethodGet, withStatus("/drivers", status), nil, &out)
}

func (c *Client) Deliveries(ctx context.Context, status string) ([]model.Delivery, error) {
	var out []model.Delivery
	return out, c.do(ctx, http.MethodGet, withStatus("/deliveries", status), nil, &out)
}

func (c *Client) Overview(ctx context.Context) (store.Overview, error) {
	var out store.Overview
	return out, c.do(ctx, http.MethodGet, "/overview", nil, &out)
}

func (c *Client) DeliveryAction(ctx context.Context, id, action, newDriverID string) (model.Delivery, error) {
	body := map[string]string{"action": action}
	if newDriverID != "" {
		body["newDriverId"] = newDriverID
	}
	var out model.Delivery
	return out, c.do(ctx, http.MethodPost, "/deliveries/"+url.PathEscape(id)+"/actions", body, &out)
}

func (c *Client) DriverAction(ctx context.Context, id, action string) (model.Driver, error) {
	var out model.Driver
	return out, c.do(ctx, http.MethodPost, "/drivers/"+url.PathEscape(id)+"/actions", map[string]string{"action": action}, &out)
}

func (c *Client) RequestLocation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/drivers/"+url.PathEscape(id)+"/location-requests", nil, nil)
}
