/**
 * @description
 * This file provides a client for communicating with the subscriptions
 * service to list, read, provision and patch subscription records.
 */
package subscriptionclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sophiasearch-2025/admin-interface/pkg/transport"
)

// ErrNoRecord is returned by Get when the service answered 2xx without a subscription.
var ErrNoRecord = errors.New("subscription service returned no record")

// Client provides methods to interact with the subscriptions service.
type Client struct {
	transport *transport.Client
}

// NewClient creates a new subscriptions service client.
func NewClient(t *transport.Client) *Client {
	return &Client{transport: t}
}

// List returns every subscription. Bare arrays, {success,data} and
// {subscriptions: [...]} bodies are all accepted.
func (c *Client) List(ctx context.Context) ([]Subscription, error) {
	raw, err := c.transport.Get(ctx, "/api/subscriptions")
	if err != nil {
		return nil, err
	}
	decoded, err := transport.DecodeList[Subscription](raw, "subscriptions")
	if err != nil {
		return nil, fmt.Errorf("GET /api/subscriptions: %w", err)
	}
	return decoded.Items, nil
}

// Get returns a single subscription by id.
func (c *Client) Get(ctx context.Context, id string) (*Subscription, error) {
	path := subscriptionPath(id, "")
	raw, err := c.transport.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	sub, err := decodeSubscription(raw)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("GET %s: %w", path, ErrNoRecord)
	}
	return sub, nil
}

// Create provisions a subscription. A nil subscription with a nil error means
// the service accepted the request but returned no record.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Subscription, error) {
	raw, err := c.transport.Do(ctx, http.MethodPost, "/api/subscriptions", req, 0)
	if err != nil {
		return nil, err
	}
	sub, err := decodeSubscription(raw)
	if err != nil {
		return nil, fmt.Errorf("POST /api/subscriptions: %w", err)
	}
	return sub, nil
}

// Patch applies a partial update. Only the fields present in the map are sent.
func (c *Client) Patch(ctx context.Context, id string, fields map[string]any) (*Subscription, error) {
	path := subscriptionPath(id, "")
	raw, err := c.transport.Do(ctx, http.MethodPatch, path, fields, 0)
	if err != nil {
		return nil, err
	}
	sub, err := decodeSubscription(raw)
	if err != nil {
		return nil, fmt.Errorf("PATCH %s: %w", path, err)
	}
	return sub, nil
}

// SetStatus patches only the status field.
func (c *Client) SetStatus(ctx context.Context, id, status string) (*Subscription, error) {
	return c.Patch(ctx, id, map[string]any{"status": status})
}

// Renew extends the subscription for another billing period.
func (c *Client) Renew(ctx context.Context, id string) (*Subscription, error) {
	path := subscriptionPath(id, "renew")
	raw, err := c.transport.Do(ctx, http.MethodPost, path, nil, 0)
	if err != nil {
		return nil, err
	}
	sub, err := decodeSubscription(raw)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	return sub, nil
}

// CheckExpiring asks the service to scan for subscriptions close to their period end.
func (c *Client) CheckExpiring(ctx context.Context) (*JobResult, error) {
	return c.runJob(ctx, "/api/subscriptions/check-expiring")
}

// RunNotifications asks the service to send pending renewal notifications.
func (c *Client) RunNotifications(ctx context.Context) (*JobResult, error) {
	return c.runJob(ctx, "/api/admin/run-notifications")
}

// Health reports whether the service answers GET /health.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.transport.Get(ctx, "/health")
	return err
}

func (c *Client) runJob(ctx context.Context, path string) (*JobResult, error) {
	raw, err := c.transport.Do(ctx, http.MethodPost, path, nil, 0)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckEnvelope(raw); err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	result := &JobResult{Raw: string(raw)}
	// Non-JSON acknowledgements are accepted as-is.
	_ = json.Unmarshal(raw, result)
	return result, nil
}

func decodeSubscription(raw []byte) (*Subscription, error) {
	sub, _, err := transport.DecodeItem[Subscription](raw, "subscription")
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.ID == "" {
		return nil, nil
	}
	return sub, nil
}

func subscriptionPath(id, action string) string {
	path := "/api/subscriptions/" + url.PathEscape(id)
	if action != "" {
		path += "/" + action
	}
	return path
}
