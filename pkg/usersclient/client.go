/**
 * @description
 * This package provides a client for the Users service: identity records,
 * signup approval, account status and the uploaded proof-of-payment
 * ("comprobante").
 */
package usersclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sophiasearch-2025/admin-interface/pkg/transport"
)

// ErrUserNotFound is returned by Get when no user carries the requested id.
var ErrUserNotFound = errors.New("user not found")

// Estado values accepted by PATCH /api/users/:id.
const (
	EstadoActive    = "active"
	EstadoSuspended = "suspended"
)

// Client is a client for the Users service.
type Client struct {
	transport *transport.Client
}

// NewClient creates a new Users service client on top of a shared transport.
func NewClient(t *transport.Client) *Client {
	return &Client{transport: t}
}

// List returns every user known to the service.
func (c *Client) List(ctx context.Context) ([]User, error) {
	return c.list(ctx, "/api/users")
}

// ListPending returns users whose signup request has not been decided.
func (c *Client) ListPending(ctx context.Context) ([]User, error) {
	return c.list(ctx, "/api/users/pending")
}

// Get returns a single user. The service does not expose GET /api/users/:id,
// so the user is selected from a fresh listing.
func (c *Client) Get(ctx context.Context, uid string) (*User, error) {
	users, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Key() == uid || users[i].ID == uid {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUserNotFound, uid)
}

// Approve marks the signup request approved. The service sends the welcome
// email as a side effect; that is not observable from here.
func (c *Client) Approve(ctx context.Context, uid string) (*User, error) {
	return c.patch(ctx, userPath(uid, "approve"), nil)
}

// Reject marks the signup request rejected. reason is only sent when non-empty.
func (c *Client) Reject(ctx context.Context, uid, reason string) (*User, error) {
	var body any
	if reason = strings.TrimSpace(reason); reason != "" {
		body = RejectRequest{Motivo: reason}
	}
	return c.patch(ctx, userPath(uid, "reject"), body)
}

// SetStatus writes the user's estado field (active or suspended).
func (c *Client) SetStatus(ctx context.Context, uid, estado string) (*User, error) {
	return c.patch(ctx, userPath(uid, ""), StatusRequest{Estado: estado})
}

// ComprobanteURL returns where the proof-of-payment image can be fetched.
// The image itself is never downloaded by this client.
func (c *Client) ComprobanteURL(uid string) string {
	return c.transport.URL(userPath(uid, "comprobante"))
}

// Health reports whether the service answers GET /health.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.transport.Get(ctx, "/health")
	return err
}

func (c *Client) list(ctx context.Context, path string) ([]User, error) {
	raw, err := c.transport.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	decoded, err := transport.DecodeList[User](raw, "users")
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return decoded.Items, nil
}

func (c *Client) patch(ctx context.Context, path string, body any) (*User, error) {
	raw, err := c.transport.Do(ctx, http.MethodPatch, path, body, 0)
	if err != nil {
		return nil, err
	}
	user, _, err := transport.DecodeItem[User](raw, "user")
	if err != nil {
		return nil, fmt.Errorf("PATCH %s: %w", path, err)
	}
	if user != nil && user.Key() == "" {
		return nil, nil
	}
	return user, nil
}

func userPath(uid, action string) string {
	path := "/api/users/" + url.PathEscape(uid)
	if action != "" {
		path += "/" + action
	}
	return path
}
