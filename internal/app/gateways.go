/**
 * @description
 * Interfaces for the two remote services the lifecycle engine drives. The
 * concrete implementations live in pkg/usersclient and pkg/subscriptionclient.
 */
package app

import (
	"context"

	"github.com/sophiasearch-2025/admin-interface/pkg/subscriptionclient"
	"github.com/sophiasearch-2025/admin-interface/pkg/usersclient"
)

// UsersGateway defines the Users service operations the engine needs.
type UsersGateway interface {
	List(ctx context.Context) ([]usersclient.User, error)
	Get(ctx context.Context, uid string) (*usersclient.User, error)
	Approve(ctx context.Context, uid string) (*usersclient.User, error)
	Reject(ctx context.Context, uid, reason string) (*usersclient.User, error)
	SetStatus(ctx context.Context, uid, estado string) (*usersclient.User, error)
	ComprobanteURL(uid string) string
	Health(ctx context.Context) error
}

// SubscriptionsGateway defines the Subscriptions service operations the engine needs.
type SubscriptionsGateway interface {
	List(ctx context.Context) ([]subscriptionclient.Subscription, error)
	Get(ctx context.Context, id string) (*subscriptionclient.Subscription, error)
	Create(ctx context.Context, req subscriptionclient.CreateRequest) (*subscriptionclient.Subscription, error)
	SetStatus(ctx context.Context, id, status string) (*subscriptionclient.Subscription, error)
	Renew(ctx context.Context, id string) (*subscriptionclient.Subscription, error)
	CheckExpiring(ctx context.Context) (*subscriptionclient.JobResult, error)
	RunNotifications(ctx context.Context) (*subscriptionclient.JobResult, error)
	Health(ctx context.Context) error
}

var (
	_ UsersGateway         = (*usersclient.Client)(nil)
	_ SubscriptionsGateway = (*subscriptionclient.Client)(nil)
)
