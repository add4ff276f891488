package subscriptionclient

import (
	"strings"

	"github.com/sophiasearch-2025/admin-interface/pkg/transport"
)

// Subscription mirrors a record returned by the subscriptions service.
type Subscription struct {
	ID                   string               `json:"id"`
	UserID               string               `json:"userId,omitempty"`
	StripeSubscriptionID string               `json:"stripeSubscriptionId,omitempty"`
	StripePriceID        string               `json:"stripePriceId,omitempty"`
	Plan                 string               `json:"plan,omitempty"`
	PlanID               string               `json:"planId,omitempty"`
	PlanName             string               `json:"planName,omitempty"`
	Description          string               `json:"description,omitempty"`
	Price                *float64             `json:"price,omitempty"`
	Precio               *float64             `json:"precio,omitempty"`
	Status               string               `json:"status,omitempty"`
	CurrentPeriodStart   *transport.Timestamp `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd     *transport.Timestamp `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd    bool                 `json:"cancelAtPeriodEnd,omitempty"`
	Metadata             map[string]any       `json:"metadata,omitempty"`
	CreatedAt            *transport.Timestamp `json:"createdAt,omitempty"`
	UpdatedAt            *transport.Timestamp `json:"updatedAt,omitempty"`
}

// PlanLabel returns the best available plan identifier.
func (s Subscription) PlanLabel() string {
	for _, candidate := range []string{s.Plan, s.PlanName, s.PlanID} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}

// Amount returns price, falling back to precio.
func (s Subscription) Amount() float64 {
	if s.Price != nil {
		return *s.Price
	}
	if s.Precio != nil {
		return *s.Precio
	}
	return 0
}

// CreateRequest is the body of POST /api/subscriptions.
type CreateRequest struct {
	UserID    string   `json:"userId"`
	PlanID    string   `json:"planId"`
	UserEmail string   `json:"userEmail"`
	UserName  string   `json:"userName,omitempty"`
	PlanName  string   `json:"planName,omitempty"`
	Precio    *float64 `json:"precio,omitempty"`
}

// JobResult is the loosely-typed answer of the batch endpoints.
type JobResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Processed int    `json:"processed,omitempty"`
	Raw       string `json:"-"`
}
