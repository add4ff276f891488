package domain

import (
	"strings"
	"time"
)

// SubscriptionStatus is the billing status reported by the Subscriptions service.
type SubscriptionStatus string

const (
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionCancelled         SubscriptionStatus = "cancelled"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionPaused            SubscriptionStatus = "paused"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
)

// IsActive reports whether the status grants access (active or trialing).
func (s SubscriptionStatus) IsActive() bool {
	switch s.normalized() {
	case SubscriptionActive, SubscriptionTrialing:
		return true
	default:
		return false
	}
}

// Equivalent compares two statuses, treating both spellings of cancelled as equal.
func (s SubscriptionStatus) Equivalent(other SubscriptionStatus) bool {
	return s.normalized() == other.normalized()
}

func (s SubscriptionStatus) normalized() SubscriptionStatus {
	v := SubscriptionStatus(strings.ToLower(strings.TrimSpace(string(s))))
	if v == SubscriptionCanceled {
		return SubscriptionCancelled
	}
	return v
}

// SubscriptionRecord is a billing record owned by the Subscriptions service.
type SubscriptionRecord struct {
	ID                string             `json:"id"`
	UserID            string             `json:"userId,omitempty"`
	Plan              string             `json:"plan"`
	Status            SubscriptionStatus `json:"status"`
	Price             float64            `json:"price"`
	PeriodStart       *time.Time         `json:"periodStart,omitempty"`
	PeriodEnd         *time.Time         `json:"periodEnd,omitempty"`
	CancelAtPeriodEnd bool               `json:"cancelAtPeriodEnd,omitempty"`
}
