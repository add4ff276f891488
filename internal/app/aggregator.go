/**
 * @description
 * AccountAggregator joins users and subscriptions into Account views.
 * Aggregate performs no I/O and holds no state between calls; freshness is
 * the caller's job (see Snapshotter).
 */
package app

import (
	"log/slog"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
)

// Aggregation is the result of one aggregation pass.
type Aggregation struct {
	// Accounts holds one entry per input user, in input order.
	Accounts []domain.Account `json:"accounts"`
	Pending  []domain.Account `json:"pending"`
	// Approved holds every decided account, rejected ones included.
	Approved []domain.Account `json:"approved"`
	// Orphans are subscriptions whose userId is empty or matches no user.
	Orphans []domain.SubscriptionRecord `json:"orphans"`
	// Duplicates lists user ids that had more than one subscription; the last one won.
	Duplicates []string `json:"duplicates,omitempty"`
}

// Summary is a count-only view of an aggregation, used by the dashboard.
type Summary struct {
	Total             int `json:"total"`
	Pending           int `json:"pending"`
	Active            int `json:"active"`
	Suspended         int `json:"suspended"`
	Rejected          int `json:"rejected"`
	NeedsProvisioning int `json:"needsProvisioning"`
	Orphans           int `json:"orphans"`
}

// Aggregator merges users and subscriptions.
type Aggregator struct {
	authority domain.StateAuthority
	logger    *slog.Logger
}

// NewAggregator creates an aggregator. authority decides whether a user's
// estado can override the subscription-derived status.
func NewAggregator(authority domain.StateAuthority, logger *slog.Logger) *Aggregator {
	if authority == "" {
		authority = domain.AuthoritySubscription
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{authority: authority, logger: logger}
}

// Aggregate builds exactly len(users) accounts.
func (a *Aggregator) Aggregate(users []domain.UserRecord, subs []domain.SubscriptionRecord) Aggregation {
	byUser := make(map[string]domain.SubscriptionRecord, len(subs))
	var duplicates []string
	for _, sub := range subs {
		if sub.UserID == "" {
			continue
		}
		if previous, ok := byUser[sub.UserID]; ok {
			a.logger.Warn("duplicate subscriptions for user; keeping the last one",
				"user_id", sub.UserID,
				"dropped_subscription_id", previous.ID,
				"kept_subscription_id", sub.ID,
			)
			duplicates = append(duplicates, sub.UserID)
		}
		byUser[sub.UserID] = sub
	}

	result := Aggregation{
		Accounts:   make([]domain.Account, 0, len(users)),
		Pending:    []domain.Account{},
		Approved:   []domain.Account{},
		Orphans:    []domain.SubscriptionRecord{},
		Duplicates: duplicates,
	}

	known := make(map[string]struct{}, len(users))
	for _, user := range users {
		if _, seen := known[user.UID]; seen {
			a.logger.Warn("duplicate user record", "uid", user.UID)
		}
		known[user.UID] = struct{}{}

		account := domain.Account{
			UID:           user.UID,
			ApprovalState: user.ApprovalState,
			Identity:      user,
		}
		if user.ApprovalState == domain.ApprovalPending {
			account.EffectiveStatus = domain.StatusPending
			result.Pending = append(result.Pending, account)
			result.Accounts = append(result.Accounts, account)
			continue
		}

		if sub, ok := byUser[user.UID]; ok {
			sub := sub
			account.Subscription = &sub
		} else {
			account.NeedsProvisioning = true
		}
		account.EffectiveStatus = a.authority.Derive(user, account.Subscription)
		result.Approved = append(result.Approved, account)
		result.Accounts = append(result.Accounts, account)
	}

	for _, sub := range subs {
		if _, ok := known[sub.UserID]; sub.UserID == "" || !ok {
			result.Orphans = append(result.Orphans, sub)
		}
	}

	return result
}

// Find returns the account for uid.
func (g Aggregation) Find(uid string) (domain.Account, bool) {
	for _, account := range g.Accounts {
		if account.UID == uid {
			return account, true
		}
	}
	return domain.Account{}, false
}

// Summary counts accounts per effective status.
func (g Aggregation) Summary() Summary {
	s := Summary{Total: len(g.Accounts), Orphans: len(g.Orphans)}
	for _, account := range g.Accounts {
		switch account.EffectiveStatus {
		case domain.StatusPending:
			s.Pending++
		case domain.StatusActive:
			s.Active++
		case domain.StatusSuspended:
			s.Suspended++
		}
		if account.ApprovalState == domain.ApprovalRejected {
			s.Rejected++
		}
		if account.NeedsProvisioning {
			s.NeedsProvisioning++
		}
	}
	return s
}
