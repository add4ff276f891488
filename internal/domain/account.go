package domain

import "fmt"

// EffectiveStatus is the derived status shown for an account.
type EffectiveStatus string

const (
	StatusPending   EffectiveStatus = "pending"
	StatusActive    EffectiveStatus = "active"
	StatusSuspended EffectiveStatus = "suspended"
)

// Account is the merged view of a user and their optional subscription.
// It is rebuilt on every aggregation pass and never stored.
type Account struct {
	UID             string              `json:"uid"`
	ApprovalState   ApprovalState       `json:"approvalState"`
	Identity        UserRecord          `json:"identity"`
	Subscription    *SubscriptionRecord `json:"subscription,omitempty"`
	EffectiveStatus EffectiveStatus     `json:"effectiveStatus"`
	// NeedsProvisioning marks a decided account with no subscription. It
	// still reads as active and should be provisioned by an operator.
	NeedsProvisioning bool `json:"needsProvisioning"`
}

// HasSubscription reports whether a subscription was joined to the account.
func (a Account) HasSubscription() bool {
	return a.Subscription != nil
}

// DeriveEffectiveStatus applies the status rule:
//   - pending users are pending, whatever subscription they have;
//   - decided users without a subscription are active;
//   - otherwise active iff the subscription is active or trialing.
func DeriveEffectiveStatus(approval ApprovalState, sub *SubscriptionRecord) EffectiveStatus {
	if approval == ApprovalPending {
		return StatusPending
	}
	if sub == nil {
		return StatusActive
	}
	if sub.Status.IsActive() {
		return StatusActive
	}
	return StatusSuspended
}

// StateAuthority names the service that owns the suspend/reactivate flag in a deployment.
type StateAuthority string

const (
	// AuthoritySubscription suspends by cancelling the subscription.
	AuthoritySubscription StateAuthority = "subscription"
	// AuthorityUser suspends through the user's estado field.
	AuthorityUser StateAuthority = "user"
)

// ParseStateAuthority maps a config value to an authority. Empty means subscription.
func ParseStateAuthority(raw string) (StateAuthority, error) {
	switch StateAuthority(raw) {
	case "", AuthoritySubscription:
		return AuthoritySubscription, nil
	case AuthorityUser:
		return AuthorityUser, nil
	default:
		return "", fmt.Errorf("unknown account state strategy %q", raw)
	}
}

// Derive computes the effective status. Under user authority a decided
// account takes its status from estado alone; the subscription is then only
// a mirror.
func (a StateAuthority) Derive(user UserRecord, sub *SubscriptionRecord) EffectiveStatus {
	status := DeriveEffectiveStatus(user.ApprovalState, sub)
	if a != AuthorityUser || status == StatusPending {
		return status
	}
	switch user.AccountState {
	case AccountSuspended:
		return StatusSuspended
	case AccountActive:
		return StatusActive
	}
	return status
}
