/**
 * @description
 * This file defines the identity side of an account as the lifecycle engine
 * sees it, independent of the Users service wire format.
 */
package domain

import "time"

// ApprovalState is the signup decision for a user.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// AccountState is the user-owned status flag (estado).
type AccountState string

const (
	AccountActive    AccountState = "active"
	AccountSuspended AccountState = "suspended"
)

// ParseAccountState accepts "active" or "suspended" and nothing else.
func ParseAccountState(raw string) (AccountState, error) {
	switch AccountState(raw) {
	case AccountActive, AccountSuspended:
		return AccountState(raw), nil
	default:
		return "", ErrInvalidTarget
	}
}

// UserRecord is an identity owned by the Users service.
type UserRecord struct {
	UID           string        `json:"uid"`
	Email         string        `json:"email"`
	DisplayName   string        `json:"displayName"`
	Company       string        `json:"company,omitempty"`
	Role          string        `json:"role,omitempty"`
	ApprovalState ApprovalState `json:"approvalState"`
	AccountState  AccountState  `json:"accountState"`
	// ProofOfPaymentRef is an absolute URL to the uploaded comprobante; empty when none was uploaded.
	ProofOfPaymentRef string     `json:"proofOfPaymentRef,omitempty"`
	RejectionReason   string     `json:"rejectionReason,omitempty"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
}
