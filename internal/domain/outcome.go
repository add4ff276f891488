package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeKind is the three-way (plus partial) result of a lifecycle operation.
type OutcomeKind string

const (
	// OutcomeConfirmed means the write was applied and observed on re-read.
	OutcomeConfirmed OutcomeKind = "confirmed"
	// OutcomeUnconfirmed means the remote accepted the write but the re-read did not reflect it.
	OutcomeUnconfirmed OutcomeKind = "unconfirmed"
	// OutcomePartial means the user was approved but no subscription was provisioned.
	OutcomePartial OutcomeKind = "partial"
	// OutcomeFailed means a call failed or a precondition did not hold.
	OutcomeFailed OutcomeKind = "failed"
)

// Operation names a lifecycle operation.
type Operation string

const (
	OpApprove         Operation = "approve"
	OpReject          Operation = "reject"
	OpSetAccountState Operation = "set_state"
	OpProvision       Operation = "provision"
	OpRenew           Operation = "renew"
)

// Outcome is what every lifecycle operation returns instead of a bare error.
type Outcome struct {
	ID        uuid.UUID   `json:"id"`
	Operation Operation   `json:"operation"`
	UID       string      `json:"uid"`
	Target    string      `json:"target,omitempty"`
	Kind      OutcomeKind `json:"kind"`
	Message   string      `json:"message"`
	Err       error       `json:"-"`
	ErrorText string      `json:"error,omitempty"`
	// Account is the freshly re-aggregated view, nil if the re-fetch failed.
	Account *Account `json:"account,omitempty"`
	// ViewStale is set when the re-fetch after the write failed.
	ViewStale  bool      `json:"viewStale,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// NewOutcome starts an outcome for op on uid.
func NewOutcome(op Operation, uid string, now time.Time) *Outcome {
	return &Outcome{
		ID:        uuid.New(),
		Operation: op,
		UID:       uid,
		StartedAt: now,
	}
}

// Resolve sets Kind from err and stores err. The message is left to the caller.
func (o *Outcome) Resolve(err error) {
	o.Err = err
	o.Kind = Classify(err)
	if err != nil {
		o.ErrorText = err.Error()
	}
}

// Duration is the wall time the operation took.
func (o *Outcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Succeeded reports whether the outcome is confirmed.
func (o *Outcome) Succeeded() bool {
	return o.Kind == OutcomeConfirmed
}
