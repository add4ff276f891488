package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrNoSubscription     = errors.New("account has no subscription")
	ErrInvalidTarget      = errors.New("target state must be active or suspended")
)

// UnconfirmedWriteError reports a write the remote accepted but did not apply.
type UnconfirmedWriteError struct {
	Entity   string
	ID       string
	Field    string
	Expected string
	Observed string
}

func (e *UnconfirmedWriteError) Error() string {
	return fmt.Sprintf(
		"%s %s: write accepted but not persisted: %s is %q, expected %q (backend persistence defect)",
		e.Entity, e.ID, e.Field, e.Observed, e.Expected,
	)
}

// PartialProvisioningError reports an approval whose subscription could not be created.
type PartialProvisioningError struct {
	UID string
	// Err is the create failure; nil when the service answered without a record.
	Err error
}

func (e *PartialProvisioningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("user %s approved but subscription not provisioned: %v", e.UID, e.Err)
	}
	return fmt.Sprintf("user %s approved but subscription service returned no record", e.UID)
}

func (e *PartialProvisioningError) Unwrap() error { return e.Err }

// Classify maps a workflow error to an outcome kind. nil is confirmed.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeConfirmed
	}
	var unconfirmed *UnconfirmedWriteError
	if errors.As(err, &unconfirmed) {
		return OutcomeUnconfirmed
	}
	var partial *PartialProvisioningError
	if errors.As(err, &partial) {
		return OutcomePartial
	}
	return OutcomeFailed
}
