/**
 * @description
 * LifecycleWorkflow drives account state changes across the Users and
 * Subscriptions services and reports a structured outcome for every call.
 *
 * State machine: pending -> {approved, rejected}; an approved account moves
 * between active and suspended; rejected is terminal.
 *
 * @notes
 * - Steps inside one operation run strictly in sequence.
 * - Every operation that reached a remote write ends with a full re-fetch
 *   and re-aggregation; the returned Account is never patched locally.
 * - Nothing is retried. A failed step ends the operation.
 * - Operations ignore cancellation of the caller's context. Each remote call
 *   is bounded by the transport timeout instead, so a write that was sent is
 *   always verified and recorded.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
	"github.com/sophiasearch-2025/admin-interface/pkg/subscriptionclient"
)

// OutcomeRecorder receives every finished outcome. Errors are logged and
// never change the outcome.
type OutcomeRecorder interface {
	Record(ctx context.Context, outcome *domain.Outcome) error
}

// PlanDefaults is the plan used when approving or provisioning without an explicit plan.
type PlanDefaults struct {
	ID    string
	Name  string
	Price float64
}

// LifecycleOptions configures a Lifecycle.
type LifecycleOptions struct {
	Authority   domain.StateAuthority
	SettleDelay time.Duration
	Plan        PlanDefaults
	Recorders   []OutcomeRecorder
	Logger      *slog.Logger
}

// Lifecycle runs the account lifecycle operations.
type Lifecycle struct {
	users       UsersGateway
	subs        SubscriptionsGateway
	snapshots   *Snapshotter
	authority   domain.StateAuthority
	settleDelay time.Duration
	plan        PlanDefaults
	recorders   []OutcomeRecorder
	logger      *slog.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewLifecycle creates the workflow runner.
func NewLifecycle(users UsersGateway, subs SubscriptionsGateway, snapshots *Snapshotter, opts LifecycleOptions) *Lifecycle {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authority := opts.Authority
	if authority == "" {
		authority = domain.AuthoritySubscription
	}
	return &Lifecycle{
		users:       users,
		subs:        subs,
		snapshots:   snapshots,
		authority:   authority,
		settleDelay: opts.SettleDelay,
		plan:        opts.Plan,
		recorders:   opts.Recorders,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Authority returns the configured suspend/reactivate strategy.
func (l *Lifecycle) Authority() domain.StateAuthority {
	return l.authority
}

// Approve approves a pending signup and provisions the default subscription.
// If approval fails no subscription is created. If approval succeeds and
// provisioning does not, the outcome is partial.
func (l *Lifecycle) Approve(ctx context.Context, uid string) *domain.Outcome {
	ctx = context.WithoutCancel(ctx)
	out := l.begin(domain.OpApprove, uid)

	account, err := l.require(ctx, out, domain.ApprovalPending)
	if err != nil {
		return l.finish(ctx, out, err, "")
	}

	if _, err := l.users.Approve(ctx, uid); err != nil {
		l.refresh(ctx, out)
		return l.finish(ctx, out, fmt.Errorf("approve user %s: %w", uid, err),
			"approval failed; no subscription was created")
	}

	var opErr error
	sub, err := l.subs.Create(ctx, l.createRequest(account, l.plan))
	switch {
	case err != nil:
		opErr = &domain.PartialProvisioningError{UID: uid, Err: err}
	case sub == nil:
		opErr = &domain.PartialProvisioningError{UID: uid}
	default:
		l.logger.Info("subscription provisioned", "uid", uid, "subscription_id", sub.ID, "plan", l.plan.ID)
	}

	l.refresh(ctx, out)
	return l.finish(ctx, out, opErr, "")
}

// Reject rejects a pending signup. The reason is optional.
func (l *Lifecycle) Reject(ctx context.Context, uid, reason string) *domain.Outcome {
	ctx = context.WithoutCancel(ctx)
	out := l.begin(domain.OpReject, uid)

	if _, err := l.require(ctx, out, domain.ApprovalPending); err != nil {
		return l.finish(ctx, out, err, "")
	}

	_, err := l.users.Reject(ctx, uid, reason)
	if err != nil {
		err = fmt.Errorf("reject user %s: %w", uid, err)
	}
	l.refresh(ctx, out)
	return l.finish(ctx, out, err, "")
}

// SetAccountState suspends or reactivates an approved account through the
// configured authority, then verifies the write.
func (l *Lifecycle) SetAccountState(ctx context.Context, uid, target string) *domain.Outcome {
	ctx = context.WithoutCancel(ctx)
	out := l.begin(domain.OpSetAccountState, uid)
	out.Target = target

	state, err := domain.ParseAccountState(strings.ToLower(strings.TrimSpace(target)))
	if err != nil {
		return l.finish(ctx, out, fmt.Errorf("%w: %q", err, target), "")
	}
	out.Target = string(state)

	account, err := l.require(ctx, out, domain.ApprovalApproved)
	if err != nil {
		return l.finish(ctx, out, err, "")
	}

	if l.authority == domain.AuthorityUser {
		err = l.setUserState(ctx, uid, state)
	} else {
		if account.Subscription == nil {
			return l.finish(ctx, out, fmt.Errorf("%w: %s", domain.ErrNoSubscription, uid), "")
		}
		err = l.setSubscriptionState(ctx, account.Subscription.ID, state)
	}

	l.refresh(ctx, out)
	return l.finish(ctx, out, err, "")
}

// Provision creates a subscription for an approved account that has none,
// the manual follow-up a partial approval asks for. planID may be empty.
func (l *Lifecycle) Provision(ctx context.Context, uid, planID string) *domain.Outcome {
	ctx = context.WithoutCancel(ctx)
	out := l.begin(domain.OpProvision, uid)

	account, err := l.require(ctx, out, domain.ApprovalApproved)
	if err != nil {
		return l.finish(ctx, out, err, "")
	}
	if account.Subscription != nil {
		return l.finish(ctx, out, fmt.Errorf("%w: account %s already has subscription %s",
			domain.ErrPreconditionFailed, uid, account.Subscription.ID), "")
	}

	plan := l.plan
	if planID = strings.TrimSpace(planID); planID != "" && planID != plan.ID {
		plan = PlanDefaults{ID: planID}
	}
	out.Target = plan.ID

	sub, err := l.subs.Create(ctx, l.createRequest(account, plan))
	if err != nil {
		l.refresh(ctx, out)
		return l.finish(ctx, out, fmt.Errorf("create subscription for %s: %w", uid, err), "")
	}
	if sub != nil {
		l.logger.Info("subscription provisioned", "uid", uid, "subscription_id", sub.ID, "plan", plan.ID)
	}

	// The create response may omit the record, so the join itself is the check.
	err = l.verifyJoined(ctx, out)
	return l.finish(ctx, out, err, "")
}

// Renew extends the account's subscription and verifies it reads back active.
func (l *Lifecycle) Renew(ctx context.Context, uid string) *domain.Outcome {
	ctx = context.WithoutCancel(ctx)
	out := l.begin(domain.OpRenew, uid)

	account, err := l.require(ctx, out, domain.ApprovalApproved)
	if err != nil {
		return l.finish(ctx, out, err, "")
	}
	if account.Subscription == nil {
		return l.finish(ctx, out, fmt.Errorf("%w: %s", domain.ErrNoSubscription, uid), "")
	}

	id := account.Subscription.ID
	if _, err := l.subs.Renew(ctx, id); err != nil {
		err = fmt.Errorf("renew subscription %s: %w", id, err)
		l.refresh(ctx, out)
		return l.finish(ctx, out, err, "")
	}

	err = l.verify(ctx, statusCheck{
		entity:   "subscription",
		id:       id,
		field:    "status",
		expected: string(domain.SubscriptionActive),
		read:     l.readSubscriptionStatus(id),
		matches: func(observed string) bool {
			return domain.SubscriptionStatus(observed).IsActive()
		},
	})
	l.refresh(ctx, out)
	return l.finish(ctx, out, err, "")
}

func (l *Lifecycle) setSubscriptionState(ctx context.Context, id string, state domain.AccountState) error {
	expected := domain.SubscriptionActive
	if state == domain.AccountSuspended {
		expected = domain.SubscriptionCancelled
	}

	if _, err := l.subs.SetStatus(ctx, id, string(expected)); err != nil {
		return fmt.Errorf("patch subscription %s: %w", id, err)
	}

	return l.verify(ctx, statusCheck{
		entity:   "subscription",
		id:       id,
		field:    "status",
		expected: string(expected),
		read:     l.readSubscriptionStatus(id),
		matches: func(observed string) bool {
			return domain.SubscriptionStatus(observed).Equivalent(expected)
		},
	})
}

func (l *Lifecycle) setUserState(ctx context.Context, uid string, state domain.AccountState) error {
	if _, err := l.users.SetStatus(ctx, uid, string(state)); err != nil {
		return fmt.Errorf("patch user %s: %w", uid, err)
	}

	return l.verify(ctx, statusCheck{
		entity:   "user",
		id:       uid,
		field:    "estado",
		expected: string(state),
		read: func(ctx context.Context) (string, error) {
			user, err := l.users.Get(ctx, uid)
			if err != nil {
				return "", err
			}
			return user.Estado, nil
		},
		matches: func(observed string) bool {
			return strings.EqualFold(strings.TrimSpace(observed), string(state))
		},
	})
}

func (l *Lifecycle) readSubscriptionStatus(id string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		sub, err := l.subs.Get(ctx, id)
		if err != nil {
			return "", err
		}
		return sub.Status, nil
	}
}

// verifyJoined waits for the settle delay and checks that the fresh
// aggregation joins a subscription to out.UID. It also sets out.Account.
func (l *Lifecycle) verifyJoined(ctx context.Context, out *domain.Outcome) error {
	if err := l.sleep(ctx, l.settleDelay); err != nil {
		out.ViewStale = true
		return fmt.Errorf("wait before verifying subscription for %s: %w", out.UID, err)
	}
	account, _, err := l.snapshots.Account(ctx, out.UID)
	if err != nil {
		out.ViewStale = true
		return fmt.Errorf("verify subscription for %s: %w", out.UID, err)
	}
	out.Account = &account
	if account.Subscription == nil {
		return &domain.UnconfirmedWriteError{
			Entity:   "subscription",
			ID:       out.UID,
			Field:    "userId",
			Expected: out.UID,
			Observed: "",
		}
	}
	return nil
}

// createRequest sends a price only for the configured plan; other plans are
// priced by the Subscriptions service.
func (l *Lifecycle) createRequest(account domain.Account, plan PlanDefaults) subscriptionclient.CreateRequest {
	req := subscriptionclient.CreateRequest{
		UserID:    account.UID,
		PlanID:    plan.ID,
		UserEmail: account.Identity.Email,
		UserName:  account.Identity.DisplayName,
		PlanName:  plan.Name,
	}
	if plan == l.plan {
		price := plan.Price
		req.Precio = &price
	}
	return req
}

// require loads a fresh account and checks its approval state. The account is
// attached to out so precondition failures still show the current view.
func (l *Lifecycle) require(ctx context.Context, out *domain.Outcome, allowed ...domain.ApprovalState) (domain.Account, error) {
	account, _, err := l.snapshots.Account(ctx, out.UID)
	if err != nil {
		return domain.Account{}, err
	}
	out.Account = &account

	for _, state := range allowed {
		if account.ApprovalState == state {
			return account, nil
		}
	}
	return account, fmt.Errorf("%w: account %s is %s", domain.ErrPreconditionFailed, out.UID, account.ApprovalState)
}

// refresh re-fetches both collections and replaces out.Account.
func (l *Lifecycle) refresh(ctx context.Context, out *domain.Outcome) {
	account, _, err := l.snapshots.Account(ctx, out.UID)
	if err != nil {
		out.ViewStale = true
		l.logger.Warn("failed to refresh account view after write", "uid", out.UID, "operation", out.Operation, "error", err)
		return
	}
	out.Account = &account
	out.ViewStale = false
}

func (l *Lifecycle) begin(op domain.Operation, uid string) *domain.Outcome {
	return domain.NewOutcome(op, strings.TrimSpace(uid), l.now())
}

func (l *Lifecycle) finish(ctx context.Context, out *domain.Outcome, err error, message string) *domain.Outcome {
	out.Resolve(err)
	out.FinishedAt = l.now()
	if message != "" && err != nil {
		message = message + ": " + err.Error()
	}
	if message == "" {
		message = outcomeMessage(out)
	}
	out.Message = message

	attrs := []any{
		"outcome_id", out.ID,
		"operation", out.Operation,
		"uid", out.UID,
		"kind", out.Kind,
		"duration", out.Duration().Round(time.Millisecond),
	}
	if out.Target != "" {
		attrs = append(attrs, "target", out.Target)
	}
	switch out.Kind {
	case domain.OutcomeConfirmed:
		l.logger.Info("lifecycle operation confirmed", attrs...)
	case domain.OutcomeFailed:
		l.logger.Error("lifecycle operation failed", append(attrs, "error", err)...)
	default:
		l.logger.Warn("lifecycle operation not fully applied", append(attrs, "error", err)...)
	}

	for _, recorder := range l.recorders {
		if recErr := recorder.Record(ctx, out); recErr != nil {
			l.logger.Warn("failed to record lifecycle outcome", "outcome_id", out.ID, "error", recErr)
		}
	}
	return out
}

func outcomeMessage(out *domain.Outcome) string {
	switch out.Kind {
	case domain.OutcomeConfirmed:
		switch out.Operation {
		case domain.OpApprove:
			return "user approved and subscription provisioned"
		case domain.OpReject:
			return "user rejected"
		case domain.OpSetAccountState:
			return "account is now " + out.Target + " (verified)"
		case domain.OpProvision:
			return "subscription provisioned (verified)"
		case domain.OpRenew:
			return "subscription renewed (verified)"
		}
		return "operation confirmed"
	case domain.OutcomePartial:
		return "user approved, but no subscription was provisioned; provision the subscription manually: " + out.ErrorText
	case domain.OutcomeUnconfirmed:
		return "the service accepted the change but did not persist it; this is a backend persistence defect, not a request error: " + out.ErrorText
	default:
		return string(out.Operation) + " failed: " + out.ErrorText
	}
}
