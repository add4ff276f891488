/**
 * @description
 * Scheduled job implementations for the admin-service.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	dashboard  *Dashboard
	subs       SubscriptionsGateway
	logger     *slog.Logger
	jobTimeout time.Duration
}

// NewJobs creates a new Jobs runner. jobTimeout bounds each run.
func NewJobs(dashboard *Dashboard, subs SubscriptionsGateway, logger *slog.Logger, jobTimeout time.Duration) *Jobs {
	if jobTimeout <= 0 {
		jobTimeout = time.Minute
	}
	return &Jobs{
		dashboard:  dashboard,
		subs:       subs,
		logger:     logger,
		jobTimeout: jobTimeout,
	}
}

// RefreshDashboard re-aggregates accounts and probes both services.
func (j *Jobs) RefreshDashboard() {
	ctx, cancel := context.WithTimeout(context.Background(), j.jobTimeout)
	defer cancel()

	snapshot, err := j.dashboard.Refresh(ctx)
	if errors.Is(err, ErrRefreshInProgress) {
		j.logger.Info("dashboard refresh skipped; previous refresh still running")
		return
	}
	if err != nil {
		j.logger.Error("failed to refresh dashboard", "error", err)
		return
	}

	j.logger.Debug("dashboard refreshed",
		"total", snapshot.Summary.Total,
		"pending", snapshot.Summary.Pending,
		"suspended", snapshot.Summary.Suspended,
		"needs_provisioning", snapshot.Summary.NeedsProvisioning,
		"users_up", snapshot.Health.Users.Up,
		"subscriptions_up", snapshot.Health.Subscriptions.Up,
	)
}

// CheckExpiringSubscriptions asks the subscriptions service to scan for
// subscriptions close to their period end.
func (j *Jobs) CheckExpiringSubscriptions() {
	j.logger.Info("starting expiring subscriptions check job")
	ctx, cancel := context.WithTimeout(context.Background(), j.jobTimeout)
	defer cancel()

	result, err := j.subs.CheckExpiring(ctx)
	if err != nil {
		j.logger.Error("failed to check expiring subscriptions", "error", err)
		return
	}

	j.logger.Info("expiring subscriptions check job finished", "processed", result.Processed, "message", result.Message)
}
