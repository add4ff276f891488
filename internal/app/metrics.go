package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
)

// Metrics holds the admin service Prometheus collectors.
type Metrics struct {
	OutcomesTotal      *prometheus.CounterVec
	OutcomeDuration    *prometheus.HistogramVec
	RateLimitedTotal   *prometheus.CounterVec
	DashboardRefreshes *prometheus.CounterVec
	DashboardAccounts  *prometheus.GaugeVec
	RemoteServiceUp    *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_outcomes_total",
				Help:      "Lifecycle operation outcomes by operation and kind",
			},
			[]string{"operation", "kind"},
		),
		OutcomeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lifecycle_operation_duration_seconds",
				Help:      "Lifecycle operation duration in seconds, settle delay included",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 5, 10, 30},
			},
			[]string{"operation"},
		),
		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_rate_limited_total",
				Help:      "Lifecycle requests rejected by the per-account limiter",
			},
			[]string{"operation"},
		),
		DashboardRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dashboard_refreshes_total",
				Help:      "Dashboard refresh attempts by result",
			},
			[]string{"result"},
		),
		DashboardAccounts: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dashboard_accounts",
				Help:      "Accounts per effective status at the last dashboard refresh",
			},
			[]string{"status"},
		),
		RemoteServiceUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "remote_service_up",
				Help:      "1 when the remote service answered its health check at the last refresh",
			},
			[]string{"service"},
		),
	}
}

// Record counts the outcome.
func (m *Metrics) Record(_ context.Context, outcome *domain.Outcome) error {
	if m == nil {
		return nil
	}
	m.OutcomesTotal.WithLabelValues(string(outcome.Operation), string(outcome.Kind)).Inc()
	m.OutcomeDuration.WithLabelValues(string(outcome.Operation)).Observe(outcome.Duration().Seconds())
	return nil
}

// ObserveSnapshot updates the dashboard gauges.
func (m *Metrics) ObserveSnapshot(snapshot DashboardSnapshot) {
	if m == nil {
		return
	}
	m.DashboardAccounts.WithLabelValues("pending").Set(float64(snapshot.Summary.Pending))
	m.DashboardAccounts.WithLabelValues("active").Set(float64(snapshot.Summary.Active))
	m.DashboardAccounts.WithLabelValues("suspended").Set(float64(snapshot.Summary.Suspended))
	m.DashboardAccounts.WithLabelValues("needs_provisioning").Set(float64(snapshot.Summary.NeedsProvisioning))
	m.DashboardAccounts.WithLabelValues("orphan_subscriptions").Set(float64(snapshot.Summary.Orphans))
	m.RemoteServiceUp.WithLabelValues("users").Set(boolGauge(snapshot.Health.Users.Up))
	m.RemoteServiceUp.WithLabelValues("subscriptions").Set(boolGauge(snapshot.Health.Subscriptions.Up))
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
