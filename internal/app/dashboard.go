/**
 * @description
 * Read-only dashboard view: account counts plus the health of both remote
 * services, refreshed periodically by the scheduler. A refresh already in
 * flight is never overlapped by a second one.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrRefreshInProgress is returned when Refresh is called while another refresh runs.
var ErrRefreshInProgress = errors.New("dashboard refresh already in progress")

// ServiceHealth is the result of one health probe.
type ServiceHealth struct {
	Up        bool   `json:"up"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// HealthReport covers both remote services.
type HealthReport struct {
	Users         ServiceHealth `json:"users"`
	Subscriptions ServiceHealth `json:"subscriptions"`
}

// DashboardSnapshot is what the dashboard endpoint serves.
type DashboardSnapshot struct {
	Summary     Summary      `json:"summary"`
	Health      HealthReport `json:"health"`
	RefreshedAt time.Time    `json:"refreshedAt"`
}

// SnapshotCache persists the last dashboard snapshot outside the process.
type SnapshotCache interface {
	Save(ctx context.Context, snapshot DashboardSnapshot) error
	Load(ctx context.Context) (*DashboardSnapshot, error)
}

// Dashboard keeps the last refreshed snapshot.
type Dashboard struct {
	snapshots *Snapshotter
	users     UsersGateway
	subs      SubscriptionsGateway
	cache     SnapshotCache
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time

	refreshing atomic.Bool
	mu         sync.RWMutex
	latest     *DashboardSnapshot
}

// NewDashboard creates a dashboard. cache and metrics may be nil.
func NewDashboard(snapshots *Snapshotter, users UsersGateway, subs SubscriptionsGateway, cache SnapshotCache, metrics *Metrics, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		snapshots: snapshots,
		users:     users,
		subs:      subs,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Refresh probes both services, aggregates, and stores the result. If the
// aggregation fails the previous snapshot is kept.
func (d *Dashboard) Refresh(ctx context.Context) (*DashboardSnapshot, error) {
	if !d.refreshing.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer d.refreshing.Store(false)

	var (
		wg     sync.WaitGroup
		health HealthReport
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		health.Users = d.probe(ctx, d.users.Health)
	}()
	go func() {
		defer wg.Done()
		health.Subscriptions = d.probe(ctx, d.subs.Health)
	}()

	snapshot, err := d.snapshots.Snapshot(ctx)
	wg.Wait()
	if err != nil {
		d.countRefresh("error")
		return nil, err
	}

	result := DashboardSnapshot{
		Summary:     snapshot.Summary(),
		Health:      health,
		RefreshedAt: d.now(),
	}

	d.mu.Lock()
	d.latest = &result
	d.mu.Unlock()

	d.countRefresh("ok")
	d.metrics.ObserveSnapshot(result)

	if d.cache != nil {
		if err := d.cache.Save(ctx, result); err != nil {
			d.logger.Warn("failed to cache dashboard snapshot", "error", err)
		}
	}
	return &result, nil
}

// Latest returns the last snapshot, falling back to the cache after a restart.
func (d *Dashboard) Latest(ctx context.Context) (*DashboardSnapshot, bool) {
	d.mu.RLock()
	latest := d.latest
	d.mu.RUnlock()
	if latest != nil {
		copied := *latest
		return &copied, true
	}
	if d.cache == nil {
		return nil, false
	}
	cached, err := d.cache.Load(ctx)
	if err != nil {
		d.logger.Warn("failed to load cached dashboard snapshot", "error", err)
		return nil, false
	}
	if cached == nil {
		return nil, false
	}
	return cached, true
}

func (d *Dashboard) probe(ctx context.Context, check func(context.Context) error) ServiceHealth {
	started := d.now()
	err := check(ctx)
	health := ServiceHealth{Up: err == nil, LatencyMS: d.now().Sub(started).Milliseconds()}
	if err != nil {
		health.Error = err.Error()
	}
	return health
}

func (d *Dashboard) countRefresh(result string) {
	if d.metrics != nil {
		d.metrics.DashboardRefreshes.WithLabelValues(result).Inc()
	}
}
