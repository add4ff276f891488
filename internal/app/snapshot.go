package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
	"github.com/sophiasearch-2025/admin-interface/pkg/subscriptionclient"
	"github.com/sophiasearch-2025/admin-interface/pkg/usersclient"
)

// Snapshot is an aggregation together with the time its inputs were fetched.
type Snapshot struct {
	Aggregation
	FetchedAt time.Time `json:"fetchedAt"`
}

// Snapshotter fetches both collections and aggregates them.
type Snapshotter struct {
	users      UsersGateway
	subs       SubscriptionsGateway
	aggregator *Aggregator
	now        func() time.Time
}

// NewSnapshotter creates a snapshotter over the two gateways.
func NewSnapshotter(users UsersGateway, subs SubscriptionsGateway, aggregator *Aggregator) *Snapshotter {
	return &Snapshotter{users: users, subs: subs, aggregator: aggregator, now: time.Now}
}

// Snapshot fetches users and subscriptions concurrently and aggregates them.
// Either fetch failing fails the snapshot; a half-fetched view is never returned.
func (s *Snapshotter) Snapshot(ctx context.Context) (*Snapshot, error) {
	var (
		users []usersclient.User
		subs  []subscriptionclient.Subscription
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.users.List(gctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		subs, err = s.subs.List(gctx)
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggregation := s.aggregator.Aggregate(
		userRecords(users, s.users.ComprobanteURL),
		subscriptionRecords(subs),
	)
	return &Snapshot{Aggregation: aggregation, FetchedAt: s.now()}, nil
}

// Account fetches a fresh snapshot and returns the account for uid.
func (s *Snapshotter) Account(ctx context.Context, uid string) (domain.Account, *Snapshot, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return domain.Account{}, nil, err
	}
	account, ok := snapshot.Find(uid)
	if !ok {
		return domain.Account{}, snapshot, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, uid)
	}
	return account, snapshot, nil
}
