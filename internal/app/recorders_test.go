package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
	"github.com/sophiasearch-2025/admin-interface/pkg/rabbitmq"
)

type publisherStub struct {
	exchange string
	events   []rabbitmq.AccountEvent
}

func (p *publisherStub) Publish(context.Context, string, string, interface{}) error { return nil }

func (p *publisherStub) PublishAccountEvent(_ context.Context, exchange string, event rabbitmq.AccountEvent) error {
	p.exchange = exchange
	p.events = append(p.events, event)
	return nil
}

func (p *publisherStub) Close() {}

func finishedOutcome(kind error) *domain.Outcome {
	started := time.Now()
	out := domain.NewOutcome(domain.OpSetAccountState, "u1", started)
	out.Target = "suspended"
	out.Resolve(kind)
	out.Message = "done"
	out.FinishedAt = started.Add(1200 * time.Millisecond)
	out.Account = &domain.Account{
		UID:             "u1",
		EffectiveStatus: domain.StatusSuspended,
		Subscription:    &domain.SubscriptionRecord{ID: "s1"},
	}
	return out
}

func TestEventRecorderPublishesOutcome(t *testing.T) {
	publisher := &publisherStub{}
	recorder := NewEventRecorder(publisher, "admin_events")

	require.NoError(t, recorder.Record(context.Background(), finishedOutcome(nil)))

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, "admin_events", publisher.exchange)
	assert.Equal(t, "account.set_state.confirmed", event.RoutingKey())
	assert.Equal(t, "suspended", event.EffectiveStatus)
	assert.Equal(t, "s1", event.SubscriptionID)
}

func TestMetricsRecordCountsOutcomes(t *testing.T) {
	metrics := NewMetrics("admin", prometheus.NewRegistry())

	require.NoError(t, metrics.Record(context.Background(), finishedOutcome(nil)))
	require.NoError(t, metrics.Record(context.Background(), finishedOutcome(&domain.UnconfirmedWriteError{})))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.OutcomesTotal.WithLabelValues("set_state", "confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.OutcomesTotal.WithLabelValues("set_state", "unconfirmed")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.OutcomeDuration))
}
