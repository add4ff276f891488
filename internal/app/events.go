package app

import (
	"context"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
	"github.com/sophiasearch-2025/admin-interface/pkg/rabbitmq"
)

// EventRecorder publishes each outcome as an AccountEvent.
type EventRecorder struct {
	publisher rabbitmq.Publisher
	exchange  string
}

// NewEventRecorder creates an outcome recorder backed by a RabbitMQ publisher.
func NewEventRecorder(publisher rabbitmq.Publisher, exchange string) *EventRecorder {
	return &EventRecorder{publisher: publisher, exchange: exchange}
}

// Record publishes the outcome.
func (r *EventRecorder) Record(ctx context.Context, outcome *domain.Outcome) error {
	if r == nil || r.publisher == nil {
		return nil
	}
	return r.publisher.PublishAccountEvent(ctx, r.exchange, accountEvent(outcome))
}

func accountEvent(outcome *domain.Outcome) rabbitmq.AccountEvent {
	event := rabbitmq.AccountEvent{
		OutcomeID: outcome.ID,
		Operation: string(outcome.Operation),
		UID:       outcome.UID,
		Kind:      string(outcome.Kind),
		Target:    outcome.Target,
		Message:   outcome.Message,
		Timestamp: outcome.FinishedAt,
	}
	if outcome.Account != nil {
		event.EffectiveStatus = string(outcome.Account.EffectiveStatus)
		if outcome.Account.Subscription != nil {
			event.SubscriptionID = outcome.Account.Subscription.ID
		}
	}
	return event
}
