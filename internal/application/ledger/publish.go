package ledger

import (
	"context"

	"github.com/khata/backend/internal/domain/shared"
	"github.com/khata/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// publishEvents drains the aggregate's pending events and hands them to the
// publisher. It runs after the save succeeded, so a publish failure is
// logged and does not fail the operation.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, log *zap.Logger, aggregates ...shared.AggregateRoot) {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		events = append(events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, log).Warn("failed to publish ledger events",
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	}
}
