package services

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/fieldline/customer-api/internal/domain"
)

// eventEmitter publishes after a mutation has already succeeded, so failures are logged and
// swallowed.
type eventEmitter struct {
	publisher EventPublisher
	logger    Logger
	now       func() time.Time
}

func (e eventEmitter) emit(ctx context.Context, eventType domain.EventType, account Account, subjectID int, attrs map[string]string) {
	if e.publisher == nil {
		return
	}
	event := domain.Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		OfficeID:      account.OfficeID,
		AccountNumber: account.AccountNumber,
		SubjectID:     subjectID,
		OccurredAt:    e.now(),
		Attributes:    attrs,
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger(ctx, "events.publish_failed", map[string]any{
			"eventId":   event.ID,
			"eventType": string(eventType),
			"subjectId": subjectID,
			"error":     err.Error(),
		})
	}
}
