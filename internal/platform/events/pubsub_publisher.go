package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/platform/textutil"
)

// Message is the JSON body published for every domain event.
type Message struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	OfficeID      int               `json:"officeId"`
	AccountNumber int               `json:"accountNumber"`
	SubjectID     int               `json:"subjectId"`
	OccurredAt    time.Time         `json:"occurredAt"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// PubSubPublisher publishes domain events to a Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	now     func() time.Time
}

// NewPubSubPublisher constructs a Pub/Sub backed event publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
		now:     time.Now,
	}, nil
}

// Publish sends event and blocks until the server acknowledges it.
func (p *PubSubPublisher) Publish(ctx context.Context, event domain.Event) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}
	if strings.TrimSpace(string(event.Type)) == "" {
		return errors.New("pubsub event publisher: event type is required")
	}

	msg := Message{
		ID:            strings.TrimSpace(event.ID),
		Type:          string(event.Type),
		OfficeID:      event.OfficeID,
		AccountNumber: event.AccountNumber,
		SubjectID:     event.SubjectID,
		OccurredAt:    event.OccurredAt.UTC(),
		Attributes:    textutil.CompactAttributes(event.Attributes),
	}
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = p.now().UTC()
	}

	data, err := p.marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	attrs := map[string]string{
		"eventId":   msg.ID,
		"eventType": msg.Type,
	}
	setIntAttr(attrs, "officeId", msg.OfficeID)
	setIntAttr(attrs, "accountNumber", msg.AccountNumber)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event %s: %w", msg.Type, err)
	}
	return nil
}

func setIntAttr(attrs map[string]string, key string, value int) {
	if value > 0 {
		attrs[key] = strconv.Itoa(value)
	}
}
