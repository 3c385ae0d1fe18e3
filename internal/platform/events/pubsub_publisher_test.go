package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	domain "github.com/fieldline/customer-api/internal/domain"
)

func newTestTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "customer-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	t.Cleanup(topic.Stop)
	return srv, topic
}

func TestPubSubPublisherPublishesEvent(t *testing.T) {
	srv, topic := newTestTopic(t)

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	occurred := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	event := domain.Event{
		ID:            "evt-1",
		Type:          domain.EventAppointmentScheduled,
		OfficeID:      3,
		AccountNumber: 1042,
		SubjectID:     77,
		OccurredAt:    occurred,
		Attributes:    map[string]string{"window": "AM", "blank": "  "},
	}
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload Message
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ID != "evt-1" || payload.SubjectID != 77 || !payload.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if _, ok := payload.Attributes["blank"]; ok {
		t.Fatalf("blank attribute should be dropped")
	}
	attrs := messages[0].Attributes
	if attrs["eventType"] != string(domain.EventAppointmentScheduled) || attrs["accountNumber"] != "1042" {
		t.Fatalf("unexpected attributes %#v", attrs)
	}
}

func TestPubSubPublisherAssignsIDAndTime(t *testing.T) {
	srv, topic := newTestTopic(t)

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	publisher.now = func() time.Time { return fixed }

	if err := publisher.Publish(context.Background(), domain.Event{Type: domain.EventPaymentCreated}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var payload Message
	if err := json.Unmarshal(srv.Messages()[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !payload.OccurredAt.Equal(fixed) {
		t.Fatalf("expected occurredAt %v, got %v", fixed, payload.OccurredAt)
	}
	if _, ok := srv.Messages()[0].Attributes["officeId"]; ok {
		t.Fatalf("zero office id should not be an attribute")
	}
}

func TestPubSubPublisherRejectsMissingType(t *testing.T) {
	_, topic := newTestTopic(t)
	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}
	if err := publisher.Publish(context.Background(), domain.Event{}); err == nil {
		t.Fatalf("expected error for missing type")
	}
}
