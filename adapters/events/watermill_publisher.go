package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/cerberus/core"
)

// AuditTopic is the topic audit events are published to
const AuditTopic = "cerberus.auth.audit"

// WatermillPublisher delivers audit events through a Watermill publisher.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates an audit publisher on the default topic.
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     AuditTopic,
	}
}

// PublishAudit publishes one audit event as a JSON message.
func (p *WatermillPublisher) PublishAudit(ctx context.Context, event core.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// NopPublisher drops audit events. Used in tests and when no broker is configured.
type NopPublisher struct{}

// PublishAudit discards the event.
func (NopPublisher) PublishAudit(ctx context.Context, event core.AuditEvent) error {
	return nil
}
