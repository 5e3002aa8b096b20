package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/cerberus/core"
)

func TestPublishAudit(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), AuditTopic)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubSub)

	event := core.AuditEvent{
		ID:        "evt-1",
		Timestamp: time.Now().UTC(),
		Address:   "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		IP:        "1.2.3.4",
		Outcome:   core.AuditOutcomeDenied,
		Reason:    core.CodeInvalidSignature,
	}
	require.NoError(t, publisher.PublishAudit(context.Background(), event))

	select {
	case msg := <-messages:
		assert.Equal(t, "evt-1", msg.UUID)
		var decoded core.AuditEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, event.Address, decoded.Address)
		assert.Equal(t, core.AuditOutcomeDenied, decoded.Outcome)
		assert.Equal(t, core.CodeInvalidSignature, decoded.Reason)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("audit event was not delivered")
	}
}
