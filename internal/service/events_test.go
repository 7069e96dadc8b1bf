package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ecoagent-be/internal/dto"
	"ecoagent-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierPublishesEventEnvelope(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "test_events")
	require.NoError(t, err)

	publisher := NewPublisherService("test_events", pubSub)
	notifier := NewConversationNotifier(publisher, logger.NewNopLogger())

	notifier.Notify("sess-1", "CATEGORY_DETECTED", map[string]interface{}{"category": "Travel"})

	select {
	case msg := <-messages:
		var event dto.ConversationEventMessage
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "sess-1", event.SessionID)
		assert.Equal(t, "CATEGORY_DETECTED", event.EventType)
		assert.Equal(t, "Travel", event.Payload["category"])
		assert.False(t, event.OccurredAt.IsZero())
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}
