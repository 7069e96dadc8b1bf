package service

import (
	"context"
	"encoding/json"
	"time"

	"ecoagent-be/internal/dto"
	"ecoagent-be/internal/pkg/logger"
	"ecoagent-be/pkg/conversation"
)

// conversationNotifier bridges orchestrator events onto the internal event
// bus. Publishing is best-effort: a dropped event never fails the exchange
// that produced it.
type conversationNotifier struct {
	publisher IPublisherService
	log       logger.ILogger
}

func NewConversationNotifier(publisher IPublisherService, log logger.ILogger) conversation.Notifier {
	return &conversationNotifier{publisher: publisher, log: log}
}

func (n *conversationNotifier) Notify(sessionID, eventType string, payload map[string]interface{}) {
	event := dto.ConversationEventMessage{
		SessionID:  sessionID,
		EventType:  eventType,
		Payload:    payload,
		OccurredAt: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		n.log.Warn("Notifier", "Failed to marshal event", map[string]interface{}{
			"session_id": sessionID,
			"event_type": eventType,
			"error":      err.Error(),
		})
		return
	}

	if err := n.publisher.Publish(context.Background(), data); err != nil {
		n.log.Warn("Notifier", "Failed to publish event", map[string]interface{}{
			"session_id": sessionID,
			"event_type": eventType,
			"error":      err.Error(),
		})
	}
}
