package dto

import (
	"time"

	"ecoagent-be/pkg/conversation"
)

// CompanyProfileDTO is the intake wizard payload forwarded to the analysis
// backend when a session is registered.
type CompanyProfileDTO struct {
	Country            string `json:"country" validate:"required"`
	Industry           string `json:"industry" validate:"required"`
	Employees          string `json:"employees" validate:"required"`
	PhysicalFacilities string `json:"physical_facilities"`
	Sells              string `json:"sells"`
}

type StartIntakeRequest struct {
	CompanyProfile CompanyProfileDTO `json:"company_profile" validate:"required"`
}

type StartIntakeResponse struct {
	SessionID    string                `json:"session_id"`
	Conversation conversation.Snapshot `json:"conversation"`
}

type SendAnswerRequest struct {
	Answer string `json:"answer" validate:"required"`
}

type SendAnswerResponse struct {
	Conversation conversation.Snapshot `json:"conversation"`
}

// ConversationEventMessage is the wire form of a session event, both on the
// internal pub/sub topic and on the websocket.
type ConversationEventMessage struct {
	SessionID  string                 `json:"session_id"`
	EventType  string                 `json:"event_type"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}
