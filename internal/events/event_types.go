package events

import (
	"time"

	"github.com/spec-kit/support-assistant/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventQnaPairAdded        EventType = "qna_pair_added"
	EventQnaPairUpdated      EventType = "qna_pair_updated"
	EventQnaPairDeleted      EventType = "qna_pair_deleted"
	EventBatchCompleted      EventType = "batch_completed"
)

// Actor identifies the chat user behind an event.
type Actor struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID string `json:"ticket_id"`
	Title    string `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketID  string              `json:"ticket_id"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Action    string              `json:"action"`
}

// QnaPairChangedPayload payload for add/update/delete events.
type QnaPairChangedPayload struct {
	PairID   int    `json:"pair_id,omitempty"`
	Question string `json:"question"`
}

// BatchCompletedPayload payload.
type BatchCompletedPayload struct {
	Rows     int    `json:"rows"`
	Filename string `json:"filename"`
}
