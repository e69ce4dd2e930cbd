package domain

import "time"

// TicketStatus enumerates lifecycle states for escalated tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "OPEN"
	TicketStatusClosed TicketStatus = "CLOSED"
)

// Ticket action tokens submitted from the SME team card.
const (
	TicketActionReopen       = "reopen"
	TicketActionClose        = "close"
	TicketActionAssignToSelf = "assignToSelf"
)

// Ticket binds a requester's conversation to the SME-team announcement of
// their escalated question.
type Ticket struct {
	TicketID                string
	Status                  TicketStatus
	Title                   string
	Description             string
	RequesterName           string
	RequesterUserID         string
	RequesterConversationID string
	SmeCardActivityID       string
	SmeThreadConversationID string
	AssignedToName          string
	AssignedToObjectID      string
	DateCreated             time.Time
	DateAssigned            *time.Time
	DateClosed              *time.Time
	LastModifiedByName      string
	LastModifiedByObjectID  string
}

// IsAssigned reports whether an SME has taken the ticket.
func (t *Ticket) IsAssigned() bool {
	return t.AssignedToObjectID != ""
}

// ChangeTicketStatusPayload is the card submission requesting a ticket
// transition.
type ChangeTicketStatusPayload struct {
	TicketID string `json:"ticketId"`
	Action   string `json:"action"`
}
