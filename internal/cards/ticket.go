package cards

import (
	"time"

	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/transport"
)

const ticketDateLayout = "Jan 02, 2006 15:04 MST"

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(ticketDateLayout)
}

func ticketStatusText(ticket *domain.Ticket) string {
	switch {
	case ticket.Status == domain.TicketStatusClosed:
		return "Closed"
	case ticket.IsAssigned():
		return "Assigned to " + ticket.AssignedToName
	default:
		return "Open"
	}
}

// SmeTicket renders the expert-channel card for an escalated ticket, with
// transition buttons matching its current state.
func SmeTicket(ticket *domain.Ticket) transport.Attachment {
	created := ticket.DateCreated
	body := []any{
		heading(ticket.Title),
		factSet(
			[2]string{"Status:", ticketStatusText(ticket)},
			[2]string{"Requested by:", ticket.RequesterName},
			[2]string{"Created:", formatDate(&created)},
			[2]string{"Assigned:", formatDate(ticket.DateAssigned)},
			[2]string{"Closed:", formatDate(ticket.DateClosed)},
		),
	}
	if ticket.Description != "" {
		body = append(body, textBlock(ticket.Description))
	}

	actions := []any{}
	if ticket.Status == domain.TicketStatusClosed {
		actions = append(actions, ticketAction("Reopen", ticket.TicketID, domain.TicketActionReopen))
	} else {
		if !ticket.IsAssigned() {
			actions = append(actions, ticketAction("Assign to me", ticket.TicketID, domain.TicketActionAssignToSelf))
		}
		actions = append(actions, ticketAction("Close", ticket.TicketID, domain.TicketActionClose))
	}
	return wrap(newCard(body, actions...))
}

func ticketAction(title, ticketID, action string) map[string]any {
	return map[string]any{
		"type":  "Action.Submit",
		"title": title,
		"data": map[string]any{
			"ticketId": ticketID,
			"action":   action,
		},
	}
}

// RequesterNotification tells the requester what happened to their ticket.
func RequesterNotification(ticket *domain.Ticket) transport.Attachment {
	var text string
	switch {
	case ticket.Status == domain.TicketStatusClosed:
		text = "The expert team closed your request. If you still need help, just ask again."
	case ticket.IsAssigned():
		text = ticket.AssignedToName + " from the expert team is now looking into your request."
	default:
		text = "Your request was reopened. The expert team will get back to you."
	}
	return wrap(newCard([]any{
		heading(ticket.Title),
		textBlock(text),
	}))
}
