package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/cards"
	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/events"
	"github.com/spec-kit/support-assistant/internal/repository"
	"github.com/spec-kit/support-assistant/internal/transport"
)

// TicketService escalates requester questions to the expert team and drives
// ticket status transitions from the expert-channel card.
type TicketService struct {
	tickets    repository.TicketStore
	connector  transport.Connector
	dispatcher events.Dispatcher
	logger     *zap.Logger
	smeTeamID  string

	now func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Tickets    repository.TicketStore
	Connector  transport.Connector
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	SmeTeamID  string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.Tickets,
		connector:  deps.Connector,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		smeTeamID:  deps.SmeTeamID,
		now:        time.Now,
	}
}

// CreateTicketInput describes an ask-expert form submission.
type CreateTicketInput struct {
	Title                   string
	Description             string
	RequesterName           string
	RequesterUserID         string
	RequesterConversationID string
	ServiceURL              string
}

// CreateTicket persists a new open ticket, announces it in the expert team
// thread and records the announcement ids on the ticket.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		TicketID:                uuid.NewString(),
		Status:                  domain.TicketStatusOpen,
		Title:                   input.Title,
		Description:             input.Description,
		RequesterName:           input.RequesterName,
		RequesterUserID:         input.RequesterUserID,
		RequesterConversationID: input.RequesterConversationID,
		DateCreated:             s.now().UTC(),
	}
	if err := s.tickets.Upsert(ctx, ticket); err != nil {
		return nil, err
	}

	threadID, activityID, err := s.connector.CreateThreadConversation(ctx, input.ServiceURL, s.smeTeamID, transport.Message{
		Summary:     ticket.Title,
		Attachments: []transport.Attachment{cards.SmeTicket(ticket)},
	})
	if err != nil {
		return nil, err
	}

	ticket.SmeThreadConversationID = threadID
	ticket.SmeCardActivityID = activityID
	if err := s.tickets.Upsert(ctx, ticket); err != nil {
		return nil, err
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketCreated,
		Actor:     events.Actor{UserID: input.RequesterUserID, Name: input.RequesterName},
		Timestamp: s.now().UTC(),
		Payload:   events.TicketCreatedPayload{TicketID: ticket.TicketID, Title: ticket.Title},
	})
	return ticket, nil
}

// ApplyAction executes a status transition requested from the expert card.
// The persisted transition is the source of truth; the card refresh, the
// thread status line and the requester notification are each best-effort.
func (s *TicketService) ApplyAction(ctx context.Context, serviceURL, replyConversationID string, actor domain.Account, payload domain.ChangeTicketStatusPayload) error {
	ticket, err := s.tickets.Get(ctx, payload.TicketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		s.logger.Warn("status change for unknown ticket", zap.String("ticket_id", payload.TicketID))
		s.sendBestEffort(ctx, serviceURL, transport.Message{
			ConversationID: replyConversationID,
			Text:           "Sorry, I couldn't find that request. It may have been removed.",
		}, "ticket not found reply")
		return nil
	}

	oldStatus := ticket.Status
	now := s.now().UTC()

	switch payload.Action {
	case domain.TicketActionReopen:
		ticket.Status = domain.TicketStatusOpen
		ticket.AssignedToName = ""
		ticket.AssignedToObjectID = ""
		ticket.DateAssigned = nil
		ticket.DateClosed = nil
	case domain.TicketActionClose:
		ticket.Status = domain.TicketStatusClosed
		ticket.DateClosed = &now
	case domain.TicketActionAssignToSelf:
		ticket.Status = domain.TicketStatusOpen
		ticket.AssignedToName = actor.Name
		ticket.AssignedToObjectID = actor.AadObjectID
		ticket.DateAssigned = &now
		ticket.DateClosed = nil
	default:
		s.logger.Warn("unknown ticket action",
			zap.String("ticket_id", payload.TicketID),
			zap.String("action", payload.Action))
		return nil
	}

	ticket.LastModifiedByName = actor.Name
	ticket.LastModifiedByObjectID = actor.AadObjectID

	if err := s.tickets.Upsert(ctx, ticket); err != nil {
		return err
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketStatusChanged,
		Actor:     events.Actor{UserID: actor.AadObjectID, Name: actor.Name},
		Timestamp: now,
		Payload: events.TicketStatusChangedPayload{
			TicketID:  ticket.TicketID,
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			Action:    payload.Action,
		},
	})

	s.refreshSmeCard(ctx, serviceURL, ticket)
	s.sendBestEffort(ctx, serviceURL, transport.Message{
		ConversationID: ticket.SmeThreadConversationID,
		Text:           statusLine(ticket, actor),
	}, "sme thread status line")
	s.sendBestEffort(ctx, serviceURL, transport.Message{
		ConversationID: ticket.RequesterConversationID,
		Attachments:    []transport.Attachment{cards.RequesterNotification(ticket)},
	}, "requester notification")
	return nil
}

func (s *TicketService) refreshSmeCard(ctx context.Context, serviceURL string, ticket *domain.Ticket) {
	if ticket.SmeCardActivityID == "" {
		return
	}
	err := s.connector.UpdateMessage(ctx, serviceURL, ticket.SmeThreadConversationID, ticket.SmeCardActivityID, transport.Message{
		ConversationID: ticket.SmeThreadConversationID,
		Attachments:    []transport.Attachment{cards.SmeTicket(ticket)},
	})
	if err != nil {
		s.logger.Warn("sme card refresh failed",
			zap.String("ticket_id", ticket.TicketID), zap.Error(err))
	}
}

func (s *TicketService) sendBestEffort(ctx context.Context, serviceURL string, msg transport.Message, what string) {
	if msg.ConversationID == "" {
		return
	}
	if _, err := s.connector.SendMessage(ctx, serviceURL, msg); err != nil {
		s.logger.Warn(what+" failed", zap.Error(err))
	}
}

func statusLine(ticket *domain.Ticket, actor domain.Account) string {
	switch {
	case ticket.Status == domain.TicketStatusClosed:
		return fmt.Sprintf("Closed by %s.", actor.Name)
	case ticket.IsAssigned():
		return fmt.Sprintf("Assigned to %s.", ticket.AssignedToName)
	default:
		return fmt.Sprintf("Reopened by %s.", actor.Name)
	}
}
