package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/events"
)

func newTicketFixture(t *testing.T) (*TicketService, *fakeTicketStore, *fakeConnector) {
	t.Helper()
	store := newFakeTicketStore()
	connector := newFakeConnector()
	svc := NewTicketService(TicketDependencies{
		Tickets:    store,
		Connector:  connector,
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Logger:     zap.NewNop(),
		SmeTeamID:  "team-1",
	})
	return svc, store, connector
}

func seedTicket(t *testing.T, store *fakeTicketStore) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		TicketID:                "t-1",
		Status:                  domain.TicketStatusOpen,
		Title:                   "vpn broken",
		RequesterName:           "Ravi",
		RequesterUserID:         "user-1",
		RequesterConversationID: "conv-user",
		SmeCardActivityID:       "card-1",
		SmeThreadConversationID: "thread-1",
		DateCreated:             time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Upsert(context.Background(), ticket))
	return ticket
}

func expert(name string) domain.Account {
	return domain.Account{ID: "expert-id", Name: name, AadObjectID: "aad-" + name}
}

func TestApplyActionAssignToSelf(t *testing.T) {
	svc, store, connector := newTicketFixture(t)
	seedTicket(t, store)

	err := svc.ApplyAction(context.Background(), "https://svc", "thread-1", expert("Maya"),
		domain.ChangeTicketStatusPayload{TicketID: "t-1", Action: domain.TicketActionAssignToSelf})
	require.NoError(t, err)

	got := store.tickets["t-1"]
	assert.Equal(t, domain.TicketStatusOpen, got.Status)
	assert.Equal(t, "Maya", got.AssignedToName)
	assert.Equal(t, "aad-Maya", got.AssignedToObjectID)
	assert.NotNil(t, got.DateAssigned)
	assert.Nil(t, got.DateClosed)
	assert.Equal(t, "Maya", got.LastModifiedByName)

	// Card refresh, thread status line and requester notification all fired.
	assert.Len(t, connector.updated, 1)
	assert.Len(t, connector.sent, 2)
}

func TestApplyActionAssignTwiceLastWriterWins(t *testing.T) {
	svc, store, _ := newTicketFixture(t)
	seedTicket(t, store)

	require.NoError(t, svc.ApplyAction(context.Background(), "https://svc", "thread-1", expert("Maya"),
		domain.ChangeTicketStatusPayload{TicketID: "t-1", Action: domain.TicketActionAssignToSelf}))
	require.NoError(t, svc.ApplyAction(context.Background(), "https://svc", "thread-1", expert("Noor"),
		domain.ChangeTicketStatusPayload{TicketID: "t-1", Action: domain.TicketActionAssignToSelf}))

	got := store.tickets["t-1"]
	assert.Equal(t, "Noor", got.AssignedToName)
	assert.Equal(t, "aad-Noor", got.AssignedToObjectID)
}

func TestApplyActionCloseSetsDateClosed(t *testing.T) {
	svc, store, _ := newTicketFixture(t)
	seedTicket(t, store)

	require.NoError(t, svc.ApplyAction(context.Background(), "https://svc", "thread-1", expert("Maya"),
		domain.ChangeTicketStatusPayload{TicketID: "t-1", Action: domain.TicketActionClose}))

	got := store.tickets["t-1"]
	assert.Equal(t, domain.TicketStatusClosed, got.Status)
	assert.NotNil(t, got.DateClosed)
}

func TestApplyActionReopenAfterCloseRestoresFreshOpenState(t *testing.T) {
	svc, store, _ := newTicketFixture(t)
	seedTicket(t, store)

	require.NoError(t, svc.ApplyAction(context.Background(), "https://svc", "thread-1", expert("Maya"),
		domain.ChangeTicketStatusPayload{TicketID: "t-1", Action: domain.TicketActionAssignToSelf}))
	require.NoError(t, svc.ApplyAction(context.Background(), "https://svc", "thread-1", expert("Maya"),
		domain.ChangeTicketStatusPayload{TicketID: "t-1", Action: domain.TicketActionClose}))
	require.NoError(t, svc.ApplyAction(context.Background(), "https://svc", "thread-1", expert("Maya"),
		domain.ChangeTicketStatusPayload{TicketID: "t-1", Action: domain.TicketActionReopen}))

	got := store.tickets["t-1"]
	assert.Equal(t, domain.TicketStatusOpen, got.Status)
	assert.Empty(t, got.AssignedToName)
	assert.Empty(t, got.AssignedToObjectID)
	assert.Nil(t, got.DateAssigned)
	assert.Nil(t, got.DateClosed)
}

func TestApplyActionUnknownTicketRepliesWithoutMutation(t *testing.T) {
	svc, store, connector := newTicketFixture(t)

	err := svc.ApplyAction(context.Background(), "https://svc", "thread-1", expert("Maya"),
		domain.ChangeTicketStatusPayload{TicketID: "missing", Action: domain.TicketActionClose})
	require.NoError(t, err)

	assert.Empty(t, store.tickets)
	require.Len(t, connector.sent, 1)
	assert.Contains(t, connector.lastText(), "couldn't find")
}

func TestApplyActionUnknownActionIsIgnored(t *testing.T) {
	svc, store, connector := newTicketFixture(t)
	before := *seedTicket(t, store)

	err := svc.ApplyAction(context.Background(), "https://svc", "thread-1", expert("Maya"),
		domain.ChangeTicketStatusPayload{TicketID: "t-1", Action: "escalate"})
	require.NoError(t, err)

	assert.Equal(t, before, store.tickets["t-1"])
	assert.Empty(t, connector.sent)
	assert.Empty(t, connector.updated)
}

func TestApplyActionCardRefreshFailureDoesNotBlockNotifications(t *testing.T) {
	svc, store, connector := newTicketFixture(t)
	seedTicket(t, store)
	connector.updateErr = errors.New("card gone")

	err := svc.ApplyAction(context.Background(), "https://svc", "thread-1", expert("Maya"),
		domain.ChangeTicketStatusPayload{TicketID: "t-1", Action: domain.TicketActionClose})
	require.NoError(t, err)

	// Transition persisted and both messages still sent.
	assert.Equal(t, domain.TicketStatusClosed, store.tickets["t-1"].Status)
	assert.Len(t, connector.sent, 2)
}

func TestCreateTicketRecordsAnnouncementIDs(t *testing.T) {
	svc, store, connector := newTicketFixture(t)

	ticket, err := svc.CreateTicket(context.Background(), CreateTicketInput{
		Title:                   "printer on fire",
		Description:             "third floor",
		RequesterName:           "Ravi",
		RequesterUserID:         "user-1",
		RequesterConversationID: "conv-user",
		ServiceURL:              "https://svc",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.False(t, ticket.IsAssigned())
	assert.NotEmpty(t, ticket.SmeThreadConversationID)
	assert.NotEmpty(t, ticket.SmeCardActivityID)
	assert.Len(t, connector.threads, 1)

	stored := store.tickets[ticket.TicketID]
	assert.Equal(t, ticket.SmeCardActivityID, stored.SmeCardActivityID)
}
