package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/auth"
	"github.com/spec-kit/support-assistant/internal/config"
	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/events"
	"github.com/spec-kit/support-assistant/internal/gateway/kb"
	"github.com/spec-kit/support-assistant/internal/observability"
	"github.com/spec-kit/support-assistant/internal/service"
	"github.com/spec-kit/support-assistant/internal/transport"
)

type stubConnector struct {
	mu         sync.Mutex
	sent       []transport.Message
	threads    []transport.Message
	threadTeam []string
	typing     int
	typingErr  error
	members    []transport.Member
	membersErr error
}

func (c *stubConnector) SendMessage(_ context.Context, _ string, msg transport.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return fmt.Sprintf("activity-%d", len(c.sent)), nil
}

func (c *stubConnector) SendTyping(context.Context, string, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing++
	return c.typingErr
}

func (c *stubConnector) UpdateMessage(context.Context, string, string, string, transport.Message) error {
	return nil
}

func (c *stubConnector) CreateThreadConversation(_ context.Context, _ string, teamID string, msg transport.Message) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads = append(c.threads, msg)
	c.threadTeam = append(c.threadTeam, teamID)
	return fmt.Sprintf("thread-%d", len(c.threads)), fmt.Sprintf("thread-activity-%d", len(c.threads)), nil
}

func (c *stubConnector) GetConversationMembers(context.Context, string, string) ([]transport.Member, error) {
	return c.members, c.membersErr
}

func (c *stubConnector) UploadFile(context.Context, string, []byte) error { return nil }

func (c *stubConnector) DownloadFile(context.Context, string) ([]byte, error) { return nil, nil }

func (c *stubConnector) lastSent(t *testing.T) transport.Message {
	t.Helper()
	require.NotEmpty(t, c.sent)
	return c.sent[len(c.sent)-1]
}

type stubGateway struct {
	answers   map[string]*kb.AnswerResult
	answerErr error
	lastPrev  *kb.QueryContext
	staging   []domain.QnaPair
	added     []domain.QnaPair
}

func (g *stubGateway) GenerateAnswer(_ context.Context, question string, _ kb.Partition, prev *kb.QueryContext, _ []domain.QueryTag) (*kb.AnswerResult, error) {
	g.lastPrev = prev
	if g.answerErr != nil {
		return nil, g.answerErr
	}
	if result, ok := g.answers[question]; ok {
		return result, nil
	}
	return &kb.AnswerResult{State: kb.StateNotFound}, nil
}

func (g *stubGateway) QuestionExists(_ context.Context, question string) (bool, error) {
	for _, pair := range g.staging {
		if strings.EqualFold(strings.TrimSpace(pair.Question), strings.TrimSpace(question)) {
			return true, nil
		}
	}
	return false, nil
}

func (g *stubGateway) AddPair(_ context.Context, pair domain.QnaPair, tags []domain.QueryTag) error {
	pair.Metadata = tags
	g.added = append(g.added, pair)
	g.staging = append(g.staging, pair)
	return nil
}

func (g *stubGateway) UpdatePair(context.Context, int, string, string, []domain.QueryTag) error {
	return nil
}

func (g *stubGateway) DeletePair(context.Context, int) error { return nil }

func (g *stubGateway) DownloadAll(context.Context, kb.Partition) ([]domain.QnaPair, error) {
	return g.staging, nil
}

func (g *stubGateway) IsPublished(context.Context) (bool, error) { return true, nil }

type stubTicketStore struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
}

func (s *stubTicketStore) Get(_ context.Context, ticketID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket, ok := s.tickets[ticketID]; ok {
		copied := ticket
		return &copied, nil
	}
	return nil, nil
}

func (s *stubTicketStore) Upsert(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickets == nil {
		s.tickets = make(map[string]domain.Ticket)
	}
	s.tickets[ticket.TicketID] = *ticket
	return nil
}

func (s *stubTicketStore) only(t *testing.T) domain.Ticket {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.tickets, 1)
	for _, ticket := range s.tickets {
		return ticket
	}
	return domain.Ticket{}
}

type stubIndex struct {
	byReference map[string]string
}

func (i *stubIndex) Add(_ context.Context, entity domain.ActivityEntity) error {
	if i.byReference == nil {
		i.byReference = make(map[string]string)
	}
	i.byReference[entity.ActivityReferenceID] = entity.ActivityID
	return nil
}

func (i *stubIndex) GetByReference(_ context.Context, referenceID string) (string, error) {
	return i.byReference[referenceID], nil
}

func newTestRouter(t *testing.T) (*Router, *stubConnector, *stubGateway, *stubTicketStore) {
	t.Helper()

	cfg := config.BotConfig{
		TenantID:               "tenant-1",
		SmeTeamID:              "team-sme",
		AppBaseURI:             "https://app.example.com",
		WelcomeText:            "Hi there!",
		ProductName:            "Support Assistant",
		MembershipCacheTTLDays: 1,
	}
	logger := zap.NewNop()
	connector := &stubConnector{}
	gateway := &stubGateway{}
	store := &stubTicketStore{}
	dispatcher := events.NewInMemoryDispatcher(logger)
	telemetry := observability.NewTelemetry()

	tickets := service.NewTicketService(service.TicketDependencies{
		Tickets:    store,
		Connector:  connector,
		Dispatcher: dispatcher,
		Logger:     logger,
		SmeTeamID:  cfg.SmeTeamID,
	})
	qna := service.NewQnaService(service.QnaDependencies{
		KB:         gateway,
		Index:      &stubIndex{},
		Connector:  connector,
		Dispatcher: dispatcher,
		Telemetry:  telemetry,
		Logger:     logger,
	})

	router := NewRouter(RouterDependencies{
		Cfg:        cfg,
		KB:         gateway,
		Tickets:    tickets,
		Qna:        qna,
		Membership: auth.NewMembershipCache(cfg, connector, logger),
		Connector:  connector,
		Telemetry:  telemetry,
		Logger:     logger,
	})
	return router, connector, gateway, store
}

func personalActivity(text string) domain.Activity {
	return domain.Activity{
		Type:       domain.ActivityTypeMessage,
		ID:         "inbound-1",
		Text:       text,
		ServiceURL: "https://svc.example.com",
		Conversation: domain.Conversation{
			ID:               "conv-1",
			ConversationType: domain.ConversationTypePersonal,
			TenantID:         "tenant-1",
		},
		From: domain.Account{ID: "user-1", Name: "Pat", AadObjectID: "aad-1"},
	}
}

func TestHandleActivityDropsForeignTenant(t *testing.T) {
	router, connector, _, _ := newTestRouter(t)

	activity := personalActivity("hello")
	activity.Conversation.TenantID = "tenant-other"

	response, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)
	assert.Nil(t, response)
	assert.Empty(t, connector.sent)
	assert.Zero(t, connector.typing)
}

func TestHandleActivityIgnoresUnknownConversationType(t *testing.T) {
	router, connector, _, _ := newTestRouter(t)

	activity := personalActivity("hello")
	activity.Conversation.ConversationType = "groupChat"

	response, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)
	assert.Nil(t, response)
	assert.Empty(t, connector.sent)
}

func TestPersonalQuestionGetsAnswerCard(t *testing.T) {
	router, connector, gateway, _ := newTestRouter(t)
	gateway.answers = map[string]*kb.AnswerResult{
		"how do I reset?": {
			State: kb.StateAnswered,
			Answers: []kb.RankedAnswer{{
				ID:     7,
				Answer: "Hold the button for ten seconds.",
				Score:  92,
			}},
		},
	}

	_, err := router.HandleActivity(context.Background(), personalActivity("how do I reset?"))
	require.NoError(t, err)

	assert.Equal(t, 1, connector.typing)
	require.Len(t, connector.sent, 1)
	reply := connector.sent[0]
	assert.Equal(t, "conv-1", reply.ConversationID)
	assert.Equal(t, "inbound-1", reply.ReplyToID)
	require.Len(t, reply.Attachments, 1)
	assert.Equal(t, domain.AdaptiveCardContentType, reply.Attachments[0].ContentType)
}

func TestPromptFollowUpCarriesPreviousContext(t *testing.T) {
	router, connector, gateway, _ := newTestRouter(t)
	gateway.answers = map[string]*kb.AnswerResult{
		"What about wifi?": {
			State:   kb.StateAnswered,
			Answers: []kb.RankedAnswer{{ID: 12, Answer: "Join the guest network."}},
		},
	}

	activity := personalActivity("")
	activity.Value = json.RawMessage(`{"command":"QnaPrompt","question":"What about wifi?","previousQuestion":"how do I reset?","previousQnaId":7}`)

	_, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)

	require.NotNil(t, gateway.lastPrev)
	assert.Equal(t, 7, gateway.lastPrev.PreviousQnaID)
	assert.Equal(t, "how do I reset?", gateway.lastPrev.PreviousUserQuery)
	assert.Len(t, connector.sent, 1)
}

func TestPersonalQuestionWithoutMatchOffersEscalation(t *testing.T) {
	router, connector, _, store := newTestRouter(t)

	_, err := router.HandleActivity(context.Background(), personalActivity("something obscure"))
	require.NoError(t, err)

	require.Len(t, connector.sent, 1)
	assert.NotEmpty(t, connector.sent[0].Attachments)
	assert.Empty(t, store.tickets)
}

func TestTypingFailureDoesNotBlockAnswer(t *testing.T) {
	router, connector, _, _ := newTestRouter(t)
	connector.typingErr = errors.New("transient")

	_, err := router.HandleActivity(context.Background(), personalActivity("anything"))
	require.NoError(t, err)
	assert.Len(t, connector.sent, 1)
}

func TestLookupFailureRepliesWithGenericError(t *testing.T) {
	router, connector, gateway, _ := newTestRouter(t)
	gateway.answerErr = errors.New("backend down")

	_, err := router.HandleActivity(context.Background(), personalActivity("anything"))
	require.Error(t, err)
	assert.Equal(t, genericErrorText, connector.lastSent(t).Text)
}

func TestQuotaExceededRepliesWithStorageLimitText(t *testing.T) {
	router, connector, gateway, _ := newTestRouter(t)
	gateway.answerErr = fmt.Errorf("generate answer: %w", kb.ErrQuotaExceeded)

	_, err := router.HandleActivity(context.Background(), personalActivity("anything"))
	require.ErrorIs(t, err, kb.ErrQuotaExceeded)
	assert.Equal(t, quotaErrorText, connector.lastSent(t).Text)
}

func TestAskExpertSubmitCreatesOpenTicket(t *testing.T) {
	router, connector, _, store := newTestRouter(t)

	activity := personalActivity("")
	activity.Value = json.RawMessage(`{"command":"QuestionForExpert","title":"Printer on fire","description":"It started smoking."}`)

	_, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)

	ticket := store.only(t)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, "Printer on fire", ticket.Title)
	assert.Equal(t, "It started smoking.", ticket.Description)
	assert.Equal(t, "Pat", ticket.RequesterName)
	assert.Equal(t, "conv-1", ticket.RequesterConversationID)
	assert.False(t, ticket.IsAssigned())
	assert.Equal(t, "thread-1", ticket.SmeThreadConversationID)
	assert.Equal(t, "thread-activity-1", ticket.SmeCardActivityID)

	require.Len(t, connector.threadTeam, 1)
	assert.Equal(t, "team-sme", connector.threadTeam[0])
	// The requester gets the thank-you confirmation.
	assert.NotEmpty(t, connector.lastSent(t).Attachments)
}

func TestAskExpertSubmitWithoutTitleRerendersForm(t *testing.T) {
	router, connector, _, store := newTestRouter(t)

	activity := personalActivity("")
	activity.Value = json.RawMessage(`{"command":"QuestionForExpert","title":"   "}`)

	_, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)
	assert.Empty(t, store.tickets)
	assert.Len(t, connector.sent, 1)
}

func TestConversationUpdateWelcomesNewPersonalUser(t *testing.T) {
	router, connector, _, _ := newTestRouter(t)

	activity := domain.Activity{
		Type:       domain.ActivityTypeConversationUpdate,
		ServiceURL: "https://svc.example.com",
		Conversation: domain.Conversation{
			ID:               "conv-1",
			ConversationType: domain.ConversationTypePersonal,
			TenantID:         "tenant-1",
		},
		Recipient:    domain.Account{ID: "bot-1"},
		MembersAdded: []domain.Account{{ID: "bot-1"}},
	}

	_, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)
	require.Len(t, connector.sent, 1)
	assert.NotEmpty(t, connector.sent[0].Attachments)
}

func TestConversationUpdateWithoutBotIsIgnored(t *testing.T) {
	router, connector, _, _ := newTestRouter(t)

	activity := domain.Activity{
		Type: domain.ActivityTypeConversationUpdate,
		Conversation: domain.Conversation{
			ID:       "conv-1",
			TenantID: "tenant-1",
		},
		Recipient:    domain.Account{ID: "bot-1"},
		MembersAdded: []domain.Account{{ID: "someone-else"}},
	}

	_, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)
	assert.Empty(t, connector.sent)
}

func TestExtensionQueryRequiresExpertMembership(t *testing.T) {
	router, connector, _, _ := newTestRouter(t)
	connector.members = []transport.Member{{ID: "someone-else"}}

	activity := domain.Activity{
		Type:       domain.ActivityTypeInvoke,
		Name:       domain.InvokeMessagingExtensionQuery,
		ServiceURL: "https://svc.example.com",
		Conversation: domain.Conversation{
			ID:       "19:chan;messageid=1",
			TenantID: "tenant-1",
		},
		From: domain.Account{ID: "user-1"},
	}

	response, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)

	body, ok := response.(map[string]any)
	require.True(t, ok)
	extension, ok := body["composeExtension"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "message", extension["type"])
}

func TestExtensionQueryListsMatchingPairs(t *testing.T) {
	router, connector, gateway, _ := newTestRouter(t)
	connector.members = []transport.Member{{ID: "user-1"}}
	gateway.staging = []domain.QnaPair{
		{ID: 1, Question: "How do I reset?", Answer: "Hold the button."},
		{ID: 2, Question: "Where is the office?", Answer: "Building 4."},
	}

	activity := domain.Activity{
		Type:       domain.ActivityTypeInvoke,
		Name:       domain.InvokeMessagingExtensionQuery,
		ServiceURL: "https://svc.example.com",
		Value:      json.RawMessage(`{"parameters":[{"name":"searchText","value":"reset"}]}`),
		Conversation: domain.Conversation{
			ID:       "19:chan;messageid=1",
			TenantID: "tenant-1",
		},
		From: domain.Account{ID: "user-1"},
	}

	response, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)

	body, ok := response.(map[string]any)
	require.True(t, ok)
	extension, ok := body["composeExtension"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "result", extension["type"])
	attachments, ok := extension["attachments"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	content, ok := attachments[0]["content"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "How do I reset?", content["title"])
}

func TestFormSubmitAddsPairAndAnnounces(t *testing.T) {
	router, connector, gateway, _ := newTestRouter(t)

	activity := domain.Activity{
		Type:       domain.ActivityTypeInvoke,
		Name:       domain.InvokeTaskModuleSubmit,
		ServiceURL: "https://svc.example.com",
		Value:      json.RawMessage(`{"data":{"updatedQuestion":"How do I reset?","description":"Hold the button for ten seconds."}}`),
		Conversation: domain.Conversation{
			ID:       "19:chan;messageid=42",
			TenantID: "tenant-1",
		},
		From: domain.Account{ID: "user-1", Name: "Pat", AadObjectID: "aad-1"},
	}

	response, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)

	body, ok := response.(map[string]any)
	require.True(t, ok)
	task, ok := body["task"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "message", task["type"])

	require.Len(t, gateway.added, 1)
	assert.Equal(t, "How do I reset?", gateway.added[0].Question)

	// The announcement lands in the channel's root conversation.
	announcement := connector.lastSent(t)
	assert.Equal(t, "19:chan", announcement.ConversationID)
	assert.NotEmpty(t, announcement.Attachments)
}

func TestFormSubmitDuplicateQuestionRerenders(t *testing.T) {
	router, _, gateway, _ := newTestRouter(t)
	gateway.staging = []domain.QnaPair{{ID: 1, Question: "How do I reset?", Answer: "Hold the button."}}

	activity := domain.Activity{
		Type:       domain.ActivityTypeInvoke,
		Name:       domain.InvokeTaskModuleSubmit,
		ServiceURL: "https://svc.example.com",
		Value:      json.RawMessage(`{"data":{"updatedQuestion":"how do i reset?","description":"Different answer."}}`),
		Conversation: domain.Conversation{
			ID:       "19:chan;messageid=42",
			TenantID: "tenant-1",
		},
		From: domain.Account{ID: "user-1"},
	}

	response, err := router.HandleActivity(context.Background(), activity)
	require.NoError(t, err)

	body, ok := response.(map[string]any)
	require.True(t, ok)
	task, ok := body["task"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "continue", task["type"])
	assert.Empty(t, gateway.added)
}
