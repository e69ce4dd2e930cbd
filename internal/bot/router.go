package bot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/auth"
	"github.com/spec-kit/support-assistant/internal/cards"
	"github.com/spec-kit/support-assistant/internal/config"
	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/gateway/kb"
	"github.com/spec-kit/support-assistant/internal/observability"
	"github.com/spec-kit/support-assistant/internal/service"
	"github.com/spec-kit/support-assistant/internal/transport"
)

const (
	genericErrorText = "Sorry, something went wrong. Please try again."
	quotaErrorText   = "I can't reach the knowledge base right now because it has hit its storage limit. Please try again later."
)

// Router receives every webhook activity, classifies it once and dispatches
// to the owning workflow.
type Router struct {
	cfg        config.BotConfig
	kb         kb.Gateway
	tickets    *service.TicketService
	qna        *service.QnaService
	batch      *service.BatchService
	membership *auth.MembershipCache
	connector  transport.Connector
	telemetry  *observability.Telemetry
	logger     *zap.Logger
}

// RouterDependencies bundles collaborators for the router.
type RouterDependencies struct {
	Cfg        config.BotConfig
	KB         kb.Gateway
	Tickets    *service.TicketService
	Qna        *service.QnaService
	Batch      *service.BatchService
	Membership *auth.MembershipCache
	Connector  transport.Connector
	Telemetry  *observability.Telemetry
	Logger     *zap.Logger
}

// NewRouter constructs the router.
func NewRouter(deps RouterDependencies) *Router {
	return &Router{
		cfg:        deps.Cfg,
		kb:         deps.KB,
		tickets:    deps.Tickets,
		qna:        deps.Qna,
		batch:      deps.Batch,
		membership: deps.Membership,
		connector:  deps.Connector,
		telemetry:  deps.Telemetry,
		logger:     deps.Logger,
	}
}

// HandleActivity processes one inbound activity. The returned value, when
// non-nil, is the invoke response body the webhook must echo back.
func (r *Router) HandleActivity(ctx context.Context, activity domain.Activity) (any, error) {
	if !r.tenantAllowed(activity) {
		r.logger.Warn("dropping activity from foreign tenant",
			zap.String("tenant_id", activity.Conversation.TenantID))
		return nil, nil
	}
	r.telemetry.TrackEvent(observability.EventMessageReceived, 1, 0)

	intent := Classify(activity)
	response, err := r.dispatch(ctx, activity, intent)
	if err != nil {
		r.logger.Error("activity handling failed",
			zap.String("activity_type", activity.Type),
			zap.String("activity_name", activity.Name),
			zap.Error(err))
		text := genericErrorText
		if errors.Is(err, kb.ErrQuotaExceeded) {
			text = quotaErrorText
		}
		r.sendText(ctx, activity, text)
		return nil, err
	}
	return response, nil
}

func (r *Router) dispatch(ctx context.Context, activity domain.Activity, intent Intent) (any, error) {
	switch intent.Kind {
	case IntentPersonalText:
		return nil, r.handlePersonalText(ctx, activity, intent.Command)
	case IntentPersonalCardSubmit:
		return nil, r.handlePersonalCardSubmit(ctx, activity, intent.Command)
	case IntentFileAttachment:
		return nil, r.batch.HandleAttachment(ctx, activity)
	case IntentChannelTicketAction:
		return nil, r.handleTicketAction(ctx, activity)
	case IntentChannelCommand:
		return nil, r.handleChannelCommand(ctx, activity, intent)
	case IntentConversationUpdate:
		return nil, r.handleConversationUpdate(ctx, activity)
	case IntentMessagingExtensionQuery:
		return r.handleExtensionQuery(ctx, activity)
	case IntentMessagingExtensionFetch, IntentTaskModuleFetch:
		return r.handleFormFetch(ctx, activity)
	case IntentMessagingExtensionSubmit, IntentTaskModuleSubmit:
		return r.handleFormSubmit(ctx, activity)
	case IntentFileConsent:
		return nil, r.batch.HandleConsent(ctx, activity)
	default:
		r.logger.Warn("unrecognized activity",
			zap.String("activity_type", activity.Type),
			zap.String("conversation_type", activity.Conversation.ConversationType))
		return nil, nil
	}
}

func (r *Router) tenantAllowed(activity domain.Activity) bool {
	if r.cfg.DisableTenantFilter {
		return true
	}
	return activity.Conversation.TenantID == r.cfg.TenantID
}

func (r *Router) handlePersonalText(ctx context.Context, activity domain.Activity, text string) error {
	if err := r.connector.SendTyping(ctx, activity.ServiceURL, activity.Conversation.ID); err != nil {
		r.logger.Warn("typing indicator failed", zap.Error(err))
	}

	switch strings.ToLower(text) {
	case cards.TextTakeTour:
		return r.sendCards(ctx, activity, cards.Tour(r.cfg.AppBaseURI)...)
	case cards.TextAskExpert:
		return r.sendCards(ctx, activity, cards.AskExpertForm("", false))
	case cards.TextShareFeedback:
		return r.sendCards(ctx, activity, cards.FeedbackForm("", false))
	default:
		return r.answerQuestion(ctx, activity, text, nil)
	}
}

// answerQuestion runs the single-question lookup against the live partition
// and picks the card by the tri-state outcome. prev carries the answered
// pair a prompt follow-up was tapped on, nil for a fresh question.
func (r *Router) answerQuestion(ctx context.Context, activity domain.Activity, question string, prev *kb.QueryContext) error {
	result, err := r.kb.GenerateAnswer(ctx, question, kb.PartitionLive, prev, nil)
	if err != nil {
		return err
	}

	best := result.Best()
	if result.State != kb.StateAnswered || best == nil {
		// Not found and not-yet-published look the same to the requester:
		// no answer, with the escalation offer.
		return r.sendCards(ctx, activity, cards.UnrecognizedInput(question))
	}

	r.telemetry.TrackEvent(observability.EventQuestionAnsweredSingle, 1, 0)

	if payload, ok := domain.ParseAnswerPayload(best.Answer); ok && payload.IsRich() {
		return r.sendCards(ctx, activity, cards.RichAnswer(question, payload))
	}
	prompts := make([]string, 0, len(best.Prompts))
	for _, prompt := range best.Prompts {
		prompts = append(prompts, prompt.DisplayText)
	}
	return r.sendCards(ctx, activity, cards.Answer(question, best.Answer, best.ID, prompts))
}

func (r *Router) handlePersonalCardSubmit(ctx context.Context, activity domain.Activity, command string) error {
	value := activity.Value
	switch command {
	case cards.SubmitAskExpert:
		title := strings.TrimSpace(gjson.GetBytes(value, "title").String())
		description := strings.TrimSpace(gjson.GetBytes(value, "description").String())
		if title == "" {
			return r.sendCards(ctx, activity, cards.AskExpertForm("", true))
		}
		_, err := r.tickets.CreateTicket(ctx, service.CreateTicketInput{
			Title:                   title,
			Description:             description,
			RequesterName:           activity.From.Name,
			RequesterUserID:         activity.From.ID,
			RequesterConversationID: activity.Conversation.ID,
			ServiceURL:              activity.ServiceURL,
		})
		if err != nil {
			return err
		}
		return r.sendCards(ctx, activity, cards.ThankYou(
			"Thanks, your question went to the expert team. Someone will get back to you here."))
	case cards.TextAskExpert:
		question := gjson.GetBytes(value, "question").String()
		return r.sendCards(ctx, activity, cards.AskExpertForm(question, false))
	case cards.SubmitFeedback:
		rating := strings.TrimSpace(gjson.GetBytes(value, "rating").String())
		if rating == "" {
			question := gjson.GetBytes(value, "question").String()
			return r.sendCards(ctx, activity, cards.FeedbackForm(question, true))
		}
		description := gjson.GetBytes(value, "description").String()
		_, _, err := r.connector.CreateThreadConversation(ctx, activity.ServiceURL, r.cfg.SmeTeamID, transport.Message{
			Summary:     "App feedback",
			Attachments: []transport.Attachment{cards.Feedback(rating, description, activity.From)},
		})
		if err != nil {
			return err
		}
		return r.sendCards(ctx, activity, cards.ThankYou("Thanks for the feedback!"))
	case cards.TextShareFeedback:
		return r.sendCards(ctx, activity, cards.FeedbackForm("", false))
	case cards.SubmitPrompt:
		prev := &kb.QueryContext{
			PreviousQnaID:     int(gjson.GetBytes(value, "previousQnaId").Int()),
			PreviousUserQuery: gjson.GetBytes(value, "previousQuestion").String(),
		}
		return r.answerQuestion(ctx, activity, gjson.GetBytes(value, "question").String(), prev)
	default:
		r.logger.Warn("unrecognized card submission", zap.String("command", command))
		return nil
	}
}

func (r *Router) handleTicketAction(ctx context.Context, activity domain.Activity) error {
	var payload domain.ChangeTicketStatusPayload
	if err := json.Unmarshal(activity.Value, &payload); err != nil {
		return err
	}
	return r.tickets.ApplyAction(ctx, activity.ServiceURL, activity.Conversation.ID, activity.From, payload)
}

func (r *Router) handleChannelCommand(ctx context.Context, activity domain.Activity, intent Intent) error {
	switch intent.Command {
	case cards.TextTeamTour:
		return r.sendCards(ctx, activity, cards.TeamTour(r.cfg.AppBaseURI)...)
	case cards.TextNoOp:
		return nil
	case cards.TextDeleteQna:
		authorized, err := r.membership.IsAuthorized(ctx, activity.From.ID, activity.ServiceURL)
		if err != nil {
			return err
		}
		if !authorized {
			r.sendText(ctx, activity, "Only members of the expert team can delete questions.")
			return nil
		}
		reply, err := r.qna.Delete(ctx, activity.From, intent.Argument)
		if err != nil {
			return err
		}
		r.sendText(ctx, activity, reply)
		return nil
	default:
		return r.sendCards(ctx, activity, cards.UnrecognizedTeamInput())
	}
}

func (r *Router) handleConversationUpdate(ctx context.Context, activity domain.Activity) error {
	botAdded := false
	for _, member := range activity.MembersAdded {
		if member.ID == activity.Recipient.ID {
			botAdded = true
			break
		}
	}
	if !botAdded {
		return nil
	}

	if activity.Conversation.ConversationType == domain.ConversationTypeChannel {
		_, _, err := r.connector.CreateThreadConversation(ctx, activity.ServiceURL, activity.TeamID(), transport.Message{
			Attachments: []transport.Attachment{cards.TeamWelcome(activity.TeamID(), r.cfg.ProductName)},
		})
		return err
	}
	return r.sendCards(ctx, activity, cards.Welcome(r.cfg.WelcomeText, r.cfg.ProductName))
}

func (r *Router) handleExtensionQuery(ctx context.Context, activity domain.Activity) (any, error) {
	authorized, err := r.membership.IsAuthorized(ctx, activity.From.ID, activity.ServiceURL)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return extensionMessage("This extension is for the expert team. Ask a team owner to add you."), nil
	}

	query := gjson.GetBytes(activity.Value, "parameters.0.value").String()
	pairs, err := r.kb.DownloadAll(ctx, kb.PartitionStaging)
	if err != nil {
		if errors.Is(err, kb.ErrNotReady) {
			return extensionMessage("The knowledge base is empty so far. Add the first question!"), nil
		}
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	attachments := []map[string]any{}
	for _, pair := range pairs {
		if needle != "" && !strings.Contains(strings.ToLower(pair.Question), needle) {
			continue
		}
		preview := pair.Answer
		if payload, ok := domain.ParseAnswerPayload(pair.Answer); ok {
			preview = payload.Description
		}
		attachments = append(attachments, map[string]any{
			"contentType": "application/vnd.microsoft.card.thumbnail",
			"content": map[string]any{
				"title": pair.Question,
				"text":  preview,
			},
		})
		if len(attachments) == 25 {
			break
		}
	}

	return map[string]any{
		"composeExtension": map[string]any{
			"type":             "result",
			"attachmentLayout": "list",
			"attachments":      attachments,
		},
	}, nil
}

// handleFormFetch opens the add/edit form as a task module. An edit fetch
// carries the pair context in the invoke data.
func (r *Router) handleFormFetch(ctx context.Context, activity domain.Activity) (any, error) {
	authorized, err := r.membership.IsAuthorized(ctx, activity.From.ID, activity.ServiceURL)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return extensionMessage("This extension is for the expert team. Ask a team owner to add you."), nil
	}

	session, err := parseEditSession(activity.Value)
	if err != nil {
		return nil, err
	}
	return taskContinue(cards.QnaForm(session)), nil
}

// handleFormSubmit saves the add/edit form, re-rendering it on validation
// failures and duplicate questions.
func (r *Router) handleFormSubmit(ctx context.Context, activity domain.Activity) (any, error) {
	session, err := parseEditSession(activity.Value)
	if err != nil {
		return nil, err
	}

	var saved bool
	if session.PairID == nil {
		session, saved, err = r.qna.Add(ctx, activity.ServiceURL, activity.Conversation.ID, activity.From, session)
	} else {
		session, saved, err = r.qna.Edit(ctx, activity.ServiceURL, activity.Conversation.ID, activity.From, session)
	}
	if err != nil {
		return nil, err
	}
	if !saved {
		return taskContinue(cards.QnaForm(session)), nil
	}
	return taskMessage("Saved. The question is live in the knowledge base."), nil
}

func parseEditSession(value json.RawMessage) (domain.EditSession, error) {
	raw := value
	if data := gjson.GetBytes(value, "data"); data.Exists() {
		raw = json.RawMessage(data.Raw)
	}
	var session domain.EditSession
	if len(raw) == 0 || string(raw) == "null" {
		return session, nil
	}
	if err := json.Unmarshal(raw, &session); err != nil {
		return session, err
	}
	// Flags round-tripped through the card must not leak into a fresh
	// validation pass.
	session.FieldError = ""
	session.IsQuestionAlreadyExists = false
	return session, nil
}

func taskContinue(card transport.Attachment) any {
	return map[string]any{
		"task": map[string]any{
			"type": "continue",
			"value": map[string]any{
				"title": "Knowledge base",
				"card":  card,
			},
		},
	}
}

func taskMessage(text string) any {
	return map[string]any{
		"task": map[string]any{
			"type":  "message",
			"value": text,
		},
	}
}

func extensionMessage(text string) any {
	return map[string]any{
		"composeExtension": map[string]any{
			"type": "message",
			"text": text,
		},
	}
}

func (r *Router) sendCards(ctx context.Context, activity domain.Activity, attachments ...transport.Attachment) error {
	_, err := r.connector.SendMessage(ctx, activity.ServiceURL, transport.Message{
		ConversationID: activity.Conversation.ID,
		ReplyToID:      activity.ID,
		Attachments:    attachments,
	})
	return err
}

func (r *Router) sendText(ctx context.Context, activity domain.Activity, text string) {
	_, err := r.connector.SendMessage(ctx, activity.ServiceURL, transport.Message{
		ConversationID: activity.Conversation.ID,
		ReplyToID:      activity.ID,
		Text:           text,
	})
	if err != nil {
		r.logger.Warn("reply send failed", zap.Error(err))
	}
}
