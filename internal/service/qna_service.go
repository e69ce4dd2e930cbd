package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/cards"
	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/events"
	"github.com/spec-kit/support-assistant/internal/gateway/kb"
	"github.com/spec-kit/support-assistant/internal/observability"
	"github.com/spec-kit/support-assistant/internal/repository"
	"github.com/spec-kit/support-assistant/internal/transport"
	apperrors "github.com/spec-kit/support-assistant/pkg/util"
)

// QnaService drives the expert add/edit/delete workflow over the knowledge
// base and keeps the channel announcement cards in sync with it.
type QnaService struct {
	kb         kb.Gateway
	index      repository.ActivityIndex
	connector  transport.Connector
	dispatcher events.Dispatcher
	telemetry  *observability.Telemetry
	logger     *zap.Logger
}

// QnaDependencies bundles collaborators for the qna service.
type QnaDependencies struct {
	KB         kb.Gateway
	Index      repository.ActivityIndex
	Connector  transport.Connector
	Dispatcher events.Dispatcher
	Telemetry  *observability.Telemetry
	Logger     *zap.Logger
}

// NewQnaService constructs the service.
func NewQnaService(deps QnaDependencies) *QnaService {
	return &QnaService{
		kb:         deps.KB,
		index:      deps.Index,
		connector:  deps.Connector,
		dispatcher: deps.Dispatcher,
		telemetry:  deps.Telemetry,
		logger:     deps.Logger,
	}
}

// ValidateSession checks a submitted form in order: markup in any field,
// required fields, then URL well-formedness for rich cards. The returned
// session carries the first failure in FieldError; a clean session has none.
func ValidateSession(session domain.EditSession) domain.EditSession {
	session.FieldError = ""
	session.IsQuestionAlreadyExists = false

	question := strings.TrimSpace(session.UpdatedQuestion)
	for _, field := range []string{question, session.Description, session.Title, session.Subtitle} {
		if strings.ContainsAny(field, "<>") {
			session.FieldError = "Fields cannot contain markup characters."
			return session
		}
	}
	if question == "" {
		session.FieldError = "Please enter a question."
		return session
	}
	if strings.TrimSpace(session.Description) == "" {
		session.FieldError = "Please enter an answer."
		return session
	}
	if session.IsRichCard() {
		for _, raw := range []string{session.ImageURL, session.RedirectionURL} {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			parsed, err := url.Parse(raw)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
				session.FieldError = "Links must be full http or https URLs."
				return session
			}
		}
	}
	return session
}

// NormalizeConversationID strips the per-message suffix from a channel
// conversation id so announcements land in the channel itself.
func NormalizeConversationID(conversationID string) string {
	if idx := strings.Index(conversationID, ";"); idx >= 0 {
		return conversationID[:idx]
	}
	return conversationID
}

// Add validates and persists a new pair. A duplicate question flags the
// session for a form re-render instead of persisting. The saved pair is
// announced in the expert channel and its card indexed by reference id.
func (s *QnaService) Add(ctx context.Context, serviceURL, channelConversationID string, actor domain.Account, session domain.EditSession) (domain.EditSession, bool, error) {
	session = ValidateSession(session)
	if session.FieldError != "" {
		return session, false, nil
	}

	exists, err := s.kb.QuestionExists(ctx, session.UpdatedQuestion)
	if err != nil {
		// A knowledge base that has never been published cannot contain
		// the question; the first add proceeds.
		if !errors.Is(err, kb.ErrNotReady) {
			return session, false, err
		}
		s.logger.Info("existence check on unpublished knowledge base, proceeding with add")
	}
	if exists {
		session.IsQuestionAlreadyExists = true
		return session, false, nil
	}

	referenceID := uuid.NewString()
	pair := domain.QnaPair{
		Question: strings.TrimSpace(session.UpdatedQuestion),
		Answer:   session.CombinedAnswer(),
	}
	tags := []domain.QueryTag{{Name: kb.MetadataActivityReferenceID, Value: referenceID}}
	if err := s.kb.AddPair(ctx, pair, tags); err != nil {
		return session, false, err
	}

	s.announce(ctx, serviceURL, channelConversationID, referenceID, session, actor)
	s.telemetry.TrackEvent(observability.EventQuestionAdded, 1, 0)
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventQnaPairAdded,
		Actor:     events.Actor{UserID: actor.AadObjectID, Name: actor.Name},
		Timestamp: time.Now().UTC(),
		Payload:   events.QnaPairChangedPayload{Question: pair.Question},
	})
	return session, true, nil
}

// Edit validates and rewrites an existing pair. A changed question is
// re-checked for duplicates. The announcement card is refreshed in place
// when indexed; an unindexed pair gets a fresh announcement in the channel.
func (s *QnaService) Edit(ctx context.Context, serviceURL, channelConversationID string, actor domain.Account, session domain.EditSession) (domain.EditSession, bool, error) {
	session = ValidateSession(session)
	if session.FieldError != "" {
		return session, false, nil
	}
	if session.PairID == nil {
		return session, false, apperrors.NewValidationError("edit submission is missing the pair id", nil)
	}

	if session.QuestionChanged() {
		exists, err := s.kb.QuestionExists(ctx, session.UpdatedQuestion)
		if err != nil && !errors.Is(err, kb.ErrNotReady) {
			return session, false, err
		}
		if exists {
			session.IsQuestionAlreadyExists = true
			return session, false, nil
		}
	}

	pair, err := s.resolvePair(ctx, *session.PairID, session.OriginalQuestion)
	if err != nil {
		return session, false, err
	}

	referenceID := tagValue(pair.Metadata, kb.MetadataActivityReferenceID)
	activityID := ""
	if referenceID != "" {
		activityID, err = s.index.GetByReference(ctx, referenceID)
		if err != nil {
			return session, false, err
		}
	}
	if activityID == "" {
		// No card on record for this pair; announce it afresh under a new
		// reference id.
		referenceID = uuid.NewString()
	}

	tags := []domain.QueryTag{{Name: kb.MetadataActivityReferenceID, Value: referenceID}}
	if err := s.kb.UpdatePair(ctx, pair.ID, strings.TrimSpace(session.UpdatedQuestion), session.CombinedAnswer(), tags); err != nil {
		return session, false, err
	}

	if activityID != "" {
		err := s.connector.UpdateMessage(ctx, serviceURL, NormalizeConversationID(channelConversationID), activityID, transport.Message{
			ConversationID: NormalizeConversationID(channelConversationID),
			Attachments:    []transport.Attachment{cards.QnaAnnouncement(session, actor.Name)},
		})
		if err != nil {
			s.logger.Warn("announcement card refresh failed",
				zap.Int("pair_id", pair.ID), zap.Error(err))
		}
	} else {
		s.announce(ctx, serviceURL, channelConversationID, referenceID, session, actor)
	}

	s.telemetry.TrackEvent(observability.EventQuestionUpdated, 1, 0)
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventQnaPairUpdated,
		Actor:     events.Actor{UserID: actor.AadObjectID, Name: actor.Name},
		Timestamp: time.Now().UTC(),
		Payload:   events.QnaPairChangedPayload{PairID: pair.ID, Question: session.UpdatedQuestion},
	})
	return session, true, nil
}

// Delete removes the pair matching the question and returns the reply text
// for the channel.
func (s *QnaService) Delete(ctx context.Context, actor domain.Account, question string) (string, error) {
	pairs, err := s.kb.DownloadAll(ctx, kb.PartitionStaging)
	if err != nil {
		if errors.Is(err, kb.ErrNotReady) {
			return "The knowledge base is still being set up. Please try again in a few minutes.", nil
		}
		return "", err
	}

	needle := strings.TrimSpace(question)
	for _, pair := range pairs {
		if !strings.EqualFold(strings.TrimSpace(pair.Question), needle) {
			continue
		}
		if err := s.kb.DeletePair(ctx, pair.ID); err != nil {
			return "", err
		}
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventQnaPairDeleted,
			Actor:     events.Actor{UserID: actor.AadObjectID, Name: actor.Name},
			Timestamp: time.Now().UTC(),
			Payload:   events.QnaPairChangedPayload{PairID: pair.ID, Question: pair.Question},
		})
		return "Deleted the question: " + pair.Question, nil
	}
	return "I couldn't find that question in the knowledge base.", nil
}

// resolvePair loads the pair by id from the live partition and verifies it
// still carries the question the form was opened with. A mismatch retries
// once against the staging partition, where an unpublished edit may live.
func (s *QnaService) resolvePair(ctx context.Context, pairID int, originalQuestion string) (*domain.QnaPair, error) {
	pair, err := s.findPair(ctx, pairID, originalQuestion, kb.PartitionLive)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		pair, err = s.findPair(ctx, pairID, originalQuestion, kb.PartitionStaging)
		if err != nil {
			return nil, err
		}
	}
	if pair == nil {
		return nil, apperrors.NewNotFound("question", map[string]any{"pairId": pairID})
	}
	return pair, nil
}

func (s *QnaService) findPair(ctx context.Context, pairID int, originalQuestion string, partition kb.Partition) (*domain.QnaPair, error) {
	pairs, err := s.kb.DownloadAll(ctx, partition)
	if err != nil {
		if errors.Is(err, kb.ErrNotReady) {
			return nil, nil
		}
		return nil, err
	}
	needle := strings.TrimSpace(originalQuestion)
	for i := range pairs {
		if pairs[i].ID != pairID {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(pairs[i].Question), needle) {
			return &pairs[i], nil
		}
	}
	return nil, nil
}

func (s *QnaService) announce(ctx context.Context, serviceURL, channelConversationID, referenceID string, session domain.EditSession, actor domain.Account) {
	conversationID := NormalizeConversationID(channelConversationID)
	activityID, err := s.connector.SendMessage(ctx, serviceURL, transport.Message{
		ConversationID: conversationID,
		Summary:        session.UpdatedQuestion,
		Attachments:    []transport.Attachment{cards.QnaAnnouncement(session, actor.Name)},
	})
	if err != nil {
		s.logger.Warn("announcement send failed", zap.Error(err))
		return
	}
	if err := s.index.Add(ctx, domain.ActivityEntity{ActivityReferenceID: referenceID, ActivityID: activityID}); err != nil {
		s.logger.Warn("announcement index write failed",
			zap.String("reference_id", referenceID), zap.Error(err))
	}
}

func tagValue(tags []domain.QueryTag, name string) string {
	for _, tag := range tags {
		if strings.EqualFold(tag.Name, name) {
			return tag.Value
		}
	}
	return ""
}
