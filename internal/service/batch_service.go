package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/batch"
	"github.com/spec-kit/support-assistant/internal/cards"
	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/events"
	"github.com/spec-kit/support-assistant/internal/gateway/kb"
	"github.com/spec-kit/support-assistant/internal/gateway/translator"
	"github.com/spec-kit/support-assistant/internal/observability"
	"github.com/spec-kit/support-assistant/internal/repository"
	"github.com/spec-kit/support-assistant/internal/transport"
)

const (
	batchProgressInterval = 100
	batchResultTTL        = 24 * time.Hour
	batchNoAnswerText     = "No good match found."
)

// BatchService runs the bulk question pipeline: parse an uploaded file of
// questions, answer every row from the knowledge base, and hand the results
// back through the file-consent handshake.
type BatchService struct {
	kb         kb.Gateway
	translator translator.Gateway
	results    repository.BatchResultStore
	connector  transport.Connector
	dispatcher events.Dispatcher
	telemetry  *observability.Telemetry
	logger     *zap.Logger
}

// BatchDependencies bundles collaborators for the batch service.
type BatchDependencies struct {
	KB         kb.Gateway
	Translator translator.Gateway
	Results    repository.BatchResultStore
	Connector  transport.Connector
	Dispatcher events.Dispatcher
	Telemetry  *observability.Telemetry
	Logger     *zap.Logger
}

// NewBatchService constructs the service.
func NewBatchService(deps BatchDependencies) *BatchService {
	return &BatchService{
		kb:         deps.KB,
		translator: deps.Translator,
		results:    deps.Results,
		connector:  deps.Connector,
		dispatcher: deps.Dispatcher,
		telemetry:  deps.Telemetry,
		logger:     deps.Logger,
	}
}

type fileDownloadInfo struct {
	DownloadURL string `json:"downloadUrl"`
	FileType    string `json:"fileType"`
}

// HandleAttachment runs the whole pipeline for a message carrying a
// questions file, ending with the consent card (or an inline attachment off
// the real chat platform).
func (s *BatchService) HandleAttachment(ctx context.Context, activity domain.Activity) error {
	ref, info := findDownloadableFile(activity.Attachments)
	if ref == nil {
		s.reply(ctx, activity, "Please send the questions as a .csv or .xlsx file.")
		return nil
	}

	ext := strings.ToLower(path.Ext(ref.Name))
	if ext != ".csv" && ext != ".xlsx" {
		s.reply(ctx, activity, "I can only process .csv and .xlsx files.")
		return nil
	}

	data, err := s.connector.DownloadFile(ctx, info.DownloadURL)
	if err != nil {
		s.reply(ctx, activity, "I couldn't download your file. Please try sending it again.")
		return err
	}

	var items []domain.AnswerItem
	language := ""
	if ext == ".csv" {
		items, err = batch.ParseCSV(data)
	} else {
		items, language, err = batch.ParseXLSX(data)
	}
	if err != nil {
		s.reply(ctx, activity, "I couldn't read your file. Please check the format and try again.")
		return err
	}

	language = s.resolveLanguage(language)

	s.reply(ctx, activity, fmt.Sprintf(
		"I received your %s file with %d questions. Answering them now, this can take a while...",
		strings.TrimPrefix(ext, "."), len(items)))
	if err := s.connector.SendTyping(ctx, activity.ServiceURL, activity.Conversation.ID); err != nil {
		s.logger.Warn("typing indicator failed", zap.Error(err))
	}

	answered, err := s.ProcessQuestions(ctx, activity.ServiceURL, activity.Conversation.ID, activity.ReplyToID, items, language)
	if err != nil {
		return err
	}

	var out []byte
	resultName := resultFilename(ref.Name)
	if ext == ".csv" {
		out, err = batch.EncodeCSV(answered)
	} else {
		out, err = batch.EncodeXLSX(answered, language)
	}
	if err != nil {
		return err
	}

	if err := s.results.Put(ctx, activity.From.ID, out, batchResultTTL); err != nil {
		return err
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventBatchCompleted,
		Actor:     events.Actor{UserID: activity.From.ID, Name: activity.From.Name},
		Timestamp: time.Now().UTC(),
		Payload:   events.BatchCompletedPayload{Rows: len(answered), Filename: resultName},
	})

	return s.offerResult(ctx, activity, resultName, out)
}

// ProcessQuestions answers every row in order. Rows are never dropped: an
// unreadable row carries the read-error sentinel, a failed lookup the
// answer-error sentinel. Progress is reported every hundred rows. Lookups run
// against a pivot-language working copy; the output rows keep the questions
// exactly as uploaded.
func (s *BatchService) ProcessQuestions(ctx context.Context, serviceURL, conversationID, replyToID string, items []domain.AnswerItem, language string) ([]domain.AnswerItem, error) {
	pivot := s.translator.DefaultLanguage()
	translate := !strings.EqualFold(language, pivot)

	lookup := make([]string, len(items))
	for i, item := range items {
		lookup[i] = item.Question
	}
	if translate {
		started := time.Now()
		translated, err := s.translator.TranslateBatch(ctx, lookup, language, pivot)
		if err != nil {
			return nil, err
		}
		lookup = translated
		s.telemetry.TrackEvent(observability.EventQuestionTranslatedBulk, int64(len(items)), time.Since(started))
	}

	answerStart := time.Now()
	out := make([]domain.AnswerItem, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 && i%batchProgressInterval == 0 {
			s.progress(ctx, serviceURL, conversationID, replyToID, i, len(items))
		}

		out[i] = item
		if strings.TrimSpace(item.Question) == "" {
			out[i].Question = domain.BatchErrorReadingInput
			out[i].Answer = domain.BatchErrorReadingInput
			continue
		}

		result, err := s.kb.GenerateAnswer(ctx, lookup[i], kb.PartitionLive, nil, domain.ParseTags(item.Metadata))
		if err != nil {
			s.logger.Warn("bulk answer lookup failed",
				zap.Int("row", i), zap.Error(err))
			out[i].Answer = domain.BatchErrorGeneratingAnswer
			continue
		}
		if best := result.Best(); result.State == kb.StateAnswered && best != nil {
			out[i].Answer = best.Answer
		} else {
			out[i].Answer = batchNoAnswerText
		}
	}
	s.telemetry.TrackEvent(observability.EventQuestionAnsweredBulk, int64(len(items)), time.Since(answerStart))

	if translate {
		started := time.Now()
		answers := make([]string, len(out))
		for i, item := range out {
			answers[i] = item.Answer
		}
		translated, err := s.translator.TranslateBatch(ctx, answers, pivot, language)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i].Answer = translated[i]
		}
		s.telemetry.TrackEvent(observability.EventAnswersTranslatedBulk, int64(len(out)), time.Since(started))
	}
	return out, nil
}

type consentInvokeValue struct {
	Action     string               `json:"action"`
	Context    cards.ConsentContext `json:"context"`
	UploadInfo struct {
		Name       string `json:"name"`
		UploadURL  string `json:"uploadUrl"`
		ContentURL string `json:"contentUrl"`
		UniqueID   string `json:"uniqueId"`
		FileType   string `json:"fileType"`
	} `json:"uploadInfo"`
}

// HandleConsent finishes the handshake after the user accepts or declines
// the results file.
func (s *BatchService) HandleConsent(ctx context.Context, activity domain.Activity) error {
	var value consentInvokeValue
	if err := json.Unmarshal(activity.Value, &value); err != nil {
		return err
	}

	if value.Action != "accept" {
		s.reply(ctx, activity, fmt.Sprintf("Alright, I won't send %s. The results stay available for a while if you change your mind.", value.Context.Filename))
		return nil
	}

	data, err := s.results.Get(ctx, value.Context.UserID)
	if err != nil {
		return err
	}
	if data == nil {
		// Result evicted or consent arrived for a stale card.
		s.reply(ctx, activity, "Sorry, those results are no longer available. Please send the file again.")
		return nil
	}

	if err := s.connector.UploadFile(ctx, value.UploadInfo.UploadURL, data); err != nil {
		s.logger.Warn("result upload failed", zap.Error(err))
		s.reply(ctx, activity, "The upload failed. Please try again.")
		return nil
	}

	msg := transport.Message{
		ConversationID: activity.Conversation.ID,
		Text:           "Here are your results.",
		Attachments: []transport.Attachment{cards.FileInfo(
			value.UploadInfo.Name,
			value.UploadInfo.ContentURL,
			value.UploadInfo.UniqueID,
			value.UploadInfo.FileType,
		)},
	}
	if _, err := s.connector.SendMessage(ctx, activity.ServiceURL, msg); err != nil {
		s.logger.Warn("file info send failed", zap.Error(err))
	}
	return nil
}

func (s *BatchService) offerResult(ctx context.Context, activity domain.Activity, filename string, data []byte) error {
	if activity.ChannelID == domain.ChannelMsteams {
		consent := cards.FileConsent(
			"Your questions have been answered. Do you want the results file?",
			int64(len(data)),
			cards.ConsentContext{Filename: filename, UserID: activity.From.ID},
		)
		_, err := s.connector.SendMessage(ctx, activity.ServiceURL, transport.Message{
			ConversationID: activity.Conversation.ID,
			Attachments:    []transport.Attachment{consent},
		})
		return err
	}

	// Off-platform (emulator) there is no consent flow; inline the file.
	mime := domain.CSVMimeType
	if strings.EqualFold(path.Ext(filename), ".xlsx") {
		mime = domain.XLSXMimeType
	}
	inline := transport.Attachment{
		ContentType: mime,
		Name:        filename,
		ContentURL:  "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
	_, err := s.connector.SendMessage(ctx, activity.ServiceURL, transport.Message{
		ConversationID: activity.Conversation.ID,
		Text:           "Here are your results.",
		Attachments:    []transport.Attachment{inline},
	})
	return err
}

func (s *BatchService) resolveLanguage(code string) string {
	if code == "" {
		return s.translator.DefaultLanguage()
	}
	if !s.translator.IsValidLanguageCode(code) {
		s.logger.Info("unsupported language code in upload, using default",
			zap.String("code", code))
		return s.translator.DefaultLanguage()
	}
	return code
}

func (s *BatchService) progress(ctx context.Context, serviceURL, conversationID, replyToID string, done, total int) {
	if err := s.connector.SendTyping(ctx, serviceURL, conversationID); err != nil {
		s.logger.Warn("typing indicator failed", zap.Error(err))
	}
	msg := transport.Message{
		ConversationID: conversationID,
		ReplyToID:      replyToID,
		Text:           fmt.Sprintf("Answered %d of %d questions so far...", done, total),
	}
	if _, err := s.connector.SendMessage(ctx, serviceURL, msg); err != nil {
		s.logger.Warn("progress message failed", zap.Error(err))
	}
}

func (s *BatchService) reply(ctx context.Context, activity domain.Activity, text string) {
	msg := transport.Message{
		ConversationID: activity.Conversation.ID,
		ReplyToID:      activity.ID,
		Text:           text,
	}
	if _, err := s.connector.SendMessage(ctx, activity.ServiceURL, msg); err != nil {
		s.logger.Warn("batch reply failed", zap.Error(err))
	}
}

func findDownloadableFile(attachments []domain.AttachmentRef) (*domain.AttachmentRef, *fileDownloadInfo) {
	for i := range attachments {
		if attachments[i].ContentType != domain.FileDownloadInfoContentType {
			continue
		}
		var info fileDownloadInfo
		if err := json.Unmarshal(attachments[i].Content, &info); err != nil {
			continue
		}
		if info.DownloadURL == "" {
			continue
		}
		return &attachments[i], &info
	}
	return nil, nil
}

func resultFilename(inputName string) string {
	ext := path.Ext(inputName)
	base := strings.TrimSuffix(inputName, ext)
	if base == "" {
		base = "questions"
	}
	return base + "-answered" + ext
}
