package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/gateway/kb"
	"github.com/spec-kit/support-assistant/internal/transport"
)

type fakeTicketStore struct {
	tickets map[string]domain.Ticket
	getErr  error
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{tickets: make(map[string]domain.Ticket)}
}

func (f *fakeTicketStore) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	ticket, ok := f.tickets[ticketID]
	if !ok {
		return nil, nil
	}
	copied := ticket
	return &copied, nil
}

func (f *fakeTicketStore) Upsert(ctx context.Context, ticket *domain.Ticket) error {
	f.tickets[ticket.TicketID] = *ticket
	return nil
}

type sentMessage struct {
	ServiceURL string
	Msg        transport.Message
}

type updatedMessage struct {
	ConversationID string
	ActivityID     string
	Msg            transport.Message
}

type fakeConnector struct {
	sent    []sentMessage
	updated []updatedMessage
	threads []transport.Message
	uploads [][]byte
	typing  int
	members []transport.Member
	files   map[string][]byte

	sendErr    error
	updateErr  error
	threadErr  error
	membersErr error
	uploadErr  error

	nextActivityID int
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{files: make(map[string][]byte)}
}

func (f *fakeConnector) SendMessage(ctx context.Context, serviceURL string, msg transport.Message) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, sentMessage{ServiceURL: serviceURL, Msg: msg})
	f.nextActivityID++
	return fmt.Sprintf("activity-%d", f.nextActivityID), nil
}

func (f *fakeConnector) SendTyping(ctx context.Context, serviceURL, conversationID string) error {
	f.typing++
	return nil
}

func (f *fakeConnector) UpdateMessage(ctx context.Context, serviceURL, conversationID, activityID string, msg transport.Message) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, updatedMessage{ConversationID: conversationID, ActivityID: activityID, Msg: msg})
	return nil
}

func (f *fakeConnector) CreateThreadConversation(ctx context.Context, serviceURL, teamID string, msg transport.Message) (string, string, error) {
	if f.threadErr != nil {
		return "", "", f.threadErr
	}
	f.threads = append(f.threads, msg)
	f.nextActivityID++
	return fmt.Sprintf("thread-%d", len(f.threads)), fmt.Sprintf("activity-%d", f.nextActivityID), nil
}

func (f *fakeConnector) GetConversationMembers(ctx context.Context, serviceURL, conversationID string) ([]transport.Member, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return f.members, nil
}

func (f *fakeConnector) UploadFile(ctx context.Context, uploadURL string, data []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, data)
	return nil
}

func (f *fakeConnector) DownloadFile(ctx context.Context, downloadURL string) ([]byte, error) {
	data, ok := f.files[downloadURL]
	if !ok {
		return nil, fmt.Errorf("no file at %s", downloadURL)
	}
	return data, nil
}

// lastText returns the text of the most recent SendMessage call.
func (f *fakeConnector) lastText() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Msg.Text
}

type fakeKB struct {
	livePairs    []domain.QnaPair
	stagingPairs []domain.QnaPair
	notReady     bool

	answers   map[string]string
	answerErr map[string]error

	added   []domain.QnaPair
	updated []domain.QnaPair
	deleted []int

	downloadCalls []kb.Partition
}

func newFakeKB() *fakeKB {
	return &fakeKB{
		answers:   make(map[string]string),
		answerErr: make(map[string]error),
	}
}

func (f *fakeKB) GenerateAnswer(ctx context.Context, question string, partition kb.Partition, prev *kb.QueryContext, tags []domain.QueryTag) (*kb.AnswerResult, error) {
	if err := f.answerErr[question]; err != nil {
		return nil, err
	}
	if f.notReady {
		return &kb.AnswerResult{State: kb.StateNotReady}, nil
	}
	answer, ok := f.answers[question]
	if !ok {
		return &kb.AnswerResult{State: kb.StateNotFound}, nil
	}
	return &kb.AnswerResult{
		State:   kb.StateAnswered,
		Answers: []kb.RankedAnswer{{ID: 1, Answer: answer, Score: 90}},
	}, nil
}

func (f *fakeKB) QuestionExists(ctx context.Context, question string) (bool, error) {
	if f.notReady {
		return false, kb.ErrNotReady
	}
	needle := strings.TrimSpace(question)
	for _, pair := range f.stagingPairs {
		if strings.EqualFold(strings.TrimSpace(pair.Question), needle) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeKB) AddPair(ctx context.Context, pair domain.QnaPair, tags []domain.QueryTag) error {
	pair.Metadata = tags
	f.added = append(f.added, pair)
	f.stagingPairs = append(f.stagingPairs, pair)
	return nil
}

func (f *fakeKB) UpdatePair(ctx context.Context, pairID int, question, answer string, tags []domain.QueryTag) error {
	f.updated = append(f.updated, domain.QnaPair{ID: pairID, Question: question, Answer: answer, Metadata: tags})
	return nil
}

func (f *fakeKB) DeletePair(ctx context.Context, pairID int) error {
	f.deleted = append(f.deleted, pairID)
	return nil
}

func (f *fakeKB) DownloadAll(ctx context.Context, partition kb.Partition) ([]domain.QnaPair, error) {
	f.downloadCalls = append(f.downloadCalls, partition)
	if f.notReady {
		return nil, kb.ErrNotReady
	}
	if partition == kb.PartitionLive {
		return f.livePairs, nil
	}
	return f.stagingPairs, nil
}

func (f *fakeKB) IsPublished(ctx context.Context) (bool, error) {
	return !f.notReady, nil
}

type fakeIndex struct {
	entries map[string]string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: make(map[string]string)}
}

func (f *fakeIndex) Add(ctx context.Context, entity domain.ActivityEntity) error {
	f.entries[entity.ActivityReferenceID] = entity.ActivityID
	return nil
}

func (f *fakeIndex) GetByReference(ctx context.Context, referenceID string) (string, error) {
	return f.entries[referenceID], nil
}

type fakeResults struct {
	stored map[string][]byte
}

func newFakeResults() *fakeResults {
	return &fakeResults{stored: make(map[string][]byte)}
}

func (f *fakeResults) Put(ctx context.Context, userID string, payload []byte, ttl time.Duration) error {
	f.stored[userID] = payload
	return nil
}

func (f *fakeResults) Get(ctx context.Context, userID string) ([]byte, error) {
	return f.stored[userID], nil
}

func (f *fakeResults) Delete(ctx context.Context, userID string) error {
	delete(f.stored, userID)
	return nil
}

type fakeTranslator struct {
	prefix string
}

func (f *fakeTranslator) TranslateBatch(ctx context.Context, texts []string, from, to string) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = f.prefix + text
	}
	return out, nil
}

func (f *fakeTranslator) IsValidLanguageCode(code string) bool {
	return code == "en" || code == "es"
}

func (f *fakeTranslator) DefaultLanguage() string {
	return "en"
}
