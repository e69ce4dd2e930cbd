package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/config"
	"github.com/spec-kit/support-assistant/internal/domain"
)

const (
	headerSubscriptionKey = "Ocp-Apim-Subscription-Key"

	// Marker answer the service returns for a query with no match.
	noMatchAnswer = "No good match found in KB."
	noMatchID     = -1
)

// Client is the HTTP implementation of Gateway.
type Client struct {
	endpoint       string
	kbID           string
	key            string
	scoreThreshold float64
	httpClient     *http.Client
	logger         *zap.Logger
}

// NewClient constructs a knowledge-base client from config.
func NewClient(cfg config.KnowledgeBaseConfig, logger *zap.Logger) *Client {
	return &Client{
		endpoint:       strings.TrimRight(cfg.Endpoint, "/"),
		kbID:           cfg.KnowledgeBaseID,
		key:            cfg.SubscriptionKey,
		scoreThreshold: cfg.ScoreThreshold,
		httpClient:     &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:         logger,
	}
}

type generateAnswerRequest struct {
	Question      string            `json:"question"`
	Top           int               `json:"top"`
	IsTest        bool              `json:"isTest"`
	Context       *queryContextBody `json:"context,omitempty"`
	StrictFilters []tagBody         `json:"strictFilters,omitempty"`
}

type queryContextBody struct {
	PreviousQnaID     int    `json:"previousQnaId"`
	PreviousUserQuery string `json:"previousUserQuery"`
}

type tagBody struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type generateAnswerResponse struct {
	Answers []struct {
		ID        int       `json:"id"`
		Answer    string    `json:"answer"`
		Questions []string  `json:"questions"`
		Score     float64   `json:"score"`
		Metadata  []tagBody `json:"metadata"`
		Context   struct {
			Prompts []Prompt `json:"prompts"`
		} `json:"context"`
	} `json:"answers"`
}

func (c *Client) GenerateAnswer(ctx context.Context, question string, partition Partition, prev *QueryContext, tags []domain.QueryTag) (*AnswerResult, error) {
	body := generateAnswerRequest{
		Question: question,
		Top:      3,
		IsTest:   partition == PartitionStaging,
	}
	if prev != nil {
		body.Context = &queryContextBody{
			PreviousQnaID:     prev.PreviousQnaID,
			PreviousUserQuery: prev.PreviousUserQuery,
		}
	}
	for _, tag := range tags {
		body.StrictFilters = append(body.StrictFilters, tagBody{Name: tag.Name, Value: tag.Value})
	}

	var resp generateAnswerResponse
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/knowledgebases/%s/generateAnswer", c.kbID), body, &resp)
	if err != nil {
		if isNotReady(err) {
			return &AnswerResult{State: StateNotReady}, nil
		}
		return nil, err
	}

	result := &AnswerResult{State: StateNotFound}
	for _, a := range resp.Answers {
		if a.ID == noMatchID || strings.EqualFold(strings.TrimSpace(a.Answer), noMatchAnswer) {
			continue
		}
		if a.Score < c.scoreThreshold {
			continue
		}
		ranked := RankedAnswer{
			ID:        a.ID,
			Answer:    a.Answer,
			Questions: a.Questions,
			Score:     a.Score,
			Prompts:   a.Context.Prompts,
		}
		for _, m := range a.Metadata {
			ranked.Metadata = append(ranked.Metadata, domain.QueryTag{Name: m.Name, Value: m.Value})
		}
		result.Answers = append(result.Answers, ranked)
	}
	if len(result.Answers) > 0 {
		result.State = StateAnswered
	}
	return result, nil
}

func (c *Client) QuestionExists(ctx context.Context, question string) (bool, error) {
	pairs, err := c.DownloadAll(ctx, PartitionStaging)
	if err != nil {
		if isNotReady(err) {
			return false, ErrNotReady
		}
		return false, err
	}
	needle := strings.TrimSpace(question)
	for _, pair := range pairs {
		if strings.EqualFold(strings.TrimSpace(pair.Question), needle) {
			return true, nil
		}
	}
	return false, nil
}

type qnaDocumentBody struct {
	ID        int       `json:"id,omitempty"`
	Answer    string    `json:"answer"`
	Questions []string  `json:"questions"`
	Metadata  []tagBody `json:"metadata,omitempty"`
}

type updateKBRequest struct {
	Add    *updateAddSection    `json:"add,omitempty"`
	Update *updateUpdateSection `json:"update,omitempty"`
	Delete *updateDeleteSection `json:"delete,omitempty"`
}

type updateAddSection struct {
	QnaList []qnaDocumentBody `json:"qnaList"`
}

type updateUpdateSection struct {
	QnaList []qnaDocumentBody `json:"qnaList"`
}

type updateDeleteSection struct {
	IDs []int `json:"ids"`
}

func (c *Client) AddPair(ctx context.Context, pair domain.QnaPair, tags []domain.QueryTag) error {
	req := updateKBRequest{Add: &updateAddSection{QnaList: []qnaDocumentBody{{
		Answer:    pair.Answer,
		Questions: []string{pair.Question},
		Metadata:  toTagBodies(tags),
	}}}}
	if err := c.patchKB(ctx, req); err != nil {
		return err
	}
	return c.publish(ctx)
}

func (c *Client) UpdatePair(ctx context.Context, pairID int, question, answer string, tags []domain.QueryTag) error {
	req := updateKBRequest{Update: &updateUpdateSection{QnaList: []qnaDocumentBody{{
		ID:        pairID,
		Answer:    answer,
		Questions: []string{question},
		Metadata:  toTagBodies(tags),
	}}}}
	if err := c.patchKB(ctx, req); err != nil {
		return err
	}
	return c.publish(ctx)
}

func (c *Client) DeletePair(ctx context.Context, pairID int) error {
	req := updateKBRequest{Delete: &updateDeleteSection{IDs: []int{pairID}}}
	if err := c.patchKB(ctx, req); err != nil {
		return err
	}
	return c.publish(ctx)
}

func (c *Client) DownloadAll(ctx context.Context, partition Partition) ([]domain.QnaPair, error) {
	env := "Prod"
	if partition == PartitionStaging {
		env = "Test"
	}

	var resp struct {
		QnaDocuments []qnaDocumentBody `json:"qnaDocuments"`
	}
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/knowledgebases/%s/%s/qna", c.kbID, env), nil, &resp)
	if err != nil {
		if isNotReady(err) {
			return nil, ErrNotReady
		}
		return nil, err
	}

	pairs := make([]domain.QnaPair, 0, len(resp.QnaDocuments))
	for _, doc := range resp.QnaDocuments {
		question := ""
		if len(doc.Questions) > 0 {
			question = doc.Questions[0]
		}
		pair := domain.QnaPair{ID: doc.ID, Question: question, Answer: doc.Answer}
		for _, m := range doc.Metadata {
			pair.Metadata = append(pair.Metadata, domain.QueryTag{Name: m.Name, Value: m.Value})
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (c *Client) IsPublished(ctx context.Context) (bool, error) {
	var resp struct {
		LastPublishedTimestamp string `json:"lastPublishedTimestamp"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/knowledgebases/%s", c.kbID), nil, &resp); err != nil {
		return false, err
	}
	return resp.LastPublishedTimestamp != "", nil
}

func (c *Client) patchKB(ctx context.Context, req updateKBRequest) error {
	err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/knowledgebases/%s", c.kbID), req, nil)
	if isNotReady(err) {
		return ErrNotReady
	}
	return err
}

func (c *Client) publish(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/knowledgebases/%s", c.kbID), nil, nil)
}

// apiError is a non-2xx response from the knowledge-base service.
type apiError struct {
	Status int
	Code   string
	Detail string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("knowledge base error %s (%d): %s", e.Code, e.Status, e.Detail)
	}
	return fmt.Sprintf("knowledge base error (%d): %s", e.Status, e.Detail)
}

func isNotReady(err error) bool {
	api, ok := err.(*apiError)
	if !ok {
		return false
	}
	return api.Status == http.StatusBadRequest &&
		(strings.Contains(strings.ToLower(api.Detail), "publish") ||
			strings.Contains(api.Code, "KbNotReady"))
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set(headerSubscriptionKey, c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return ErrQuotaExceeded
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var payload struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &payload)
		detail := payload.Error.Message
		if detail == "" {
			detail = string(raw)
		}
		return &apiError{Status: resp.StatusCode, Code: payload.Error.Code, Detail: detail}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toTagBodies(tags []domain.QueryTag) []tagBody {
	if len(tags) == 0 {
		return nil
	}
	bodies := make([]tagBody, 0, len(tags))
	for _, tag := range tags {
		bodies = append(bodies, tagBody{Name: tag.Name, Value: tag.Value})
	}
	return bodies
}
