package domain

import (
	"encoding/json"
	"strings"
)

// QnaPair is a knowledge-base entry held in transit during one operation.
type QnaPair struct {
	ID       int
	Question string
	Answer   string
	Metadata []QueryTag
}

// AnswerPayload is the structured answer stored for rich entries. A plain
// entry stores the description text directly instead.
type AnswerPayload struct {
	Description    string `json:"description"`
	Title          string `json:"title,omitempty"`
	Subtitle       string `json:"subtitle,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	RedirectionURL string `json:"redirectionUrl,omitempty"`
}

// IsRich reports whether any of the rich presentation fields is set.
func (p AnswerPayload) IsRich() bool {
	return p.Title != "" || p.Subtitle != "" || p.ImageURL != "" || p.RedirectionURL != ""
}

// ParseAnswerPayload decodes a stored answer into its structured form.
// The second return value is false when the answer is plain text.
func ParseAnswerPayload(answer string) (AnswerPayload, bool) {
	trimmed := strings.TrimSpace(answer)
	if !strings.HasPrefix(trimmed, "{") {
		return AnswerPayload{}, false
	}
	var payload AnswerPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return AnswerPayload{}, false
	}
	return payload, true
}

// EditSession carries the full state of an add/edit form through the
// workflow, replacing the opaque card-payload round trips of the UI.
type EditSession struct {
	PairID           *int   `json:"qnaPairId,omitempty"`
	OriginalQuestion string `json:"originalQuestion,omitempty"`
	UpdatedQuestion  string `json:"updatedQuestion,omitempty"`
	Description      string `json:"description,omitempty"`
	Title            string `json:"title,omitempty"`
	Subtitle         string `json:"subtitle,omitempty"`
	ImageURL         string `json:"imageUrl,omitempty"`
	RedirectionURL   string `json:"redirectionUrl,omitempty"`

	// Inline form state, round-tripped into the re-rendered card.
	IsQuestionAlreadyExists bool   `json:"isQuestionAlreadyExists,omitempty"`
	FieldError              string `json:"fieldError,omitempty"`
}

// IsRichCard reports whether the session fills any rich-card field.
func (s EditSession) IsRichCard() bool {
	return strings.TrimSpace(s.Title) != "" ||
		strings.TrimSpace(s.Subtitle) != "" ||
		strings.TrimSpace(s.ImageURL) != "" ||
		strings.TrimSpace(s.RedirectionURL) != ""
}

// QuestionChanged reports whether the edited question text differs from the
// original, ignoring case and surrounding whitespace.
func (s EditSession) QuestionChanged() bool {
	return !strings.EqualFold(
		strings.TrimSpace(s.UpdatedQuestion),
		strings.TrimSpace(s.OriginalQuestion),
	)
}

// CombinedAnswer renders the answer to store: rich sessions serialize to an
// AnswerPayload JSON document, plain sessions store the description text.
func (s EditSession) CombinedAnswer() string {
	if !s.IsRichCard() {
		return s.Description
	}
	payload := AnswerPayload{
		Description:    s.Description,
		Title:          s.Title,
		Subtitle:       s.Subtitle,
		ImageURL:       s.ImageURL,
		RedirectionURL: s.RedirectionURL,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return s.Description
	}
	return string(data)
}

// ActivityEntity maps an opaque reference id minted at announcement time to
// the transport-level id of the announcement message.
type ActivityEntity struct {
	ActivityReferenceID string
	ActivityID          string
}
