package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswerPayload(t *testing.T) {
	payload, ok := ParseAnswerPayload(`{"description":"Hold the button.","title":"Reset"}`)
	require.True(t, ok)
	assert.Equal(t, "Hold the button.", payload.Description)
	assert.Equal(t, "Reset", payload.Title)
	assert.True(t, payload.IsRich())

	payload, ok = ParseAnswerPayload(`  {"description":"plain structured"}  `)
	require.True(t, ok)
	assert.False(t, payload.IsRich())

	_, ok = ParseAnswerPayload("Hold the button for ten seconds.")
	assert.False(t, ok)

	_, ok = ParseAnswerPayload("{not valid json")
	assert.False(t, ok)
}

func TestEditSessionQuestionChanged(t *testing.T) {
	session := EditSession{OriginalQuestion: "How do I reset?", UpdatedQuestion: "  how do i RESET?  "}
	assert.False(t, session.QuestionChanged())

	session.UpdatedQuestion = "How do I restart?"
	assert.True(t, session.QuestionChanged())
}

func TestEditSessionCombinedAnswer(t *testing.T) {
	plain := EditSession{Description: "Hold the button."}
	assert.Equal(t, "Hold the button.", plain.CombinedAnswer())

	rich := EditSession{
		Description: "Hold the button.",
		Title:       "Reset",
		ImageURL:    "https://cdn.example.com/reset.png",
	}
	assert.True(t, rich.IsRichCard())

	payload, ok := ParseAnswerPayload(rich.CombinedAnswer())
	require.True(t, ok)
	assert.Equal(t, "Hold the button.", payload.Description)
	assert.Equal(t, "Reset", payload.Title)
	assert.Equal(t, "https://cdn.example.com/reset.png", payload.ImageURL)
}
