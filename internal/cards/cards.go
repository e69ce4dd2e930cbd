// Package cards builds the attachment payloads the assistant sends: the
// adaptive cards shown to requesters and experts, plus the file consent and
// file info cards of the batch download handshake.
package cards

import (
	"fmt"

	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/transport"
)

// Command texts recognized from card submissions and typed messages.
const (
	TextAskExpert     = "ask an expert"
	TextShareFeedback = "share feedback"
	TextTakeTour      = "take a tour"
	TextTeamTour      = "team tour"
	TextDeleteQna     = "delete"
	TextNoOp          = "no command"
)

// Submission identifiers carried in card value payloads.
const (
	SubmitAskExpert = "QuestionForExpert"
	SubmitFeedback  = "AppFeedback"
	SubmitQnaPair   = "QnaPairForm"
	SubmitPrompt    = "QnaPrompt"
)

const adaptiveCardVersion = "1.2"

// AdaptiveCard is the generic adaptive card envelope.
type AdaptiveCard struct {
	Schema  string `json:"$schema"`
	Type    string `json:"type"`
	Version string `json:"version"`
	Body    []any  `json:"body"`
	Actions []any  `json:"actions,omitempty"`
}

func newCard(body []any, actions ...any) AdaptiveCard {
	return AdaptiveCard{
		Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
		Type:    "AdaptiveCard",
		Version: adaptiveCardVersion,
		Body:    body,
		Actions: actions,
	}
}

func wrap(card AdaptiveCard) transport.Attachment {
	return transport.Attachment{
		ContentType: domain.AdaptiveCardContentType,
		Content:     card,
	}
}

func textBlock(text string) map[string]any {
	return map[string]any{"type": "TextBlock", "text": text, "wrap": true}
}

func heading(text string) map[string]any {
	return map[string]any{"type": "TextBlock", "text": text, "wrap": true, "weight": "Bolder", "size": "Medium"}
}

func errorBlock(text string) map[string]any {
	return map[string]any{"type": "TextBlock", "text": text, "wrap": true, "color": "Attention"}
}

func factSet(facts ...[2]string) map[string]any {
	list := make([]map[string]string, 0, len(facts))
	for _, f := range facts {
		list = append(list, map[string]string{"title": f[0], "value": f[1]})
	}
	return map[string]any{"type": "FactSet", "facts": list}
}

func textInput(id, placeholder, value string, multiline bool) map[string]any {
	return map[string]any{
		"type":        "Input.Text",
		"id":          id,
		"placeholder": placeholder,
		"value":       value,
		"isMultiline": multiline,
	}
}

func submitAction(title string, data map[string]any) map[string]any {
	return map[string]any{"type": "Action.Submit", "title": title, "data": data}
}

func messageBackAction(title, text string) map[string]any {
	return map[string]any{
		"type":  "Action.Submit",
		"title": title,
		"data": map[string]any{
			"msteams": map[string]any{
				"type":        "messageBack",
				"displayText": title,
				"text":        text,
			},
		},
	}
}

// Welcome renders the personal-scope greeting with the entry commands.
func Welcome(welcomeText, productName string) transport.Attachment {
	return wrap(newCard(
		[]any{
			heading(fmt.Sprintf("Hi, I'm the %s bot", productName)),
			textBlock(welcomeText),
		},
		messageBackAction("Take a tour", TextTakeTour),
		messageBackAction("Ask an expert", TextAskExpert),
		messageBackAction("Share feedback", TextShareFeedback),
	))
}

// TeamWelcome greets the expert team when the bot joins it.
func TeamWelcome(teamName, productName string) transport.Attachment {
	text := fmt.Sprintf(
		"I answer end-user questions from the knowledge base and escalate the ones I can't. "+
			"Use the %s messaging extension to add or edit question-answer pairs.", productName)
	body := []any{heading("Hello team"), textBlock(text)}
	return wrap(newCard(body, messageBackAction("Take a team tour", TextTeamTour)))
}

// Tour renders the personal tour carousel cards.
func Tour(appBaseURI string) []transport.Attachment {
	steps := []struct{ title, text, image string }{
		{"Ask a question", "Type any question and I will search the knowledge base for an answer.", "ask.png"},
		{"Ask an expert", "If I can't help, I can forward your question to the expert team.", "expert.png"},
		{"Share feedback", "Tell the team what you think of me or the answers you received.", "feedback.png"},
	}
	out := make([]transport.Attachment, 0, len(steps))
	for _, step := range steps {
		out = append(out, wrap(newCard([]any{
			heading(step.title),
			tourImage(appBaseURI, step.image),
			textBlock(step.text),
		})))
	}
	return out
}

// TeamTour renders the expert-team tour cards.
func TeamTour(appBaseURI string) []transport.Attachment {
	steps := []struct{ title, text, image string }{
		{"Ticket cards", "Escalated questions arrive here as cards. Assign, close or reopen them with the buttons.", "tickets.png"},
		{"Edit the knowledge base", "Use the messaging extension to add or update question-answer pairs.", "edit.png"},
		{"Bulk answering", "Send me a CSV or XLSX of questions in chat and I will answer them in bulk.", "bulk.png"},
	}
	out := make([]transport.Attachment, 0, len(steps))
	for _, step := range steps {
		out = append(out, wrap(newCard([]any{
			heading(step.title),
			tourImage(appBaseURI, step.image),
			textBlock(step.text),
		})))
	}
	return out
}

func tourImage(appBaseURI, name string) map[string]any {
	return map[string]any{
		"type": "Image",
		"url":  fmt.Sprintf("%s/static/tour/%s", appBaseURI, name),
	}
}

// UnrecognizedInput tells a requester the question had no match and offers
// escalation.
func UnrecognizedInput(question string) transport.Attachment {
	return wrap(newCard(
		[]any{
			textBlock("I couldn't find an answer for your question."),
			textBlock("You can ask an expert, or rephrase and try again."),
		},
		submitAction("Ask an expert", map[string]any{
			"command":  TextAskExpert,
			"question": question,
		}),
	))
}

// UnrecognizedTeamInput is the channel-scope reply for unknown commands.
func UnrecognizedTeamInput() transport.Attachment {
	return wrap(newCard([]any{
		textBlock("I didn't recognize that command."),
		textBlock("In this channel I understand `team tour` and `delete <question>`."),
	}))
}

// Answer renders a plain knowledge-base answer with the matched question as
// context. Prompt actions submit the answered pair's id alongside the
// follow-up so the next lookup runs with conversational context.
func Answer(question, answer string, qnaID int, prompts []string) transport.Attachment {
	body := []any{
		heading("Here's what I found"),
		textBlock(answer),
	}
	actions := []any{}
	for _, prompt := range prompts {
		actions = append(actions, submitAction(prompt, map[string]any{
			"command":          SubmitPrompt,
			"question":         prompt,
			"previousQuestion": question,
			"previousQnaId":    qnaID,
		}))
	}
	actions = append(actions, submitAction("Ask an expert", map[string]any{
		"command":  TextAskExpert,
		"question": question,
	}))
	return wrap(newCard(body, actions...))
}

// RichAnswer renders an answer whose stored payload carries rich fields.
func RichAnswer(question string, payload domain.AnswerPayload) transport.Attachment {
	body := []any{}
	if payload.Title != "" {
		body = append(body, heading(payload.Title))
	}
	if payload.Subtitle != "" {
		body = append(body, map[string]any{
			"type": "TextBlock", "text": payload.Subtitle, "wrap": true, "isSubtle": true,
		})
	}
	if payload.ImageURL != "" {
		body = append(body, map[string]any{"type": "Image", "url": payload.ImageURL})
	}
	if payload.Description != "" {
		body = append(body, textBlock(payload.Description))
	}

	actions := []any{}
	if payload.RedirectionURL != "" {
		actions = append(actions, map[string]any{
			"type": "Action.OpenUrl", "title": "Learn more", "url": payload.RedirectionURL,
		})
	}
	actions = append(actions, submitAction("Ask an expert", map[string]any{
		"command":  TextAskExpert,
		"question": question,
	}))
	return wrap(newCard(body, actions...))
}

// AskExpertForm is the escalation form, optionally pre-filled with the
// question that failed. requireDescription flags a re-render after an empty
// submission.
func AskExpertForm(question string, requireDescription bool) transport.Attachment {
	body := []any{
		heading("Ask an expert"),
		textBlock("Your question goes to the expert team. They will reply to you directly."),
		textInput("title", "Question title", question, false),
		textInput("description", "Describe your question", "", true),
	}
	if requireDescription {
		body = append(body, errorBlock("Please enter a title for your question."))
	}
	return wrap(newCard(body, submitAction("Send", map[string]any{"command": SubmitAskExpert})))
}

// FeedbackForm collects app or answer feedback for the expert team.
func FeedbackForm(question string, requireRating bool) transport.Attachment {
	body := []any{
		heading("Share feedback"),
		map[string]any{
			"type": "Input.ChoiceSet",
			"id":   "rating",
			"choices": []map[string]string{
				{"title": "Helpful", "value": "helpful"},
				{"title": "Needs improvement", "value": "needs_improvement"},
				{"title": "Not helpful", "value": "not_helpful"},
			},
		},
		textInput("description", "Tell us more (optional)", "", true),
	}
	if requireRating {
		body = append(body, errorBlock("Please pick a rating."))
	}
	return wrap(newCard(body, submitAction("Send", map[string]any{
		"command":  SubmitFeedback,
		"question": question,
	})))
}

// Feedback renders a submitted feedback entry for the expert channel.
func Feedback(rating, description string, from domain.Account) transport.Attachment {
	return wrap(newCard([]any{
		heading("App feedback"),
		factSet(
			[2]string{"From:", from.Name},
			[2]string{"Rating:", rating},
		),
		textBlock(description),
	}))
}

// ThankYou acknowledges a requester after an escalation or feedback submit.
func ThankYou(message string) transport.Attachment {
	return wrap(newCard([]any{textBlock(message)}))
}
