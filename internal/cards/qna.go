package cards

import (
	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/transport"
)

// QnaForm renders the add/edit form with the session state round-tripped
// into hidden data and inline validation messages.
func QnaForm(session domain.EditSession) transport.Attachment {
	title := "Add a question"
	if session.PairID != nil {
		title = "Edit question"
	}

	body := []any{
		heading(title),
		textInput("updatedQuestion", "Question", session.UpdatedQuestion, false),
	}
	if session.IsQuestionAlreadyExists {
		body = append(body, errorBlock("This question already exists. Edit it instead, or enter a different one."))
	}
	body = append(body,
		textInput("description", "Answer", session.Description, true),
		textInput("title", "Card title (optional)", session.Title, false),
		textInput("subtitle", "Card subtitle (optional)", session.Subtitle, false),
		textInput("imageUrl", "Image URL (optional)", session.ImageURL, false),
		textInput("redirectionUrl", "Redirect URL (optional)", session.RedirectionURL, false),
	)
	if session.FieldError != "" {
		body = append(body, errorBlock(session.FieldError))
	}

	data := map[string]any{"command": SubmitQnaPair}
	if session.PairID != nil {
		data["qnaPairId"] = *session.PairID
		data["originalQuestion"] = session.OriginalQuestion
	}
	return wrap(newCard(body, submitAction("Save", data)))
}

// QnaAnnouncement renders the channel card announcing a saved pair. Rich
// sessions get the full card layout, plain ones a question/answer pair.
func QnaAnnouncement(session domain.EditSession, savedByName string) transport.Attachment {
	if session.IsRichCard() {
		return richAnnouncement(session, savedByName)
	}
	return wrap(newCard([]any{
		heading(session.UpdatedQuestion),
		textBlock(session.Description),
		savedByBlock(savedByName),
	}))
}

func richAnnouncement(session domain.EditSession, savedByName string) transport.Attachment {
	body := []any{heading(session.UpdatedQuestion)}
	if session.Title != "" {
		body = append(body, textBlock(session.Title))
	}
	if session.Subtitle != "" {
		body = append(body, map[string]any{
			"type": "TextBlock", "text": session.Subtitle, "wrap": true, "isSubtle": true,
		})
	}
	if session.ImageURL != "" {
		body = append(body, map[string]any{"type": "Image", "url": session.ImageURL})
	}
	if session.Description != "" {
		body = append(body, textBlock(session.Description))
	}
	body = append(body, savedByBlock(savedByName))

	actions := []any{}
	if session.RedirectionURL != "" {
		actions = append(actions, map[string]any{
			"type": "Action.OpenUrl", "title": "Learn more", "url": session.RedirectionURL,
		})
	}
	return wrap(newCard(body, actions...))
}

func savedByBlock(name string) map[string]any {
	return map[string]any{
		"type": "TextBlock", "text": "Last edited by " + name, "wrap": true, "isSubtle": true, "size": "Small",
	}
}
