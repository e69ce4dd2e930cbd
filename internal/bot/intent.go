package bot

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/spec-kit/support-assistant/internal/cards"
	"github.com/spec-kit/support-assistant/internal/domain"
)

// IntentKind is the closed set of things an inbound activity can mean.
type IntentKind int

const (
	IntentUnknown IntentKind = iota
	IntentPersonalText
	IntentPersonalCardSubmit
	IntentFileAttachment
	IntentChannelCommand
	IntentChannelTicketAction
	IntentConversationUpdate
	IntentMessagingExtensionQuery
	IntentMessagingExtensionFetch
	IntentMessagingExtensionSubmit
	IntentTaskModuleFetch
	IntentTaskModuleSubmit
	IntentFileConsent
)

// Intent is the classified shape of one activity. Command carries the card
// submission identifier or the channel command token; Argument the rest of
// a channel command line.
type Intent struct {
	Kind     IntentKind
	Command  string
	Argument string
}

// Classify maps an activity onto the intent union in a single step. All
// downstream handlers dispatch on the result instead of re-inspecting the
// envelope.
func Classify(activity domain.Activity) Intent {
	switch activity.Type {
	case domain.ActivityTypeInvoke:
		return classifyInvoke(activity)
	case domain.ActivityTypeConversationUpdate:
		return Intent{Kind: IntentConversationUpdate}
	case domain.ActivityTypeMessage:
		return classifyMessage(activity)
	default:
		return Intent{Kind: IntentUnknown}
	}
}

func classifyInvoke(activity domain.Activity) Intent {
	switch activity.Name {
	case domain.InvokeFileConsent:
		return Intent{Kind: IntentFileConsent}
	case domain.InvokeMessagingExtensionQuery:
		return Intent{Kind: IntentMessagingExtensionQuery}
	case domain.InvokeMessagingExtensionFetch:
		return Intent{Kind: IntentMessagingExtensionFetch}
	case domain.InvokeMessagingExtensionSubmit:
		return Intent{Kind: IntentMessagingExtensionSubmit}
	case domain.InvokeTaskModuleFetch:
		return Intent{Kind: IntentTaskModuleFetch}
	case domain.InvokeTaskModuleSubmit:
		return Intent{Kind: IntentTaskModuleSubmit}
	default:
		return Intent{Kind: IntentUnknown}
	}
}

func classifyMessage(activity domain.Activity) Intent {
	// The emulator sends no conversation type; treat it as a personal chat.
	conversationType := activity.Conversation.ConversationType
	if conversationType == "" {
		conversationType = domain.ConversationTypePersonal
	}

	switch conversationType {
	case domain.ConversationTypePersonal:
		return classifyPersonal(activity)
	case domain.ConversationTypeChannel:
		return classifyChannel(activity)
	default:
		return Intent{Kind: IntentUnknown}
	}
}

func classifyPersonal(activity domain.Activity) Intent {
	for _, attachment := range activity.Attachments {
		if attachment.ContentType == domain.FileDownloadInfoContentType {
			return Intent{Kind: IntentFileAttachment}
		}
	}
	if activity.HasValue() {
		return Intent{
			Kind:    IntentPersonalCardSubmit,
			Command: gjson.GetBytes(activity.Value, "command").String(),
		}
	}
	return Intent{Kind: IntentPersonalText, Command: CleanText(activity.Text)}
}

func classifyChannel(activity domain.Activity) Intent {
	if activity.HasValue() && gjson.GetBytes(activity.Value, "ticketId").Exists() {
		return Intent{Kind: IntentChannelTicketAction}
	}

	text := CleanText(activity.Text)
	lower := strings.ToLower(text)
	switch {
	case lower == cards.TextTeamTour:
		return Intent{Kind: IntentChannelCommand, Command: cards.TextTeamTour}
	case lower == cards.TextNoOp || lower == "":
		return Intent{Kind: IntentChannelCommand, Command: cards.TextNoOp}
	case strings.HasPrefix(lower, cards.TextDeleteQna):
		return Intent{
			Kind:     IntentChannelCommand,
			Command:  cards.TextDeleteQna,
			Argument: strings.TrimSpace(text[len(cards.TextDeleteQna):]),
		}
	default:
		return Intent{Kind: IntentChannelCommand, Command: text}
	}
}

// CleanText strips the bot @-mention markup and surrounding whitespace from
// message text. Only a close tag that follows its open tag is stripped, so
// malformed markup cannot keep the scan alive.
func CleanText(text string) string {
	for {
		start := strings.Index(text, "<at>")
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], "</at>")
		if end < 0 {
			break
		}
		text = text[:start] + text[start+end+len("</at>"):]
	}
	return strings.TrimSpace(text)
}
