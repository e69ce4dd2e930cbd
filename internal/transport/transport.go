package transport

import "context"

// Text formats accepted by the chat platform.
const (
	TextFormatPlain    = "plain"
	TextFormatMarkdown = "markdown"
	TextFormatXML      = "xml"
)

// Attachment is a card or file rendered inside a message.
type Attachment struct {
	ContentType string `json:"contentType"`
	Name        string `json:"name,omitempty"`
	ContentURL  string `json:"contentUrl,omitempty"`
	Content     any    `json:"content,omitempty"`
}

// Message is an outbound chat message.
type Message struct {
	ConversationID string
	ReplyToID      string
	Text           string
	Summary        string
	TextFormat     string
	Attachments    []Attachment
}

// Member is a participant of a conversation roster.
type Member struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AadObjectID string `json:"aadObjectId"`
}

// Connector abstracts the chat platform's outbound REST surface. All calls
// take the service URL the triggering activity arrived on.
type Connector interface {
	// SendMessage posts msg to its conversation and returns the id the
	// platform assigned to the new activity.
	SendMessage(ctx context.Context, serviceURL string, msg Message) (string, error)

	// SendTyping shows a typing indicator in the conversation.
	SendTyping(ctx context.Context, serviceURL, conversationID string) error

	// UpdateMessage replaces a previously sent activity in place.
	UpdateMessage(ctx context.Context, serviceURL, conversationID, activityID string, msg Message) error

	// CreateThreadConversation starts a new thread in the given team channel
	// seeded with msg, returning the thread conversation id and the id of
	// the seeding activity.
	CreateThreadConversation(ctx context.Context, serviceURL, teamID string, msg Message) (string, string, error)

	// GetConversationMembers fetches the roster of a conversation.
	GetConversationMembers(ctx context.Context, serviceURL, conversationID string) ([]Member, error)

	// UploadFile PUTs data to a consent-granted upload URL.
	UploadFile(ctx context.Context, uploadURL string, data []byte) error

	// DownloadFile GETs the content behind an attachment download URL.
	DownloadFile(ctx context.Context, downloadURL string) ([]byte, error)
}
