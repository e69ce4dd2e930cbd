package domain

import "encoding/json"

// Activity types delivered by the messaging transport.
const (
	ActivityTypeMessage            = "message"
	ActivityTypeConversationUpdate = "conversationUpdate"
	ActivityTypeInvoke             = "invoke"
	ActivityTypeTyping             = "typing"
)

// Conversation scopes.
const (
	ConversationTypePersonal = "personal"
	ConversationTypeChannel  = "channel"
)

// Invoke names delivered by the transport for task modules, messaging
// extensions and the file-consent handshake.
const (
	InvokeTaskModuleFetch            = "task/fetch"
	InvokeTaskModuleSubmit           = "task/submit"
	InvokeMessagingExtensionQuery    = "composeExtension/query"
	InvokeMessagingExtensionFetch    = "composeExtension/fetchTask"
	InvokeMessagingExtensionSubmit   = "composeExtension/submitAction"
	InvokeFileConsent                = "fileConsent/invoke"
	ChannelMsteams                   = "msteams"
	FileDownloadInfoContentType      = "application/vnd.microsoft.teams.file.download.info"
	FileConsentCardContentType       = "application/vnd.microsoft.teams.card.file.consent"
	FileInfoCardContentType          = "application/vnd.microsoft.teams.card.file.info"
	AdaptiveCardContentType          = "application/vnd.microsoft.card.adaptive"
	CSVMimeType                      = "text/csv"
	XLSXMimeType                     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Account identifies a user or bot on the transport.
type Account struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AadObjectID string `json:"aadObjectId,omitempty"`
}

// Conversation identifies the thread an activity belongs to.
type Conversation struct {
	ID               string `json:"id"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
}

// AttachmentRef is an inbound attachment descriptor.
type AttachmentRef struct {
	ContentType string          `json:"contentType"`
	Name        string          `json:"name,omitempty"`
	ContentURL  string          `json:"contentUrl,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// ChannelData carries transport-specific routing info for team scopes.
type ChannelData struct {
	Team    *ChannelRef `json:"team,omitempty"`
	Channel *ChannelRef `json:"channel,omitempty"`
}

// ChannelRef names a team or channel.
type ChannelRef struct {
	ID string `json:"id"`
}

// Activity is the inbound conversational event envelope.
type Activity struct {
	Type         string          `json:"type"`
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Text         string          `json:"text,omitempty"`
	Value        json.RawMessage `json:"value,omitempty"`
	ChannelID    string          `json:"channelId,omitempty"`
	ServiceURL   string          `json:"serviceUrl,omitempty"`
	Locale       string          `json:"locale,omitempty"`
	ReplyToID    string          `json:"replyToId,omitempty"`
	Conversation Conversation    `json:"conversation"`
	From         Account         `json:"from"`
	Recipient    Account         `json:"recipient"`
	Attachments  []AttachmentRef `json:"attachments,omitempty"`
	MembersAdded []Account       `json:"membersAdded,omitempty"`
	ChannelData  *ChannelData    `json:"channelData,omitempty"`
}

// TeamID returns the team id from channel data, if present.
func (a Activity) TeamID() string {
	if a.ChannelData != nil && a.ChannelData.Team != nil {
		return a.ChannelData.Team.ID
	}
	return ""
}

// HasValue reports whether the activity carries a non-empty card payload.
func (a Activity) HasValue() bool {
	return len(a.Value) > 0 && string(a.Value) != "null" && string(a.Value) != "{}"
}
