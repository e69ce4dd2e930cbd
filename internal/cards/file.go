package cards

import (
	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/transport"
)

// ConsentContext is round-tripped through the platform's file-consent card
// and comes back on the accept/decline invoke.
type ConsentContext struct {
	Filename string `json:"filename"`
	UserID   string `json:"userId"`
}

// FileConsent asks the user for permission to upload the generated results
// file into their chat.
func FileConsent(description string, sizeInBytes int64, context ConsentContext) transport.Attachment {
	return transport.Attachment{
		ContentType: domain.FileConsentCardContentType,
		Name:        context.Filename,
		Content: map[string]any{
			"description":    description,
			"sizeInBytes":    sizeInBytes,
			"acceptContext":  context,
			"declineContext": context,
		},
	}
}

// FileInfo links a completed upload so the chat renders a download chip.
func FileInfo(filename, contentURL, uniqueID, fileType string) transport.Attachment {
	return transport.Attachment{
		ContentType: domain.FileInfoCardContentType,
		Name:        filename,
		ContentURL:  contentURL,
		Content: map[string]any{
			"uniqueId": uniqueID,
			"fileType": fileType,
		},
	}
}
