package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-assistant/internal/bot"
	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/gateway/kb"
	apperrors "github.com/spec-kit/support-assistant/pkg/util"
)

// ActivityHandler receives webhook deliveries from the chat platform.
type ActivityHandler struct {
	router *bot.Router
}

// NewActivityHandler returns a new handler instance.
func NewActivityHandler(router *bot.Router) *ActivityHandler {
	return &ActivityHandler{router: router}
}

// Receive decodes one activity and hands it to the router. Invoke responses
// are echoed back as the HTTP body; everything else gets an empty 200.
func (h *ActivityHandler) Receive(c *fiber.Ctx) error {
	var activity domain.Activity
	if err := c.BodyParser(&activity); err != nil {
		return apperrors.NewValidationError("malformed activity payload", nil)
	}
	if activity.Type == "" {
		return apperrors.NewValidationError("activity type is required", nil)
	}

	response, err := h.router.HandleActivity(c.UserContext(), activity)
	if err != nil {
		// Give the gateway sentinels their own envelope codes instead of a
		// blanket 500.
		switch {
		case errors.Is(err, kb.ErrNotReady):
			return apperrors.NewKnowledgeBaseNotReady(err)
		case errors.Is(err, kb.ErrQuotaExceeded):
			return apperrors.NewQuotaExceeded(err)
		}
		return err
	}
	if response != nil {
		return c.JSON(response)
	}
	return c.SendStatus(fiber.StatusOK)
}
