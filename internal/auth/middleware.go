package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/support-assistant/pkg/util"
)

// WebhookMiddleware enforces the transport bearer token on webhook routes.
type WebhookMiddleware struct {
	verifier *Verifier
}

// NewWebhookMiddleware constructs middleware.
func NewWebhookMiddleware(verifier *Verifier) *WebhookMiddleware {
	return &WebhookMiddleware{verifier: verifier}
}

// Handle rejects deliveries without a valid bearer token. When no secret is
// configured the check is skipped.
func (m *WebhookMiddleware) Handle(c *fiber.Ctx) error {
	if !m.verifier.Enabled() {
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	if err := m.verifier.Verify(parts[1]); err != nil {
		return apperrors.NewUnauthorized("invalid bearer token")
	}
	return c.Next()
}
