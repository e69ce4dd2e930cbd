package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/config"
	"github.com/spec-kit/support-assistant/internal/transport"
	apperrors "github.com/spec-kit/support-assistant/pkg/util"
)

// MembershipCache answers "is this user on the expert team" with a sliding
// per-user expiry so the roster is not refetched on every restricted action.
// Negative lookups are never cached: a user added to the team is authorized
// on their next attempt.
type MembershipCache struct {
	connector transport.Connector
	teamID    string
	ttl       time.Duration
	logger    *zap.Logger

	mu      sync.RWMutex
	entries map[string]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewMembershipCache builds the cache. A non-positive configured TTL is
// coerced to the default and logged.
func NewMembershipCache(cfg config.BotConfig, connector transport.Connector, logger *zap.Logger) *MembershipCache {
	days := cfg.MembershipCacheTTLDays
	if days <= 0 {
		logger.Info("membership cache expiry out of range, using default",
			zap.Int("configured_days", days),
			zap.Int("default_days", config.DefaultMembershipCacheTTLDays))
		days = config.DefaultMembershipCacheTTLDays
	}
	return &MembershipCache{
		connector: connector,
		teamID:    cfg.SmeTeamID,
		ttl:       time.Duration(days) * 24 * time.Hour,
		logger:    logger,
		entries:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// TTL returns the effective sliding expiry.
func (c *MembershipCache) TTL() time.Duration {
	return c.ttl
}

// IsAuthorized reports whether userID belongs to the expert team. A cache hit
// slides the expiry; a miss fetches the team roster over the connector. A
// roster fetch failure is returned as an error, never treated as authorized.
func (c *MembershipCache) IsAuthorized(ctx context.Context, userID, serviceURL string) (bool, error) {
	if c.hit(userID) {
		return true, nil
	}

	members, err := c.connector.GetConversationMembers(ctx, serviceURL, c.teamID)
	if err != nil {
		c.logger.Error("expert roster fetch failed",
			zap.String("team_id", c.teamID), zap.Error(err))
		return false, apperrors.NewTransportError("could not verify team membership", err)
	}

	for _, member := range members {
		if member.ID == userID || (member.AadObjectID != "" && member.AadObjectID == userID) {
			c.mu.Lock()
			c.entries[userID] = c.now().Add(c.ttl)
			c.mu.Unlock()
			return true, nil
		}
	}
	return false, nil
}

func (c *MembershipCache) hit(userID string) bool {
	now := c.now()

	c.mu.RLock()
	expiry, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if now.After(expiry) {
		c.mu.Lock()
		delete(c.entries, userID)
		c.mu.Unlock()
		return false
	}

	c.mu.Lock()
	c.entries[userID] = now.Add(c.ttl)
	c.mu.Unlock()
	return true
}
