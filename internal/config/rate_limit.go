package config

import (
	"time"

	"bailian-gateway/internal/models"
)

// Unlimited disables rate limiting for a role. Any negative ceiling does.
const Unlimited = -1

type RateLimitConfig struct {
	Limits map[models.Role]int
	Window time.Duration
}

func NewRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Limits: map[models.Role]int{
			models.RoleUser:    getEnvInt("REGULAR_USER_RATE_LIMIT", 10),
			models.RolePremium: getEnvInt("PREMIUM_USER_RATE_LIMIT", 100),
			models.RoleAdmin:   getEnvInt("ADMIN_RATE_LIMIT", Unlimited),
		},
		Window: getEnvSeconds("RATE_LIMIT_WINDOW_SECONDS", 60),
	}
}

// CeilingFor returns the most generous ceiling granted by any of the roles.
// Roles without a configured ceiling fall back to the user ceiling.
func (c *RateLimitConfig) CeilingFor(roles []models.Role) int {
	best, found := 0, false
	for _, role := range roles {
		limit, ok := c.Limits[role]
		if !ok {
			continue
		}
		if limit < 0 {
			return Unlimited
		}
		if !found || limit > best {
			best, found = limit, true
		}
	}
	if !found {
		return c.Limits[models.RoleUser]
	}
	return best
}
