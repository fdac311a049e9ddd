package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/config"
	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/metrics"
	"bailian-gateway/internal/services"

	"github.com/sirupsen/logrus"
)

// RateLimiter applies the sliding-window limit per identity and route.
type RateLimiter struct {
	limiter *services.RateLimiter
	cfg     *config.RateLimitConfig
	metrics *metrics.Metrics
}

func NewRateLimiter(limiter *services.RateLimiter, cfg *config.RateLimitConfig, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		cfg:     cfg,
		metrics: m,
	}
}

func rateLimitKey(userID, path string) string {
	return fmt.Sprintf("rate_limit:%s:%s", userID, path)
}

// retryAfterSeconds rounds up so a client never retries before the reset.
func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

// RateLimit must run after AuthMiddleware. A store failure answers 500
// rather than letting the request through.
func (rl *RateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := services.IdentityFromContext(r.Context())
		if !ok {
			response.ErrorMessage(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ceiling := rl.cfg.CeilingFor(identity.Roles)
		if ceiling < 0 {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := rateLimitKey(identity.UserID.String(), r.URL.Path)

		admitted, err := rl.limiter.Admit(ctx, key, ceiling, rl.cfg.Window)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		status, err := rl.limiter.RemainingAndReset(ctx, key, ceiling, rl.cfg.Window)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(status.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(status.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(status.ResetAt.Unix(), 10))

		if !admitted {
			rl.metrics.RecordRateLimitRejection(endpointOf(r))
			logger.WithContext(ctx).WithFields(logrus.Fields{
				"user_id": identity.UserID.String(),
				"path":    r.URL.Path,
				"limit":   ceiling,
			}).Warn("Rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(status.RetryAfter)))
			response.ErrorMessage(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
