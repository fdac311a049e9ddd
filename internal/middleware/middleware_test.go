package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/metrics"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// asIdentity injects an identity the way AuthMiddleware would.
func asIdentity(identity *services.Identity, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := &models.User{ID: identity.UserID, Username: identity.Username, Roles: identity.Roles}
		next.ServeHTTP(w, r.WithContext(services.WithIdentityContext(r.Context(), identity, user)))
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCorrelationMiddleware(t *testing.T) {
	var seen string
	handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(CorrelationIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := CorrelationMiddleware(RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "Internal server error", body["message"])
	assert.Equal(t, rec.Header().Get(CorrelationIDHeader), body["correlation_id"])
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	m := metrics.New()
	handler := LoggingMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRequireRole(t *testing.T) {
	handler := AdminMiddleware()(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	user := &services.Identity{UserID: uuid.New(), Roles: models.Roles{models.RoleUser}}
	rec = httptest.NewRecorder()
	asIdentity(user, handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := &services.Identity{UserID: uuid.New(), Roles: models.Roles{models.RoleUser, models.RoleAdmin}}
	rec = httptest.NewRecorder()
	asIdentity(admin, handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ExtractBearerToken(req))

	req.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", ExtractBearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractBearerToken(req))
}

func newTestRateLimiter(ceiling int) *RateLimiter {
	cfg := &config.RateLimitConfig{
		Limits: map[models.Role]int{
			models.RoleUser:  ceiling,
			models.RoleAdmin: config.Unlimited,
		},
		Window: time.Minute,
	}
	return NewRateLimiter(services.NewRateLimiter(services.NewMemoryRateLimitStore()), cfg, metrics.New())
}

func TestRateLimitHeadersAndRejection(t *testing.T) {
	rl := newTestRateLimiter(3)
	identity := &services.Identity{UserID: uuid.New(), Roles: models.Roles{models.RoleUser}}
	handler := asIdentity(identity, rl.RateLimit(okHandler))

	for i := 1; i <= 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bailian/chat/completions", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"2", "1", "0"}[i-1], rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bailian/chat/completions", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.EqualValues(t, http.StatusTooManyRequests, decodeEnvelope(t, rec)["code"])

	// Retry-After points at the same instant as X-RateLimit-Reset.
	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, reset-time.Now().Unix(), retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 60)

	// Another route has its own window.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bailian/generation", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitUnlimitedRoleSkipsHeaders(t *testing.T) {
	rl := newTestRateLimiter(1)
	admin := &services.Identity{UserID: uuid.New(), Roles: models.Roles{models.RoleUser, models.RoleAdmin}}
	handler := asIdentity(admin, rl.RateLimit(okHandler))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usage", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{-time.Second, 1},
		{300 * time.Millisecond, 1},
		{1500 * time.Millisecond, 2},
		{59*time.Second + time.Millisecond, 60},
		{time.Minute, 60},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, retryAfterSeconds(tc.in), tc.in.String())
	}
}

func TestRateLimitNegativeCeilingSkipsHeaders(t *testing.T) {
	rl := newTestRateLimiter(-5)
	identity := &services.Identity{UserID: uuid.New(), Roles: models.Roles{models.RoleUser}}
	handler := asIdentity(identity, rl.RateLimit(okHandler))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bailian/chat/completions", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
		assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}
}
