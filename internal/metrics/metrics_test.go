package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordAndExpose(t *testing.T) {
	m := New()

	m.RequestStarted()
	m.RequestFinished(http.MethodPost, "/api/bailian/chat/completions", http.StatusOK, 120*time.Millisecond)
	m.RecordAIRequest("qwen-max", "success", time.Second)
	m.RecordTokenUsage("qwen-max", 12, 30)
	m.RecordAuth("login", true)
	m.RecordRateLimitRejection("/api/bailian/chat/completions")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.aiRequests.WithLabelValues("qwen-max", "success")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.aiTokens.WithLabelValues("qwen-max", "output")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInProgress))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{"http_requests_total", "ai_token_usage_total", "auth_requests_total", "rate_limit_rejections_total"} {
		assert.True(t, strings.Contains(body, name), name)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RequestStarted()
		m.RequestFinished(http.MethodGet, "/health", 200, time.Millisecond)
		m.RecordAIRequest("qwen-max", "error", time.Second)
		m.RecordTokenUsage("qwen-max", 1, 1)
		m.RecordAuth("register", false)
		m.RecordRateLimitRejection("/x")
	})
}
