package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func TestReadiness(t *testing.T) {
	db, err := database.InitDB(config.DatabaseConfig{Driver: database.DriverSQLite, URL: "file::memory:"}, config.AdminConfig{})
	require.NoError(t, err)

	cases := []struct {
		name     string
		cache    Pinger
		status   int
		cacheDep string
	}{
		{"all up", fakePinger{}, http.StatusOK, "ok"},
		{"cache down", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthController(db, tc.cache).Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tc.status, rec.Code)
			var body HealthCheckResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "ok", body.Dependencies["database"])
			assert.Equal(t, tc.cacheDep, body.Dependencies["cache"])
		})
	}
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthController(nil, fakePinger{}).Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestHealthReportsUptime(t *testing.T) {
	c := NewHealthController(nil, fakePinger{})
	c.now = func() time.Time { return c.startTime.Add(90 * time.Second) }

	rec := httptest.NewRecorder()
	c.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "1m30s", body.Uptime)
}
