package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"bailian-gateway/internal/logger"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const readinessTimeout = 3 * time.Second

// Pinger is any dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthCheckResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Uptime       string            `json:"uptime,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

type HealthController struct {
	db        *gorm.DB
	cache     Pinger
	now       func() time.Time
	startTime time.Time
}

func NewHealthController(db *gorm.DB, cache Pinger) *HealthController {
	return &HealthController{db: db, cache: cache, now: time.Now, startTime: time.Now()}
}

// Health reports that the process is up and for how long.
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	now := c.now()
	respondWithJSON(w, http.StatusOK, HealthCheckResponse{
		Status:    "healthy",
		Timestamp: now.UTC(),
		Uptime:    now.Sub(c.startTime).Round(time.Second).String(),
	})
}

func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, HealthCheckResponse{Status: "alive", Timestamp: c.now().UTC()})
}

// Ready checks the database and the shared store concurrently and answers
// 503 when either is unreachable.
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	var mu sync.Mutex
	deps := make(map[string]string)
	report := func(name string, err error) error {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			deps[name] = "unavailable"
			logger.WithContext(ctx).WithError(err).WithField("dependency", name).Warn("Readiness check failed")
			return err
		}
		deps[name] = "ok"
		return nil
	}

	var g errgroup.Group
	g.Go(func() error {
		sqlDB, err := c.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		return report("database", err)
	})
	g.Go(func() error {
		return report("cache", c.cache.Ping(ctx))
	})

	response := HealthCheckResponse{Status: "ready", Timestamp: c.now().UTC()}
	status := http.StatusOK
	if err := g.Wait(); err != nil {
		response.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	response.Dependencies = deps

	respondWithJSON(w, status, response)
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
