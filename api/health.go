package api

import (
	"net/http"
	"time"

	"taskchat/chat"
	"taskchat/config"
	"taskchat/logger"
)

var startTime = time.Now()

// HealthResponse provides detailed health information
type HealthResponse struct {
	Status      string   `json:"status"`
	Timestamp   string   `json:"timestamp"`
	Uptime      string   `json:"uptime"`
	Version     string   `json:"version,omitempty"`
	Store       string   `json:"store"`
	Interpreter string   `json:"interpreter"`
	Actions     []string `json:"actions"`
}

// NewHealthHandler returns a health check handler
func NewHealthHandler(cfg *config.Config, registry *chat.HandlerRegistry, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{
			Status:      "healthy",
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Uptime:      time.Since(startTime).String(),
			Version:     cfg.Version,
			Store:       cfg.StoreBackend,
			Interpreter: cfg.Interpreter,
			Actions:     registry.Kinds(),
		}, lg)
	}
}
