package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports readiness of the engine's dependencies.
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks: make(map[string]HealthCheck),
		logger: logger,
	}
}

func (h *HealthHandler) Register(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed",
				zap.String("check", name),
				zap.Error(err),
			)
			results[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "healthy"
	}

	body := map[string]interface{}{
		"status": "healthy",
		"checks": results,
	}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
