package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
func LivenessHandler(checker HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response := HealthResponse{Status: "alive"}
		statusCode := http.StatusOK

		if !checker.Liveness() {
			response.Status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, response, logger)
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
// The body carries the checker's status, including cache occupancy.
func ReadinessHandler(checker HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{Status: "ready", Checks: checker.Status()}
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			response.Status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, response, logger)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, response HealthResponse, logger *zap.Logger) {
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", zap.Error(err))
	}
}
