package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockHealthChecker implements HealthChecker for testing.
type mockHealthChecker struct {
	liveness  bool
	readiness bool
	status    map[string]string
}

func (m *mockHealthChecker) Liveness() bool                 { return m.liveness }
func (m *mockHealthChecker) Readiness(context.Context) bool { return m.readiness }
func (m *mockHealthChecker) Status() map[string]string      { return m.status }

func TestLivenessHandler(t *testing.T) {
	tests := []struct {
		name       string
		liveness   bool
		wantCode   int
		wantStatus string
	}{
		{name: "alive", liveness: true, wantCode: http.StatusOK, wantStatus: "alive"},
		{name: "not alive", liveness: false, wantCode: http.StatusServiceUnavailable, wantStatus: "not alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := LivenessHandler(&mockHealthChecker{liveness: tt.liveness}, zap.NewNop())

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.NotEmpty(t, resp.Timestamp)
			assert.Nil(t, resp.Checks)
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	status := map[string]string{
		"consumer":             "ready",
		"cache.producer_bytes": "1024",
		"cache.dropped":        "0",
	}

	tests := []struct {
		name       string
		readiness  bool
		wantCode   int
		wantStatus string
	}{
		{name: "ready", readiness: true, wantCode: http.StatusOK, wantStatus: "ready"},
		{name: "not ready", readiness: false, wantCode: http.StatusServiceUnavailable, wantStatus: "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := ReadinessHandler(&mockHealthChecker{readiness: tt.readiness, status: status}, zap.NewNop())

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, status, resp.Checks)
		})
	}
}
