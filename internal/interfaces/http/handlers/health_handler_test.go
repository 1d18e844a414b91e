package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okCheck(name string) HealthChecker {
	return NewCheck(name, func(context.Context) error { return nil })
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler("1.2.3", NewCheck("redis", func(context.Context) error { return errors.New("down") }))
	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		checkers []HealthChecker
		code     int
		status   string
	}{
		{"no checkers", nil, http.StatusOK, "ready"},
		{"all healthy", []HealthChecker{okCheck("redis"), okCheck("minio")}, http.StatusOK, "ready"},
		{"one failing", []HealthChecker{
			okCheck("redis"),
			NewCheck("minio", func(context.Context) error { return errors.New("bucket missing") }),
		}, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("dev", tt.checkers...)
			w := httptest.NewRecorder()
			h.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.code, w.Code)
			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Components, len(tt.checkers))
		})
	}
}

func TestHealthHandler_Detailed(t *testing.T) {
	h := NewHealthHandler("dev",
		okCheck("redis"),
		NewCheck("kafka", func(context.Context) error { return errors.New("no brokers") }))
	w := httptest.NewRecorder()
	h.Detailed(w, httptest.NewRequest(http.MethodGet, "/healthz/detail", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp DetailedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "healthy", resp.Components["redis"].Status)
	assert.Equal(t, "no brokers", resp.Components["kafka"].Error)
}

//Personal.AI order the ending
