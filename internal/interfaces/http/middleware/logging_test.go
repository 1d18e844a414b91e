package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/testutil"
)

func handlerWithStatus(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte("body"))
	})
}

func TestRequestLogging_Levels(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		level string
		msg   string
	}{
		{"ok", http.StatusOK, "debug", "HTTP request completed"},
		{"client error", http.StatusNotFound, "warn", "HTTP request completed with client error"},
		{"server error", http.StatusBadGateway, "error", "HTTP request completed with server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := testutil.NewMockLogger()
			h := RequestLogging(logger, LoggingConfig{})(handlerWithStatus(tt.code))

			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			req.Header.Set("X-Request-Id", "req-1")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			assert.True(t, logger.HasMessage(tt.level, tt.msg))
			status, ok := logger.FieldValue(tt.level, tt.msg, "status")
			assert.True(t, ok)
			assert.Equal(t, tt.code, status)
			bytes, _ := logger.FieldValue(tt.level, tt.msg, "bytes")
			assert.Equal(t, int64(4), bytes)
			id, _ := logger.FieldValue(tt.level, tt.msg, "request_id")
			assert.Equal(t, "req-1", id)
		})
	}
}

func TestRequestLogging_SkipPaths(t *testing.T) {
	logger := testutil.NewMockLogger()
	h := RequestLogging(logger, DefaultLoggingConfig())(handlerWithStatus(http.StatusOK))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, logger.GetMessages())
}

func TestRequestLogging_Slow(t *testing.T) {
	logger := testutil.NewMockLogger()
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
	})
	h := RequestLogging(logger, LoggingConfig{SlowThreshold: time.Millisecond})(slow)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.True(t, logger.HasMessage("warn", "HTTP request completed (slow)"))
}

func TestWrappedResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newWrappedResponseWriter(rec)
	w.WriteHeader(http.StatusAccepted)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("ab"))

	assert.Equal(t, http.StatusAccepted, w.statusCode)
	assert.Equal(t, int64(2), w.bytesWritten)
}

//Personal.AI order the ending
