package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	trixerrors "trix/internal/errors"
	"trix/internal/logging"
)

func observedLogger() (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &logging.Logger{Logger: zap.New(core)}, logs
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "from-client")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "from-client", seen)
		assert.Equal(t, "from-client", rec.Header().Get(RequestIDHeader))
	})
}

type failureBody struct {
	Error struct {
		Type    trixerrors.ErrorType `json:"type"`
		Message string               `json:"message"`
	} `json:"error"`
}

func decodeFailure(t *testing.T, rec *httptest.ResponseRecorder) failureBody {
	var body failureBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestReadOnly(t *testing.T) {
	h := ReadOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("history"))
	}))

	tests := []struct {
		method     string
		wantStatus int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodHead, http.StatusOK},
		{http.MethodPost, http.StatusMethodNotAllowed},
		{http.MethodPut, http.StatusMethodNotAllowed},
		{http.MethodDelete, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/log", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				return
			}
			assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
			body := decodeFailure(t, rec)
			assert.Equal(t, trixerrors.ErrorTypeValidation, body.Error.Type)
			assert.Contains(t, body.Error.Message, tt.method)
		})
	}
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
	}{
		{"success", http.StatusOK, zapcore.InfoLevel},
		{"client error", http.StatusNotFound, zapcore.WarnLevel},
		{"server error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := observedLogger()
			h := Chain(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte("short"))
				}),
				Logger(logger),
				RequestID,
			)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/log?limit=2", nil))

			entries := logs.FilterMessage("request completed").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, "/api/log", fields["path"])
			assert.Equal(t, "limit=2", fields["query"])
			assert.EqualValues(t, tt.status, fields["status"])
			assert.EqualValues(t, 5, fields["bytes"])
			assert.Equal(t, rec.Header().Get(RequestIDHeader), fields["request_id"])
		})
	}

	t.Run("implicit status", func(t *testing.T) {
		logger, logs := observedLogger()
		h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

		entries := logs.FilterMessage("request completed").All()
		require.Len(t, entries, 1)
		assert.EqualValues(t, http.StatusOK, entries[0].ContextMap()["status"])
	})
}

func TestRecover(t *testing.T) {
	t.Run("before the response starts", func(t *testing.T) {
		logger, logs := observedLogger()
		h := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/log", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, trixerrors.ErrorTypeIOFailure, decodeFailure(t, rec).Error.Type)

		entries := logs.FilterMessage("panic recovered").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "boom", entries[0].ContextMap()["panic"])
	})

	t.Run("after the response starts", func(t *testing.T) {
		logger, logs := observedLogger()
		h := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("partial"))
			panic("late")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/objects/abcd", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "partial", rec.Body.String())
		assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	})
}
