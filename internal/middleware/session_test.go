package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func resolveFixed(token string) (string, error) {
	if token == "good-token" {
		return "session-1", nil
	}
	return "", errors.New("bad token")
}

func TestSessionMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
		wantID     string
	}{
		{"session header", SessionHeader, "good-token", http.StatusOK, "session-1"},
		{"bearer header", "Authorization", "Bearer good-token", http.StatusOK, "session-1"},
		{"lowercase bearer", "Authorization", "bearer good-token", http.StatusOK, "session-1"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"basic auth ignored", "Authorization", "Basic Zm9vOmJhcg==", http.StatusUnauthorized, ""},
		{"invalid token", SessionHeader, "forged", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			handler := SessionMiddleware(resolveFixed, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = GetSessionID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/studio/cart", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if gotID != tt.wantID {
				t.Errorf("expected session id %q, got %q", tt.wantID, gotID)
			}
		})
	}
}

func TestLoggingMiddlewareReportsSessionID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := LoggingMiddleware(logger)(SessionMiddleware(resolveFixed, logger)(inner))

	req := httptest.NewRequest("DELETE", "/api/studio/cart", nil)
	req.Header.Set(SessionHeader, "good-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("Request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["session_id"]; got != "session-1" {
		t.Errorf("expected session_id session-1, got %v", got)
	}
}

func TestOpsKeyMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		key        string
		given      string
		wantStatus int
	}{
		{"disabled", "", "anything", http.StatusNotFound},
		{"missing key", "secret", "", http.StatusForbidden},
		{"wrong key", "secret", "guess", http.StatusForbidden},
		{"matching key", "secret", "secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/orders/undelivered", nil)
			if tt.given != "" {
				req.Header.Set("X-Ops-Key", tt.given)
			}
			w := httptest.NewRecorder()
			OpsKeyMiddleware(tt.key, zap.NewNop())(ok).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}
