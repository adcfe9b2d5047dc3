package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

// SessionHeader carries the session token for clients that cannot set
// Authorization.
const SessionHeader = "X-Session-Token"

// SessionResolver validates a session token and returns its session id.
type SessionResolver func(token string) (string, error)

// SessionMiddleware requires a valid session token and stores the session id
// in the request context.
func SessionMiddleware(resolve SessionResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := sessionToken(r)
			if !ok {
				logger.Debug("Missing session token")
				RespondWithErrorCode(w, http.StatusUnauthorized, "session_required", "missing session token", nil)
				return
			}

			sessionID, err := resolve(token)
			if err != nil {
				logger.Debug("Session token rejected", zap.Error(err))
				RespondWithErrorCode(w, http.StatusUnauthorized, "session_invalid", "invalid or expired session token", nil)
				return
			}

			noteSessionID(r.Context(), sessionID)
			ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) (string, bool) {
	if token := strings.TrimSpace(r.Header.Get(SessionHeader)); token != "" {
		return token, true
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1]), true
	}
	return "", false
}

// GetSessionID extracts the session id from request context
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDKey).(string)
	return id, ok && id != ""
}

// OpsKeyMiddleware guards operator endpoints with a shared key. An empty key
// disables the endpoints entirely.
func OpsKeyMiddleware(key string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				RespondWithError(w, http.StatusNotFound, "not found")
				return
			}
			given := r.Header.Get("X-Ops-Key")
			if subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
				logger.Warn("Rejected operator request",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				RespondWithError(w, http.StatusForbidden, "operator key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
