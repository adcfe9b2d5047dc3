package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const requestInfoKey contextKey = "request_info"

// requestInfo is filled in by inner middleware so the completion log can
// report it.
type requestInfo struct {
	sessionID string
}

func noteSessionID(ctx context.Context, sessionID string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.sessionID = sessionID
	}
}

// LoggingMiddleware logs HTTP requests and responses
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			info := &requestInfo{}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey, info))

			logger.Debug("Request started",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			if info.sessionID != "" {
				fields = append(fields, zap.String("session_id", info.sessionID))
			}

			switch {
			case ww.Status() >= 500:
				logger.Error("Request completed", fields...)
			case ww.Status() >= 400:
				logger.Warn("Request completed", fields...)
			default:
				logger.Info("Request completed", fields...)
			}
		})
	}
}
