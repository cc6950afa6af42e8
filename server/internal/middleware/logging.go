package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/absentia/absentia/internal/auth"
	"github.com/absentia/absentia/internal/pkg/idgen"
	"github.com/absentia/absentia/internal/pkg/logger"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// LogRequest emits one structured access-log line per request. Each request
// gets a generated ID, returned to the client as X-Request-ID.
func LogRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip logging health checks to reduce noise
		if r.URL.Path == "/health" || r.URL.Path == "/readiness" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		requestID := idgen.GenerateID()
		w.Header().Set("X-Request-ID", requestID)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     200, // default if WriteHeader not called
		}

		next.ServeHTTP(wrapped, r)

		// Get real IP (consider X-Forwarded-For if behind proxy)
		clientIP := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			clientIP = forwarded
		} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			clientIP = realIP
		}

		log := logger.WithHTTPRequest(slog.Default(), r.Method, r.URL.Path)
		log = logger.WithRequest(log, requestID)
		log = logger.WithDuration(log, time.Since(start))
		if identity, err := auth.IdentityFromContext(r.Context()); err == nil {
			log = logger.WithUser(log, identity.UserID)
		}

		attrs := []any{
			slog.Int("status", wrapped.statusCode),
			slog.Int64("bytes", wrapped.written),
			slog.String("client_ip", clientIP),
			slog.String("user_agent", r.UserAgent()),
		}
		if r.URL.RawQuery != "" {
			attrs = append(attrs, slog.String("query", r.URL.RawQuery))
		}

		if wrapped.statusCode >= 500 {
			log.Error("request completed", attrs...)
		} else {
			log.Info("request completed", attrs...)
		}
	})
}
