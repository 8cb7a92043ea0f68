package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// errorCode carries the domain error code behind a failed response from the
// envelope writer back to the request logger. One holder per request; it is
// written at most once, before the response body.
type errorCode struct {
	code string
}

const errorCodeKey contextKey = "error_code"

// RecordErrorCode notes the domain error code that produced the response so
// the request log line says why a request failed, not just that it did.
// No-op when the request logger is not installed.
func RecordErrorCode(ctx context.Context, code string) {
	if holder, ok := ctx.Value(errorCodeKey).(*errorCode); ok {
		holder.code = code
	}
}

// RequestLogger logs each completed request: method, path, status, size,
// duration, the correlation id echoed in error envelopes, and the domain
// error code when the response carried one.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		holder := &errorCode{}
		ctx := context.WithValue(r.Context(), errorCodeKey, holder)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		level := slog.LevelInfo
		if ww.Status() >= 500 {
			level = slog.LevelError
		} else if ww.Status() >= 400 {
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"correlation_id", middleware.GetReqID(r.Context()),
			"ip", r.RemoteAddr,
		}
		if holder.code != "" {
			attrs = append(attrs, "error_code", holder.code)
		}

		slog.Log(r.Context(), level, "http_request", attrs...)
	})
}
