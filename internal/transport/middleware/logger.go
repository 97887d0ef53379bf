package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

type actorSlotKey struct{}

// actorSlot is filled in by Auth, which runs inside Logger, so the access log
// line can name the actor.
type actorSlot struct {
	id string
}

// Logger writes one "http.request" record per request. 5xx responses log at
// error level and 429 at warn.
func Logger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rw := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			slot := &actorSlot{}

			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), actorSlotKey{}, slot)))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.status),
				slog.Int("bytes", rw.bytes),
				slog.Duration("duration", time.Since(started)),
				slog.String("request_id", ctxutil.RequestIDFromCtx(r.Context())),
			}
			if id := actorID(r.Context(), slot); id != "" {
				attrs = append(attrs, slog.String("actor_id", id))
			}
			logger.LogAttrs(r.Context(), levelFor(rw.status), "http.request", attrs...)
		})
	}
}

func actorID(ctx context.Context, slot *actorSlot) string {
	if slot.id != "" {
		return slot.id
	}
	if id, ok := ctxutil.UserIDFromCtx(ctx); ok {
		return id.String()
	}
	return ""
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusTooManyRequests:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// responseRecorder remembers the first status code and counts body bytes.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status, w.wroteHeader = code, true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *responseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
