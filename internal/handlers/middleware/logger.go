package middleware

import (
	"net/http"
	"time"

	"github.com/nkiryanov/habitus/internal/handlers/userctx"
)

type logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Captures status and body size written by the next handler
type statusRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	w.wroteHeader = true
	size, err := w.ResponseWriter.Write(p)
	w.size += size
	return size, err
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.status = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// Let http.ResponseController reach the wrapped writer
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Access log entry per request, level follows the response status
// Client ip is taken from ClientMiddleware when it runs before, peer address otherwise
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			ip := userctx.ClientFromContext(r.Context()).IP
			if ip == "" {
				ip = ClientIP(r, false)
			}

			log := l.Info
			switch {
			case rec.status >= http.StatusInternalServerError:
				log = l.Error
			case rec.status >= http.StatusBadRequest:
				log = l.Warn
			}

			log(
				"got HTTP request",
				"method", r.Method,
				"uri", r.RequestURI,
				"duration", time.Since(start),
				"status", rec.status,
				"size", rec.size,
				"client_ip", ip,
				"user_agent", r.UserAgent(),
			)
		})
	}
}
