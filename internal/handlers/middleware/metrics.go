package middleware

import (
	"net/http"
	"time"
)

type httpObserver interface {
	ObserveHTTP(method string, status int, duration time.Duration)
}

func MetricsMiddleware(o httpObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			o.ObserveHTTP(r.Method, rec.status, time.Since(start))
		})
	}
}
