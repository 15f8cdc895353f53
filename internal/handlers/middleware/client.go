package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/nkiryanov/habitus/internal/handlers/userctx"
)

// Put client ip and user agent to request context
// Forwarding headers are honored only when trustProxy is set
func ClientMiddleware(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := userctx.WithClient(r.Context(), userctx.Client{
				IP:        ClientIP(r, trustProxy),
				UserAgent: r.UserAgent(),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Client address
// Behind a trusted proxy: first X-Forwarded-For entry, then X-Real-IP, then the peer address.
// Otherwise the peer address only, headers are set by the client and can't be trusted.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedIP(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func forwardedIP(header string) string {
	first, _, _ := strings.Cut(header, ",")
	if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
		return ip.String()
	}
	return ""
}
