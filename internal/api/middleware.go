package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pplcallmesatz/gst-auditor-report/internal/app"
)

// InternalAuthMiddleware requires the shared internal API key on admin routes.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Internal-API-Key")
			if requiredKey == "" || provided == "" || provided != requiredKey {
				respondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ActivityMiddleware opportunistically runs an attempt on unrelated traffic, at
// most once per interval. The attempt runs in the background and never delays the
// request.
func ActivityMiddleware(trigger Trigger, interval time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	var last atomic.Int64
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			prev := last.Load()
			if now.UnixNano()-prev >= interval.Nanoseconds() && last.CompareAndSwap(prev, now.UnixNano()) {
				go func() {
					if _, err := trigger.Attempt(context.Background(), app.SourceActivity, now); err != nil {
						logger.Warn("activity-triggered report attempt failed", "error", err)
					}
				}()
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP prefers the first X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
