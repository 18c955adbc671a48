package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/metrics"
)

// Limiter decides whether a client may make another request.
// *ratelimit.Limiter implements it.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// RateLimit throttles /api/ requests per client address and answers 429
// with Retry-After when a client is over its budget. With trustProxy the
// first X-Forwarded-For entry identifies the client. m may be nil.
func RateLimit(limiter Limiter, trustProxy bool, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			client := clientAddr(r, trustProxy)
			ok, wait := limiter.Allow(client)
			if !ok {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				logger.FromContext(r.Context()).Warn("rate limit exceeded", "client", client, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
