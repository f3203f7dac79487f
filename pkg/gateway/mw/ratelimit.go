package mw

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dostvoice/relay/pkg/gateway/apierror"
	"github.com/dostvoice/relay/pkg/gateway/ratelimit"
)

// RateLimit applies the per-client limiter. Health checks and CORS
// preflights pass through unmetered.
func RateLimit(limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		dec := limiter.Allow(clientKey(r), time.Now())
		if !dec.Allowed {
			if dec.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(dec.RetryAfter))
			}
			e := apierror.New(apierror.CodeQuotaExceeded, http.StatusTooManyRequests,
				"Too many requests. Please try again later.")
			apierror.WriteJSON(w, e, false)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller for limiting. The first X-Forwarded-For
// hop wins when present so limits follow the browser, not the proxy.
func clientKey(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if comma := strings.Index(fwd, ","); comma >= 0 {
			fwd = fwd[:comma]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
