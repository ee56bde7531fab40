package middlewares

import (
	"net/http"
	"strconv"

	"github.com/dropDatabas3/oauthgate/internal/http/helpers"
	"github.com/dropDatabas3/oauthgate/internal/metrics"
	"github.com/dropDatabas3/oauthgate/internal/observability/logger"
	"github.com/dropDatabas3/oauthgate/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPRateKey limita por IP de cliente y path.
func IPRateKey(r *http.Request) string {
	return ClientIP(r) + "|" + r.URL.Path
}

// WithRateLimit rechaza con 429 cuando lim no permite el request. Fail-open
// si el backend del limiter falla.
func WithRateLimit(lim rate.Limiter, route string, key RateKeyFunc) Middleware {
	if key == nil {
		key = IPRateKey
	}
	return func(next http.Handler) http.Handler {
		if lim == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := lim.Allow(r.Context(), key(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				metrics.RateLimit(route)
				secs := int(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				helpers.WriteJSON(w, http.StatusTooManyRequests, helpers.ErrorBody{Error: "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
