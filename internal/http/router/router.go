// Package router arma el http.Handler del servicio sobre chi.
package router

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/oauthgate/internal/http/helpers"
	mw "github.com/dropDatabas3/oauthgate/internal/http/middlewares"
	"github.com/dropDatabas3/oauthgate/internal/http/social"
	"github.com/dropDatabas3/oauthgate/internal/observability/logger"
	"github.com/dropDatabas3/oauthgate/internal/rate"
)

// Pinger es cualquier backend que /healthz puede verificar.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps contiene las dependencias del router. Social es obligatorio.
type Deps struct {
	Social  *social.Handler
	Limiter rate.Limiter // opcional: rate limit por IP en /auth/*
	Health  Pinger       // opcional: backend del ledger
	Metrics http.Handler // opcional: /metrics
	// TrustedProxies habilita X-Forwarded-For para esas redes. Vacío => RemoteAddr.
	TrustedProxies []netip.Prefix
}

// New registra todas las rutas.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.Std(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithRealIP(d.TrustedProxies),
		mw.WithLogging(),
	)...)

	r.Get("/healthz", healthHandler(d.Health))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	var authChain []func(http.Handler) http.Handler
	if d.Limiter != nil {
		authChain = mw.Std(mw.WithRateLimit(d.Limiter, "auth", mw.IPRateKey))
	}
	d.Social.Routes(r, authChain...)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteJSON(w, http.StatusNotFound, helpers.ErrorBody{Error: "not found"})
	})
	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				logger.From(r.Context()).Warn("healthz: ledger unavailable", logger.Err(err))
				helpers.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
