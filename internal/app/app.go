// Package app construye el contenedor del servicio a partir de la config.
package app

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/oauthgate/internal/cache"
	"github.com/dropDatabas3/oauthgate/internal/config"
	"github.com/dropDatabas3/oauthgate/internal/http/router"
	"github.com/dropDatabas3/oauthgate/internal/http/social"
	"github.com/dropDatabas3/oauthgate/internal/metrics"
	"github.com/dropDatabas3/oauthgate/internal/oauth"
	"github.com/dropDatabas3/oauthgate/internal/oauth/github"
	"github.com/dropDatabas3/oauthgate/internal/oauth/google"
	"github.com/dropDatabas3/oauthgate/internal/oauth/microsoft"
	"github.com/dropDatabas3/oauthgate/internal/rate"
	"github.com/dropDatabas3/oauthgate/internal/security/statetoken"
)

// Container agrupa lo construido por Build.
type Container struct {
	Handler   http.Handler
	Ledger    *cache.Ledger
	Social    *social.Handler
	Providers []string

	cache cache.Client
}

// Options permite a tests y al CLI inyectar piezas.
type Options struct {
	// Registerer para las métricas; nil => prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Gatherer servido en /metrics; nil => prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// HTTPClient para las llamadas a proveedores; nil => uno con cfg.HTTP.Timeout.
	HTTPClient *http.Client
	// Hooks del callback; nil => respuestas por defecto.
	OnSuccess social.SuccessHandler
	OnError   social.ErrorHandler
}

// Build crea ledger, limiter, codec, flows y router.
func Build(cfg *config.Config, log *zap.Logger, opts Options) (*Container, error) {
	if log == nil {
		log = zap.NewNop()
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gat := opts.Gatherer
	if gat == nil {
		gat = prometheus.DefaultGatherer
	}
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	c := &Container{}
	limiter, err := c.buildStorage(cfg)
	if err != nil {
		return nil, err
	}

	secret := []byte(cfg.State.Secret)
	if len(secret) == 0 && cfg.SecureCookies() {
		_ = c.Close()
		return nil, fmt.Errorf("state.secret requerido con app_env=%s", cfg.App.Env)
	}
	if len(secret) == 0 {
		log.Warn("state.secret vacío: clave aleatoria, los states no sobreviven un reinicio")
		secret = statetoken.RandomSecret()
	}
	codec, err := statetoken.New(secret, cfg.State.Issuer)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.HTTP.Timeout}
	}
	client := oauth.NewClient(oauth.WithHTTPClient(hc), oauth.WithUserAgent(cfg.HTTP.UserAgent))

	c.Social = social.New(
		social.WithSecureCookies(cfg.SecureCookies()),
		social.WithCookieDomain(cfg.State.CookieDomain),
		social.WithSuccessHandler(opts.OnSuccess),
		social.WithErrorHandler(opts.OnError),
	)
	for _, b := range bindings(cfg) {
		if !b.p.Enabled {
			continue
		}
		creds := oauth.Credentials{
			ClientID:     b.p.ClientID,
			ClientSecret: b.p.ClientSecret,
			RedirectURI:  b.p.RedirectURL,
		}
		flow, err := oauth.NewFlow(b.desc, creds, client, codec, oauth.WithLedger(c.Ledger))
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("provider %s: %w", b.desc.Key, err)
		}
		if err := c.Social.Register(social.Provider{Flow: flow}); err != nil {
			_ = c.Close()
			return nil, err
		}
		c.Providers = append(c.Providers, b.desc.Key)
		log.Info("oauth provider enabled", zap.String("provider", b.desc.Key))
	}
	if len(c.Providers) == 0 {
		log.Warn("ningún proveedor OAuth habilitado")
	}

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Handler = router.New(router.Deps{
		Social:         c.Social,
		Limiter:        limiter,
		Health:         c.Ledger,
		Metrics:        promhttp.HandlerFor(gat, promhttp.HandlerOpts{}),
		TrustedProxies: proxies,
	})
	return c, nil
}

func (c *Container) buildStorage(cfg *config.Config) (rate.Limiter, error) {
	prefix := cfg.Cache.Redis.Prefix
	cc, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	c.cache = cc
	c.Ledger = cache.NewLedger(cc)
	if !cfg.Rate.Enabled {
		return nil, nil
	}
	if rc, ok := cc.(interface{ Redis() *redis.Client }); ok {
		return rate.NewRedisLimiter(rc.Redis(), prefix+":rl:", cfg.Rate.Limit, cfg.Rate.Window), nil
	}
	return rate.NewMemoryLimiter(cfg.Rate.Limit, cfg.Rate.Window), nil
}

// Close libera el backend del ledger.
func (c *Container) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}

type binding struct {
	desc oauth.Descriptor
	p    config.Provider
}

func bindings(cfg *config.Config) []binding {
	ms := cfg.Providers.Microsoft
	return []binding{
		{github.Descriptor(cfg.Providers.GitHub.Scope), cfg.Providers.GitHub},
		{google.Descriptor(cfg.Providers.Google.Scope), cfg.Providers.Google},
		{microsoft.Descriptor(ms.Tenant, ms.Scope), ms.Provider},
	}
}
