package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Provider struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	// Scope vacío => scope por defecto del proveedor.
	Scope string `yaml:"scope"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// IPs o CIDRs de proxies cuyo X-Forwarded-For se acepta. Vacío => ninguno.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	State struct {
		// >= 16 bytes. Vacío => clave aleatoria por proceso (sólo dev).
		Secret       string `yaml:"secret"`
		Issuer       string `yaml:"issuer"`
		CookieDomain string `yaml:"cookie_domain"`
	} `yaml:"state"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Rate struct {
		Enabled bool          `yaml:"enabled"`
		Limit   int           `yaml:"limit"`
		Window  time.Duration `yaml:"window"`
	} `yaml:"rate"`

	HTTP struct {
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"http"`

	Providers struct {
		GitHub    Provider `yaml:"github"`
		Google    Provider `yaml:"google"`
		Microsoft struct {
			Provider `yaml:",inline"`
			Tenant   string `yaml:"tenant"`
		} `yaml:"microsoft"`
	} `yaml:"providers"`
}

// Default devuelve la configuración base, usada cuando no hay YAML.
func Default() *Config {
	var c Config
	c.Rate.Enabled = true
	c.Rate.Limit = 30
	c.Rate.Window = time.Minute
	c.applyDefaults()
	return &c
}

// Load lee path (opcional: si no existe se usan defaults), aplica overrides
// por env y valida.
func Load(path string) (*Config, error) {
	c := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.State.Issuer == "" {
		c.State.Issuer = "oauthgate"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "oauthgate"
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 10 * time.Second
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "oauthgate"
	}
	if c.Providers.Microsoft.Tenant == "" {
		c.Providers.Microsoft.Tenant = "common"
	}
}

// SecureCookies decide el flag Secure de la cookie de estado: sólo dev y
// test corren en local sobre http plano.
func (c *Config) SecureCookies() bool {
	switch strings.ToLower(strings.TrimSpace(c.App.Env)) {
	case "dev", "test":
		return false
	}
	return true
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.App.Env) {
	case "dev", "staging", "prod", "production", "test":
	default:
		return fmt.Errorf("app.app_env inválido: %q", c.App.Env)
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return errors.New("cache.redis.addr requerido con cache.kind=redis")
		}
	default:
		return fmt.Errorf("cache.kind inválido: %q", c.Cache.Kind)
	}
	if c.Rate.Limit < 0 || c.Rate.Window < 0 {
		return errors.New("rate.limit y rate.window deben ser positivos")
	}
	if c.Rate.Enabled && (c.Rate.Limit == 0 || c.Rate.Window == 0) {
		return errors.New("rate.limit y rate.window deben ser > 0; usar rate.enabled=false para desactivar")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("http.timeout debe ser positivo")
	}
	if s := c.State.Secret; s != "" && len(s) < 16 {
		return errors.New("state.secret debe tener al menos 16 bytes")
	}
	if c.SecureCookies() && c.State.Secret == "" {
		return fmt.Errorf("state.secret requerido con app_env=%s", c.App.Env)
	}

	checks := []struct {
		name string
		p    Provider
	}{
		{"github", c.Providers.GitHub},
		{"google", c.Providers.Google},
		{"microsoft", c.Providers.Microsoft.Provider},
	}
	for _, ck := range checks {
		if err := ck.p.validate(); err != nil {
			return fmt.Errorf("providers.%s: %w", ck.name, err)
		}
	}
	return nil
}

// TrustedProxyPrefixes parsea server.trusted_proxies; una IP suelta vale como /32 o /128.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.Server.TrustedProxies))
	for _, raw := range c.Server.TrustedProxies {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("server.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func (p Provider) validate() error {
	if !p.Enabled {
		return nil
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return errors.New("client_id requerido")
	}
	if strings.TrimSpace(p.ClientSecret) == "" {
		return errors.New("client_secret requerido")
	}
	u, err := url.Parse(p.RedirectURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("redirect_url inválido: %q", p.RedirectURL)
	}
	return nil
}

// Enabled devuelve las claves de los proveedores habilitados.
func (c *Config) Enabled() []string {
	var out []string
	if c.Providers.GitHub.Enabled {
		out = append(out, "github")
	}
	if c.Providers.Google.Enabled {
		out = append(out, "google")
	}
	if c.Providers.Microsoft.Enabled {
		out = append(out, "microsoft")
	}
	return out
}

// ───────── env helpers ─────────

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func (p *Provider) applyEnv(prefix string) {
	if v, ok := getEnvBool(prefix + "_ENABLED"); ok {
		p.Enabled = v
	}
	if v, ok := getEnvStr(prefix + "_CLIENT_ID"); ok {
		p.ClientID = v
		// Con credenciales en env y sin flag explícito, se habilita.
		if _, set := getEnvStr(prefix + "_ENABLED"); !set {
			p.Enabled = true
		}
	}
	if v, ok := getEnvStr(prefix + "_CLIENT_SECRET"); ok {
		p.ClientSecret = v
	}
	if v, ok := getEnvStr(prefix + "_REDIRECT_URL"); ok {
		p.RedirectURL = v
	}
	if v, ok := getEnvStr(prefix + "_SCOPE"); ok {
		p.Scope = v
	}
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	if v, ok := getEnvStr("TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = strings.Split(v, ",")
	}

	if v, ok := getEnvStr("STATE_SECRET"); ok {
		c.State.Secret = v
	}
	if v, ok := getEnvStr("STATE_ISSUER"); ok {
		c.State.Issuer = v
	}
	if v, ok := getEnvStr("STATE_COOKIE_DOMAIN"); ok {
		c.State.CookieDomain = v
	}

	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LIMIT"); ok {
		c.Rate.Limit = v
	}
	if v, ok := getEnvDur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}

	if v, ok := getEnvDur("HTTP_TIMEOUT"); ok {
		c.HTTP.Timeout = v
	}
	if v, ok := getEnvStr("HTTP_USER_AGENT"); ok {
		c.HTTP.UserAgent = v
	}

	c.Providers.GitHub.applyEnv("GITHUB")
	c.Providers.Google.applyEnv("GOOGLE")
	c.Providers.Microsoft.applyEnv("MICROSOFT")
	if v, ok := getEnvStr("MICROSOFT_TENANT"); ok {
		c.Providers.Microsoft.Tenant = v
	}
}
