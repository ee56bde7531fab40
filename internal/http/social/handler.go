// Package social mounts OAuth flows on a chi router:
//
//	GET /auth/providers             registered provider keys
//	GET /auth/{provider}            302 to the provider, sets {provider}_oauth_state
//	GET /auth/{provider}/callback   validates, exchanges, fetches identity
package social

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/oauthgate/internal/http/helpers"
	"github.com/dropDatabas3/oauthgate/internal/http/transport"
	"github.com/dropDatabas3/oauthgate/internal/oauth"
	"github.com/dropDatabas3/oauthgate/internal/observability/logger"
)

// SuccessHandler receives the identity of a completed flow and owns the response.
type SuccessHandler func(w http.ResponseWriter, r *http.Request, id *oauth.Identity)

// ErrorHandler receives exchange and fetch failures (*oauth.Error) and owns
// the response. Validation failures never reach it.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Provider is one registered flow with optional hooks. Nil hooks fall back to
// the Handler defaults, then to the built-in responses.
type Provider struct {
	Flow      *oauth.Flow
	OnSuccess SuccessHandler
	OnError   ErrorHandler
}

// Handler serves the initiate and callback routes for every registered provider.
type Handler struct {
	mu        sync.RWMutex
	providers map[string]Provider

	cookie    helpers.CookieOptions
	onSuccess SuccessHandler
	onError   ErrorHandler
}

// Option configures a Handler.
type Option func(*Handler)

// WithSecureCookies sets the Secure attribute on the state cookie. Enable it
// everywhere except plaintext local development.
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) { h.cookie.Secure = secure }
}

// WithCookieDomain scopes the state cookie to domain.
func WithCookieDomain(domain string) Option {
	return func(h *Handler) { h.cookie.Domain = domain }
}

// WithSuccessHandler sets the default success hook.
func WithSuccessHandler(fn SuccessHandler) Option {
	return func(h *Handler) { h.onSuccess = fn }
}

// WithErrorHandler sets the default error hook.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(h *Handler) { h.onError = fn }
}

// New creates an empty Handler.
func New(opts ...Option) *Handler {
	h := &Handler{
		providers: make(map[string]Provider),
		cookie: helpers.CookieOptions{
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds p under its flow's provider key.
func (h *Handler) Register(p Provider) error {
	if p.Flow == nil {
		return fmt.Errorf("social: provider without flow")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	key := p.Flow.Provider()
	if _, ok := h.providers[key]; ok {
		return fmt.Errorf("social: provider already registered: %s", key)
	}
	h.providers[key] = p
	return nil
}

// Routes mounts the handler on r. mws wrap the initiate and callback routes.
func (h *Handler) Routes(r chi.Router, mws ...func(http.Handler) http.Handler) {
	r.Get("/auth/providers", h.ListProviders)
	r.With(mws...).Get("/auth/{provider}", h.Initiate)
	r.With(mws...).Get("/auth/{provider}/callback", h.Callback)
}

func (h *Handler) lookup(r *http.Request) (Provider, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.providers[chi.URLParam(r, "provider")]
	return p, ok
}

// ListProviders handles GET /auth/providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	keys := make([]string, 0, len(h.providers))
	for k := range h.providers {
		keys = append(keys, k)
	}
	h.mu.RUnlock()
	sort.Strings(keys)
	transport.NewHTTP(w, r).RespondJSON(http.StatusOK, map[string][]string{"providers": keys})
}

// Initiate handles GET /auth/{provider}.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	t := transport.NewHTTP(w, r)
	p, ok := h.lookup(r)
	if !ok {
		t.RespondText(http.StatusNotFound, "Unknown OAuth provider")
		return
	}

	in, err := p.Flow.Initiate(r.Context())
	if err != nil {
		logger.From(r.Context()).Error("oauth initiate failed", logger.Provider(p.Flow.Provider()), logger.Err(err))
		t.RespondJSON(http.StatusInternalServerError, helpers.ErrorBody{Error: p.Flow.DisplayName() + " OAuth failed"})
		return
	}

	opts := h.cookie
	opts.MaxAge = oauth.StateTTL
	t.SetCookie(p.Flow.CookieName(), in.SealedState, opts)
	t.Redirect(in.RedirectURL)
}

// Callback handles GET /auth/{provider}/callback.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	t := transport.NewHTTP(w, r)
	p, ok := h.lookup(r)
	if !ok {
		t.RespondText(http.StatusNotFound, "Unknown OAuth provider")
		return
	}

	// The stored state is single use: clear it whatever the outcome.
	sealed, found := t.ReadCookie(p.Flow.CookieName())
	if found {
		t.ClearCookie(p.Flow.CookieName(), h.cookie)
	}

	id, err := p.Flow.Callback(r.Context(), oauth.ParseCallbackParams(r.URL.Query()), sealed)
	if err != nil {
		h.fail(t, w, r, p, err)
		return
	}

	switch {
	case p.OnSuccess != nil:
		p.OnSuccess(w, r, id)
	case h.onSuccess != nil:
		h.onSuccess(w, r, id)
	default:
		t.RespondJSON(http.StatusOK, id)
	}
}

func (h *Handler) fail(t transport.Transport, w http.ResponseWriter, r *http.Request, p Provider, err error) {
	switch oauth.KindOf(err) {
	case oauth.KindMissingCode:
		t.RespondText(http.StatusBadRequest, "Missing OAuth code")
		return
	case oauth.KindInvalidState:
		t.RespondText(http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	switch {
	case p.OnError != nil:
		p.OnError(w, r, err)
	case h.onError != nil:
		h.onError(w, r, err)
	default:
		t.RespondJSON(http.StatusInternalServerError, helpers.ErrorBody{Error: p.Flow.DisplayName() + " OAuth failed"})
	}
}
