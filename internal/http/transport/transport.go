// Package transport is the narrow surface the OAuth adapter needs from the
// host web stack. Handlers depend on Transport, never on a concrete framework.
package transport

import (
	"net/http"

	"github.com/dropDatabas3/oauthgate/internal/http/helpers"
)

// Transport applies flow results to one request/response pair.
type Transport interface {
	Redirect(url string)
	SetCookie(name, value string, opts helpers.CookieOptions)
	// ReadCookie returns "" and false when the cookie is absent.
	ReadCookie(name string) (string, bool)
	ClearCookie(name string, opts helpers.CookieOptions)
	RespondJSON(status int, body any)
	RespondText(status int, body string)
}

// HTTP implements Transport over net/http.
type HTTP struct {
	w http.ResponseWriter
	r *http.Request
}

// NewHTTP wraps a net/http request/response pair.
func NewHTTP(w http.ResponseWriter, r *http.Request) *HTTP {
	return &HTTP{w: w, r: r}
}

// Redirect responds 302 Found.
func (t *HTTP) Redirect(url string) {
	t.w.Header().Set("Cache-Control", "no-store")
	http.Redirect(t.w, t.r, url, http.StatusFound)
}

func (t *HTTP) SetCookie(name, value string, opts helpers.CookieOptions) {
	http.SetCookie(t.w, helpers.BuildCookie(name, value, opts))
}

func (t *HTTP) ReadCookie(name string) (string, bool) {
	ck, err := t.r.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

func (t *HTTP) ClearCookie(name string, opts helpers.CookieOptions) {
	http.SetCookie(t.w, helpers.BuildDeletionCookie(name, opts))
}

func (t *HTTP) RespondJSON(status int, body any) {
	helpers.WriteJSON(t.w, status, body)
}

func (t *HTTP) RespondText(status int, body string) {
	helpers.WriteText(t.w, status, body)
}

var _ Transport = (*HTTP)(nil)
