package helpers

import (
	"net/http"
	"strings"
	"time"
)

// CookieOptions son los atributos comunes a set y clear de una cookie.
type CookieOptions struct {
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	// MaxAge solo aplica al set; <= 0 crea una cookie de sesión.
	MaxAge time.Duration
}

// BuildCookie arma una cookie httpOnly. SameSite por defecto Lax.
func BuildCookie(name, value string, o CookieOptions) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     o.Path,
		Domain:   strings.TrimSpace(o.Domain),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
	if ck.Path == "" {
		ck.Path = "/"
	}
	if ck.SameSite == 0 || ck.SameSite == http.SameSiteDefaultMode {
		ck.SameSite = http.SameSiteLaxMode
	}
	if o.MaxAge > 0 {
		ck.Expires = time.Now().Add(o.MaxAge).UTC()
		ck.MaxAge = int(o.MaxAge.Seconds())
	}
	return ck
}

// BuildDeletionCookie arma la cookie que borra name con los mismos atributos.
func BuildDeletionCookie(name string, o CookieOptions) *http.Cookie {
	o.MaxAge = 0
	ck := BuildCookie(name, "", o)
	ck.Expires = time.Unix(0, 0).UTC()
	ck.MaxAge = -1
	return ck
}
