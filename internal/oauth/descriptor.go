package oauth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// TokenAuthStyle controls how the token request is formatted.
type TokenAuthStyle int

const (
	// TokenAuthFormAcceptJSON posts a form body and asks for JSON with Accept.
	// Used by providers that answer form-encoded by default (GitHub).
	TokenAuthFormAcceptJSON TokenAuthStyle = iota
	// TokenAuthForm posts a plain form body; the provider answers JSON anyway.
	TokenAuthForm
)

// HeaderStyle controls the Authorization header sent to userinfo endpoints.
type HeaderStyle int

const (
	HeaderBearer HeaderStyle = iota // "Bearer <token>"
	HeaderToken                     // "token <token>"
)

func (s HeaderStyle) value(accessToken string) string {
	if s == HeaderToken {
		return "token " + accessToken
	}
	return "Bearer " + accessToken
}

// Shape tells the identity fetcher how to decode a userinfo response.
type Shape int

const (
	// ShapeProfile is a JSON object with the user profile.
	ShapeProfile Shape = iota
	// ShapeEmailList is a JSON array of {email, primary, verified}.
	ShapeEmailList
)

// UserInfoEndpoint is one GET issued after the token exchange.
type UserInfoEndpoint struct {
	URL   string
	Shape Shape
}

// Descriptor is the static configuration of one provider. Descriptors are
// copied on registration and never mutated afterwards.
type Descriptor struct {
	// Key identifies the provider in routes, cookies and identities ("github").
	Key string
	// DisplayName is used in client-facing failure messages ("GitHub").
	DisplayName string

	AuthorizationEndpoint string
	TokenEndpoint         string
	UserInfoEndpoints     []UserInfoEndpoint

	// Scope is sent verbatim (space separated).
	Scope           string
	ExtraAuthParams map[string]string

	TokenAuthStyle TokenAuthStyle
	HeaderStyle    HeaderStyle

	// EmailField is the profile field holding the declared email. Default "email".
	EmailField string
}

// reserved params are always derived from the flow itself.
var reservedAuthParams = map[string]bool{
	"client_id":     true,
	"redirect_uri":  true,
	"scope":         true,
	"state":         true,
	"response_type": true,
}

// Validate checks the descriptor is usable.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Key) == "" {
		return errors.New("oauth: descriptor key is required")
	}
	for name, raw := range map[string]string{
		"authorization endpoint": d.AuthorizationEndpoint,
		"token endpoint":         d.TokenEndpoint,
	} {
		if err := validateEndpoint(raw); err != nil {
			return fmt.Errorf("oauth: %s: invalid %s: %w", d.Key, name, err)
		}
	}
	if n := len(d.UserInfoEndpoints); n < 1 || n > 2 {
		return fmt.Errorf("oauth: %s: expected 1 or 2 userinfo endpoints, got %d", d.Key, n)
	}
	if d.UserInfoEndpoints[0].Shape != ShapeProfile {
		return fmt.Errorf("oauth: %s: first userinfo endpoint must return the profile", d.Key)
	}
	for i, ep := range d.UserInfoEndpoints {
		if err := validateEndpoint(ep.URL); err != nil {
			return fmt.Errorf("oauth: %s: invalid userinfo endpoint %d: %w", d.Key, i, err)
		}
		if i > 0 && ep.Shape != ShapeEmailList {
			return fmt.Errorf("oauth: %s: secondary userinfo endpoint must return an email list", d.Key)
		}
	}
	for k := range d.ExtraAuthParams {
		if reservedAuthParams[k] {
			return fmt.Errorf("oauth: %s: extra auth param %q is reserved", d.Key, k)
		}
	}
	return nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func (d Descriptor) emailField() string {
	if d.EmailField == "" {
		return "email"
	}
	return d.EmailField
}

func (d Descriptor) displayName() string {
	if d.DisplayName == "" {
		return d.Key
	}
	return d.DisplayName
}

// clone returns a deep copy so callers cannot mutate a registered descriptor.
func (d Descriptor) clone() Descriptor {
	out := d
	out.UserInfoEndpoints = append([]UserInfoEndpoint(nil), d.UserInfoEndpoints...)
	if d.ExtraAuthParams != nil {
		out.ExtraAuthParams = make(map[string]string, len(d.ExtraAuthParams))
		for k, v := range d.ExtraAuthParams {
			out.ExtraAuthParams[k] = v
		}
	}
	return out
}
