package oauth

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// Credentials are the host's client registration at the provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	// RedirectURI must match the URI registered with the provider exactly.
	RedirectURI string
}

// Validate checks every credential is present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("oauth: client id is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return errors.New("oauth: client secret is required")
	}
	if _, err := url.ParseRequestURI(c.RedirectURI); err != nil {
		return errors.New("oauth: redirect uri must be an absolute URL")
	}
	return nil
}

// AuthorizationURL builds the provider authorization URL. Every parameter is
// query-encoded; response_type=code is always sent.
func AuthorizationURL(d Descriptor, clientID, redirectURI, state string) string {
	cfg := oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      strings.Fields(d.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  d.AuthorizationEndpoint,
			TokenURL: d.TokenEndpoint,
		},
	}
	opts := make([]oauth2.AuthCodeOption, 0, len(d.ExtraAuthParams))
	for k, v := range d.ExtraAuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return cfg.AuthCodeURL(state, opts...)
}
