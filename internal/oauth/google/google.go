// Package google describes Google as an OAuth 2.0 provider.
package google

import "github.com/dropDatabas3/oauthgate/internal/oauth"

const (
	Key = "google"

	authEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenEndpoint    = "https://oauth2.googleapis.com/token"
	userInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

	defaultScope = "profile email"
)

// Descriptor returns the Google descriptor. It asks for offline access and
// forces the consent screen so a refresh token is issued on every login.
func Descriptor(scope string) oauth.Descriptor {
	if scope == "" {
		scope = defaultScope
	}
	return oauth.Descriptor{
		Key:                   Key,
		DisplayName:           "Google",
		AuthorizationEndpoint: authEndpoint,
		TokenEndpoint:         tokenEndpoint,
		UserInfoEndpoints: []oauth.UserInfoEndpoint{
			{URL: userInfoEndpoint, Shape: oauth.ShapeProfile},
		},
		Scope: scope,
		ExtraAuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
		TokenAuthStyle: oauth.TokenAuthForm,
		HeaderStyle:    oauth.HeaderBearer,
	}
}
