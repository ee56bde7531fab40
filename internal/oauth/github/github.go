// Package github describes GitHub as an OAuth 2.0 provider.
// GitHub has no ID token and may hide the profile email, so the identity is
// built from /user plus /user/emails.
package github

import "github.com/dropDatabas3/oauthgate/internal/oauth"

const (
	Key = "github"

	authEndpoint  = "https://github.com/login/oauth/authorize"
	tokenEndpoint = "https://github.com/login/oauth/access_token"
	userEndpoint  = "https://api.github.com/user"
	emailEndpoint = "https://api.github.com/user/emails"

	defaultScope = "user:email"
)

// Descriptor returns the GitHub descriptor. An empty scope uses "user:email".
func Descriptor(scope string) oauth.Descriptor {
	if scope == "" {
		scope = defaultScope
	}
	return oauth.Descriptor{
		Key:                   Key,
		DisplayName:           "GitHub",
		AuthorizationEndpoint: authEndpoint,
		TokenEndpoint:         tokenEndpoint,
		UserInfoEndpoints: []oauth.UserInfoEndpoint{
			{URL: userEndpoint, Shape: oauth.ShapeProfile},
			{URL: emailEndpoint, Shape: oauth.ShapeEmailList},
		},
		Scope:          scope,
		TokenAuthStyle: oauth.TokenAuthFormAcceptJSON,
		HeaderStyle:    oauth.HeaderBearer,
	}
}
