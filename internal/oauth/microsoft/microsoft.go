// Package microsoft describes the Microsoft identity platform (v2.0
// endpoints) with Microsoft Graph as the profile source.
package microsoft

import (
	"net/url"

	"github.com/dropDatabas3/oauthgate/internal/oauth"
)

const (
	Key = "microsoft"

	loginBase        = "https://login.microsoftonline.com/"
	userInfoEndpoint = "https://graph.microsoft.com/v1.0/me"

	defaultTenant = "common"
	defaultScope  = "openid email profile User.Read"
)

// Descriptor returns the Microsoft descriptor for tenant ("common",
// "organizations", "consumers" or a tenant id).
//
// Graph declares the address in "mail". userPrincipalName is not guaranteed
// to be a deliverable address and is not used as a fallback.
func Descriptor(tenant, scope string) oauth.Descriptor {
	if tenant == "" {
		tenant = defaultTenant
	}
	if scope == "" {
		scope = defaultScope
	}
	base := loginBase + url.PathEscape(tenant) + "/oauth2/v2.0/"
	return oauth.Descriptor{
		Key:                   Key,
		DisplayName:           "Microsoft",
		AuthorizationEndpoint: base + "authorize",
		TokenEndpoint:         base + "token",
		UserInfoEndpoints: []oauth.UserInfoEndpoint{
			{URL: userInfoEndpoint, Shape: oauth.ShapeProfile},
		},
		Scope:           scope,
		ExtraAuthParams: map[string]string{"response_mode": "query"},
		TokenAuthStyle:  oauth.TokenAuthForm,
		HeaderStyle:     oauth.HeaderBearer,
		EmailField:      "mail",
	}
}
