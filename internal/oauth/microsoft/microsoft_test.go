package microsoft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor(t *testing.T) {
	d := Descriptor("", "")
	require.NoError(t, d.Validate())
	assert.Equal(t, "https://login.microsoftonline.com/common/oauth2/v2.0/authorize", d.AuthorizationEndpoint)
	assert.Equal(t, "https://login.microsoftonline.com/common/oauth2/v2.0/token", d.TokenEndpoint)
	assert.Equal(t, "openid email profile User.Read", d.Scope)
	assert.Equal(t, "mail", d.EmailField)
	assert.Equal(t, "query", d.ExtraAuthParams["response_mode"])
}

func TestDescriptor_Tenant(t *testing.T) {
	d := Descriptor("contoso.onmicrosoft.com", "User.Read")
	require.NoError(t, d.Validate())
	assert.Equal(t, "https://login.microsoftonline.com/contoso.onmicrosoft.com/oauth2/v2.0/token", d.TokenEndpoint)
	assert.Equal(t, "User.Read", d.Scope)
}
