package oauth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/oauthgate/internal/oauth"
)

func newTestFlow(t *testing.T, d oauth.Descriptor, opts ...oauth.FlowOption) (*oauth.Flow, *memCodec) {
	t.Helper()
	codec := newMemCodec()
	f, err := oauth.NewFlow(d, testCreds, oauth.NewClient(oauth.WithUserAgent("oauthgate-test")), codec, opts...)
	require.NoError(t, err)
	return f, codec
}

// start runs Initiate and returns the callback params a well-behaved provider
// would send back plus the cookie value.
func start(t *testing.T, f *oauth.Flow) (oauth.CallbackParams, string) {
	t.Helper()
	in, err := f.Initiate(context.Background())
	require.NoError(t, err)
	return oauth.CallbackParams{Code: "the-code", State: in.State.Value}, in.SealedState
}

func TestFlow_Initiate(t *testing.T) {
	m := newMockProvider(t)
	f, codec := newTestFlow(t, m.descriptor("mock", false))

	in, err := f.Initiate(context.Background())
	require.NoError(t, err)

	u, err := url.Parse(in.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, in.State.Value, q.Get("state"))
	assert.Equal(t, testCreds.ClientID, q.Get("client_id"))
	assert.Equal(t, testCreds.RedirectURI, q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.NotContains(t, in.RedirectURL, testCreds.ClientSecret)

	stored, err := codec.Open(in.SealedState)
	require.NoError(t, err)
	assert.Equal(t, in.State, stored)
	assert.Equal(t, "mock", stored.Provider)

	assert.Equal(t, "mock_oauth_state", f.CookieName())
	assert.Equal(t, "Mock", f.DisplayName())
	assert.Zero(t, m.upstreamCalls(), "initiate never calls the provider")
}

func TestFlow_Callback_SingleProfile(t *testing.T) {
	m := newMockProvider(t, func(m *mockProvider) {
		m.userBody = `{"email":"a@b.com","login":"u"}`
	})
	f, _ := newTestFlow(t, m.descriptor("google", false))

	params, sealed := start(t, f)
	id, err := f.Callback(context.Background(), params, sealed)
	require.NoError(t, err)

	assert.Equal(t, "google", id.Provider)
	assert.Equal(t, "a@b.com", id.Email)
	assert.Equal(t, "abc", id.AccessToken)
	assert.Equal(t, "u", id.Profile["login"])

	form := m.form()
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, testCreds.ClientID, form.Get("client_id"))
	assert.Equal(t, testCreds.ClientSecret, form.Get("client_secret"))
	assert.Equal(t, testCreds.RedirectURI, form.Get("redirect_uri"))

	assert.Equal(t, int32(1), m.tokenCalls.Load())
	assert.Equal(t, int32(1), m.userCalls.Load())
	auth, ua, _ := m.seen()
	assert.Equal(t, []string{"Bearer abc"}, auth)
	assert.Equal(t, "oauthgate-test", ua)
}

func TestFlow_Callback_EmailList(t *testing.T) {
	cases := []struct {
		name    string
		profile string
		emails  string
		want    string
	}{
		{
			name:    "primary verified wins over profile",
			profile: `{"id":1,"login":"octo","email":"p@x.com"}`,
			emails:  `[{"email":"a@x.com","primary":false,"verified":true},{"email":"b@x.com","primary":true,"verified":true}]`,
			want:    "b@x.com",
		},
		{
			name:    "unverified primary falls back to profile",
			profile: `{"id":1,"login":"octo","email":"p@x.com"}`,
			emails:  `[{"email":"b@x.com","primary":true,"verified":false}]`,
			want:    "p@x.com",
		},
		{
			name:    "nothing usable",
			profile: `{"id":1,"login":"octo","email":null}`,
			emails:  `[{"email":"a@x.com","primary":false,"verified":true}]`,
			want:    "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newMockProvider(t, func(m *mockProvider) {
				m.userBody = tc.profile
				m.emailBody = tc.emails
			})
			f, _ := newTestFlow(t, m.descriptor("github", true))

			params, sealed := start(t, f)
			id, err := f.Callback(context.Background(), params, sealed)
			require.NoError(t, err)
			assert.Equal(t, tc.want, id.Email)
			assert.Equal(t, "octo", id.Profile["login"])
			assert.Equal(t, json.Number("1"), id.Profile["id"])

			assert.Equal(t, int32(1), m.userCalls.Load())
			assert.Equal(t, int32(1), m.emailCalls.Load())
			_, _, tokenHdr := m.seen()
			assert.Equal(t, "application/json", tokenHdr.Get("Accept"))
		})
	}
}

func TestFlow_Callback_ValidationNeverReachesProvider(t *testing.T) {
	m := newMockProvider(t)
	f, _ := newTestFlow(t, m.descriptor("mock", true))
	params, sealed := start(t, f)

	cases := []struct {
		name   string
		params oauth.CallbackParams
		sealed string
		want   error
	}{
		{"missing code", oauth.CallbackParams{State: params.State}, sealed, oauth.ErrMissingCode},
		{"provider denied", oauth.CallbackParams{State: params.State, Error: "access_denied"}, sealed, oauth.ErrMissingCode},
		{"missing state", oauth.CallbackParams{Code: "c"}, sealed, oauth.ErrInvalidState},
		{"no cookie", params, "", oauth.ErrInvalidState},
		{"forged cookie", params, "forged", oauth.ErrInvalidState},
		{"state mismatch", oauth.CallbackParams{Code: "c", State: "not-the-state"}, sealed, oauth.ErrInvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := f.Callback(context.Background(), tc.params, tc.sealed)
			assert.Nil(t, id)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, m.upstreamCalls())
}

func TestFlow_Callback_CrossProviderState(t *testing.T) {
	m := newMockProvider(t)
	codec := newMemCodec()
	client := oauth.NewClient()

	gh, err := oauth.NewFlow(m.descriptor("github", true), testCreds, client, codec)
	require.NoError(t, err)
	gg, err := oauth.NewFlow(m.descriptor("google", false), testCreds, client, codec)
	require.NoError(t, err)

	params, sealed := start(t, gh)
	_, err = gg.Callback(context.Background(), params, sealed)
	require.ErrorIs(t, err, oauth.ErrInvalidState)
	assert.Zero(t, m.tokenCalls.Load())
}

func TestFlow_Callback_Expiry(t *testing.T) {
	m := newMockProvider(t)
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	f, _ := newTestFlow(t, m.descriptor("mock", false), oauth.WithClock(clock.Now))

	params, sealed := start(t, f)
	clock.Advance(oauth.StateTTL + time.Second)
	_, err := f.Callback(context.Background(), params, sealed)
	require.ErrorIs(t, err, oauth.ErrInvalidState)
	assert.Contains(t, err.Error(), "expired")
	assert.Zero(t, m.tokenCalls.Load())

	params, sealed = start(t, f)
	clock.Advance(oauth.StateTTL)
	_, err = f.Callback(context.Background(), params, sealed)
	require.NoError(t, err)
}

func TestFlow_Callback_ReplayRejected(t *testing.T) {
	m := newMockProvider(t)
	f, _ := newTestFlow(t, m.descriptor("mock", false), oauth.WithLedger(newMemLedger()))

	params, sealed := start(t, f)
	_, err := f.Callback(context.Background(), params, sealed)
	require.NoError(t, err)

	_, err = f.Callback(context.Background(), params, sealed)
	require.ErrorIs(t, err, oauth.ErrInvalidState)
	assert.Contains(t, err.Error(), "already used")
	assert.Equal(t, int32(1), m.tokenCalls.Load())
}

func TestFlow_Callback_LedgerUnavailable(t *testing.T) {
	m := newMockProvider(t)
	l := newMemLedger()
	l.err = errors.New("redis: connection refused")
	f, _ := newTestFlow(t, m.descriptor("mock", false), oauth.WithLedger(l))

	params, sealed := start(t, f)
	_, err := f.Callback(context.Background(), params, sealed)
	require.ErrorIs(t, err, oauth.ErrInvalidState)
	assert.Zero(t, m.tokenCalls.Load())
}

func TestFlow_Callback_ExchangeFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		ctype  string
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, "application/json", `{"error":"invalid_client"}`},
		{"server error", http.StatusBadGateway, "text/html", `<html>oops</html>`},
		{"oauth error on 200", http.StatusOK, "application/json", `{"error":"bad_verification_code"}`},
		{"no access token", http.StatusOK, "application/json", `{"token_type":"bearer"}`},
		{"malformed json", http.StatusOK, "application/json", `{"access_token":`},
		{"json array", http.StatusOK, "application/json", `[]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newMockProvider(t, func(m *mockProvider) {
				m.tokenStatus, m.tokenContentType, m.tokenBody = tc.status, tc.ctype, tc.body
			})
			f, _ := newTestFlow(t, m.descriptor("mock", true))

			params, sealed := start(t, f)
			id, err := f.Callback(context.Background(), params, sealed)
			assert.Nil(t, id)
			require.ErrorIs(t, err, oauth.ErrTokenExchangeFailed)
			assert.NotContains(t, err.Error(), testCreds.ClientSecret)

			assert.Equal(t, int32(1), m.tokenCalls.Load(), "exchange is never retried")
			assert.Zero(t, m.userCalls.Load())
			assert.Zero(t, m.emailCalls.Load())
		})
	}
}

func TestFlow_Callback_ExchangeTransportError(t *testing.T) {
	m := newMockProvider(t)
	f, _ := newTestFlow(t, m.descriptor("mock", true))

	params, sealed := start(t, f)
	m.srv.Close()

	id, err := f.Callback(context.Background(), params, sealed)
	assert.Nil(t, id)
	require.ErrorIs(t, err, oauth.ErrTokenExchangeFailed)
	var uerr *url.Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, oauth.KindTokenExchangeFailed, oauth.KindOf(err))
	assert.NotContains(t, err.Error(), testCreds.ClientSecret)
}

func TestFlow_Callback_FormEncodedToken(t *testing.T) {
	m := newMockProvider(t, func(m *mockProvider) {
		m.tokenContentType = "application/x-www-form-urlencoded"
		m.tokenBody = "access_token=xyz&scope=user%3Aemail&token_type=bearer"
	})
	f, _ := newTestFlow(t, m.descriptor("github", true))

	params, sealed := start(t, f)
	id, err := f.Callback(context.Background(), params, sealed)
	require.NoError(t, err)
	assert.Equal(t, "xyz", id.AccessToken)
}

func TestFlow_Callback_UserInfoFailures(t *testing.T) {
	t.Run("profile rejected", func(t *testing.T) {
		m := newMockProvider(t, func(m *mockProvider) {
			m.userStatus = http.StatusUnauthorized
		})
		f, _ := newTestFlow(t, m.descriptor("mock", false))

		params, sealed := start(t, f)
		id, err := f.Callback(context.Background(), params, sealed)
		assert.Nil(t, id)
		require.ErrorIs(t, err, oauth.ErrUserInfoFetchFailed)
		assert.NotContains(t, err.Error(), "abc")
	})

	t.Run("connection dropped", func(t *testing.T) {
		m := newMockProvider(t, func(m *mockProvider) {
			m.userHangup = true
		})
		f, _ := newTestFlow(t, m.descriptor("mock", false))

		params, sealed := start(t, f)
		id, err := f.Callback(context.Background(), params, sealed)
		assert.Nil(t, id)
		require.ErrorIs(t, err, oauth.ErrUserInfoFetchFailed)
		var uerr *url.Error
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, int32(1), m.tokenCalls.Load())
		assert.NotZero(t, m.userCalls.Load())
	})

	t.Run("malformed profile", func(t *testing.T) {
		m := newMockProvider(t, func(m *mockProvider) {
			m.userBody = `"not an object"`
		})
		f, _ := newTestFlow(t, m.descriptor("mock", false))

		params, sealed := start(t, f)
		_, err := f.Callback(context.Background(), params, sealed)
		require.ErrorIs(t, err, oauth.ErrUserInfoFetchFailed)
	})

	t.Run("malformed email list", func(t *testing.T) {
		m := newMockProvider(t, func(m *mockProvider) {
			m.emailBody = `{"email":"a@x.com"}`
		})
		f, _ := newTestFlow(t, m.descriptor("github", true))

		params, sealed := start(t, f)
		_, err := f.Callback(context.Background(), params, sealed)
		require.ErrorIs(t, err, oauth.ErrUserInfoFetchFailed)
	})

	t.Run("first failure cancels the rest", func(t *testing.T) {
		m := newMockProvider(t, func(m *mockProvider) {
			m.userDelay = 5 * time.Second
			m.emailStatus = http.StatusInternalServerError
		})
		f, _ := newTestFlow(t, m.descriptor("github", true))

		params, sealed := start(t, f)
		begin := time.Now()
		id, err := f.Callback(context.Background(), params, sealed)
		assert.Nil(t, id)
		require.ErrorIs(t, err, oauth.ErrUserInfoFetchFailed)
		assert.Less(t, time.Since(begin), 3*time.Second)
	})
}

func TestIdentity_JSON(t *testing.T) {
	id := oauth.Identity{
		Provider:    "github",
		Email:       "b@x.com",
		Profile:     map[string]any{"login": "octo"},
		AccessToken: "abc",
	}
	b, err := json.Marshal(id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":"github","email":"b@x.com","userData":{"login":"octo"},"accessToken":"abc"}`, string(b))

	id.Email = ""
	b, err = json.Marshal(id)
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"email"`)
}

func TestNewFlow_Rejects(t *testing.T) {
	m := newMockProvider(t)
	d := m.descriptor("mock", false)

	_, err := oauth.NewFlow(d, testCreds, nil, nil)
	require.Error(t, err, "codec is required")

	_, err = oauth.NewFlow(d, oauth.Credentials{ClientID: "id"}, nil, newMemCodec())
	require.Error(t, err)

	bad := d
	bad.TokenEndpoint = "not a url"
	_, err = oauth.NewFlow(bad, testCreds, nil, newMemCodec())
	require.Error(t, err)

	f, err := oauth.NewFlow(d, testCreds, nil, newMemCodec())
	require.NoError(t, err)
	assert.Equal(t, "mock", f.Provider())
}
