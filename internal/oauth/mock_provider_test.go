package oauth_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/oauthgate/internal/oauth"
)

// mockProvider is an httptest authorization server with call counters.
// Response fields are set through the configure funcs of newMockProvider.
type mockProvider struct {
	srv *httptest.Server

	tokenCalls atomic.Int32
	userCalls  atomic.Int32
	emailCalls atomic.Int32

	tokenStatus      int
	tokenContentType string
	tokenBody        string
	userStatus       int
	userBody         string
	emailStatus      int
	emailBody        string
	// userDelay holds the profile response until it elapses or the client goes away.
	userDelay time.Duration
	// userHangup drops the connection on the profile endpoint without a response.
	userHangup bool

	mu        sync.Mutex
	tokenForm url.Values
	tokenHdr  http.Header
	authHdrs  []string
	userAgent string
}

func newMockProvider(t *testing.T, configure ...func(*mockProvider)) *mockProvider {
	t.Helper()
	m := &mockProvider{
		tokenStatus:      http.StatusOK,
		tokenContentType: "application/json",
		tokenBody:        `{"access_token":"abc","token_type":"bearer"}`,
		userStatus:       http.StatusOK,
		userBody:         `{"id":42,"login":"u","email":"a@b.com"}`,
		emailStatus:      http.StatusOK,
		emailBody:        `[]`,
	}
	for _, fn := range configure {
		fn(m)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		m.tokenCalls.Add(1)
		_ = r.ParseForm()
		m.mu.Lock()
		m.tokenForm = r.PostForm
		m.tokenHdr = r.Header.Clone()
		m.mu.Unlock()
		w.Header().Set("Content-Type", m.tokenContentType)
		w.WriteHeader(m.tokenStatus)
		_, _ = io.WriteString(w, m.tokenBody)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		m.userCalls.Add(1)
		m.recordAuth(r)
		if m.userHangup {
			hangup(w)
			return
		}
		if m.userDelay > 0 {
			select {
			case <-time.After(m.userDelay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(m.userStatus)
		_, _ = io.WriteString(w, m.userBody)
	})
	mux.HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
		m.emailCalls.Add(1)
		m.recordAuth(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(m.emailStatus)
		_, _ = io.WriteString(w, m.emailBody)
	})

	m.srv = httptest.NewServer(mux)
	t.Cleanup(m.srv.Close)
	return m
}

func hangup(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("mock provider: response writer cannot hijack")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(err)
	}
	_ = conn.Close()
}

func (m *mockProvider) recordAuth(r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authHdrs = append(m.authHdrs, r.Header.Get("Authorization"))
	m.userAgent = r.Header.Get("User-Agent")
}

func (m *mockProvider) form() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenForm
}

func (m *mockProvider) seen() (auth []string, userAgent string, tokenHdr http.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.authHdrs...), m.userAgent, m.tokenHdr
}

func (m *mockProvider) upstreamCalls() int32 {
	return m.tokenCalls.Load() + m.userCalls.Load() + m.emailCalls.Load()
}

// descriptor points every endpoint at the mock. withEmails adds the email list
// endpoint (GitHub shape).
func (m *mockProvider) descriptor(key string, withEmails bool) oauth.Descriptor {
	d := oauth.Descriptor{
		Key:                   key,
		DisplayName:           "Mock",
		AuthorizationEndpoint: m.srv.URL + "/authorize",
		TokenEndpoint:         m.srv.URL + "/token",
		UserInfoEndpoints: []oauth.UserInfoEndpoint{
			{URL: m.srv.URL + "/user", Shape: oauth.ShapeProfile},
		},
		Scope:          "profile email",
		TokenAuthStyle: oauth.TokenAuthForm,
		HeaderStyle:    oauth.HeaderBearer,
	}
	if withEmails {
		d.UserInfoEndpoints = append(d.UserInfoEndpoints, oauth.UserInfoEndpoint{URL: m.srv.URL + "/emails", Shape: oauth.ShapeEmailList})
		d.TokenAuthStyle = oauth.TokenAuthFormAcceptJSON
	}
	return d
}

var testCreds = oauth.Credentials{
	ClientID:     "client-id",
	ClientSecret: "client-s3cret",
	RedirectURI:  "https://app.example/auth/mock/callback",
}

// memCodec stores states in memory; sealed values are opaque handles.
type memCodec struct {
	mu sync.Mutex
	n  int
	m  map[string]oauth.FlowState
}

func newMemCodec() *memCodec { return &memCodec{m: map[string]oauth.FlowState{}} }

func (c *memCodec) Seal(s oauth.FlowState) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	h := fmt.Sprintf("sealed-%d", c.n)
	c.m[h] = s
	return h, nil
}

func (c *memCodec) Open(sealed string) (oauth.FlowState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[sealed]
	if !ok {
		return oauth.FlowState{}, errors.New("unknown handle")
	}
	return s, nil
}

type memLedger struct {
	mu   sync.Mutex
	used map[string]bool
	err  error
}

func newMemLedger() *memLedger { return &memLedger{used: map[string]bool{}} }

func (l *memLedger) Consume(_ context.Context, value string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.used[value] {
		return false, nil
	}
	l.used[value] = true
	return true, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
