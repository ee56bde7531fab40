package oauth

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dropDatabas3/oauthgate/internal/metrics"
)

const (
	// DefaultTimeout applies to each outbound provider call.
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent is sent on every provider call; GitHub rejects requests without one.
	DefaultUserAgent = "oauthgate"

	maxBodyBytes = 1 << 20
)

// Client performs the server-to-server calls of a flow: the code exchange and
// the userinfo fetches. It holds no per-flow state and is safe for concurrent use.
type Client struct {
	http      *http.Client
	userAgent string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client (10s timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a provider client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type upstreamResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r *upstreamResponse) ok() bool { return r.status >= 200 && r.status < 300 }

// do sends req and reads at most maxBodyBytes of the body. stage labels the
// latency metric ("token", "userinfo").
func (c *Client) do(req *http.Request, provider, stage string) (*upstreamResponse, error) {
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(provider, stage, "error", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.ObserveUpstream(provider, stage, fmt.Sprintf("%dxx", resp.StatusCode/100), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", stage, err)
	}
	return &upstreamResponse{status: resp.StatusCode, header: resp.Header, body: body}, nil
}
