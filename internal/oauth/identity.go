package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/oauthgate/internal/observability/logger"
)

// Identity is the normalized result of a successful callback.
type Identity struct {
	Provider string `json:"provider"`
	// Email is the primary+verified address when the provider exposes a list,
	// else the profile's declared email, else empty.
	Email string `json:"email,omitempty"`
	// Profile is the raw profile object returned by the provider.
	Profile     map[string]any `json:"userData"`
	AccessToken string         `json:"accessToken"`
}

// EmailCandidate is one entry of a provider email list.
type EmailCandidate struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchIdentity GETs every userinfo endpoint of d concurrently and normalizes
// the responses. The first failure cancels the other requests and no partial
// identity is returned.
func (c *Client) FetchIdentity(ctx context.Context, d Descriptor, accessToken string) (*Identity, error) {
	bodies := make([][]byte, len(d.UserInfoEndpoints))

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range d.UserInfoEndpoints {
		g.Go(func() error {
			b, err := c.fetch(gctx, d, ep, accessToken)
			if err != nil {
				return err
			}
			bodies[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profile, err := decodeProfile(bodies[0])
	if err != nil {
		return nil, newError(KindUserInfoFetchFailed, d.Key, "malformed profile", err)
	}

	var candidates []EmailCandidate
	for i, ep := range d.UserInfoEndpoints {
		if ep.Shape != ShapeEmailList {
			continue
		}
		var list []EmailCandidate
		if err := json.Unmarshal(bodies[i], &list); err != nil {
			return nil, newError(KindUserInfoFetchFailed, d.Key, "malformed email list", err)
		}
		candidates = append(candidates, list...)
	}

	return &Identity{
		Provider:    d.Key,
		Email:       selectEmail(profile, d.emailField(), candidates),
		Profile:     profile,
		AccessToken: accessToken,
	}, nil
}

func (c *Client) fetch(ctx context.Context, d Descriptor, ep UserInfoEndpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return nil, newError(KindUserInfoFetchFailed, d.Key, "build userinfo request", err)
	}
	req.Header.Set("Authorization", d.HeaderStyle.value(accessToken))
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, d.Key, "userinfo")
	if err != nil {
		return nil, newError(KindUserInfoFetchFailed, d.Key, "userinfo request failed", err)
	}
	if !resp.ok() {
		logger.From(ctx).Warn("userinfo endpoint rejected request",
			logger.Provider(d.Key),
			logger.Upstream(ep.URL),
			logger.Status(resp.status),
		)
		return nil, newError(KindUserInfoFetchFailed, d.Key, "userinfo endpoint rejected the request", statusError(resp.status))
	}
	return resp.body, nil
}

func decodeProfile(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	// Numeric ids (GitHub) stay exact.
	dec.UseNumber()
	var profile map[string]any
	if err := dec.Decode(&profile); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile is not an object")
	}
	return profile, nil
}

// selectEmail prefers the candidate that is both primary and verified, then
// the profile's own field. It never falls back to unrelated fields.
func selectEmail(profile map[string]any, field string, candidates []EmailCandidate) string {
	for _, e := range candidates {
		if e.Primary && e.Verified && e.Email != "" {
			return e.Email
		}
	}
	return stringField(profile, field)
}
