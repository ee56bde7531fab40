package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/oauthgate/internal/observability/logger"
)

// TokenExchangeResult is the parsed token endpoint response.
type TokenExchangeResult struct {
	AccessToken string
	TokenType   string
	Scope       string
	// Raw is the full provider response.
	Raw map[string]any
}

// Exchange trades an authorization code for an access token with a single
// POST. It never retries; every failure is a TokenExchangeFailed *Error.
func (c *Client) Exchange(ctx context.Context, d Descriptor, creds Credentials, code string) (*TokenExchangeResult, error) {
	log := logger.From(ctx).With(logger.Component("oauth.exchange"), logger.Provider(d.Key))

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("redirect_uri", creds.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newError(KindTokenExchangeFailed, d.Key, "build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if d.TokenAuthStyle == TokenAuthFormAcceptJSON {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.do(req, d.Key, "token")
	if err != nil {
		return nil, newError(KindTokenExchangeFailed, d.Key, "token request failed", err)
	}
	if !resp.ok() {
		log.Warn("token endpoint rejected exchange", logger.Status(resp.status))
		return nil, newError(KindTokenExchangeFailed, d.Key, "token endpoint rejected the exchange", statusError(resp.status))
	}

	raw, err := decodeTokenBody(resp)
	if err != nil {
		return nil, newError(KindTokenExchangeFailed, d.Key, "malformed token response", err)
	}

	tr := &TokenExchangeResult{
		AccessToken: stringField(raw, "access_token"),
		TokenType:   stringField(raw, "token_type"),
		Scope:       stringField(raw, "scope"),
		Raw:         raw,
	}
	if tr.AccessToken == "" {
		// Some providers (GitHub) answer 200 with {"error": "..."}.
		if code := stringField(raw, "error"); code != "" {
			return nil, newError(KindTokenExchangeFailed, d.Key, "provider error "+code, nil)
		}
		return nil, newError(KindTokenExchangeFailed, d.Key, "no access_token in response", nil)
	}

	log.Debug("token exchanged", logger.String("token_type", tr.TokenType))
	return tr, nil
}

// decodeTokenBody accepts JSON and, for providers that ignore Accept,
// form-encoded bodies.
func decodeTokenBody(resp *upstreamResponse) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(resp.header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "text/plain":
		vals, err := url.ParseQuery(string(resp.body))
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(vals))
		for k := range vals {
			out[k] = vals.Get(k)
		}
		return out, nil
	default:
		var out map[string]any
		if err := json.Unmarshal(resp.body, &out); err != nil {
			return nil, fmt.Errorf("decode token response: %w", err)
		}
		if out == nil {
			return nil, fmt.Errorf("decode token response: not an object")
		}
		return out, nil
	}
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
