package oauth

import (
	"crypto/subtle"
	"net/url"
	"strings"
	"time"
)

// CallbackParams are the query parameters the provider redirects back with.
type CallbackParams struct {
	Code  string
	State string
	// Error is set when the user denied consent or the provider refused.
	Error string
}

// ParseCallbackParams reads code, state and error from a callback query.
func ParseCallbackParams(q url.Values) CallbackParams {
	return CallbackParams{
		Code:  strings.TrimSpace(q.Get("code")),
		State: strings.TrimSpace(q.Get("state")),
		Error: strings.TrimSpace(q.Get("error")),
	}
}

// ValidateCallback decides whether a callback may proceed to the token
// exchange. stored is nil when no state was found for the client. Expired and
// cross-provider states are reported as InvalidState.
func ValidateCallback(provider string, p CallbackParams, stored *FlowState, now time.Time) error {
	if p.Code == "" {
		reason := "missing code"
		if p.Error != "" {
			reason = "provider returned " + p.Error
		}
		return newError(KindMissingCode, provider, reason, nil)
	}
	if p.State == "" {
		return newError(KindInvalidState, provider, "missing state", nil)
	}
	if stored == nil || stored.Value == "" {
		return newError(KindInvalidState, provider, "no stored state", nil)
	}
	if subtle.ConstantTimeCompare([]byte(p.State), []byte(stored.Value)) != 1 {
		return newError(KindInvalidState, provider, "state mismatch", nil)
	}
	if stored.Provider != provider {
		return newError(KindInvalidState, provider, "state issued for another provider", nil)
	}
	if stored.Expired(now) {
		return newError(KindInvalidState, provider, "state expired", nil)
	}
	return nil
}
