package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// StateTTL bounds the initiate -> callback round trip.
const StateTTL = 5 * time.Minute

// stateBytes is the amount of entropy per state (256 bits).
const stateBytes = 32

// GenerateState returns a hex encoded random CSRF state of fixed length.
// A failing entropy source is a process-level fault, not a flow error.
func GenerateState() string {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		panic("oauth: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// FlowState is the per-attempt state kept by the client between Initiate and
// Callback.
type FlowState struct {
	Value     string
	Provider  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewFlowState issues a fresh state for provider at now.
func NewFlowState(provider string, now time.Time) FlowState {
	now = now.UTC()
	return FlowState{
		Value:     GenerateState(),
		Provider:  provider,
		IssuedAt:  now,
		ExpiresAt: now.Add(StateTTL),
	}
}

// Expired reports whether the state is past its lifetime at now.
func (s FlowState) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// StateCodec seals a FlowState into an opaque cookie value and opens it back.
// Open must fail for values that were not produced by Seal.
type StateCodec interface {
	Seal(s FlowState) (string, error)
	Open(sealed string) (FlowState, error)
}

// Ledger records consumed state values. Consume returns false when value was
// already consumed within ttl.
type Ledger interface {
	Consume(ctx context.Context, value string, ttl time.Duration) (bool, error)
}
