package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Ledger records consumed OAuth states on a Client. Keys are SHA-256 digests
// of the state, so the backend never holds a usable value.
type Ledger struct {
	client Client
}

// NewLedger creates a Ledger over c.
func NewLedger(c Client) *Ledger {
	return &Ledger{client: c}
}

// Consume marks value as used for ttl. It returns false if value was already
// consumed.
func (l *Ledger) Consume(ctx context.Context, value string, ttl time.Duration) (bool, error) {
	sum := sha256.Sum256([]byte(value))
	return l.client.SetNX(ctx, "oauth_state:"+hex.EncodeToString(sum[:]), "1", ttl)
}

// Ping checks the backend.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx)
}
