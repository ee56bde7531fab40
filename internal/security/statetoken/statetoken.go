// Package statetoken seals oauth.FlowState into a signed cookie value so the
// client can round-trip the state but cannot forge or extend it.
package statetoken

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/dropDatabas3/oauthgate/internal/oauth"
)

const (
	// Audience scopes tokens to this use.
	Audience = "oauth-state"

	keyInfo       = "oauthgate state signing v1"
	keyLen        = 32
	minSecretLen  = 16
	signingMethod = "HS256"
)

// Errors for state token operations.
var (
	ErrSecretTooShort = errors.New("statetoken: secret must be at least 16 bytes")
	ErrInvalid        = errors.New("statetoken: invalid state token")
)

type claims struct {
	State    string `json:"st"`
	Provider string `json:"prv"`
	// iat/exp de JWT son segundos enteros; estos llevan la precisión real.
	IssuedAtMs  int64 `json:"iat_ms"`
	ExpiresAtMs int64 `json:"exp_ms"`
	jwtv5.RegisteredClaims
}

// Codec implements oauth.StateCodec with HS256 JWTs.
type Codec struct {
	key    []byte
	issuer string
}

// New derives the signing key from secret with HKDF-SHA256. issuer is
// embedded and checked on Open.
func New(secret []byte, issuer string) (*Codec, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("statetoken: derive key: %w", err)
	}
	return &Codec{key: key, issuer: issuer}, nil
}

// RandomSecret returns 32 random bytes. States sealed with a random secret
// only survive as long as the process.
func RandomSecret() []byte {
	b := make([]byte, keyLen)
	if _, err := rand.Read(b); err != nil {
		panic("statetoken: crypto/rand unavailable: " + err.Error())
	}
	return b
}

// Seal signs s.
func (c *Codec) Seal(s oauth.FlowState) (string, error) {
	cl := claims{
		State:       s.Value,
		Provider:    s.Provider,
		IssuedAtMs:  s.IssuedAt.UnixMilli(),
		ExpiresAtMs: s.ExpiresAt.UnixMilli(),
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			Audience:  jwtv5.ClaimStrings{Audience},
			IssuedAt:  jwtv5.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwtv5.NewNumericDate(s.ExpiresAt.Add(time.Second - time.Nanosecond)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, cl).SignedString(c.key)
}

// Open verifies the signature, issuer and audience. Expiry is left to
// oauth.ValidateCallback, which owns the clock. Timestamps come back with
// millisecond precision.
func (c *Codec) Open(sealed string) (oauth.FlowState, error) {
	var cl claims
	_, err := jwtv5.ParseWithClaims(sealed, &cl, func(*jwtv5.Token) (any, error) {
		return c.key, nil
	},
		jwtv5.WithValidMethods([]string{signingMethod}),
		jwtv5.WithoutClaimsValidation(),
	)
	if err != nil {
		return oauth.FlowState{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cl.Issuer != c.issuer {
		return oauth.FlowState{}, fmt.Errorf("%w: issuer mismatch", ErrInvalid)
	}
	if !audienceContains(cl.Audience, Audience) {
		return oauth.FlowState{}, fmt.Errorf("%w: audience mismatch", ErrInvalid)
	}
	if cl.State == "" || cl.IssuedAtMs == 0 || cl.ExpiresAtMs == 0 {
		return oauth.FlowState{}, fmt.Errorf("%w: incomplete claims", ErrInvalid)
	}
	return oauth.FlowState{
		Value:     cl.State,
		Provider:  cl.Provider,
		IssuedAt:  time.UnixMilli(cl.IssuedAtMs).UTC(),
		ExpiresAt: time.UnixMilli(cl.ExpiresAtMs).UTC(),
	}, nil
}

func audienceContains(aud jwtv5.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

var _ oauth.StateCodec = (*Codec)(nil)
