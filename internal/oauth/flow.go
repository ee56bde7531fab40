package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/oauthgate/internal/metrics"
	"github.com/dropDatabas3/oauthgate/internal/observability/logger"
	"github.com/dropDatabas3/oauthgate/internal/util/mask"
)

// Flow runs the authorization code grant for one provider and one client
// registration. A Flow keeps no per-request state; every Initiate/Callback
// pair is independent.
type Flow struct {
	desc   Descriptor
	creds  Credentials
	client *Client
	codec  StateCodec
	ledger Ledger
	now    func() time.Time
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithLedger enables replay rejection of already consumed states.
func WithLedger(l Ledger) FlowOption {
	return func(f *Flow) { f.ledger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) FlowOption {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFlow binds a descriptor to the host credentials.
func NewFlow(d Descriptor, creds Credentials, client *Client, codec StateCodec, opts ...FlowOption) (*Flow, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", d.Key, err)
	}
	if codec == nil {
		return nil, errors.New("oauth: state codec is required")
	}
	if client == nil {
		client = NewClient()
	}
	f := &Flow{
		desc:   d.clone(),
		creds:  creds,
		client: client,
		codec:  codec,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Provider returns the descriptor key.
func (f *Flow) Provider() string { return f.desc.Key }

// DisplayName returns the human readable provider name.
func (f *Flow) DisplayName() string { return f.desc.displayName() }

// CookieName is where the sealed state lives between the two requests.
func (f *Flow) CookieName() string { return f.desc.Key + "_oauth_state" }

// Initiation is the result of Initiate: where to send the browser and what to
// store for the client.
type Initiation struct {
	RedirectURL string
	State       FlowState
	// SealedState is the cookie value; it must be stored for StateTTL.
	SealedState string
}

// Initiate issues a new FlowState and builds the authorization URL.
func (f *Flow) Initiate(ctx context.Context) (*Initiation, error) {
	st := NewFlowState(f.desc.Key, f.now())
	sealed, err := f.codec.Seal(st)
	if err != nil {
		return nil, fmt.Errorf("oauth %s: seal state: %w", f.desc.Key, err)
	}

	metrics.FlowStarted(f.desc.Key)
	logger.From(ctx).Info("oauth flow initiated",
		logger.Provider(f.desc.Key),
		logger.Phase(PhaseAwaitingCallback.String()),
	)
	return &Initiation{
		RedirectURL: AuthorizationURL(f.desc, f.creds.ClientID, f.creds.RedirectURI, st.Value),
		State:       st,
		SealedState: sealed,
	}, nil
}

// Callback validates the callback against the sealed state ("" when the client
// sent none), exchanges the code and fetches the identity. It returns exactly
// one of an identity or an *Error.
func (f *Flow) Callback(ctx context.Context, p CallbackParams, sealed string) (*Identity, error) {
	start := f.now()
	log := logger.From(ctx).With(logger.Component("oauth.flow"), logger.Provider(f.desc.Key))

	id, err := f.callback(ctx, p, sealed)

	phase := phaseFor(err)
	metrics.FlowFinished(f.desc.Key, phase.String(), f.now().Sub(start))
	if err != nil {
		kind := KindOf(err)
		if phase == PhaseRejected {
			log.Warn("oauth callback rejected", logger.Phase(phase.String()), logger.Kind(kind.String()), logger.Err(err))
		} else {
			log.Error("oauth callback failed", logger.Phase(phase.String()), logger.Kind(kind.String()), logger.Err(err))
		}
		return nil, err
	}
	log.Info("oauth callback completed", logger.Phase(phase.String()), logger.String("email", mask.Email(id.Email)))
	return id, nil
}

func (f *Flow) callback(ctx context.Context, p CallbackParams, sealed string) (*Identity, error) {
	log := logger.From(ctx)

	var stored *FlowState
	if sealed != "" {
		st, err := f.codec.Open(sealed)
		if err != nil {
			// A forged or corrupted cookie is the same as no cookie.
			log.Debug("stored state rejected", logger.Provider(f.desc.Key), logger.Err(err))
		} else {
			stored = &st
		}
	}

	now := f.now()
	if err := ValidateCallback(f.desc.Key, p, stored, now); err != nil {
		return nil, err
	}
	f.transition(ctx, PhaseValidated)

	if f.ledger != nil {
		ttl := stored.ExpiresAt.Sub(now)
		if ttl < time.Second {
			ttl = time.Second
		}
		first, err := f.ledger.Consume(ctx, stored.Value, ttl)
		if err != nil {
			// Single use cannot be proven; fail closed.
			return nil, newError(KindInvalidState, f.desc.Key, "state ledger unavailable", err)
		}
		if !first {
			return nil, newError(KindInvalidState, f.desc.Key, "state already used", nil)
		}
	}

	f.transition(ctx, PhaseExchanging)
	token, err := f.client.Exchange(ctx, f.desc, f.creds, p.Code)
	if err != nil {
		return nil, err
	}

	f.transition(ctx, PhaseFetching)
	return f.client.FetchIdentity(ctx, f.desc, token.AccessToken)
}

func (f *Flow) transition(ctx context.Context, p Phase) {
	logger.From(ctx).Debug("oauth flow transition", logger.Provider(f.desc.Key), logger.Phase(p.String()))
}
