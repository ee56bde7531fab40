package oauth

import (
	"errors"
	"fmt"
)

// Kind classifies callback failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingCode
	KindInvalidState
	KindTokenExchangeFailed
	KindUserInfoFetchFailed
)

func (k Kind) String() string {
	switch k {
	case KindMissingCode:
		return "MissingCode"
	case KindInvalidState:
		return "InvalidState"
	case KindTokenExchangeFailed:
		return "TokenExchangeFailed"
	case KindUserInfoFetchFailed:
		return "UserInfoFetchFailed"
	default:
		return "Unknown"
	}
}

// IsValidation reports kinds caused by a malformed or forged callback request.
func (k Kind) IsValidation() bool {
	return k == KindMissingCode || k == KindInvalidState
}

// Error is the typed failure returned by Flow.Callback. Its message carries
// the provider, kind, a short reason and the wrapped cause; it never contains
// response bodies, access tokens or client secrets.
type Error struct {
	Kind     Kind
	Provider string
	Reason   string
	Err      error
}

// Sentinels for errors.Is matching on Kind only.
var (
	ErrMissingCode         = &Error{Kind: KindMissingCode}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrTokenExchangeFailed = &Error{Kind: KindTokenExchangeFailed}
	ErrUserInfoFetchFailed = &Error{Kind: KindUserInfoFetchFailed}
)

func (e *Error) Error() string {
	msg := "oauth"
	if e.Provider != "" {
		msg += " " + e.Provider
	}
	msg += ": " + e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Provider == "" && t.Reason == "" && t.Err == nil
}

// KindOf extracts the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, provider, reason string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Reason: reason, Err: cause}
}

func statusError(code int) error {
	return fmt.Errorf("unexpected status %d", code)
}
