// Package oauth implements the OAuth 2.0 Authorization Code Grant against
// external identity providers.
//
// A provider is described by a static Descriptor (endpoints, scope, extra
// authorization parameters, token and header styles). Adding a provider means
// adding a Descriptor; control flow is shared. A Flow binds one Descriptor to
// the host's client credentials and exposes the two request lifecycle:
//
//	Initiate  -> authorization URL + sealed FlowState for the state cookie
//	Callback  -> validate state -> exchange code -> fetch identity
//
// Callback returns either an *Identity or a typed *Error; deciding between host
// hooks and default HTTP responses is left to the transport adapter.
package oauth
