package auth

import (
	"fmt"
	"strings"
)

// Kind classifies an Error. Callers match on kind with errors.Is against the
// sentinel values below.
type Kind string

const (
	KindMissingCredentials            Kind = "missing_credentials"
	KindAuthenticationTransportError  Kind = "authentication_transport_error"
	KindAuthenticationRejected        Kind = "authentication_rejected"
	KindInvalidAuthenticationResponse Kind = "invalid_authentication_response"
	KindTokenUnavailable              Kind = "token_unavailable"
	KindUnknownClient                 Kind = "unknown_client"
	KindRequestTransportError         Kind = "request_transport_error"
	KindRequestRejected               Kind = "request_rejected"
)

var (
	ErrMissingCredentials            = &Error{Kind: KindMissingCredentials}
	ErrAuthenticationTransportError  = &Error{Kind: KindAuthenticationTransportError}
	ErrAuthenticationRejected        = &Error{Kind: KindAuthenticationRejected}
	ErrInvalidAuthenticationResponse = &Error{Kind: KindInvalidAuthenticationResponse}
	ErrTokenUnavailable              = &Error{Kind: KindTokenUnavailable}
	ErrUnknownClient                 = &Error{Kind: KindUnknownClient}
	ErrRequestTransportError         = &Error{Kind: KindRequestTransportError}
	ErrRequestRejected               = &Error{Kind: KindRequestRejected}
)

// Error is the single error type surfaced by the authentication and request
// layers. Status and StatusText are set only for the *Rejected kinds; Cause is
// set for the transport kinds and for undecodable token responses.
type Error struct {
	Kind       Kind
	ClientID   string
	Status     int
	StatusText string
	// Details holds the API's own error titles/details when the rejected
	// response carried a JSON:API error document.
	Details []string
	Cause   error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindMissingCredentials:
		msg = "missing required authentication credentials"
	case KindAuthenticationTransportError:
		msg = "authentication error: " + causeText(e.Cause)
	case KindAuthenticationRejected:
		msg = fmt.Sprintf("authentication failed: %d %s", e.Status, e.StatusText)
	case KindInvalidAuthenticationResponse:
		msg = "invalid authentication response"
		if e.Cause != nil {
			msg += ": " + e.Cause.Error()
		}
	case KindTokenUnavailable:
		msg = "failed to obtain access token"
	case KindUnknownClient:
		msg = fmt.Sprintf("no credentials found for client %q", e.ClientID)
	case KindRequestTransportError:
		msg = "request error: " + causeText(e.Cause)
	case KindRequestRejected:
		msg = fmt.Sprintf("request failed: %d %s", e.Status, e.StatusText)
		if len(e.Details) > 0 {
			msg += " (" + strings.Join(e.Details, "; ") + ")"
		}
	default:
		msg = string(e.Kind)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func causeText(err error) string {
	if err == nil {
		return "unknown cause"
	}
	return err.Error()
}
