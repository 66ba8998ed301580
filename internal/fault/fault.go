// Package fault defines the structured error classification used across the
// daemon. Each layer tags failures with a [Kind] at the point where the
// condition is first detected: the transport layer tags [Network], the store
// layer decodes response metadata into [Permission] or [Schema], and config
// loading tags [Validation]. Callers branch on kinds via [KindOf] instead of
// matching on message substrings.
package fault

import (
	"errors"
	"fmt"
)

// ///////////////////////////////////////////////
// Kinds
// ///////////////////////////////////////////////

// Kind classifies a failure for propagation and actor-facing messaging.
type Kind int

const (
	// Unknown is the fallback for failures no layer could classify.
	Unknown Kind = iota
	// AuthRequired means no usable identity is available.
	AuthRequired
	// Network means a transport-level failure reaching an external service.
	Network
	// Permission means the store rejected the operation due to access policy.
	Permission
	// Schema means an expected backing table or collection is absent.
	Schema
	// Validation means configuration is malformed or missing required values.
	Validation
)

// String returns the display name for a kind.
func (k Kind) String() string {
	switch k {
	case AuthRequired:
		return "auth_required"
	case Network:
		return "network"
	case Permission:
		return "permission"
	case Schema:
		return "schema"
	case Validation:
		return "validation"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name back to a [Kind]. Unrecognized names map
// to [Unknown]. Used by the control protocol to round-trip kinds as strings.
func ParseKind(s string) Kind {
	switch s {
	case "auth_required":
		return AuthRequired
	case "network":
		return Network
	case "permission":
		return Permission
	case "schema":
		return Schema
	case "validation":
		return Validation
	default:
		return Unknown
	}
}

// ///////////////////////////////////////////////
// Error
// ///////////////////////////////////////////////

// Error is a classified failure. Op names the operation that failed, Hint is
// an optional actor-facing remediation line, and Err is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Hint string
	Err  error
}

// New builds a classified error wrapping cause.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithHint attaches an actor-facing remediation hint and returns e.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ///////////////////////////////////////////////
// Classification
// ///////////////////////////////////////////////

// KindOf returns the kind of the first [*Error] in err's chain, or [Unknown]
// when the chain carries no classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// HintOf returns the first non-empty remediation hint in err's chain.
func HintOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Hint
	}
	return ""
}

// Message returns a best-effort human-readable line for the actor. The raw
// cause stays in logs; this is the single message surfaced to the UI.
func Message(err error) string {
	switch KindOf(err) {
	case AuthRequired:
		return "Sign in before starting time tracking"
	case Network:
		return "Network error: check your connection and the store URL"
	case Permission:
		return "The store rejected the request: check your access policies"
	case Schema:
		return "The store is missing a required table: run the setup migration"
	case Validation:
		if hint := HintOf(err); hint != "" {
			return hint
		}
		return "Configuration is incomplete: check the config file"
	default:
		return "The operation failed: see the daemon log for details"
	}
}
