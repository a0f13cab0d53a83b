// Package bridgeerr defines the error kinds the translation core and its
// collaborators report, per the bridge's error handling design.
package bridgeerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error kinds the bridge distinguishes.
type Kind string

const (
	// MalformedFrame: UDP frame too short or inconsistent length.
	MalformedFrame Kind = "malformed_frame"
	// UnknownPeer: data PDU with an access address not in the table, or
	// ACL with an unknown handle.
	UnknownPeer Kind = "unknown_peer"
	// DuplicateHandle: host re-uses an active connection handle.
	DuplicateHandle Kind = "duplicate_handle"
	// TransportError: socket send/recv failure.
	TransportError Kind = "transport_error"
	// CollaboratorError: host-stack registration failure.
	CollaboratorError Kind = "collaborator_error"
	// FatalInitError: inability to bind UDP or acquire the host transport.
	FatalInitError Kind = "fatal_init_error"
)

// BridgeError wraps a Kind with context, so callers can both print a useful
// message and errors.Is/errors.As against the kind.
type BridgeError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error, if any.
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, bridgeerr.New(SomeKind, "")) to match on Kind alone.
func (e *BridgeError) Is(target error) bool {
	var other *BridgeError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs a BridgeError of the given kind.
func New(kind Kind, format string, args ...interface{}) *BridgeError {
	return &BridgeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a BridgeError of the given kind, wrapping an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *BridgeError {
	return &BridgeError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) a *BridgeError, and
// whether one was found.
func KindOf(err error) (Kind, bool) {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return "", false
}
