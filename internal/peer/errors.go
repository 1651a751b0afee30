package peer

import (
	"errors"
	"fmt"
)

// ErrInvalidOperation is wrapped by every error returned for an
// operation that does not apply to the current session state. Such
// operations have no side effect.
var ErrInvalidOperation = errors.New("invalid operation")

var (
	ErrAlreadyNegotiating  = fmt.Errorf("%w: negotiation already in flight", ErrInvalidOperation)
	ErrAlreadyConnected    = fmt.Errorf("%w: connection already established", ErrInvalidOperation)
	ErrNoConnection        = fmt.Errorf("%w: no connection is open", ErrInvalidOperation)
	ErrNoChannel           = fmt.Errorf("%w: no channel is open", ErrInvalidOperation)
	ErrChannelExists       = fmt.Errorf("%w: channel already exists", ErrInvalidOperation)
	ErrChannelNotOpen      = fmt.Errorf("%w: channel is not open", ErrInvalidOperation)
	ErrTargetNotConfigured = fmt.Errorf("%w: signaling target not configured", ErrInvalidOperation)
)

var (
	// ErrTransportClosed completes a negotiation whose transport was
	// closed before the remote description could be applied.
	ErrTransportClosed = errors.New("transport closed")

	// ErrSessionStopped is returned by operations on a stopped Session.
	ErrSessionStopped = errors.New("session stopped")

	errNoLocalDescription = errors.New("no local description")
)

// NegotiationError reports a failed negotiation step. The transport is
// left open so the caller can retry or close it.
type NegotiationError struct {
	Op     string
	Target string
	Err    error
}

func (e *NegotiationError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}
