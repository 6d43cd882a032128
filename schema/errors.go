package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrelationTimeout indicates no response arrived within the request budget.
	ErrCorrelationTimeout = errors.New("timeout occurred")
	// ErrInvalidInteger indicates an integer prompt answered with a non-integer.
	ErrInvalidInteger = errors.New("returned value is not a valid integer")
	// ErrInvalidMessage indicates an inbound message missing required fields.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrUnknownControl indicates a control name outside resume/pause/undo/redo.
	ErrUnknownControl = errors.New("unknown control")
	// ErrNotConnected indicates no rendering context is attached.
	ErrNotConnected = errors.New("rendering context not connected")
	// ErrChannelClosed indicates the message channel was closed.
	ErrChannelClosed = errors.New("channel closed")
	// ErrPromptNotFound indicates an answer for a prompt that is no longer open.
	ErrPromptNotFound = errors.New("prompt not found")
)

// RemoteError is an error payload carried by a response. Network is set when
// the remote side flagged it as a transport failure (neterror).
type RemoteError struct {
	Message string
	Network bool
}

func (e *RemoteError) Error() string {
	if e.Network {
		return "network error: " + e.Message
	}
	return e.Message
}

// ValidationError reports a response that arrived but failed mode validation.
type ValidationError struct {
	Mode  InputMode
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v (got %T)", e.Mode, e.Err, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is a RemoteError flagged as a network failure.
func IsNetworkError(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Network
}
