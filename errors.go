package ddpnet

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Standard error variables for common conditions.
var (
	// ErrDuplicateID reports a correlation id registered while an entry
	// for the same id is still pending. This is a programming error at
	// the call site, not a connection failure.
	ErrDuplicateID = errors.New("correlation id already pending")

	// ErrUnknownID reports a terminal message referencing a correlation
	// id that is not in the pending table. Non-fatal: duplicate or late
	// server replies are logged and dropped.
	ErrUnknownID = errors.New("unknown correlation id")

	// ErrConnectionClosed is the synthetic failure delivered to every
	// pending call and subscription on connection teardown.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNotConnected reports an operation that requires a live
	// connection.
	ErrNotConnected = errors.New("client not connected")

	// ErrAlreadyConnected reports a second Connect on a client that is
	// already running.
	ErrAlreadyConnected = errors.New("client already connected")
)

// ServerError is a typed application-level failure from the server,
// delivered to the caller whose request produced it. It carries the raw
// error payload and the original request payload so the caller can
// choose to retry.
type ServerError struct {
	// Kind is the protocol error discriminator, for example
	// ErrorKindTooManyRequests. Numeric codes are rendered in decimal.
	Kind string
	// Reason is the server's short human-readable explanation.
	Reason string
	// Message is the server's long-form message, when present.
	Message string
	// ErrorType is the server-side error class name, when present.
	ErrorType string
	// TimeToReset is the server-specified delay before the request may
	// be safely resent. Zero unless the server provided one.
	TimeToReset time.Duration
	// Raw is the untouched error payload.
	Raw json.RawMessage
	// OriginalRequest is the outbound payload of the request that
	// produced this error.
	OriginalRequest json.RawMessage
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("server error %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("server error %s", e.Kind)
}

// IsTooManyRequests reports whether this is the rate-limit rejection
// kind that the client retries once automatically.
func (e *ServerError) IsTooManyRequests() bool {
	return e.Kind == ErrorKindTooManyRequests
}

// AsServerError unwraps err into a *ServerError if one is in its chain.
func AsServerError(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
