package cqp

import (
	"errors"
	"fmt"
)

// ErrNoActiveConnections is returned by ConnectionPool.Connection when the pool
// is empty or every pooled connection reports itself broken.
// You can check for this error with errors.Is.
var ErrNoActiveConnections = errors.New("no active connections")

// DialErrorKind classifies connection establishment failures.
type DialErrorKind int

const (
	// DialTransient covers refused/reset/otherwise recoverable dial failures.
	// Transient failures shrink the initial pool or end a single repair
	// attempt; they never disable the pool.
	DialTransient DialErrorKind = iota

	// DialTimeout means the configured connect timeout elapsed. Treated the
	// same as transient for retry purposes.
	DialTimeout

	// DialProtocolIncompatible means a version/handshake mismatch. Fatal:
	// aborts pool construction and permanently disables reconnection.
	DialProtocolIncompatible
)

func (k DialErrorKind) String() string {
	switch k {
	case DialTimeout:
		return "timeout"
	case DialProtocolIncompatible:
		return "protocol incompatible"
	default:
		return "transient"
	}
}

// DialError is the error returned by connection establishment, tagged with a
// DialErrorKind so callers can distinguish fatal from recoverable failures.
type DialError struct {
	Kind    DialErrorKind
	Address string
	cause   error
}

func (e *DialError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("dial %s: %s: %v", e.Address, e.Kind, e.cause)
	}
	return fmt.Sprintf("dial %s: %s", e.Address, e.Kind)
}

func (e *DialError) Unwrap() error {
	return e.cause
}

// NewDialError creates a tagged dial error wrapping cause (which may be nil).
func NewDialError(kind DialErrorKind, address string, cause error) *DialError {
	return &DialError{Kind: kind, Address: address, cause: cause}
}

// isFatalDialError reports whether err carries the protocol-incompatible tag.
// Anything else, tagged or not, is recoverable.
func isFatalDialError(err error) bool {
	var dialErr *DialError
	return errors.As(err, &dialErr) && dialErr.Kind == DialProtocolIncompatible
}
