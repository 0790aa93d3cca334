package cqp

import (
	"context"
	"errors"
	"time"
)

// Connection is a single live connection to a remote node. Implementations
// are provided by the transport layer; the pool only cares about liveness and
// the ability to push requests.
type Connection interface {
	// IsBroken reports whether the connection has failed and should be
	// replaced. Must be safe to call concurrently.
	IsBroken() bool

	// Write sends a request on the connection, optionally awaiting a reply.
	Write(ctx context.Context, envelope *Envelope, expectReply bool) error

	// Close releases the connection's resources.
	Close() error
}

// ConnectionManager establishes connections to remote nodes. Transport
// breakage detected after a successful dial must be reported through the
// errorSink handed in here; that is what drives the pool's failure monitor.
type ConnectionManager interface {
	Dial(ctx context.Context, address string, errorSink chan<- error) (Connection, error)
}

// newConnection dials one connection with the optional per-dial timeout.
// A timed-out dial is reported as a DialTimeout error.
func newConnection(
	ctx context.Context,
	manager ConnectionManager,
	address string,
	timeout time.Duration,
	errorSink chan<- error) (Connection, error) {

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	connection, err := manager.Dial(ctx, address, errorSink)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewDialError(DialTimeout, address, err)
		}
		return nil, err
	}

	return connection, nil
}
