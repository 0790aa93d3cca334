package cqp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConnectionPool houses the live connections to one remote node. The pool
// shrinks transiently when connections fail and is brought back to its desired
// size by the reconnection machinery; it never grows beyond it.
type ConnectionPool struct {
	id          uuid.UUID
	manager     Weak[ConnectionManager]
	address     string
	config      PoolConfig
	desiredSize int

	connLock    sync.RWMutex
	connections []Connection

	currentIndex atomic.Uint64
	errorSink    chan error
}

// newConnectionPool dials the initial connection set. A protocol-incompatible
// dial aborts construction entirely; other dial failures only shrink the
// initial set and trigger a repair notification on the failure channel.
func newConnectionPool(
	ctx context.Context,
	manager Weak[ConnectionManager],
	address string,
	distance NodeDistance,
	config PoolConfig,
	errorSink chan error) (*ConnectionPool, error) {

	strongManager, ok := manager.Get()
	if !ok {
		return nil, fmt.Errorf("connection manager gone while creating pool for %s", address)
	}

	desiredSize := config.sizeFor(distance)

	type dialResult struct {
		connection Connection
		err        error
	}

	results := make([]dialResult, desiredSize)
	wg := &sync.WaitGroup{}
	for i := 0; i < desiredSize; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			connection, err := newConnection(ctx, strongManager, address, config.ConnectTimeout, errorSink)
			results[slot] = dialResult{connection: connection, err: err}
		}(i)
	}
	wg.Wait()

	connections := make([]Connection, 0, desiredSize)
	var fatal error
	for _, result := range results {
		switch {
		case result.err == nil:
			connections = append(connections, result.connection)
		case isFatalDialError(result.err):
			// propagate unrecoverable error
			fatal = result.err
		default:
			// skip invalid connections which can be established later
			log.Debug().Str("address", address).Err(result.err).
				Msg("Skipping connection that failed to establish.")
		}
	}

	if fatal != nil {
		for _, connection := range connections {
			_ = connection.Close()
		}
		return nil, fatal
	}

	if len(connections) != desiredSize {
		// some connections have failed, but can be brought back up, so trigger reconnection
		select {
		case errorSink <- fmt.Errorf("not all pool connections to %s could be established", address):
			log.Debug().Str("address", address).Msg("Failure monitor notified.")
		default:
			log.Warn().Str("address", address).Msg("Failure monitor channel full, notification dropped.")
		}
	}

	return &ConnectionPool{
		id:          uuid.New(),
		manager:     manager,
		address:     address,
		config:      config,
		desiredSize: desiredSize,
		connections: connections,
		errorSink:   errorSink,
	}, nil
}

// Address returns the remote address this pool connects to.
func (cp *ConnectionPool) Address() string {
	return cp.address
}

// Connection returns a healthy connection in approximate round-robin order.
// Fails with ErrNoActiveConnections when the pool is empty or every
// connection reports itself broken. Fairness is best-effort: the cursor
// increment and the length snapshot are not one atomic operation, so exact
// ordering is not guaranteed under concurrent callers.
func (cp *ConnectionPool) Connection() (Connection, error) {
	cp.connLock.RLock()
	defer cp.connLock.RUnlock()

	poolLen := len(cp.connections)
	if poolLen == 0 {
		return nil, cp.noActiveConnections()
	}

	firstIndex := int((cp.currentIndex.Add(1) - 1) % uint64(poolLen))
	index := firstIndex

	for {
		connection := cp.connections[index]
		if !connection.IsBroken() {
			return connection, nil
		}

		index = (index + 1) % poolLen
		if index == firstIndex {
			// we've checked the whole pool and everything's down
			return nil, cp.noActiveConnections()
		}
	}
}

// IsAnyConnectionUp reports whether at least one connection is not broken.
func (cp *ConnectionPool) IsAnyConnectionUp() bool {
	cp.connLock.RLock()
	defer cp.connLock.RUnlock()

	for _, connection := range cp.connections {
		if !connection.IsBroken() {
			return true
		}
	}

	return false
}

// ReconnectBroken redials every broken connection in place and tops the pool
// up to its desired size. (false, nil) means the connection manager is gone
// and the session is shutting down - the caller should stop retrying. A dial
// error propagates unchanged and aborts the call. (true, nil) means every slot
// was healthy when the call completed; some may fail again immediately after,
// which triggers a fresh failure signal.
func (cp *ConnectionPool) ReconnectBroken(ctx context.Context) (bool, error) {
	manager, ok := cp.manager.Get()
	if !ok {
		// connection manager is gone - we're probably dropping the session
		return false, nil
	}

	cp.connLock.Lock()
	defer cp.connLock.Unlock()

	// 1. try to reconnect broken
	for i, connection := range cp.connections {
		if connection.IsBroken() {
			fresh, err := newConnection(ctx, manager, cp.address, cp.config.ConnectTimeout, cp.errorSink)
			if err != nil {
				return false, err
			}

			_ = connection.Close()
			cp.connections[i] = fresh
		}
	}

	// 2. try to fill missing
	for len(cp.connections) < cp.desiredSize {
		fresh, err := newConnection(ctx, manager, cp.address, cp.config.ConnectTimeout, cp.errorSink)
		if err != nil {
			return false, err
		}

		cp.connections = append(cp.connections, fresh)
	}

	// at this point either all connections are up, or some might have died in
	// the meantime, which will trigger a new reconnection
	return true, nil
}

// Close closes every pooled connection. Intended for the pool's strong owner
// after releasing its handle; the background tasks terminate on their own.
func (cp *ConnectionPool) Close() {
	cp.connLock.Lock()
	defer cp.connLock.Unlock()

	for _, connection := range cp.connections {
		if err := connection.Close(); err != nil {
			log.Debug().Str("address", cp.address).Err(err).Msg("Error closing pooled connection.")
		}
	}

	cp.connections = nil
}

// allConnectionsDown reports whether every connection in the pool is broken.
// An empty pool counts as down.
func (cp *ConnectionPool) allConnectionsDown() bool {
	return !cp.IsAnyConnectionUp()
}

func (cp *ConnectionPool) noActiveConnections() error {
	log.Warn().Str("address", cp.address).Str("pool_id", cp.id.String()).
		Msg("All connections down to node.")
	return fmt.Errorf("%w to %s", ErrNoActiveConnections, cp.address)
}
