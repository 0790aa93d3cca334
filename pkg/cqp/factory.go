package cqp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ReconnectionState coordinates the failure monitor with its spawned
// reconnection loop. It lives in an atomic shared by both goroutines; relaxed
// eventual visibility is all the debounce needs.
type ReconnectionState int32

const (
	// ReconnectionStateNotRunning means no reconnection loop is active.
	ReconnectionStateNotRunning ReconnectionState = iota

	// ReconnectionStateInProgress means a loop is active; new failure signals
	// are coalesced into it instead of spawning duplicates.
	ReconnectionStateInProgress

	// ReconnectionStateDisabled is terminal for the pool's lifetime: the
	// schedule gave up or a fatal protocol error occurred.
	ReconnectionStateDisabled
)

func (s ReconnectionState) String() string {
	switch s {
	case ReconnectionStateNotRunning:
		return "not running"
	case ReconnectionStateInProgress:
		return "in progress"
	default:
		return "disabled"
	}
}

// ConnectionPoolFactory builds node connection pools and wires up the
// background tasks keeping them healthy: the failure monitor, the heartbeat
// loop and the keyspace watcher. Each task holds only weak handles to the pool
// and node, so dropping the strong handles is all it takes to stop them.
type ConnectionPoolFactory struct {
	config             PoolConfig
	version            ProtocolVersion
	manager            Strong[ConnectionManager]
	keyspaceWatcher    *KeyspaceWatcher
	reconnectionPolicy ReconnectionPolicy
}

// NewConnectionPoolFactory creates a factory. The factory owns the connection
// manager handle; Close releases it, signalling pools to stop reconnecting.
func NewConnectionPoolFactory(
	config PoolConfig,
	version ProtocolVersion,
	manager ConnectionManager,
	keyspaceWatcher *KeyspaceWatcher,
	reconnectionPolicy ReconnectionPolicy) *ConnectionPoolFactory {

	return &ConnectionPoolFactory{
		config:             config,
		version:            version,
		manager:            NewStrong(manager),
		keyspaceWatcher:    keyspaceWatcher,
		reconnectionPolicy: reconnectionPolicy,
	}
}

// ConnectionManager returns the factory's connection manager.
func (f *ConnectionPoolFactory) ConnectionManager() ConnectionManager {
	return f.manager.Get()
}

// Close releases the connection manager handle. Pools created by this factory
// observe the release as a manager-gone signal on their next repair attempt.
func (f *ConnectionPoolFactory) Close() {
	f.manager.Release()
}

// Create builds a pool for the node and spawns its background tasks. The
// returned Strong handle is the pool's ownership token: releasing it makes the
// tasks exit on their next wake.
func (f *ConnectionPoolFactory) Create(
	ctx context.Context,
	distance NodeDistance,
	address string,
	node Weak[*Node]) (Strong[*ConnectionPool], error) {

	errorSink := make(chan error, f.config.sizeFor(distance))

	pool, err := newConnectionPool(ctx, f.manager.Downgrade(), address, distance, f.config, errorSink)
	if err != nil {
		return Strong[*ConnectionPool]{}, err
	}

	strongPool := NewStrong(pool)
	weakPool := strongPool.Downgrade()

	f.monitorConnections(errorSink, weakPool, node)
	f.startHeartbeat(weakPool, node)
	f.watchKeyspace(weakPool, address)

	return strongPool, nil
}

// monitorConnections consumes failure signals and spawns reconnection loops,
// debounced through the shared ReconnectionState so only one loop runs at a
// time per pool.
func (f *ConnectionPoolFactory) monitorConnections(
	errorSink <-chan error,
	pool Weak[*ConnectionPool],
	node Weak[*Node]) {

	policy := f.reconnectionPolicy
	livenessInterval := f.config.HeartbeatInterval

	go func() {
		reconnectionState := &atomic.Int32{}

		// The failure channel has no closing side, so wake up periodically to
		// notice the owner releasing the pool.
		liveness := time.NewTicker(livenessInterval)
		defer liveness.Stop()

	monitor:
		for {
			var failure error
			select {
			case failure = <-errorSink:
			case <-liveness.C:
				if _, ok := pool.Get(); !ok {
					break monitor
				}
				continue
			}

			strongNode, ok := node.Get()
			if !ok {
				log.Warn().Msg("Node not found when trying to reconnect!")
				break
			}

			address := strongNode.Address()

			if strongNode.State() == NodeStateForcedDown {
				log.Debug().Str("address", address).
					Msg("Not starting reconnection for a forced down node.")
				break
			}

			// check if the node is down (no active connections)
			strongPool, ok := pool.Get()
			if !ok {
				// the pool is gone - we're shutting down
				break
			}

			if strongPool.allConnectionsDown() {
				log.Debug().Str("address", address).
					Msg("All connections broken - marking node as down.")
				strongNode.MarkDown()
			}

			// when one connection goes down, all of them will most likely go
			// down, so we need to protect against many reconnection attempts
			state := ReconnectionState(reconnectionState.Load())
			if state != ReconnectionStateNotRunning {
				if state == ReconnectionStateDisabled {
					break
				}

				continue
			}

			reconnectionState.Store(int32(ReconnectionStateInProgress))

			log.Warn().Str("address", address).Err(failure).
				Msg("Connection down. Starting reconnection.")

			schedule := policy.NewNodeSchedule()
			go runReconnection(schedule, reconnectionState, pool, node, address)
		}

		log.Debug().Msg("Pool monitoring stopped.")
	}()
}

// runReconnection drives one reconnection loop to completion, stores the
// resulting state into the shared flag and applies the node-state outcome.
func runReconnection(
	schedule ReconnectionSchedule,
	reconnectionState *atomic.Int32,
	pool Weak[*ConnectionPool],
	node Weak[*Node],
	address string) {

	newState := runReconnectionLoop(schedule, pool)

	reconnectionState.Store(int32(newState))
	log.Debug().Str("address", address).Stringer("state", newState).
		Msg("Reconnection loop stopped.")

	switch newState {
	case ReconnectionStateDisabled:
		if strongNode, ok := node.Get(); ok {
			log.Warn().Str("address", address).
				Msg("Forcing node down, since no connection can be established.")
			strongNode.ForceDown()
		}
	case ReconnectionStateNotRunning:
		if strongNode, ok := node.Get(); ok {
			log.Debug().Str("address", address).Msg("All connections reestablished.")
			strongNode.MarkUp()
		} else {
			log.Debug().Str("address", address).Msg("Node is discarded during reconnection.")
		}
	default:
		// the loop only returns the two states above today; keep handling for
		// anything else it may learn to return
		if strongPool, ok := pool.Get(); ok {
			if strongPool.IsAnyConnectionUp() {
				if strongNode, ok := node.Get(); ok {
					log.Debug().Str("address", address).
						Msg("Marking node as up - some connections are established.")
					strongNode.MarkUp()
				}
			}
		} else if strongNode, ok := node.Get(); ok {
			log.Debug().Str("address", address).Msg("Pool gone while in reconnection loop.")
			strongNode.ForceDown()
		}
	}
}

// runReconnectionLoop repeatedly repairs the pool per the schedule. It returns
// NotRunning on full success and Disabled when the schedule gives up, a fatal
// protocol error occurs, or the pool or its manager is gone.
func runReconnectionLoop(schedule ReconnectionSchedule, pool Weak[*ConnectionPool]) ReconnectionState {
	for {
		delay, ok := schedule.NextDelay()
		if !ok {
			// the policy doesn't want to reconnect to this node
			return ReconnectionStateDisabled
		}

		time.Sleep(delay)

		strongPool, ok := pool.Get()
		if !ok {
			// the pool might be gone
			return ReconnectionStateDisabled
		}

		allReconnected, err := strongPool.ReconnectBroken(context.Background())
		switch {
		case err != nil && isFatalDialError(err):
			return ReconnectionStateDisabled
		case err != nil:
			// transient failure - wait for the next scheduled attempt
		case allReconnected:
			return ReconnectionStateNotRunning
		default:
			// manager gone - the session is shutting down, stop retrying
			return ReconnectionStateDisabled
		}
	}
}

// startHeartbeat sends a lightweight keepalive to every pooled connection on a
// fixed interval, with the first probe delayed by one interval. Write failures
// are only logged; actual breakage is reported by the transport through the
// failure channel.
func (f *ConnectionPoolFactory) startHeartbeat(pool Weak[*ConnectionPool], node Weak[*Node]) {
	heartbeatInterval := f.config.HeartbeatInterval
	version := f.version

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for range ticker.C {
			strongNode, ok := node.Get()
			if !ok {
				break
			}

			address := strongNode.Address()
			state := strongNode.State()
			if state == NodeStateForcedDown {
				log.Debug().Str("address", address).
					Msg("Stopping heartbeat due to node being forced down.")
				break
			}

			if state != NodeStateUp {
				continue
			}

			strongPool, ok := pool.Get()
			if !ok {
				log.Debug().Str("address", address).
					Msg("Stopping heartbeat due to pool being gone.")
				break
			}

			envelope := NewOptionsEnvelope(version)

			strongPool.connLock.RLock()
			for _, connection := range strongPool.connections {
				if err := connection.Write(context.Background(), envelope, false); err != nil {
					log.Warn().Str("address", address).Err(err).
						Msg("Error waiting for heartbeat response - the connection will probably go down.")
				}
			}
			strongPool.connLock.RUnlock()
		}

		log.Debug().Msg("Stopped heartbeat.")
	}()
}

// watchKeyspace reapplies the session's keyspace to every healthy connection
// whenever it changes.
func (f *ConnectionPoolFactory) watchKeyspace(pool Weak[*ConnectionPool], address string) {
	subscription := f.keyspaceWatcher.Subscribe()
	version := f.version

	go func() {
		defer subscription.Cancel()

		for keyspace := range subscription.C {
			strongPool, ok := pool.Get()
			if !ok {
				log.Debug().Str("address", address).
					Msg("Pool dropped, exiting keyspace watcher task.")
				break
			}

			if keyspace == "" {
				continue
			}

			envelope := NewUseKeyspaceEnvelope(keyspace, version)

			strongPool.connLock.RLock()
			wg := &sync.WaitGroup{}
			for _, connection := range strongPool.connections {
				if connection.IsBroken() {
					continue
				}

				wg.Add(1)
				go func(connection Connection) {
					defer wg.Done()
					if err := connection.Write(context.Background(), envelope, false); err != nil {
						log.Error().Str("address", address).Err(err).
							Msg("Error setting keyspace for connection!")
					}
				}(connection)
			}
			wg.Wait()
			strongPool.connLock.RUnlock()
		}
	}()
}
