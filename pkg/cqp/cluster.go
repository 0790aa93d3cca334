package cqp

import (
	"context"
	"fmt"

	cmap "github.com/orcaman/concurrent-map"
	"github.com/rs/zerolog/log"
)

// NodeRegistry is the strong owner of nodes and their pools. Everything else
// in the package holds them weakly, so removing a node from the registry is
// enough to wind down its background tasks.
type NodeRegistry struct {
	factory *ConnectionPoolFactory
	entries cmap.ConcurrentMap
}

type nodeEntry struct {
	node      *Node
	ownedNode Strong[*Node]
	ownedPool Strong[*ConnectionPool]
}

// NewNodeRegistry creates an empty registry backed by the given factory.
func NewNodeRegistry(factory *ConnectionPoolFactory) *NodeRegistry {
	return &NodeRegistry{
		factory: factory,
		entries: cmap.New(),
	}
}

// AddNode registers a node and dials its connection pool. Registering an
// address twice is an error.
func (r *NodeRegistry) AddNode(ctx context.Context, address string, distance NodeDistance) (*Node, error) {
	if _, ok := r.entries.Get(address); ok {
		return nil, fmt.Errorf("node %s already registered", address)
	}

	node := NewNode(address, distance)
	ownedNode := NewStrong(node)

	ownedPool, err := r.factory.Create(ctx, distance, address, ownedNode.Downgrade())
	if err != nil {
		ownedNode.Release()
		return nil, err
	}

	entry := &nodeEntry{node: node, ownedNode: ownedNode, ownedPool: ownedPool}
	if ok := r.entries.SetIfAbsent(address, entry); !ok {
		// lost the race to a concurrent AddNode for the same address
		r.teardown(entry)
		return nil, fmt.Errorf("node %s already registered", address)
	}

	log.Debug().Str("address", address).Msg("Node registered.")
	return node, nil
}

// Node returns the registered node for the address.
func (r *NodeRegistry) Node(address string) (*Node, bool) {
	value, ok := r.entries.Get(address)
	if !ok {
		return nil, false
	}

	return value.(*nodeEntry).node, true
}

// Pool returns the connection pool for the address.
func (r *NodeRegistry) Pool(address string) (*ConnectionPool, bool) {
	value, ok := r.entries.Get(address)
	if !ok {
		return nil, false
	}

	return value.(*nodeEntry).ownedPool.Get(), true
}

// RemoveNode drops a node from the registry, releasing the ownership handles
// so the pool's background tasks self-terminate, and closes the pooled
// connections.
func (r *NodeRegistry) RemoveNode(address string) {
	value, ok := r.entries.Pop(address)
	if !ok {
		return
	}

	r.teardown(value.(*nodeEntry))
	log.Debug().Str("address", address).Msg("Node removed.")
}

// Close removes every node from the registry.
func (r *NodeRegistry) Close() {
	for item := range r.entries.IterBuffered() {
		r.RemoveNode(item.Key)
	}
}

func (r *NodeRegistry) teardown(entry *nodeEntry) {
	pool := entry.ownedPool.Get()

	entry.ownedPool.Release()
	entry.ownedNode.Release()

	if pool != nil {
		pool.Close()
	}
}
