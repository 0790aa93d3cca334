package cqp

import "sync/atomic"

// NodeState is the tri-state liveness of a remote node.
type NodeState int32

const (
	// NodeStateUp means at least one connection to the node is believed healthy.
	NodeStateUp NodeState = iota

	// NodeStateDown means every connection is currently broken; reconnection
	// may still bring the node back up.
	NodeStateDown

	// NodeStateForcedDown is terminal for the pool's lifetime: the
	// reconnection schedule gave up or a fatal protocol error occurred.
	NodeStateForcedDown
)

func (s NodeState) String() string {
	switch s {
	case NodeStateUp:
		return "up"
	case NodeStateDown:
		return "down"
	default:
		return "forced down"
	}
}

// NodeDistance classifies how near a node is for pool sizing purposes.
// Unknown distances are treated as remote.
type NodeDistance int

const (
	NodeDistanceRemote NodeDistance = iota
	NodeDistanceLocal
)

// Node represents one remote endpoint of the cluster, with liveness state
// independent of any single pool. Pools and background tasks hold it only via
// weak handles; the strong owner is the NodeRegistry or the embedding session.
type Node struct {
	address  string
	distance NodeDistance
	state    atomic.Int32
}

// NewNode creates a node in the Up state.
func NewNode(address string, distance NodeDistance) *Node {
	return &Node{address: address, distance: distance}
}

// Address returns the node's broadcast address.
func (n *Node) Address() string {
	return n.address
}

// Distance returns the node's distance classification.
func (n *Node) Distance() NodeDistance {
	return n.distance
}

// State returns the current liveness state.
func (n *Node) State() NodeState {
	return NodeState(n.state.Load())
}

// MarkUp transitions the node to Up, unless it has been forced down.
func (n *Node) MarkUp() {
	n.transition(NodeStateUp)
}

// MarkDown transitions the node to Down, unless it has been forced down.
func (n *Node) MarkDown() {
	n.transition(NodeStateDown)
}

// ForceDown permanently marks the node down. No later transition reverses it.
func (n *Node) ForceDown() {
	n.state.Store(int32(NodeStateForcedDown))
}

func (n *Node) transition(target NodeState) {
	for {
		current := n.state.Load()
		if NodeState(current) == NodeStateForcedDown {
			return
		}
		if n.state.CompareAndSwap(current, int32(target)) {
			return
		}
	}
}
