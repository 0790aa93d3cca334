package cqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeStartsUp(t *testing.T) {
	node := NewNode(testAddress, NodeDistanceLocal)

	assert.Equal(t, testAddress, node.Address())
	assert.Equal(t, NodeDistanceLocal, node.Distance())
	assert.Equal(t, NodeStateUp, node.State())
}

func TestNodeMarkTransitions(t *testing.T) {
	node := NewNode(testAddress, NodeDistanceRemote)

	node.MarkDown()
	assert.Equal(t, NodeStateDown, node.State())

	node.MarkUp()
	assert.Equal(t, NodeStateUp, node.State())
}

func TestForceDownIsTerminal(t *testing.T) {
	node := NewNode(testAddress, NodeDistanceRemote)

	node.ForceDown()
	assert.Equal(t, NodeStateForcedDown, node.State())

	node.MarkUp()
	assert.Equal(t, NodeStateForcedDown, node.State())

	node.MarkDown()
	assert.Equal(t, NodeStateForcedDown, node.State())
}
