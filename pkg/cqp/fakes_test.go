package cqp

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testAddress = "10.0.0.7:9042"

// fakeConnection records writes and exposes breakage toggles for tests.
type fakeConnection struct {
	id     int
	sink   chan<- error
	broken atomic.Bool
	closed atomic.Bool

	mu       sync.Mutex
	writes   []*Envelope
	writeErr error
}

func (c *fakeConnection) IsBroken() bool {
	return c.broken.Load()
}

func (c *fakeConnection) Write(_ context.Context, envelope *Envelope, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeErr != nil {
		return c.writeErr
	}

	c.writes = append(c.writes, envelope)
	return nil
}

func (c *fakeConnection) Close() error {
	c.closed.Store(true)
	return nil
}

// failWith marks the connection broken and reports the failure through the
// error sink it was dialed with, the way a real transport would.
func (c *fakeConnection) failWith(err error) {
	c.broken.Store(true)
	if c.sink != nil {
		select {
		case c.sink <- err:
		default:
		}
	}
}

func (c *fakeConnection) writesByOpcode(opcode Opcode) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, envelope := range c.writes {
		if envelope.Opcode == opcode {
			count++
		}
	}
	return count
}

func (c *fakeConnection) lastWrite() *Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.writes) == 0 {
		return nil
	}
	return c.writes[len(c.writes)-1]
}

// fakeManager dials fakeConnections, optionally following a script of per-dial
// errors consumed in order (nil meaning a successful dial).
type fakeManager struct {
	mu     sync.Mutex
	nextID int
	script []error
	dialed []*fakeConnection
}

func newFakeManager(script ...error) *fakeManager {
	return &fakeManager{script: script}
}

func (m *fakeManager) Dial(_ context.Context, _ string, errorSink chan<- error) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.script) > 0 {
		err := m.script[0]
		m.script = m.script[1:]
		if err != nil {
			return nil, err
		}
	}

	connection := &fakeConnection{id: m.nextID, sink: errorSink}
	m.nextID++
	m.dialed = append(m.dialed, connection)
	return connection, nil
}

func (m *fakeManager) pushScript(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, errs...)
}

func (m *fakeManager) dialCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dialed)
}

func (m *fakeManager) connections() []*fakeConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*fakeConnection(nil), m.dialed...)
}

// blockingManager hangs every dial until the context is cancelled, simulating
// an unresponsive endpoint.
type blockingManager struct{}

func (blockingManager) Dial(ctx context.Context, _ string, _ chan<- error) (Connection, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// stubPolicy hands out schedules with a fixed list of delays, counting how
// many schedules have been created.
type stubPolicy struct {
	delays    []time.Duration
	schedules atomic.Int32
}

func (p *stubPolicy) NewNodeSchedule() ReconnectionSchedule {
	p.schedules.Add(1)
	return &stubSchedule{delays: append([]time.Duration(nil), p.delays...)}
}

type stubSchedule struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *stubSchedule) NextDelay() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.delays) == 0 {
		return 0, false
	}

	delay := s.delays[0]
	s.delays = s.delays[1:]
	return delay, true
}

func repeatDelays(delay time.Duration, count int) []time.Duration {
	delays := make([]time.Duration, count)
	for i := range delays {
		delays[i] = delay
	}
	return delays
}

// newTestPool builds a bare pool without background tasks.
func newTestPool(t *testing.T, manager ConnectionManager, desiredSize int, connectTimeout time.Duration) (*ConnectionPool, chan error, Strong[ConnectionManager]) {
	t.Helper()

	strongManager := NewStrong(manager)
	errorSink := make(chan error, desiredSize)
	config := NewPoolConfigBuilder().
		WithLocalSize(desiredSize).
		WithConnectTimeout(connectTimeout).
		Build()

	pool, err := newConnectionPool(
		context.Background(), strongManager.Downgrade(), testAddress, NodeDistanceLocal, config, errorSink)
	require.NoError(t, err)
	require.NotNil(t, pool)

	return pool, errorSink, strongManager
}
