package cqp

import "time"

const (
	// DefaultHeartbeatInterval is used when no heartbeat interval is configured.
	DefaultHeartbeatInterval = 30 * time.Second

	defaultLocalSize  = 1
	defaultRemoteSize = 1
)

// PoolConfig represents the sizing and timing settings for node connection
// pools. Immutable once built; a zero ConnectTimeout means dials are not
// bounded. See PoolConfigBuilder.
type PoolConfig struct {
	LocalSize         int
	RemoteSize        int
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
}

// DefaultPoolConfig returns the default pool configuration: one connection per
// node regardless of distance, no connect timeout, 30s heartbeats.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		LocalSize:         defaultLocalSize,
		RemoteSize:        defaultRemoteSize,
		ConnectTimeout:    0,
		HeartbeatInterval: DefaultHeartbeatInterval,
	}
}

// sizeFor returns the desired pool size for a node at the given distance.
func (c PoolConfig) sizeFor(distance NodeDistance) int {
	if distance == NodeDistanceLocal {
		return c.LocalSize
	}
	return c.RemoteSize
}

// PoolConfigBuilder builds a PoolConfig starting from the defaults.
type PoolConfigBuilder struct {
	config PoolConfig
}

// NewPoolConfigBuilder creates a builder seeded with DefaultPoolConfig.
func NewPoolConfigBuilder() *PoolConfigBuilder {
	return &PoolConfigBuilder{config: DefaultPoolConfig()}
}

// WithLocalSize sets the pool size for local nodes.
func (b *PoolConfigBuilder) WithLocalSize(localSize int) *PoolConfigBuilder {
	b.config.LocalSize = localSize
	return b
}

// WithRemoteSize sets the pool size for remote nodes.
func (b *PoolConfigBuilder) WithRemoteSize(remoteSize int) *PoolConfigBuilder {
	b.config.RemoteSize = remoteSize
	return b
}

// WithConnectTimeout sets the per-dial timeout. Zero disables the bound.
func (b *PoolConfigBuilder) WithConnectTimeout(connectTimeout time.Duration) *PoolConfigBuilder {
	b.config.ConnectTimeout = connectTimeout
	return b
}

// WithHeartbeatInterval sets the keepalive probe interval.
func (b *PoolConfigBuilder) WithHeartbeatInterval(heartbeatInterval time.Duration) *PoolConfigBuilder {
	b.config.HeartbeatInterval = heartbeatInterval
	return b
}

// Build returns the resulting config.
func (b *PoolConfigBuilder) Build() PoolConfig {
	return b.config
}
