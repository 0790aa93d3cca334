package cqp

import "strings"

// ProtocolVersion identifies the native protocol version envelopes are tagged
// with. Frame encoding itself lives in the transport layer.
type ProtocolVersion byte

const (
	ProtocolVersion3 ProtocolVersion = 3
	ProtocolVersion4 ProtocolVersion = 4
	ProtocolVersion5 ProtocolVersion = 5
)

// Opcode tags the request carried by an Envelope.
type Opcode byte

const (
	// OpcodeOptions is the lightweight keepalive request used by heartbeats.
	OpcodeOptions Opcode = 0x05

	// OpcodeQuery carries a query string, e.g. a USE statement.
	OpcodeQuery Opcode = 0x07
)

// Envelope is a lightweight protocol request handed to Connection.Write.
// Encoding to wire frames is the transport's concern.
type Envelope struct {
	Version ProtocolVersion
	Opcode  Opcode
	Query   string
}

// NewOptionsEnvelope builds the keepalive request sent by the heartbeat loop.
func NewOptionsEnvelope(version ProtocolVersion) *Envelope {
	return &Envelope{Version: version, Opcode: OpcodeOptions}
}

// NewUseKeyspaceEnvelope builds the request that switches a connection to the
// given keyspace.
func NewUseKeyspaceEnvelope(keyspace string, version ProtocolVersion) *Envelope {
	return &Envelope{
		Version: version,
		Opcode:  OpcodeQuery,
		Query:   "USE " + quoteIdentifier(keyspace),
	}
}

// quoteIdentifier wraps an identifier in double quotes, doubling any embedded
// quotes, so case and reserved words survive the round trip.
func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
