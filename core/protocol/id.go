// Package protocol defines the protocol identifier type used in
// multistream-select negotiation.
package protocol

// ID is a protocol identifier as negotiated by multistream-select,
// e.g. "/noise", "/yamux/1.0.0", "/ipfs/ping/1.0.0".
type ID string

func (id ID) String() string { return string(id) }

const (
	SecurityNoiseID = ID("/noise")
	SecurityTLSID   = ID("/tls/1.0.0")
	MuxerYamuxID    = ID("/yamux/1.0.0")
)
