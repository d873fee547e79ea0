package swarm

import (
	"sync/atomic"

	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// ConnectionID is an opaque, monotonically allocated identifier
// issued before a connection is established: at the moment dialing
// or a listen-accept is initiated. Unique within a Swarm's lifetime.
type ConnectionID uint64

var nextConnID atomic.Uint64

func NewConnectionID() ConnectionID {
	return ConnectionID(nextConnID.Add(1))
}

// PortUse records whether a dial should reuse an already-bound local
// port (useful for hole punching, where the peer expects to see the
// same source port it observed during a previous attempt) or bind a
// fresh one. Supplemented from the source's handle_established_outbound
// plumbing; absent from the distilled spec.
type PortUse int

const (
	PortUseNew PortUse = iota
	PortUseReuse
)

// DialOpts configures a dial request made via ToSwarm.Dial.
type DialOpts struct {
	// PeerID is the expected remote identity, if known.
	PeerID peer.ID
	// Addresses seeds the candidate address list. If ExtendAddressesThroughBehaviour
	// is set, NetworkBehaviour.HandlePendingOutboundConnection is additionally
	// consulted to augment this list.
	Addresses []ma.Multiaddr
	// Role is the effective endpoint role to report for connections
	// resulting from this dial (EndpointDialer unless hole-punching).
	Role network.Endpoint
	// ExtendAddressesThroughBehaviour opts into the behaviour
	// augmenting the address list before dialing.
	ExtendAddressesThroughBehaviour bool
	// ConnectionID is pre-issued by the caller of Dial so it can be
	// referenced (e.g. by CloseConnection to cancel) before the
	// transport resolves.
	ConnectionID ConnectionID
	// PortUse is threaded to HandleEstablishedOutboundConnection.
	PortUse PortUse
}

// ListenOpts configures a ListenOn request.
type ListenOpts struct {
	Addr ma.Multiaddr
}
