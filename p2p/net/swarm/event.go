package swarm

import (
	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	"github.com/meridianlabs/swarmcore/core/transport"
	ma "github.com/multiformats/go-multiaddr"
)

// SwarmEventKind tags SwarmEvent's active field.
type SwarmEventKind int

const (
	EventNewListenAddr SwarmEventKind = iota
	EventExpiredListenAddr
	EventListenerClosed
	EventListenerError
	EventIncomingConnection
	EventIncomingConnectionError
	EventConnectionEstablished
	EventConnectionClosed
	EventOutgoingConnectionError
	EventDialing
	EventBehaviour
	EventNewExternalAddrCandidate
	EventExternalAddrConfirmed
	EventExternalAddrExpired
)

// SwarmEvent is the user-visible stream a driver loop reads from
// PollNextEvent, mirroring spec.md §6's listener event stream.
type SwarmEvent[OutEvent any] struct {
	Kind SwarmEventKind

	ListenerID transport.ListenerID
	Addr       ma.Multiaddr
	Err        error

	PeerID       peer.ID
	ConnectionID coreswarm.ConnectionID
	Endpoint     network.ConnectedPoint

	Behaviour OutEvent
}
