package swarm

import (
	"context"

	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// AnyHandler is the type-erased ConnectionHandler a NetworkBehaviour
// produces: handler input/output events are boxed as `any` at this
// boundary, the same erasure Boxed performs for transports (§9 design
// note: "dynamic dispatch ... in statically-typed targets this is a
// trait object / interface pointer").
type AnyHandler = ConnectionHandler[any, any]

// NetworkBehaviour is the protocol-composition contract: a behaviour
// is polymorphic over its own output event type (OutEvent, delivered
// to the user as SwarmEvent.Behaviour) and produces AnyHandlers, one
// per connection.
type NetworkBehaviour[OutEvent any] interface {
	// HandlePendingInboundConnection gates a connection before a
	// handler is built. The default policy (embed DefaultBehaviour) permits.
	HandlePendingInboundConnection(cid ConnectionID, local, remote ma.Multiaddr) error

	// HandleEstablishedInboundConnection must construct the
	// per-connection handler for an accepted inbound connection.
	HandleEstablishedInboundConnection(cid ConnectionID, p peer.ID, local, remote ma.Multiaddr) (AnyHandler, error)

	// HandlePendingOutboundConnection may augment the dial address
	// list; only consulted when DialOpts.ExtendAddressesThroughBehaviour is set.
	HandlePendingOutboundConnection(cid ConnectionID, maybePeer peer.ID, addrs []ma.Multiaddr, role network.Endpoint) ([]ma.Multiaddr, error)

	// HandleEstablishedOutboundConnection is the outbound symmetric of
	// HandleEstablishedInboundConnection.
	HandleEstablishedOutboundConnection(cid ConnectionID, p peer.ID, addr ma.Multiaddr, role network.Endpoint, portUse PortUse) (AnyHandler, error)

	// OnSwarmEvent is the single entry point for lifecycle notifications.
	OnSwarmEvent(ev FromSwarm)

	// OnConnectionHandlerEvent receives an event reported by a
	// specific connection's handler.
	OnConnectionHandlerEvent(p peer.ID, cid ConnectionID, ev any)

	// Poll is the lazy-stream contract: returns one ToSwarm command
	// per call, or ok=false when there's nothing to do right now.
	Poll(ctx context.Context) (ToSwarm[OutEvent, any], bool)
}

// DefaultBehaviour embeds into a concrete behaviour to supply the
// commonly-trivial methods (permissive gating, no address
// augmentation, ignored lifecycle/handler events), matching the
// source's default trait-method bodies.
type DefaultBehaviour struct{}

func (DefaultBehaviour) HandlePendingInboundConnection(ConnectionID, ma.Multiaddr, ma.Multiaddr) error {
	return nil
}

func (DefaultBehaviour) HandlePendingOutboundConnection(cid ConnectionID, p peer.ID, addrs []ma.Multiaddr, role network.Endpoint) ([]ma.Multiaddr, error) {
	return addrs, nil
}

func (DefaultBehaviour) OnSwarmEvent(FromSwarm) {}

func (DefaultBehaviour) OnConnectionHandlerEvent(peer.ID, ConnectionID, any) {}
