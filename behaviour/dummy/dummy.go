// Package dummy provides a NetworkBehaviour and ConnectionHandler
// that do nothing: every connection is accepted, no event is ever
// emitted, and no substream is ever requested. It fills the same
// role as rust-libp2p's dummy behaviour/handler pair — filler for
// composite-behaviour tests and a base for wrappers (see
// behaviour/toggle) that need a harmless stand-in when disabled.
package dummy

import (
	"context"

	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	ma "github.com/multiformats/go-multiaddr"
)

// Handler is a ConnectionHandler that never produces or reacts to
// anything. ConnectionKeepAlive reports Never so idle connections
// carrying only a dummy handler close promptly rather than lingering.
type Handler struct{}

func (Handler) OnBehaviourEvent(any)                         {}
func (Handler) OnConnectionEvent(coreswarm.ConnectionEvent) {}

func (Handler) Poll(ctx context.Context) (coreswarm.HandlerEvent[any], bool) {
	return coreswarm.HandlerEvent[any]{}, false
}

func (Handler) ConnectionKeepAlive() coreswarm.KeepAlive {
	return coreswarm.KeepAliveNever()
}

func (Handler) PollClose(ctx context.Context) (coreswarm.HandlerEvent[any], bool) {
	return coreswarm.HandlerEvent[any]{}, false
}

// Behaviour is a NetworkBehaviour that accepts every connection, hands
// out Handler for each, and never emits a ToSwarm command of its own.
type Behaviour struct {
	coreswarm.DefaultBehaviour
}

func (Behaviour) HandleEstablishedInboundConnection(coreswarm.ConnectionID, peer.ID, ma.Multiaddr, ma.Multiaddr) (coreswarm.AnyHandler, error) {
	return Handler{}, nil
}

func (Behaviour) HandleEstablishedOutboundConnection(coreswarm.ConnectionID, peer.ID, ma.Multiaddr, network.Endpoint, coreswarm.PortUse) (coreswarm.AnyHandler, error) {
	return Handler{}, nil
}

func (Behaviour) Poll(ctx context.Context) (coreswarm.ToSwarm[struct{}, any], bool) {
	return coreswarm.ToSwarm[struct{}, any]{}, false
}
