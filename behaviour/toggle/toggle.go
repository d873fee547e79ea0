// Package toggle wraps a NetworkBehaviour so it can be switched on or
// off at construction time. It mirrors rust-libp2p's Toggle
// combinator (libp2p/src/builder.rs), which SwarmBuilder's optional
// relay-client phase uses to let a relay-less build still embed a
// relay-client NetworkBehaviour slot without ever driving it.
package toggle

import (
	"context"

	"github.com/meridianlabs/swarmcore/behaviour/dummy"
	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	ma "github.com/multiformats/go-multiaddr"
)

// Toggle holds an inner NetworkBehaviour and a flag saying whether it
// is live. Disabled, every gating method permits unconditionally,
// every established-connection method hands out dummy.Handler, and
// Poll never reports a command — the inner behaviour is never called.
type Toggle[OutEvent any] struct {
	inner   coreswarm.NetworkBehaviour[OutEvent]
	enabled bool
}

// Enabled wraps inner so it runs exactly as it would unwrapped.
func Enabled[O any](inner coreswarm.NetworkBehaviour[O]) *Toggle[O] {
	return &Toggle[O]{inner: inner, enabled: true}
}

// Disabled produces a Toggle with no inner behaviour to drive.
func Disabled[O any]() *Toggle[O] {
	return &Toggle[O]{enabled: false}
}

func (t *Toggle[O]) IsEnabled() bool { return t.enabled }

func (t *Toggle[O]) HandlePendingInboundConnection(cid coreswarm.ConnectionID, local, remote ma.Multiaddr) error {
	if !t.enabled {
		return nil
	}
	return t.inner.HandlePendingInboundConnection(cid, local, remote)
}

func (t *Toggle[O]) HandleEstablishedInboundConnection(cid coreswarm.ConnectionID, p peer.ID, local, remote ma.Multiaddr) (coreswarm.AnyHandler, error) {
	if !t.enabled {
		return dummy.Handler{}, nil
	}
	return t.inner.HandleEstablishedInboundConnection(cid, p, local, remote)
}

func (t *Toggle[O]) HandlePendingOutboundConnection(cid coreswarm.ConnectionID, p peer.ID, addrs []ma.Multiaddr, role network.Endpoint) ([]ma.Multiaddr, error) {
	if !t.enabled {
		return addrs, nil
	}
	return t.inner.HandlePendingOutboundConnection(cid, p, addrs, role)
}

func (t *Toggle[O]) HandleEstablishedOutboundConnection(cid coreswarm.ConnectionID, p peer.ID, addr ma.Multiaddr, role network.Endpoint, portUse coreswarm.PortUse) (coreswarm.AnyHandler, error) {
	if !t.enabled {
		return dummy.Handler{}, nil
	}
	return t.inner.HandleEstablishedOutboundConnection(cid, p, addr, role, portUse)
}

func (t *Toggle[O]) OnSwarmEvent(ev coreswarm.FromSwarm) {
	if t.enabled {
		t.inner.OnSwarmEvent(ev)
	}
}

func (t *Toggle[O]) OnConnectionHandlerEvent(p peer.ID, cid coreswarm.ConnectionID, ev any) {
	if t.enabled {
		t.inner.OnConnectionHandlerEvent(p, cid, ev)
	}
}

func (t *Toggle[O]) Poll(ctx context.Context) (coreswarm.ToSwarm[O, any], bool) {
	if !t.enabled {
		return coreswarm.ToSwarm[O, any]{}, false
	}
	return t.inner.Poll(ctx)
}
