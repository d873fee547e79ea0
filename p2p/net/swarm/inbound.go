package swarm

import (
	"github.com/meridianlabs/swarmcore/core/network"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	"github.com/meridianlabs/swarmcore/core/transport"
	ma "github.com/multiformats/go-multiaddr"
)

// inboundOutcome is what the background upgrade goroutine spawned
// from pumpTransport's EventIncoming handling posts back once the
// raw connection has finished (or failed) security/muxer upgrade.
type inboundOutcome struct {
	cid        coreswarm.ConnectionID
	listenerID transport.ListenerID
	local      ma.Multiaddr
	remote     ma.Multiaddr
	capable    transport.CapableConn
	err        error
}

func (s *Swarm[O]) finishInbound(r inboundOutcome) (SwarmEvent[O], bool) {
	if r.err != nil {
		s.behaviour.OnSwarmEvent(coreswarm.ListenFailure{LocalAddr: r.local, SendBack: r.remote, Error: r.err})
		return SwarmEvent[O]{Kind: EventIncomingConnectionError, ListenerID: r.listenerID, ConnectionID: r.cid, Err: r.err}, true
	}

	endpoint := network.ConnectedPoint{
		Endpoint:     network.EndpointListener,
		LocalAddr:    r.local,
		SendBackAddr: r.remote,
	}

	handler, err := s.behaviour.HandleEstablishedInboundConnection(r.cid, r.capable.RemotePeer(), r.local, r.remote)
	if err != nil {
		r.capable.Close()
		denied := &coreswarm.ConnectionDenied{Cause: err}
		s.behaviour.OnSwarmEvent(coreswarm.ListenFailure{LocalAddr: r.local, SendBack: r.remote, Error: denied})
		return SwarmEvent[O]{Kind: EventIncomingConnectionError, ListenerID: r.listenerID, ConnectionID: r.cid, Err: denied}, true
	}

	c := &Conn{id: r.cid, peer: r.capable.RemotePeer(), capable: r.capable, endpoint: endpoint, handler: handler}
	s.addConn(c)
	go s.acceptSubstreams(c)

	other := s.countForPeer(c.peer) - 1
	s.behaviour.OnSwarmEvent(coreswarm.ConnectionEstablished{PeerID: c.peer, ConnectionID: c.id, Endpoint: c.endpoint, OtherEstablished: other})
	return SwarmEvent[O]{Kind: EventConnectionEstablished, PeerID: c.peer, ConnectionID: c.id, Endpoint: c.endpoint}, true
}
