// Package swarm is the Swarm runtime: it owns the boxed transport, the
// root behaviour, the connection registry, and drives the poll loop
// that turns transport and behaviour activity into a single
// user-facing event stream.
package swarm

import (
	"context"
	"sync"
	"time"

	"github.com/meridianlabs/swarmcore/core/peer"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	"github.com/meridianlabs/swarmcore/core/transport"

	logging "github.com/ipfs/go-log/v2"
	ma "github.com/multiformats/go-multiaddr"
)

var log = logging.Logger("swarm")

// Swarm is generic over the root behaviour's output event type, the
// same type parameter NetworkBehaviour and ToSwarm carry.
type Swarm[OutEvent any] struct {
	localID   peer.ID
	tpt       transport.Transport
	behaviour coreswarm.NetworkBehaviour[OutEvent]

	mu        sync.RWMutex
	conns     map[coreswarm.ConnectionID]*Conn
	peerConns map[peer.ID]map[coreswarm.ConnectionID]struct{}
	listeners map[transport.ListenerID]struct{}

	externalAddrs *coreswarm.ExternalAddrSet
	listenAddrs   *coreswarm.ListenAddrSet

	dialer *dialSync

	dialResults      chan dialOutcome
	inboundResults   chan inboundOutcome
	substreamResults chan substreamOutcome
}

// NewSwarm builds a Swarm that drives tpt and the given root
// behaviour. The caller is responsible for repeatedly invoking
// PollNextEvent (directly, or via a driver loop) to make progress.
func NewSwarm[O any](localID peer.ID, tpt transport.Transport, behaviour coreswarm.NetworkBehaviour[O]) *Swarm[O] {
	s := &Swarm[O]{
		localID:          localID,
		tpt:              tpt,
		behaviour:        behaviour,
		conns:            make(map[coreswarm.ConnectionID]*Conn),
		peerConns:        make(map[peer.ID]map[coreswarm.ConnectionID]struct{}),
		listeners:        make(map[transport.ListenerID]struct{}),
		externalAddrs:    coreswarm.NewExternalAddrSet(),
		listenAddrs:      coreswarm.NewListenAddrSet(),
		dialResults:      make(chan dialOutcome, 32),
		inboundResults:   make(chan inboundOutcome, 32),
		substreamResults: make(chan substreamOutcome, 32),
	}
	s.dialer = newDialSync(s.dialWorker)
	return s
}

func (s *Swarm[O]) LocalPeer() peer.ID { return s.localID }

// ListenOn asks the transport to bind a listener. New addresses and
// incoming connections arrive asynchronously through PollNextEvent.
func (s *Swarm[O]) ListenOn(addr ma.Multiaddr) (transport.ListenerID, error) {
	id, err := s.tpt.ListenOn(addr)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.listeners[id] = struct{}{}
	s.mu.Unlock()
	return id, nil
}

// Dial enqueues an outbound dial. Its outcome (success or failure)
// surfaces later through PollNextEvent as EventConnectionEstablished
// or EventOutgoingConnectionError.
func (s *Swarm[O]) Dial(opts coreswarm.DialOpts) coreswarm.ConnectionID {
	if opts.ConnectionID == 0 {
		opts.ConnectionID = coreswarm.NewConnectionID()
	}
	ev := s.startDial(&opts)
	return ev.ConnectionID
}

// PollNextEvent drives one unit of swarm progress and returns the
// next user-visible event, or ok=false if there's nothing to report
// right now (the caller should back off, e.g. select on a wakeup
// channel supplied by the transport/behaviour, before calling again).
func (s *Swarm[O]) PollNextEvent(ctx context.Context) (SwarmEvent[O], bool) {
	if ev, ok := s.drainBehaviourCommands(ctx); ok {
		return ev, true
	}
	if ev, ok := s.pumpTransport(ctx); ok {
		return ev, true
	}
	if ev, ok := s.pumpResults(); ok {
		return ev, true
	}
	if ev, ok := s.pumpHandlers(ctx); ok {
		return ev, true
	}
	return SwarmEvent[O]{}, false
}

// Close tears down every open connection and releases listeners.
// Best-effort: transport-level close errors are logged, not returned.
func (s *Swarm[O]) Close() {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	listeners := make([]transport.ListenerID, 0, len(s.listeners))
	for id := range s.listeners {
		listeners = append(listeners, id)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.capable.Close(); err != nil {
			log.Debugw("error closing connection", "peer", c.peer, "error", err)
		}
	}
	for _, id := range listeners {
		if err := s.tpt.RemoveListener(id); err != nil {
			log.Debugw("error removing listener", "listener", id, "error", err)
		}
	}
}

func (s *Swarm[O]) drainBehaviourCommands(ctx context.Context) (SwarmEvent[O], bool) {
	for {
		cmd, ok := s.behaviour.Poll(ctx)
		if !ok {
			return SwarmEvent[O]{}, false
		}
		if ev, produced := s.enact(ctx, cmd); produced {
			return ev, true
		}
	}
}

func (s *Swarm[O]) enact(ctx context.Context, cmd coreswarm.ToSwarm[O, any]) (SwarmEvent[O], bool) {
	switch cmd.Kind {
	case coreswarm.CmdGenerateEvent:
		return SwarmEvent[O]{Kind: EventBehaviour, Behaviour: cmd.GenerateEvent}, true

	case coreswarm.CmdDial:
		return s.startDial(cmd.Dial), true

	case coreswarm.CmdListenOn:
		id, err := s.tpt.ListenOn(cmd.ListenOn.Addr)
		if err != nil {
			s.behaviour.OnSwarmEvent(coreswarm.ListenerError{Error: err})
			return SwarmEvent[O]{Kind: EventListenerError, Err: err}, true
		}
		s.mu.Lock()
		s.listeners[id] = struct{}{}
		s.mu.Unlock()
		return SwarmEvent[O]{}, false

	case coreswarm.CmdRemoveListener:
		if err := s.tpt.RemoveListener(cmd.RemoveListenerID); err != nil {
			log.Debugw("remove listener failed", "listener", cmd.RemoveListenerID, "error", err)
		}
		s.mu.Lock()
		delete(s.listeners, cmd.RemoveListenerID)
		s.mu.Unlock()
		return SwarmEvent[O]{}, false

	case coreswarm.CmdNotifyHandler:
		s.notifyHandler(cmd.NotifyPeer, cmd.NotifyTarget, cmd.NotifyEvent)
		return SwarmEvent[O]{}, false

	case coreswarm.CmdCloseConnection:
		s.markClosing(cmd.ClosePeer, cmd.CloseTarget)
		return SwarmEvent[O]{}, false

	case coreswarm.CmdNewExternalAddrCandidate:
		s.externalAddrs.AddCandidate(cmd.Addr)
		s.behaviour.OnSwarmEvent(coreswarm.NewExternalAddrCandidate{Addr: cmd.Addr})
		return SwarmEvent[O]{Kind: EventNewExternalAddrCandidate, Addr: cmd.Addr}, true

	case coreswarm.CmdExternalAddrConfirmed:
		if s.externalAddrs.Confirm(cmd.Addr) {
			s.behaviour.OnSwarmEvent(coreswarm.ExternalAddrConfirmed{Addr: cmd.Addr})
			return SwarmEvent[O]{Kind: EventExternalAddrConfirmed, Addr: cmd.Addr}, true
		}
		return SwarmEvent[O]{}, false

	case coreswarm.CmdExternalAddrExpired:
		s.externalAddrs.Expire(cmd.Addr)
		s.behaviour.OnSwarmEvent(coreswarm.ExternalAddrExpired{Addr: cmd.Addr})
		return SwarmEvent[O]{Kind: EventExternalAddrExpired, Addr: cmd.Addr}, true

	default:
		return SwarmEvent[O]{}, false
	}
}

func (s *Swarm[O]) pumpTransport(ctx context.Context) (SwarmEvent[O], bool) {
	ev, ok := s.tpt.Poll(ctx)
	if !ok {
		return SwarmEvent[O]{}, false
	}
	switch ev.Kind {
	case transport.EventNewAddress:
		s.listenAddrs.Add(ev.Addr)
		s.behaviour.OnSwarmEvent(coreswarm.NewListenAddr{ListenerID: ev.ListenerID, Addr: ev.Addr})
		return SwarmEvent[O]{Kind: EventNewListenAddr, ListenerID: ev.ListenerID, Addr: ev.Addr}, true

	case transport.EventAddressExpired:
		s.listenAddrs.Remove(ev.Addr)
		s.behaviour.OnSwarmEvent(coreswarm.ExpiredListenAddr{ListenerID: ev.ListenerID, Addr: ev.Addr})
		return SwarmEvent[O]{Kind: EventExpiredListenAddr, ListenerID: ev.ListenerID, Addr: ev.Addr}, true

	case transport.EventListenerError:
		s.behaviour.OnSwarmEvent(coreswarm.ListenerError{ListenerID: ev.ListenerID, Error: ev.Err})
		return SwarmEvent[O]{Kind: EventListenerError, ListenerID: ev.ListenerID, Err: ev.Err}, true

	case transport.EventListenerClosed:
		s.mu.Lock()
		delete(s.listeners, ev.ListenerID)
		s.mu.Unlock()
		s.behaviour.OnSwarmEvent(coreswarm.ListenerClosed{ListenerID: ev.ListenerID, Reason: ev.Err})
		return SwarmEvent[O]{Kind: EventListenerClosed, ListenerID: ev.ListenerID, Err: ev.Err}, true

	case transport.EventIncoming:
		cid := coreswarm.NewConnectionID()
		if err := s.behaviour.HandlePendingInboundConnection(cid, ev.LocalAddr, ev.SendBackAddr); err != nil {
			s.behaviour.OnSwarmEvent(coreswarm.ListenFailure{LocalAddr: ev.LocalAddr, SendBack: ev.SendBackAddr, Error: err})
			return SwarmEvent[O]{Kind: EventIncomingConnectionError, ListenerID: ev.ListenerID, ConnectionID: cid, Err: err}, true
		}
		upgrade := ev.Upgrade
		local, remote := ev.LocalAddr, ev.SendBackAddr
		go func() {
			conn, err := upgrade(context.Background())
			s.inboundResults <- inboundOutcome{cid: cid, listenerID: ev.ListenerID, local: local, remote: remote, capable: conn, err: err}
		}()
		return SwarmEvent[O]{Kind: EventIncomingConnection, ListenerID: ev.ListenerID, ConnectionID: cid, Addr: local}, true

	default:
		return SwarmEvent[O]{}, false
	}
}

// pumpResults drains completed background work (dials, inbound
// upgrades, substream negotiations) without blocking. It loops across
// the three channels so that results with no user-visible
// consequence (e.g. a substream handed to a handler) don't stall
// the cycle short of something worth reporting.
func (s *Swarm[O]) pumpResults() (SwarmEvent[O], bool) {
	for {
		select {
		case r := <-s.dialResults:
			if ev, ok := s.finishDial(r); ok {
				return ev, true
			}
			continue
		case r := <-s.inboundResults:
			if ev, ok := s.finishInbound(r); ok {
				return ev, true
			}
			continue
		case r := <-s.substreamResults:
			s.deliverSubstream(r)
			continue
		default:
			return SwarmEvent[O]{}, false
		}
	}
}

func (s *Swarm[O]) pumpHandlers(ctx context.Context) (SwarmEvent[O], bool) {
	s.mu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.mu.Lock()
		closing := c.closing
		handler := c.handler
		c.mu.Unlock()
		if handler == nil {
			continue
		}

		var ev coreswarm.HandlerEvent[any]
		var ok bool
		if closing {
			ev, ok = handler.PollClose(ctx)
			if !ok {
				return s.closeConnection(c, nil), true
			}
		} else {
			ev, ok = handler.Poll(ctx)
			if !ok {
				if !handler.ConnectionKeepAlive().Active(time.Now()) {
					c.mu.Lock()
					c.closing = true
					c.mu.Unlock()
				}
				continue
			}
		}

		switch ev.Kind {
		case coreswarm.HandlerOutboundSubstreamRequest:
			go s.openSubstream(context.Background(), c, ev.Protocol)
		case coreswarm.HandlerEmitEvent:
			s.behaviour.OnConnectionHandlerEvent(c.peer, c.id, ev.Event)
		case coreswarm.HandlerCloseConnection:
			return s.closeConnection(c, nil), true
		}
	}
	return SwarmEvent[O]{}, false
}

func (s *Swarm[O]) notifyHandler(p peer.ID, target coreswarm.NotifyHandlerTarget, ev any) {
	s.mu.RLock()
	ids := s.peerConns[p]
	var candidates []coreswarm.ConnectionID
	if target.Kind == coreswarm.TargetOne {
		if _, ok := ids[target.ID]; ok {
			candidates = []coreswarm.ConnectionID{target.ID}
		}
	} else {
		for id := range ids {
			candidates = append(candidates, id)
			break // TargetAny: deliver to exactly one connection.
		}
	}
	conns := make([]*Conn, 0, len(candidates))
	for _, id := range candidates {
		if c, ok := s.conns[id]; ok {
			conns = append(conns, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			h.OnBehaviourEvent(ev)
		}
	}
}

func (s *Swarm[O]) markClosing(p peer.ID, target coreswarm.CloseConnectionTarget) {
	s.mu.RLock()
	ids := s.peerConns[p]
	var conns []*Conn
	if target.Kind == coreswarm.TargetOne {
		if c, ok := s.conns[target.ID]; ok {
			conns = []*Conn{c}
		}
	} else {
		for id := range ids {
			if c, ok := s.conns[id]; ok {
				conns = append(conns, c)
			}
		}
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.mu.Lock()
		c.closing = true
		c.mu.Unlock()
	}
}

func (s *Swarm[O]) closeConnection(c *Conn, cause error) SwarmEvent[O] {
	s.mu.Lock()
	delete(s.conns, c.id)
	if peers, ok := s.peerConns[c.peer]; ok {
		delete(peers, c.id)
		if len(peers) == 0 {
			delete(s.peerConns, c.peer)
		}
	}
	remaining := len(s.peerConns[c.peer])
	s.mu.Unlock()

	if err := c.capable.Close(); err != nil {
		log.Debugw("error closing connection", "peer", c.peer, "error", err)
	}
	s.behaviour.OnSwarmEvent(coreswarm.ConnectionClosed{
		PeerID: c.peer, ConnectionID: c.id, Endpoint: c.endpoint,
		RemainingEstablished: remaining, Cause: cause,
	})
	return SwarmEvent[O]{Kind: EventConnectionClosed, PeerID: c.peer, ConnectionID: c.id, Endpoint: c.endpoint, Err: cause}
}

func (s *Swarm[O]) addConn(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.id] = c
	peers, ok := s.peerConns[c.peer]
	if !ok {
		peers = make(map[coreswarm.ConnectionID]struct{})
		s.peerConns[c.peer] = peers
	}
	peers[c.id] = struct{}{}
}

func (s *Swarm[O]) countForPeer(p peer.ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peerConns[p])
}

func (s *Swarm[O]) lookupConn(id coreswarm.ConnectionID) *Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[id]
}
