package swarm

import (
	"context"
	"time"

	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	"github.com/meridianlabs/swarmcore/core/transport"
	ma "github.com/multiformats/go-multiaddr"
)

// dialOutcome is what a background dial goroutine posts back to the
// Swarm loop once dialSync.Dial returns.
type dialOutcome struct {
	opts *coreswarm.DialOpts
	conn *Conn
	err  error
}

// startDial kicks off a dial in the background and reports it as
// started via EventDialing. Dial completion surfaces later through
// pumpResults.
func (s *Swarm[O]) startDial(opts *coreswarm.DialOpts) SwarmEvent[O] {
	if opts.ConnectionID == 0 {
		opts.ConnectionID = coreswarm.NewConnectionID()
	}

	addrs := opts.Addresses
	if opts.ExtendAddressesThroughBehaviour {
		more, err := s.behaviour.HandlePendingOutboundConnection(opts.ConnectionID, opts.PeerID, addrs, opts.Role)
		if err != nil {
			denied := &coreswarm.ConnectionDenied{Cause: err}
			s.behaviour.OnSwarmEvent(coreswarm.DialFailure{PeerID: opts.PeerID, ConnectionID: opts.ConnectionID, Error: denied})
			return SwarmEvent[O]{Kind: EventOutgoingConnectionError, PeerID: opts.PeerID, ConnectionID: opts.ConnectionID, Err: denied}
		}
		addrs = more
	}

	dialOpts := *opts
	dialOpts.Addresses = addrs
	go func() {
		conn, err := s.dialer.Dial(context.Background(), dialOpts.PeerID, &dialOpts)
		s.dialResults <- dialOutcome{opts: &dialOpts, conn: conn, err: err}
	}()

	return SwarmEvent[O]{Kind: EventDialing, PeerID: opts.PeerID, ConnectionID: opts.ConnectionID}
}

// dialWorker is the per-peer dial worker dialSync spawns. It serially
// serves every concurrent dial request for one peer so at most one
// attempt is ever in flight to that peer at a time.
func (s *Swarm[O]) dialWorker(p peer.ID, reqch <-chan dialRequest) {
	for req := range reqch {
		conn, err := s.performDial(req.ctx, p, req.opts)
		select {
		case req.resch <- dialResponse{conn: conn, err: err}:
		case <-req.ctx.Done():
		}
	}
}

func (s *Swarm[O]) performDial(ctx context.Context, p peer.ID, opts *coreswarm.DialOpts) (*Conn, error) {
	if p != "" && p == s.localID {
		return nil, &coreswarm.DialError{Kind: coreswarm.DialErrLocalPeerID}
	}
	if len(opts.Addresses) == 0 {
		return nil, &coreswarm.DialError{Kind: coreswarm.DialErrNoAddresses}
	}

	capableConn, attempts, err := s.raceDial(ctx, p, opts.Addresses)
	if err != nil {
		return nil, &coreswarm.DialError{Kind: coreswarm.DialErrTransport, Attempts: attempts}
	}
	if p != "" && capableConn.RemotePeer() != p {
		capableConn.Close()
		return nil, &coreswarm.DialError{Kind: coreswarm.DialErrWrongPeerID, Want: p, Got: capableConn.RemotePeer()}
	}

	return &Conn{
		id:      opts.ConnectionID,
		peer:    capableConn.RemotePeer(),
		capable: capableConn,
		endpoint: network.ConnectedPoint{
			Endpoint:     opts.Role,
			DialAddr:     capableConn.RemoteMultiaddr(),
			RoleOverride: opts.Role,
			LocalAddr:    capableConn.LocalMultiaddr(),
		},
	}, nil
}

// raceDial attempts every candidate address per DefaultDialRanker's
// staggered happy-eyeballs schedule, returning as soon as one
// succeeds and cancelling the rest.
func (s *Swarm[O]) raceDial(ctx context.Context, p peer.ID, addrs []ma.Multiaddr) (transport.CapableConn, []coreswarm.TransportDialError, error) {
	ranked := DefaultDialRanker(addrs)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type attemptResult struct {
		addr ma.Multiaddr
		conn transport.CapableConn
		err  error
	}
	resultCh := make(chan attemptResult, len(ranked))
	for _, ad := range ranked {
		ad := ad
		go func() {
			select {
			case <-time.After(ad.Delay):
			case <-ctx.Done():
				resultCh <- attemptResult{addr: ad.Addr, err: ctx.Err()}
				return
			}
			conn, err := s.tpt.Dial(ctx, ad.Addr, p)
			resultCh <- attemptResult{addr: ad.Addr, conn: conn, err: err}
		}()
	}

	var attempts []coreswarm.TransportDialError
	for range ranked {
		r := <-resultCh
		if r.err == nil {
			cancel()
			return r.conn, attempts, nil
		}
		attempts = append(attempts, coreswarm.TransportDialError{Addr: r.addr, Err: r.err})
	}
	return nil, attempts, coreswarm.ErrNoGoodAddresses
}

func (s *Swarm[O]) finishDial(r dialOutcome) (SwarmEvent[O], bool) {
	if r.err != nil {
		s.behaviour.OnSwarmEvent(coreswarm.DialFailure{PeerID: r.opts.PeerID, ConnectionID: r.opts.ConnectionID, Error: r.err})
		return SwarmEvent[O]{Kind: EventOutgoingConnectionError, PeerID: r.opts.PeerID, ConnectionID: r.opts.ConnectionID, Err: r.err}, true
	}

	c := r.conn
	handler, err := s.behaviour.HandleEstablishedOutboundConnection(c.id, c.peer, c.capable.RemoteMultiaddr(), r.opts.Role, r.opts.PortUse)
	if err != nil {
		c.capable.Close()
		denied := &coreswarm.ConnectionDenied{Cause: err}
		s.behaviour.OnSwarmEvent(coreswarm.DialFailure{PeerID: c.peer, ConnectionID: c.id, Error: denied})
		return SwarmEvent[O]{Kind: EventOutgoingConnectionError, PeerID: c.peer, ConnectionID: c.id, Err: denied}, true
	}
	c.handler = handler
	s.addConn(c)
	go s.acceptSubstreams(c)

	other := s.countForPeer(c.peer) - 1
	s.behaviour.OnSwarmEvent(coreswarm.ConnectionEstablished{PeerID: c.peer, ConnectionID: c.id, Endpoint: c.endpoint, OtherEstablished: other})
	return SwarmEvent[O]{Kind: EventConnectionEstablished, PeerID: c.peer, ConnectionID: c.id, Endpoint: c.endpoint}, true
}
