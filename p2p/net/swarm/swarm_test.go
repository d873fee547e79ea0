package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	"github.com/meridianlabs/swarmcore/core/test"
	"github.com/meridianlabs/swarmcore/core/transport"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

// fakeConn is a minimal in-memory CapableConn good enough to drive the
// Swarm loop without a real transport.
type fakeConn struct {
	local, remote ma.Multiaddr
	remotePeer    peer.ID
	streams       chan network.MuxedStream
	closed        chan struct{}
}

func newFakeConn(remotePeer peer.ID) *fakeConn {
	return &fakeConn{
		local:      ma.StringCast("/ip4/127.0.0.1/tcp/4001"),
		remote:     ma.StringCast("/ip4/127.0.0.1/tcp/4002"),
		remotePeer: remotePeer,
		streams:    make(chan network.MuxedStream, 4),
		closed:     make(chan struct{}),
	}
}

func (c *fakeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}
func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
func (c *fakeConn) OpenStream(ctx context.Context) (network.MuxedStream, error) {
	return newFakeStream(), nil
}
func (c *fakeConn) AcceptStream() (network.MuxedStream, error) {
	select {
	case s := <-c.streams:
		return s, nil
	case <-c.closed:
		return nil, context.Canceled
	}
}
func (c *fakeConn) LocalPeer() peer.ID            { return "" }
func (c *fakeConn) RemotePeer() peer.ID           { return c.remotePeer }
func (c *fakeConn) RemotePublicKey() crypto.PubKey { return nil }
func (c *fakeConn) LocalMultiaddr() ma.Multiaddr  { return c.local }
func (c *fakeConn) RemoteMultiaddr() ma.Multiaddr { return c.remote }
func (c *fakeConn) Transport() transport.Transport { return nil }

// fakeStream is a no-op MuxedStream; tests here only exercise
// substream lifecycle bookkeeping, not byte transfer.
type fakeStream struct{}

func newFakeStream() *fakeStream                           { return &fakeStream{} }
func (*fakeStream) Read(b []byte) (int, error)              { return 0, nil }
func (*fakeStream) Write(b []byte) (int, error)              { return len(b), nil }
func (*fakeStream) Close() error                             { return nil }
func (*fakeStream) CloseRead() error                         { return nil }
func (*fakeStream) CloseWrite() error                        { return nil }
func (*fakeStream) Reset() error                             { return nil }
func (*fakeStream) SetDeadline(time.Time) error              { return nil }
func (*fakeStream) SetReadDeadline(time.Time) error          { return nil }
func (*fakeStream) SetWriteDeadline(time.Time) error         { return nil }

// fakeTransport never produces transport events or dials anything; it
// lets the Swarm loop's pumpTransport step run without a real transport.
type fakeTransport struct{}

func (*fakeTransport) ListenOn(ma.Multiaddr) (transport.ListenerID, error) { return 0, nil }
func (*fakeTransport) RemoveListener(transport.ListenerID) error          { return nil }
func (*fakeTransport) Dial(context.Context, ma.Multiaddr, peer.ID) (transport.CapableConn, error) {
	return nil, context.Canceled
}
func (*fakeTransport) DialAsListener(context.Context, ma.Multiaddr, peer.ID) (transport.CapableConn, error) {
	return nil, context.Canceled
}
func (*fakeTransport) CanDial(ma.Multiaddr) bool { return false }
func (*fakeTransport) AddressTranslation(observed, local ma.Multiaddr) (ma.Multiaddr, bool) {
	return nil, false
}
func (*fakeTransport) Poll(ctx context.Context) (transport.TransportEvent, bool) {
	return transport.TransportEvent{}, false
}

// fakeHandler is a trivial ConnectionHandler that records lifecycle
// calls and never asks for substreams on its own.
type fakeHandler struct {
	events []coreswarm.ConnectionEvent
}

func (h *fakeHandler) OnBehaviourEvent(any)                                 {}
func (h *fakeHandler) OnConnectionEvent(e coreswarm.ConnectionEvent)        { h.events = append(h.events, e) }
func (h *fakeHandler) Poll(ctx context.Context) (coreswarm.HandlerEvent[any], bool) {
	return coreswarm.HandlerEvent[any]{}, false
}
func (h *fakeHandler) ConnectionKeepAlive() coreswarm.KeepAlive { return coreswarm.KeepAliveAlways() }
func (h *fakeHandler) PollClose(ctx context.Context) (coreswarm.HandlerEvent[any], bool) {
	return coreswarm.HandlerEvent[any]{}, false
}

// fakeBehaviour hands out fakeHandlers and otherwise does nothing; it
// never emits its own ToSwarm commands.
type fakeBehaviour struct {
	coreswarm.DefaultBehaviour
	handlers []*fakeHandler
}

func (b *fakeBehaviour) HandleEstablishedInboundConnection(cid coreswarm.ConnectionID, p peer.ID, local, remote ma.Multiaddr) (coreswarm.AnyHandler, error) {
	h := &fakeHandler{}
	b.handlers = append(b.handlers, h)
	return h, nil
}

func (b *fakeBehaviour) HandleEstablishedOutboundConnection(cid coreswarm.ConnectionID, p peer.ID, addr ma.Multiaddr, role network.Endpoint, portUse coreswarm.PortUse) (coreswarm.AnyHandler, error) {
	h := &fakeHandler{}
	b.handlers = append(b.handlers, h)
	return h, nil
}

func (b *fakeBehaviour) Poll(ctx context.Context) (coreswarm.ToSwarm[string, any], bool) {
	return coreswarm.ToSwarm[string, any]{}, false
}

func TestSwarmDeliversInboundConnectionEstablished(t *testing.T) {
	local := test.RandPeerIDFatal(t)
	remote := test.RandPeerIDFatal(t)
	behaviour := &fakeBehaviour{}
	s := NewSwarm[string](local, &fakeTransport{}, behaviour)

	cid := coreswarm.NewConnectionID()
	fc := newFakeConn(remote)
	s.inboundResults <- inboundOutcome{cid: cid, local: fc.local, remote: fc.remote, capable: fc}

	ev, ok := s.PollNextEvent(context.Background())
	require.True(t, ok)
	require.Equal(t, EventConnectionEstablished, ev.Kind)
	require.Equal(t, remote, ev.PeerID)
	require.Len(t, behaviour.handlers, 1)
	require.Equal(t, 1, s.countForPeer(remote))
}

func TestSwarmInboundSubstreamDeliveredRaw(t *testing.T) {
	local := test.RandPeerIDFatal(t)
	remote := test.RandPeerIDFatal(t)
	behaviour := &fakeBehaviour{}
	s := NewSwarm[string](local, &fakeTransport{}, behaviour)

	cid := coreswarm.NewConnectionID()
	fc := newFakeConn(remote)
	s.inboundResults <- inboundOutcome{cid: cid, local: fc.local, remote: fc.remote, capable: fc}
	ev, ok := s.PollNextEvent(context.Background())
	require.True(t, ok)
	require.Equal(t, EventConnectionEstablished, ev.Kind)

	fc.streams <- newFakeStream()
	require.Eventually(t, func() bool {
		s.PollNextEvent(context.Background())
		return len(behaviour.handlers[0].events) == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, coreswarm.ConnEventFullyNegotiatedInbound, behaviour.handlers[0].events[0].Kind)
}

func TestSwarmCloseConnectionRemovesFromRegistry(t *testing.T) {
	local := test.RandPeerIDFatal(t)
	remote := test.RandPeerIDFatal(t)
	behaviour := &fakeBehaviour{}
	s := NewSwarm[string](local, &fakeTransport{}, behaviour)

	cid := coreswarm.NewConnectionID()
	fc := newFakeConn(remote)
	s.inboundResults <- inboundOutcome{cid: cid, local: fc.local, remote: fc.remote, capable: fc}
	_, ok := s.PollNextEvent(context.Background())
	require.True(t, ok)

	s.markClosing(remote, coreswarm.CloseConnectionTarget{Kind: coreswarm.TargetAll})

	var closedEv SwarmEvent[string]
	require.Eventually(t, func() bool {
		ev, ok := s.PollNextEvent(context.Background())
		if ok && ev.Kind == EventConnectionClosed {
			closedEv = ev
			return true
		}
		return false
	}, time.Second, time.Millisecond)
	require.Equal(t, remote, closedEv.PeerID)
	require.Equal(t, 0, s.countForPeer(remote))
}
