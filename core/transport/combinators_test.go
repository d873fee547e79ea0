package transport_test

import (
	"context"
	"testing"

	"github.com/meridianlabs/swarmcore/core/peer"
	coretransport "github.com/meridianlabs/swarmcore/core/transport"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

// fakeConn is the minimal CapableConn double these tests need: just
// enough identity to tell which transport produced it.
type fakeConn struct {
	coretransport.CapableConn
	tag string
}

// fakeTransport answers CanDial only for addresses whose last protocol
// is its own, and hands back a tagged fakeConn, so tests can tell
// which child served a call.
type fakeTransport struct {
	protocol int
	tag      string
	events   chan coretransport.TransportEvent
}

func newFakeTransport(protocol int, tag string) *fakeTransport {
	return &fakeTransport{protocol: protocol, tag: tag, events: make(chan coretransport.TransportEvent, 4)}
}

func (f *fakeTransport) CanDial(addr ma.Multiaddr) bool {
	protos := addr.Protocols()
	return len(protos) > 0 && protos[len(protos)-1].Code == f.protocol
}

func (f *fakeTransport) Dial(ctx context.Context, addr ma.Multiaddr, p peer.ID) (coretransport.CapableConn, error) {
	if !f.CanDial(addr) {
		return nil, coretransport.NewTransportNotSupportedError(addr)
	}
	return &fakeConn{tag: f.tag}, nil
}

func (f *fakeTransport) DialAsListener(ctx context.Context, addr ma.Multiaddr, p peer.ID) (coretransport.CapableConn, error) {
	return f.Dial(ctx, addr, p)
}

func (f *fakeTransport) ListenOn(addr ma.Multiaddr) (coretransport.ListenerID, error) {
	return coretransport.NewListenerID(), nil
}

func (f *fakeTransport) RemoveListener(id coretransport.ListenerID) error { return nil }

func (f *fakeTransport) AddressTranslation(observed, local ma.Multiaddr) (ma.Multiaddr, bool) {
	return nil, false
}

func (f *fakeTransport) Poll(ctx context.Context) (coretransport.TransportEvent, bool) {
	select {
	case ev := <-f.events:
		return ev, true
	default:
		return coretransport.TransportEvent{}, false
	}
}

func (f *fakeTransport) push(ev coretransport.TransportEvent) { f.events <- ev }

var _ coretransport.Transport = (*fakeTransport)(nil)

func mustAddr(t *testing.T, s string) ma.Multiaddr {
	t.Helper()
	a, err := ma.NewMultiaddr(s)
	require.NoError(t, err)
	return a
}

func TestOrTransportRoutesDialToTheCapableChild(t *testing.T) {
	tcp := newFakeTransport(ma.P_TCP, "tcp")
	ws := newFakeTransport(ma.P_WS, "ws")
	or := coretransport.NewOrTransport(tcp, ws)

	conn, err := or.Dial(context.Background(), mustAddr(t, "/ip4/127.0.0.1/tcp/4001"), "")
	require.NoError(t, err)
	require.Equal(t, "tcp", conn.(*fakeConn).tag)

	conn, err = or.Dial(context.Background(), mustAddr(t, "/ip4/127.0.0.1/tcp/4001/ws"), "")
	require.NoError(t, err)
	require.Equal(t, "ws", conn.(*fakeConn).tag)
}

func TestOrTransportCanDialIsTheUnionOfBothChildren(t *testing.T) {
	tcp := newFakeTransport(ma.P_TCP, "tcp")
	ws := newFakeTransport(ma.P_WS, "ws")
	or := coretransport.NewOrTransport(tcp, ws)

	require.True(t, or.CanDial(mustAddr(t, "/ip4/127.0.0.1/tcp/4001")))
	require.True(t, or.CanDial(mustAddr(t, "/ip4/127.0.0.1/tcp/4001/ws")))
	require.False(t, or.CanDial(mustAddr(t, "/ip4/127.0.0.1/udp/4001/quic-v1")))
}

func TestOrTransportPollAlternatesStartingChild(t *testing.T) {
	tcp := newFakeTransport(ma.P_TCP, "tcp")
	ws := newFakeTransport(ma.P_WS, "ws")
	or := coretransport.NewOrTransport(tcp, ws)

	tcp.push(coretransport.TransportEvent{Kind: coretransport.EventListenerClosed, ListenerID: 1})
	tcp.push(coretransport.TransportEvent{Kind: coretransport.EventListenerClosed, ListenerID: 1})
	ws.push(coretransport.TransportEvent{Kind: coretransport.EventListenerClosed, ListenerID: 2})

	// tcp has two pending events and ws one; if OrTransport always polled
	// tcp first, the first two Poll calls would both be served by tcp.
	seen := map[coretransport.ListenerID]bool{}
	for i := 0; i < 2; i++ {
		ev, ok := or.Poll(context.Background())
		require.True(t, ok)
		seen[ev.ListenerID] = true
	}
	require.Len(t, seen, 2)

	_, ok := or.Poll(context.Background())
	require.True(t, ok)
	_, ok = or.Poll(context.Background())
	require.False(t, ok)
}

func TestMapTransportLiftsDialedConnections(t *testing.T) {
	inner := newFakeTransport(ma.P_TCP, "tcp")
	tagged := coretransport.NewMapTransport(inner, func(c coretransport.CapableConn) coretransport.CapableConn {
		return &fakeConn{CapableConn: c, tag: "mapped:" + c.(*fakeConn).tag}
	})

	conn, err := tagged.Dial(context.Background(), mustAddr(t, "/ip4/127.0.0.1/tcp/4001"), "")
	require.NoError(t, err)
	require.Equal(t, "mapped:tcp", conn.(*fakeConn).tag)
}

func TestMapTransportRewritesIncomingUpgrade(t *testing.T) {
	inner := newFakeTransport(ma.P_TCP, "tcp")
	tagged := coretransport.NewMapTransport(inner, func(c coretransport.CapableConn) coretransport.CapableConn {
		return &fakeConn{CapableConn: c, tag: "mapped:" + c.(*fakeConn).tag}
	})

	inner.push(coretransport.TransportEvent{
		Kind: coretransport.EventIncoming,
		Upgrade: func(ctx context.Context) (coretransport.CapableConn, error) {
			return &fakeConn{tag: "tcp"}, nil
		},
	})

	ev, ok := tagged.Poll(context.Background())
	require.True(t, ok)
	conn, err := ev.Upgrade(context.Background())
	require.NoError(t, err)
	require.Equal(t, "mapped:tcp", conn.(*fakeConn).tag)
}

func TestBoxErasesTransportToASingleInterfaceValue(t *testing.T) {
	inner := newFakeTransport(ma.P_TCP, "tcp")
	boxed := coretransport.Box(inner)

	var _ coretransport.Transport = boxed
	require.True(t, boxed.CanDial(mustAddr(t, "/ip4/127.0.0.1/tcp/4001")))
}
