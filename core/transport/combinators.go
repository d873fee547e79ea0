package transport

import (
	"context"
	"sync"

	"github.com/meridianlabs/swarmcore/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// OrTransport is the parallel composition of two transports: dials
// are routed to the first transport whose CanDial accepts the
// address; ListenOn goes to the first transport if it accepts the
// address and to the second otherwise (only one is tried), and
// listener events are interleaved fairly by round-robin polling. A dial only falls
// through to the second transport when the first reports
// TransportError.NotSupp.
type OrTransport struct {
	t0, t1 Transport

	mu   sync.Mutex
	next int // which child to poll first, alternated each call
}

func NewOrTransport(t0, t1 Transport) *OrTransport {
	return &OrTransport{t0: t0, t1: t1}
}

func (o *OrTransport) children() [2]Transport { return [2]Transport{o.t0, o.t1} }

func (o *OrTransport) ListenOn(addr ma.Multiaddr) (ListenerID, error) {
	if o.t0.CanDial(addr) || canListen(o.t0, addr) {
		return o.t0.ListenOn(addr)
	}
	return o.t1.ListenOn(addr)
}

// canListen is a conservative heuristic: a transport can usually
// listen on addresses it could also dial.
func canListen(t Transport, addr ma.Multiaddr) bool { return t.CanDial(addr) }

func (o *OrTransport) RemoveListener(id ListenerID) error {
	if err := o.t0.RemoveListener(id); err == nil {
		return nil
	}
	return o.t1.RemoveListener(id)
}

func (o *OrTransport) Dial(ctx context.Context, addr ma.Multiaddr, p peer.ID) (CapableConn, error) {
	if o.t0.CanDial(addr) {
		conn, err := o.t0.Dial(ctx, addr, p)
		if err == nil {
			return conn, nil
		}
		if te, ok := err.(*TransportError); !ok || !te.NotSupp {
			return nil, err
		}
	}
	return o.t1.Dial(ctx, addr, p)
}

func (o *OrTransport) DialAsListener(ctx context.Context, addr ma.Multiaddr, p peer.ID) (CapableConn, error) {
	if o.t0.CanDial(addr) {
		return o.t0.DialAsListener(ctx, addr, p)
	}
	return o.t1.DialAsListener(ctx, addr, p)
}

func (o *OrTransport) CanDial(addr ma.Multiaddr) bool {
	return o.t0.CanDial(addr) || o.t1.CanDial(addr)
}

func (o *OrTransport) AddressTranslation(observed, local ma.Multiaddr) (ma.Multiaddr, bool) {
	if a, ok := o.t0.AddressTranslation(observed, local); ok {
		return a, ok
	}
	return o.t1.AddressTranslation(observed, local)
}

// Poll alternates which child is polled first each call so that
// neither child is starved by a consistently-busier sibling.
func (o *OrTransport) Poll(ctx context.Context) (TransportEvent, bool) {
	o.mu.Lock()
	start := o.next
	o.next = (o.next + 1) % 2
	o.mu.Unlock()

	kids := o.children()
	for i := 0; i < 2; i++ {
		idx := (start + i) % 2
		if ev, ok := kids[idx].Poll(ctx); ok {
			return ev, true
		}
	}
	return TransportEvent{}, false
}

// MapFunc transforms a successfully-dialed/accepted connection into
// another CapableConn, e.g. to layer metrics or additional bookkeeping.
type MapFunc func(CapableConn) CapableConn

// MapTransport lifts a transport's output through f.
type MapTransport struct {
	Inner Transport
	F     MapFunc
}

func NewMapTransport(inner Transport, f MapFunc) *MapTransport {
	return &MapTransport{Inner: inner, F: f}
}

func (m *MapTransport) ListenOn(addr ma.Multiaddr) (ListenerID, error) { return m.Inner.ListenOn(addr) }
func (m *MapTransport) RemoveListener(id ListenerID) error             { return m.Inner.RemoveListener(id) }
func (m *MapTransport) CanDial(addr ma.Multiaddr) bool                 { return m.Inner.CanDial(addr) }
func (m *MapTransport) AddressTranslation(o, l ma.Multiaddr) (ma.Multiaddr, bool) {
	return m.Inner.AddressTranslation(o, l)
}

func (m *MapTransport) Dial(ctx context.Context, addr ma.Multiaddr, p peer.ID) (CapableConn, error) {
	conn, err := m.Inner.Dial(ctx, addr, p)
	if err != nil {
		return nil, err
	}
	return m.F(conn), nil
}

func (m *MapTransport) DialAsListener(ctx context.Context, addr ma.Multiaddr, p peer.ID) (CapableConn, error) {
	conn, err := m.Inner.DialAsListener(ctx, addr, p)
	if err != nil {
		return nil, err
	}
	return m.F(conn), nil
}

func (m *MapTransport) Poll(ctx context.Context) (TransportEvent, bool) {
	ev, ok := m.Inner.Poll(ctx)
	if !ok || ev.Kind != EventIncoming {
		return ev, ok
	}
	inner := ev.Upgrade
	ev.Upgrade = func(ctx context.Context) (CapableConn, error) {
		conn, err := inner(ctx)
		if err != nil {
			return nil, err
		}
		return m.F(conn), nil
	}
	return ev, true
}

// Boxed erases the static type of a composed transport stack to a
// single dynamic-dispatch Transport, the form a Swarm stores.
type Boxed struct {
	Transport
}

func Box(t Transport) Boxed { return Boxed{Transport: t} }
