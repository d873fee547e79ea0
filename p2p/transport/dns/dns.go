// Package dns wraps an inner transport so it can dial DNS multiaddrs
// (/dns, /dns4, /dns6, /dnsaddr) by resolving them to concrete
// addresses first. It corresponds to SwarmBuilder's optional Dns
// builder phase, which wraps whatever transport the Tcp/Quic/
// OtherTransport phases have accumulated so far.
package dns

import (
	"context"

	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/transport"

	madns "github.com/multiformats/go-multiaddr-dns"
	ma "github.com/multiformats/go-multiaddr"
)

// Transport resolves DNS components in a dial address before handing
// the resolved address to inner. Listening and everything else
// passes straight through: DNS addresses only ever make sense as
// dial targets.
type Transport struct {
	inner    transport.Transport
	resolver *madns.Resolver
}

func New(inner transport.Transport) (*Transport, error) {
	resolver, err := madns.NewResolver()
	if err != nil {
		return nil, err
	}
	return &Transport{inner: inner, resolver: resolver}, nil
}

func (t *Transport) resolve(ctx context.Context, addr ma.Multiaddr) (ma.Multiaddr, error) {
	if !madns.Matches(addr) {
		return addr, nil
	}
	resolved, err := t.resolver.Resolve(ctx, addr)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		return nil, transport.NewTransportError(addr, context.DeadlineExceeded)
	}
	return resolved[0], nil
}

func (t *Transport) Dial(ctx context.Context, addr ma.Multiaddr, p peer.ID) (transport.CapableConn, error) {
	resolved, err := t.resolve(ctx, addr)
	if err != nil {
		return nil, err
	}
	return t.inner.Dial(ctx, resolved, p)
}

func (t *Transport) DialAsListener(ctx context.Context, addr ma.Multiaddr, p peer.ID) (transport.CapableConn, error) {
	resolved, err := t.resolve(ctx, addr)
	if err != nil {
		return nil, err
	}
	return t.inner.DialAsListener(ctx, resolved, p)
}

func (t *Transport) ListenOn(addr ma.Multiaddr) (transport.ListenerID, error) {
	return t.inner.ListenOn(addr)
}

func (t *Transport) RemoveListener(id transport.ListenerID) error {
	return t.inner.RemoveListener(id)
}

func (t *Transport) CanDial(addr ma.Multiaddr) bool {
	if madns.Matches(addr) {
		return true
	}
	return t.inner.CanDial(addr)
}

func (t *Transport) AddressTranslation(observed, local ma.Multiaddr) (ma.Multiaddr, bool) {
	return t.inner.AddressTranslation(observed, local)
}

func (t *Transport) Poll(ctx context.Context) (transport.TransportEvent, bool) {
	return t.inner.Poll(ctx)
}

func (t *Transport) Protocols() []int {
	return append([]int{ma.P_DNS, ma.P_DNS4, ma.P_DNS6, ma.P_DNSADDR}, innerProtocols(t.inner)...)
}

func (t *Transport) Proxy() bool { return false }

func innerProtocols(inner transport.Transport) []int {
	type protocolLister interface{ Protocols() []int }
	if pl, ok := inner.(protocolLister); ok {
		return pl.Protocols()
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
