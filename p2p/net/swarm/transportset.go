package swarm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/transport"

	ma "github.com/multiformats/go-multiaddr"
)

// protocolTransport is the extra surface a transport needs beyond the
// core Transport contract to take part in a TransportSet: which
// multiaddr protocol codes it handles, and whether it's a proxy
// protocol (e.g. a circuit relay) that should win protocol-code ties
// when listening.
type protocolTransport interface {
	transport.Transport
	Protocols() []int
	Proxy() bool
}

// TransportSet aggregates several transports registered by the
// multiaddr protocol codes they handle (e.g. TCP under ma.P_TCP,
// QUIC under ma.P_QUIC_V1) into a single transport.Transport, the way
// SwarmBuilder accumulates its Tcp/Quic/OtherTransport/Websocket
// phases into the one boxed transport a Swarm is built with.
//
// Grounded on the composite dial/listen transport-selection logic a
// libp2p swarm runs internally (select by trailing protocol code for
// listening, by CanDial for dialing).
type TransportSet struct {
	mu sync.RWMutex
	m  map[int]protocolTransport
	// ordered preserves declaration order for CanDial fallback and for
	// fanning Poll out fairly across the set.
	ordered []protocolTransport
	cursor  int
}

func NewTransportSet() *TransportSet {
	return &TransportSet{m: make(map[int]protocolTransport)}
}

// Add registers t under every protocol code it reports. Returns an
// error if a code is already claimed by another transport.
func (s *TransportSet) Add(t protocolTransport) error {
	protocols := t.Protocols()
	if len(protocols) == 0 {
		return fmt.Errorf("swarm: useless transport handles no protocols: %T", t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var conflicts []string
	for _, p := range protocols {
		if _, ok := s.m[p]; ok {
			name := ma.ProtocolWithCode(p).Name
			if name == "" {
				name = fmt.Sprintf("unknown (%d)", p)
			}
			conflicts = append(conflicts, name)
		}
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("swarm: transport already registered for protocol(s): %s", strings.Join(conflicts, ", "))
	}

	for _, p := range protocols {
		s.m[p] = t
	}
	s.ordered = append(s.ordered, t)
	return nil
}

func (s *TransportSet) transportForDialing(a ma.Multiaddr) transport.Transport {
	if a == nil {
		return nil
	}
	if len(a.Protocols()) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if info, err := peer.AddrInfoFromP2pAddr(a); err == nil && len(info.Addrs) > 0 {
		a = info.Addrs[0]
	}
	for _, t := range s.ordered {
		if t.CanDial(a) {
			return t
		}
	}
	return nil
}

func (s *TransportSet) transportForListening(a ma.Multiaddr) transport.Transport {
	protocols := a.Protocols()
	if len(protocols) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	selected, ok := s.m[protocols[len(protocols)-1].Code]
	if !ok {
		selected = nil
	}
	for _, p := range protocols {
		t, ok := s.m[p.Code]
		if !ok {
			continue
		}
		if t.Proxy() {
			selected = t
		}
	}
	return selected
}

func (s *TransportSet) Dial(ctx context.Context, addr ma.Multiaddr, p peer.ID) (transport.CapableConn, error) {
	t := s.transportForDialing(addr)
	if t == nil {
		return nil, transport.NewTransportNotSupportedError(addr)
	}
	return t.Dial(ctx, addr, p)
}

func (s *TransportSet) DialAsListener(ctx context.Context, addr ma.Multiaddr, p peer.ID) (transport.CapableConn, error) {
	t := s.transportForDialing(addr)
	if t == nil {
		return nil, transport.NewTransportNotSupportedError(addr)
	}
	return t.DialAsListener(ctx, addr, p)
}

func (s *TransportSet) CanDial(addr ma.Multiaddr) bool {
	return s.transportForDialing(addr) != nil
}

func (s *TransportSet) ListenOn(addr ma.Multiaddr) (transport.ListenerID, error) {
	t := s.transportForListening(addr)
	if t == nil {
		return 0, transport.NewTransportNotSupportedError(addr)
	}
	return t.ListenOn(addr)
}

func (s *TransportSet) RemoveListener(id transport.ListenerID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.ordered {
		if err := t.RemoveListener(id); err == nil {
			return nil
		}
	}
	return transport.ErrListenerClosed
}

func (s *TransportSet) AddressTranslation(observed, local ma.Multiaddr) (ma.Multiaddr, bool) {
	t := s.transportForListening(local)
	if t == nil {
		return nil, false
	}
	return t.AddressTranslation(observed, local)
}

// Poll rotates across the set's transports the same way FanOut
// rotates across behaviours, so one busy transport cannot starve
// another's events.
func (s *TransportSet) Poll(ctx context.Context) (transport.TransportEvent, bool) {
	s.mu.RLock()
	ordered := s.ordered
	s.mu.RUnlock()

	n := len(ordered)
	if n == 0 {
		return transport.TransportEvent{}, false
	}
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		if ev, ok := ordered[idx].Poll(ctx); ok {
			s.cursor = (idx + 1) % n
			return ev, true
		}
	}
	return transport.TransportEvent{}, false
}

var _ transport.Transport = (*TransportSet)(nil)
