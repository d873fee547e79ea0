// Package transport defines the Transport contract: a polymorphic
// byte-pipe provider addressed by Multiaddr, plus the combinators
// (OrTransport, Map, Boxed) used to assemble a layered transport
// stack, and the TransportEvent stream a Transport yields to its
// caller instead of a blocking Accept loop.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// CapableConn is a connection offering the basic capabilities
// required by the swarm: stream multiplexing, encryption, and peer
// authentication. These may be natively provided by the transport
// (QUIC) or shimmed via the upgrade pipeline (TCP+Noise+Yamux).
type CapableConn interface {
	network.MuxedConn
	network.ConnSecurity
	network.ConnMultiaddrs

	// Transport returns the transport this connection belongs to.
	Transport() Transport
}

// ListenerID is an opaque identifier for an active listen endpoint,
// issued by the transport on a successful ListenOn.
type ListenerID uint64

var nextListenerID atomic.Uint64

// NewListenerID allocates a fresh, process-unique ListenerID.
func NewListenerID() ListenerID {
	return ListenerID(nextListenerID.Add(1))
}

// Transport is a byte-pipe provider addressed by Multiaddr. A Swarm
// holds exactly one; the builder composes its concrete transports
// (TCP and any already-built ones) in a swarm.TransportSet, optionally
// wraps that for DNS, and erases the result with Box.
type Transport interface {
	// ListenOn begins listening on addr, returning the ListenerID used
	// to correlate subsequent TransportEvents and to RemoveListener.
	ListenOn(addr ma.Multiaddr) (ListenerID, error)

	// RemoveListener stops a previously started listener.
	RemoveListener(id ListenerID) error

	// Dial dials a remote peer at addr. The context governs only
	// cancellation of the dial attempt itself.
	Dial(ctx context.Context, addr ma.Multiaddr, p peer.ID) (CapableConn, error)

	// DialAsListener dials addr but advertises the local role as
	// Listener rather than Dialer, used for hole-punch simultaneous
	// connect attempts where both sides act as though listening.
	DialAsListener(ctx context.Context, addr ma.Multiaddr, p peer.ID) (CapableConn, error)

	// CanDial reports whether this transport knows how to dial addr.
	// A true result is not a guarantee the dial will succeed.
	CanDial(addr ma.Multiaddr) bool

	// AddressTranslation maps a locally-observed external address
	// (e.g. reported by a peer) to the address this transport would
	// listen on, or returns ok=false if it cannot translate.
	AddressTranslation(observed, local ma.Multiaddr) (translated ma.Multiaddr, ok bool)

	// Poll drains one pending TransportEvent, or returns ok=false if
	// none is currently available. The caller (the Swarm loop) re-polls
	// after the transport's waker fires.
	Poll(ctx context.Context) (TransportEvent, bool)
}

// TransportEventKind tags the variant of a TransportEvent.
type TransportEventKind int

const (
	EventNewAddress TransportEventKind = iota
	EventAddressExpired
	EventIncoming
	EventListenerError
	EventListenerClosed
)

// TransportEvent is the tagged variant a Transport's Poll yields.
type TransportEvent struct {
	Kind       TransportEventKind
	ListenerID ListenerID

	// EventNewAddress / EventAddressExpired
	Addr ma.Multiaddr

	// EventIncoming
	Upgrade      func(ctx context.Context) (CapableConn, error)
	LocalAddr    ma.Multiaddr
	SendBackAddr ma.Multiaddr

	// EventListenerError
	Err error
}

// TransportError is returned by Dial/ListenOn.
type TransportError struct {
	Addr        ma.Multiaddr
	NotSupp     bool
	Cause       error
}

func (e *TransportError) Error() string {
	if e.NotSupp {
		return fmt.Sprintf("transport: address not supported: %s", e.Addr)
	}
	return fmt.Sprintf("transport: dialing %s: %s", e.Addr, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func NewTransportError(addr ma.Multiaddr, cause error) *TransportError {
	return &TransportError{Addr: addr, Cause: cause}
}

func NewTransportNotSupportedError(addr ma.Multiaddr) *TransportError {
	return &TransportError{Addr: addr, NotSupp: true}
}

var ErrListenerClosed = errors.New("transport: listener closed")
