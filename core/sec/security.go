// Package sec provides secure connection and transport interfaces:
// the authentication step of the upgrade pipeline that turns a raw
// byte pipe into a connection bound to a remote PeerId.
package sec

import (
	"context"
	"fmt"
	"net"

	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/protocol"
)

// SecureConn is an authenticated, encrypted connection.
type SecureConn interface {
	net.Conn
	network.ConnSecurity
}

// A SecureTransport turns inbound and outbound unauthenticated,
// plain-text, native connections into authenticated, encrypted
// connections. Noise and TLS both implement this contract.
type SecureTransport interface {
	// SecureInbound secures an inbound connection. If p is empty,
	// connections from any peer are accepted.
	SecureInbound(ctx context.Context, insecure net.Conn, p peer.ID) (SecureConn, error)

	// SecureOutbound secures an outbound connection.
	SecureOutbound(ctx context.Context, insecure net.Conn, p peer.ID) (SecureConn, error)

	// ID is the protocol ID negotiated via multistream-select for this
	// security protocol.
	ID() protocol.ID
}

// ErrPeerIDMismatch is returned when the identity proven during the
// handshake doesn't match the peer ID the dialer expected.
type ErrPeerIDMismatch struct {
	Expected peer.ID
	Actual   peer.ID
}

func (e ErrPeerIDMismatch) Error() string {
	return fmt.Sprintf("sec: peer id mismatch: expected %s, but remote key matches %s", e.Expected, e.Actual)
}

var _ error = (*ErrPeerIDMismatch)(nil)
