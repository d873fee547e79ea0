// Package noise implements the Noise XX handshake as a libp2p security
// transport: it authenticates a raw connection to a remote peer identity
// and leaves behind an encrypted, framed byte pipe for the muxer to run
// over.
package noise

import (
	"context"
	"fmt"
	"net"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/protocol"
	"github.com/meridianlabs/swarmcore/core/sec"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("noise")

// ID is the protocol ID negotiated via multistream-select for Noise.
const ID = protocol.SecurityNoiseID

// Transport constructs Noise sessions bound to a local libp2p identity.
type Transport struct {
	localID     peer.ID
	privateKey  crypto.PrivKey
	prologue    []byte
	checkPeerID bool
}

var _ sec.SecureTransport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithPrologue binds the session to an out-of-band prologue, aborting the
// handshake if both ends don't agree on it.
func WithPrologue(prologue []byte) Option {
	return func(t *Transport) { t.prologue = prologue }
}

// New builds a Noise transport that authenticates connections against the
// given local identity key.
func New(privkey crypto.PrivKey, opts ...Option) (*Transport, error) {
	localID, err := peer.IDFromPrivateKey(privkey)
	if err != nil {
		return nil, fmt.Errorf("noise: failed to derive peer id: %w", err)
	}
	t := &Transport{
		localID:     localID,
		privateKey:  privkey,
		checkPeerID: true,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

func (t *Transport) ID() protocol.ID { return ID }

// SecureInbound runs the responder side of the Noise XX handshake. If p is
// non-empty, the remote's proven identity must match it.
func (t *Transport) SecureInbound(ctx context.Context, insecure net.Conn, p peer.ID) (sec.SecureConn, error) {
	s, err := newSecureSession(t, ctx, insecure, p, t.prologue, false, t.checkPeerID && p != "")
	if err != nil {
		log.Debugw("inbound noise handshake failed", "error", err, "remote", insecure.RemoteAddr())
	}
	return s, err
}

// SecureOutbound runs the initiator side of the Noise XX handshake,
// expecting the remote to prove identity p.
func (t *Transport) SecureOutbound(ctx context.Context, insecure net.Conn, p peer.ID) (sec.SecureConn, error) {
	s, err := newSecureSession(t, ctx, insecure, p, t.prologue, true, t.checkPeerID)
	if err != nil {
		log.Debugw("outbound noise handshake failed", "error", err, "remote", insecure.RemoteAddr())
	}
	return s, err
}
