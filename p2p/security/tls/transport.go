package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/protocol"
	"github.com/meridianlabs/swarmcore/core/sec"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("tls")

// ID is the protocol ID negotiated via multistream-select for TLS.
const ID = protocol.SecurityTLSID

// Transport authenticates connections with TLS 1.3, using a
// self-signed certificate whose custom extension binds the
// connection's ephemeral key to the local libp2p identity (see
// cert.go) rather than relying on a certificate authority.
type Transport struct {
	identityKey crypto.PrivKey
	localID     peer.ID
	cert        tls.Certificate
}

var _ sec.SecureTransport = (*Transport)(nil)

// New builds a TLS transport that authenticates connections against
// the given local identity key, generating a fresh certificate bound
// to it.
func New(identityKey crypto.PrivKey) (*Transport, error) {
	localID, err := peer.IDFromPrivateKey(identityKey)
	if err != nil {
		return nil, fmt.Errorf("tls: failed to derive peer id: %w", err)
	}
	cert, err := generateCert(identityKey)
	if err != nil {
		return nil, err
	}
	return &Transport{identityKey: identityKey, localID: localID, cert: cert}, nil
}

func (t *Transport) ID() protocol.ID { return ID }

func (t *Transport) config() *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS13,
		Certificates:       []tls.Certificate{t.cert},
		InsecureSkipVerify: true, // identity is proven by the libp2p extension, not the chain
		ClientAuth:         tls.RequireAnyClientCert,
		NextProtos:         []string{"libp2p"},
	}
}

// SecureInbound runs the server side of the TLS 1.3 handshake,
// verifying the client's libp2p certificate extension. If p is
// non-empty, the remote's proven identity must match it.
func (t *Transport) SecureInbound(ctx context.Context, insecure net.Conn, p peer.ID) (sec.SecureConn, error) {
	conn := tls.Server(insecure, t.config())
	s, err := t.handshake(ctx, conn, p)
	if err != nil {
		log.Debugw("inbound tls handshake failed", "error", err, "remote", insecure.RemoteAddr())
		return nil, err
	}
	return s, nil
}

// SecureOutbound runs the client side of the TLS 1.3 handshake,
// expecting the remote to prove identity p.
func (t *Transport) SecureOutbound(ctx context.Context, insecure net.Conn, p peer.ID) (sec.SecureConn, error) {
	conn := tls.Client(insecure, t.config())
	s, err := t.handshake(ctx, conn, p)
	if err != nil {
		log.Debugw("outbound tls handshake failed", "error", err, "remote", insecure.RemoteAddr())
		return nil, err
	}
	return s, nil
}

func (t *Transport) handshake(ctx context.Context, conn *tls.Conn, expected peer.ID) (*secureConn, error) {
	done := make(chan error, 1)
	go func() { done <- conn.HandshakeContext(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls: handshake failed: %w", err)
		}
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}

	state := conn.ConnectionState()
	var rawChain [][]byte
	for _, c := range state.PeerCertificates {
		rawChain = append(rawChain, c.Raw)
	}
	remoteID, remotePub, err := verifyCert(rawChain)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if expected != "" && expected != remoteID {
		conn.Close()
		return nil, sec.ErrPeerIDMismatch{Expected: expected, Actual: remoteID}
	}

	return &secureConn{
		Conn:      conn,
		localID:   t.localID,
		localKey:  t.identityKey.GetPublic(),
		remoteID:  remoteID,
		remoteKey: remotePub,
	}, nil
}

// secureConn wraps a handshaken *tls.Conn with the libp2p identity
// facts the handshake proved, mirroring noise.secureSession's shape.
type secureConn struct {
	*tls.Conn
	localID   peer.ID
	localKey  crypto.PubKey
	remoteID  peer.ID
	remoteKey crypto.PubKey
}

var _ sec.SecureConn = (*secureConn)(nil)

func (c *secureConn) LocalPeer() peer.ID            { return c.localID }
func (c *secureConn) RemotePeer() peer.ID            { return c.remoteID }
func (c *secureConn) RemotePublicKey() crypto.PubKey { return c.remoteKey }
