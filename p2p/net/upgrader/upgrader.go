// Package upgrader drives the connection-upgrade pipeline: given a
// raw byte pipe from a transport, it negotiates security (Noise or
// TLS) via multistream-select, then sets up a stream muxer (Yamux,
// negotiated via multistream-select under V1 only), producing a
// transport.CapableConn.
package upgrader

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/sec"
	"github.com/meridianlabs/swarmcore/core/transport"

	logging "github.com/ipfs/go-log/v2"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/multiformats/go-multistream"
)

var log = logging.Logger("upgrader")

// Version selects how the muxer is chosen once security is
// established. V1 runs a multistream-select exchange for the muxer
// after the security handshake. V1Lazy runs no muxer negotiation at
// all: both ends start the single configured muxer directly, and no
// part of the negotiation is interleaved or pipelined. Security
// negotiation is the same under both. spec.md §9 recommends V1Lazy
// for TCP and V1 for WebSocket.
type Version int

const (
	V1 Version = iota
	V1Lazy
)

// Muxer is the contract a stream-muxer upgrade must satisfy.
type Muxer interface {
	ID() string
	NewConn(nc sec.SecureConn, isServer bool) (network.MuxedConn, error)
}

// Upgrader negotiates security then muxing atop a raw connection.
type Upgrader struct {
	Securities    []sec.SecureTransport
	Muxer         Muxer
	Version       Version
	AcceptTimeout time.Duration
}

func New(securities []sec.SecureTransport, muxer Muxer, version Version) *Upgrader {
	return &Upgrader{
		Securities:    securities,
		Muxer:         muxer,
		Version:       version,
		AcceptTimeout: 15 * time.Second,
	}
}

// Upgrade runs the security and muxer negotiation over raw and
// returns an authenticated, muxed CapableConn bound to t.
func (u *Upgrader) Upgrade(ctx context.Context, t transport.Transport, raw manet.Conn, dir network.Direction, p peer.ID) (transport.CapableConn, error) {
	secure, err := u.negotiateSecurity(ctx, raw, dir, p)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("upgrader: security handshake: %w", err)
	}

	muxed, err := u.negotiateMuxer(secure, dir)
	if err != nil {
		secure.Close()
		return nil, fmt.Errorf("upgrader: muxer handshake: %w", err)
	}

	log.Debugf("upgraded %s connection %s <-> %s as %s", dir, raw.LocalMultiaddr(), raw.RemoteMultiaddr(), secure.RemotePeer())

	return &capableConn{
		MuxedConn:  muxed,
		secureConn: secure,
		transport:  t,
		localAddr:  raw.LocalMultiaddr(),
		remoteAddr: raw.RemoteMultiaddr(),
	}, nil
}

func (u *Upgrader) negotiateSecurity(ctx context.Context, raw manet.Conn, dir network.Direction, p peer.ID) (sec.SecureConn, error) {
	if len(u.Securities) == 0 {
		return nil, fmt.Errorf("upgrader: no security transports configured")
	}
	if len(u.Securities) == 1 {
		return u.runSecurity(ctx, u.Securities[0], raw, dir, p)
	}

	ids := make([]string, len(u.Securities))
	byID := make(map[string]sec.SecureTransport, len(u.Securities))
	for i, s := range u.Securities {
		ids[i] = string(s.ID())
		byID[string(s.ID())] = s
	}

	if dir == network.DirOutbound {
		selected, err := multistream.SelectOneOf(ids, raw)
		if err != nil {
			return nil, err
		}
		return u.runSecurity(ctx, byID[selected], raw, dir, p)
	}

	mux := multistream.NewMultistreamMuxer[string]()
	for _, id := range ids {
		mux.AddHandler(id, nil)
	}
	selected, _, err := mux.Negotiate(raw)
	if err != nil {
		return nil, err
	}
	return u.runSecurity(ctx, byID[selected], raw, dir, p)
}

func (u *Upgrader) runSecurity(ctx context.Context, s sec.SecureTransport, raw manet.Conn, dir network.Direction, p peer.ID) (sec.SecureConn, error) {
	if dir == network.DirOutbound {
		return s.SecureOutbound(ctx, raw, p)
	}
	return s.SecureInbound(ctx, raw, p)
}

func (u *Upgrader) negotiateMuxer(secure sec.SecureConn, dir network.Direction) (network.MuxedConn, error) {
	if u.Version == V1 {
		if dir == network.DirOutbound {
			if _, err := multistream.SelectOneOf([]string{u.Muxer.ID()}, secure); err != nil {
				return nil, err
			}
		} else {
			mux := multistream.NewMultistreamMuxer[string]()
			mux.AddHandler(u.Muxer.ID(), nil)
			if _, _, err := mux.Negotiate(secure); err != nil {
				return nil, err
			}
		}
	}
	// V1Lazy: no muxer negotiation takes place; the single configured
	// muxer is started directly on both ends.
	return u.Muxer.NewConn(secure, dir == network.DirOutbound)
}

// capableConn composes the muxed connection with the identity and
// addressing facets a transport.CapableConn must expose.
type capableConn struct {
	network.MuxedConn
	secureConn sec.SecureConn
	transport             transport.Transport
	localAddr, remoteAddr ma.Multiaddr
}

func (c *capableConn) LocalPeer() peer.ID             { return c.secureConn.LocalPeer() }
func (c *capableConn) RemotePeer() peer.ID            { return c.secureConn.RemotePeer() }
func (c *capableConn) RemotePublicKey() crypto.PubKey { return c.secureConn.RemotePublicKey() }
func (c *capableConn) Transport() transport.Transport { return c.transport }
func (c *capableConn) LocalMultiaddr() ma.Multiaddr   { return c.localAddr }
func (c *capableConn) RemoteMultiaddr() ma.Multiaddr  { return c.remoteAddr }
