// Package network defines the shapes shared between transports,
// security/muxer upgrades, and the swarm runtime: connection
// direction, the ConnectedPoint tagged variant, and the muxed
// connection/stream contracts that an Upgrader produces.
package network

import (
	"context"
	"time"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Direction reports which side of a connection or stream the local
// process is on.
type Direction int

const (
	DirUnknown Direction = iota
	DirInbound
	DirOutbound
)

func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Endpoint is the effective role a side played in establishing a
// connection; it tracks ConnectedPoint's direction but can diverge
// from raw transport direction during hole-punching (simultaneous
// connect), where both sides dial.
type Endpoint int

const (
	EndpointDialer Endpoint = iota
	EndpointListener
)

func (e Endpoint) String() string {
	if e == EndpointListener {
		return "listener"
	}
	return "dialer"
}

// ConnectedPoint captures the direction and address pair a connection
// was framed with, mirroring spec's {Dialer, Listener} tagged variant.
type ConnectedPoint struct {
	Endpoint Endpoint

	// Set when Endpoint == EndpointDialer.
	DialAddr     ma.Multiaddr
	RoleOverride Endpoint

	// Set when Endpoint == EndpointListener.
	LocalAddr    ma.Multiaddr
	SendBackAddr ma.Multiaddr
}

func (cp ConnectedPoint) Direction() Direction {
	if cp.Endpoint == EndpointDialer {
		return DirOutbound
	}
	return DirInbound
}

func (cp ConnectedPoint) RemoteMultiaddr() ma.Multiaddr {
	if cp.Endpoint == EndpointDialer {
		return cp.DialAddr
	}
	return cp.SendBackAddr
}

func (cp ConnectedPoint) LocalMultiaddr() ma.Multiaddr {
	return cp.LocalAddr
}

// AddrDelay pairs a candidate dial address with the delay a dial
// ranker assigns it relative to the start of the overall dial attempt.
type AddrDelay struct {
	Addr  ma.Multiaddr
	Delay time.Duration
}

// ConnMultiaddrs is satisfied by anything that knows the local/remote
// addresses it was established over.
type ConnMultiaddrs interface {
	LocalMultiaddr() ma.Multiaddr
	RemoteMultiaddr() ma.Multiaddr
}

// ConnSecurity is satisfied by an authenticated connection: it knows
// both peers' persistent identities.
type ConnSecurity interface {
	LocalPeer() peer.ID
	RemotePeer() peer.ID
	RemotePublicKey() crypto.PubKey
}

// MuxedStream is a single logical substream multiplexed over a MuxedConn.
type MuxedStream interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
	CloseRead() error
	CloseWrite() error
	Reset() error
	SetDeadline(time.Time) error
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// MuxedConn is the stream-muxer contract produced by a muxer upgrade
// (e.g. Yamux): it turns one byte pipe into many logical streams.
type MuxedConn interface {
	Close() error
	IsClosed() bool
	OpenStream(ctx context.Context) (MuxedStream, error)
	AcceptStream() (MuxedStream, error)
}

// context keys used to thread dial-scoped options (simultaneous
// connect / forced direct dial) without widening every function
// signature, matching the teacher's convention in core/network.
type ctxKey int

const (
	ctxForceDirect ctxKey = iota
	ctxSimConnect
)

type forceDirectVal struct{ reason string }

// WithForceDirectDial instructs the swarm to skip relay addresses for
// this dial and attempt a direct connection only (used by hole-punch
// coordination).
func WithForceDirectDial(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, ctxForceDirect, forceDirectVal{reason})
}

func GetForceDirectDial(ctx context.Context) (forced bool, reason string) {
	v, ok := ctx.Value(ctxForceDirect).(forceDirectVal)
	if !ok {
		return false, ""
	}
	return true, v.reason
}

type simConnectVal struct {
	isClient bool
	reason   string
}

// WithSimultaneousConnect marks a dial as part of a DCUtR-style
// simultaneous-connect (hole punch) attempt.
func WithSimultaneousConnect(ctx context.Context, isClient bool, reason string) context.Context {
	return context.WithValue(ctx, ctxSimConnect, simConnectVal{isClient, reason})
}

func GetSimultaneousConnect(ctx context.Context) (isSimConnect bool, isClient bool, reason string) {
	v, ok := ctx.Value(ctxSimConnect).(simConnectVal)
	if !ok {
		return false, false, ""
	}
	return true, v.isClient, v.reason
}
