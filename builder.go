// Package swarmcore is the entry point for assembling a Swarm: a
// phased builder that mirrors rust-libp2p's SwarmBuilder type-state
// machine (libp2p/src/builder.rs) as a chain of distinct Go struct
// types, one per phase, each exposing only the methods legal at that
// point in construction.
//
// The phase sequence is: Initial (identity) -> Provider (executor) ->
// Tcp (optional) -> TcpTls/TcpNoise (security, only if Tcp was
// chosen) -> Quic (optional, races in parallel with Tcp) ->
// OtherTransport (zero or more) -> Dns (optional, wraps everything
// accumulated so far) -> Relay (optional) -> Websocket (optional,
// an already-built transport) -> Behaviour -> Build.
package swarmcore

import (
	"fmt"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/sec"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	"github.com/meridianlabs/swarmcore/core/transport"
	"github.com/meridianlabs/swarmcore/p2p/muxer/yamux"
	"github.com/meridianlabs/swarmcore/p2p/net/swarm"
	"github.com/meridianlabs/swarmcore/p2p/net/upgrader"
	"github.com/meridianlabs/swarmcore/p2p/security/noise"
	"github.com/meridianlabs/swarmcore/p2p/security/tls"
	"github.com/meridianlabs/swarmcore/p2p/transport/dns"
	"github.com/meridianlabs/swarmcore/p2p/transport/tcp"
)

// protocolTransport is the surface TransportSet needs: the base
// transport.Transport contract plus the protocol-code/proxy bits used
// to dispatch dial/listen across the accumulated set.
type protocolTransport interface {
	transport.Transport
	Protocols() []int
	Proxy() bool
}

// InitialBuilder is phase 1: establish the local identity before
// anything else can be configured.
type InitialBuilder struct{}

// NewBuilder starts a SwarmBuilder construction.
func NewBuilder() InitialBuilder { return InitialBuilder{} }

// WithNewIdentity generates a fresh Ed25519 keypair for the local peer.
func (InitialBuilder) WithNewIdentity() (ProviderBuilder, error) {
	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519)
	if err != nil {
		return ProviderBuilder{}, fmt.Errorf("swarmcore: generating identity: %w", err)
	}
	return newProviderBuilder(priv)
}

// WithExistingIdentity continues construction under an existing key,
// the way a restarted node re-loads its persisted identity.
func (InitialBuilder) WithExistingIdentity(priv crypto.PrivKey) (ProviderBuilder, error) {
	return newProviderBuilder(priv)
}

func newProviderBuilder(priv crypto.PrivKey) (ProviderBuilder, error) {
	localID, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return ProviderBuilder{}, fmt.Errorf("swarmcore: deriving peer id: %w", err)
	}
	return ProviderBuilder{privKey: priv, localID: localID}, nil
}

// ProviderBuilder is phase 2: pick how background work gets spawned.
// The Swarm's own internals (dial races, upgrade goroutines, the
// substream accept loop) always use a bare `go`; Executor is recorded
// purely so callers embedding this module inside a larger runtime can
// observe/override that choice in their own spawned goroutines — it
// is not threaded into the Swarm loop itself, which has no use for an
// executor abstraction once every async step reports back over a
// channel.
type ProviderBuilder struct {
	privKey  crypto.PrivKey
	localID  peer.ID
	executor func(func())
}

// WithTokioExecutor is named for parity with rust-libp2p's
// with_tokio() (its default, schedule-on-the-ambient-runtime choice);
// Go has no equivalent ambient runtime, so this simply records the
// default bare `go func(){ f() }()` spawn strategy.
func (p ProviderBuilder) WithTokioExecutor() TcpBuilder {
	p.executor = func(f func()) { go f() }
	return TcpBuilder{provider: p}
}

// WithExecutor installs a caller-supplied spawn function.
func (p ProviderBuilder) WithExecutor(executor func(func())) TcpBuilder {
	p.executor = executor
	return TcpBuilder{provider: p}
}

// TcpBuilder is phase 3: optionally add a TCP transport.
type TcpBuilder struct {
	provider ProviderBuilder
	tcpOpts  []tcp.Option
	useTcp   bool
}

// WithTcp opts in to a TCP transport; its security layer is chosen in
// the next phase.
func (b TcpBuilder) WithTcp(opts ...tcp.Option) TcpTlsBuilder {
	b.tcpOpts = opts
	b.useTcp = true
	return TcpTlsBuilder{tcp: b}
}

// WithoutTcp skips TCP entirely.
func (b TcpBuilder) WithoutTcp() TcpTlsBuilder {
	b.useTcp = false
	return TcpTlsBuilder{tcp: b}
}

// TcpTlsBuilder is phase 4: TLS security for TCP, only meaningful if
// WithTcp was chosen.
type TcpTlsBuilder struct {
	tcp        TcpBuilder
	tlsEnabled bool
}

// WithTls opts the TCP transport into TLS 1.3 security.
func (b TcpTlsBuilder) WithTls() TcpNoiseBuilder {
	b.tlsEnabled = true
	return TcpNoiseBuilder{tls: b}
}

// WithoutTls skips TLS for TCP.
func (b TcpTlsBuilder) WithoutTls() TcpNoiseBuilder {
	return TcpNoiseBuilder{tls: b}
}

// TcpNoiseBuilder is phase 5: Noise security for TCP. If both TLS and
// Noise were selected, the upgrader offers both and the remote peer's
// multistream-select choice decides per-connection (MultiSelect).
type TcpNoiseBuilder struct {
	tls          TcpTlsBuilder
	noiseEnabled bool
}

// WithNoise opts the TCP transport into Noise security.
func (b TcpNoiseBuilder) WithNoise() QuicBuilder {
	b.noiseEnabled = true
	return newQuicBuilder(b)
}

// WithoutNoise skips Noise for TCP.
func (b TcpNoiseBuilder) WithoutNoise() QuicBuilder {
	return newQuicBuilder(b)
}

func newQuicBuilder(n TcpNoiseBuilder) QuicBuilder {
	return QuicBuilder{noise: n}
}

// QuicBuilder is phase 6: optionally race a QUIC transport in
// parallel with whatever TCP/security pipeline phases 3-5 built
// (rust's or_transport combinator). This module does not ship a
// concrete QUIC transport (see DESIGN.md for why: quic-go's
// connection shape needs its own MuxedConn/CapableConn adapter this
// module doesn't implement), so WithQuic accepts an already-built
// transport.Transport for the caller to supply one.
type QuicBuilder struct {
	noise      TcpNoiseBuilder
	quicTpt    protocolTransport
	useQuic    bool
}

// WithQuic adds an externally constructed QUIC transport to the set.
func (b QuicBuilder) WithQuic(tpt protocolTransport) OtherTransportBuilder {
	b.quicTpt = tpt
	b.useQuic = true
	return OtherTransportBuilder{quic: b}
}

// WithoutQuic skips QUIC.
func (b QuicBuilder) WithoutQuic() OtherTransportBuilder {
	return OtherTransportBuilder{quic: b}
}

// OtherTransportBuilder is phase 7: zero or more additional
// transports, each already fully built (e.g. a WebRTC transport).
type OtherTransportBuilder struct {
	quic   QuicBuilder
	others []protocolTransport
}

// WithOtherTransport appends another already-built transport to the set.
func (b OtherTransportBuilder) WithOtherTransport(tpt protocolTransport) OtherTransportBuilder {
	b.others = append(b.others, tpt)
	return b
}

// Done moves on to the Dns phase.
func (b OtherTransportBuilder) Done() DnsBuilder {
	return DnsBuilder{other: b}
}

// DnsBuilder is phase 8: optionally wrap the accumulated transport so
// it can dial /dns, /dns4, /dns6 and /dnsaddr multiaddrs.
type DnsBuilder struct {
	other  OtherTransportBuilder
	useDns bool
}

func (b DnsBuilder) WithDns() RelayBuilder  { b.useDns = true; return RelayBuilder{dns: b} }
func (b DnsBuilder) WithoutDns() RelayBuilder { return RelayBuilder{dns: b} }

// RelayBuilder is phase 9: optionally record a relay client. This
// module does not ship a concrete relay client transport/behaviour
// (see DESIGN.md); WithRelayClient records one built elsewhere, and
// the behaviour constructor given to WithBehaviour receives it (nil
// after WithoutRelayClient). No toggle.Toggle wrapping is applied.
type RelayBuilder struct {
	dns         DnsBuilder
	relayClient any
	useRelay    bool
}

func (b RelayBuilder) WithRelayClient(client any) WebsocketBuilder {
	b.relayClient = client
	b.useRelay = true
	return WebsocketBuilder{relay: b}
}

func (b RelayBuilder) WithoutRelayClient() WebsocketBuilder {
	return WebsocketBuilder{relay: b}
}

// WebsocketBuilder is phase 10: optionally add a WebSocket transport.
// This module does not ship one (see DESIGN.md); WithWebsocket
// accepts an already-built transport.Transport.
type WebsocketBuilder struct {
	relay     RelayBuilder
	wsTpt     protocolTransport
	useWs     bool
}

func (b WebsocketBuilder) WithWebsocket(tpt protocolTransport) BehaviourBuilder {
	b.wsTpt = tpt
	b.useWs = true
	return newBehaviourBuilder(b)
}

func (b WebsocketBuilder) WithoutWebsocket() BehaviourBuilder {
	return newBehaviourBuilder(b)
}

// BehaviourBuilder is phase 11: supply the root NetworkBehaviour.
// BehaviourFn receives the local keypair (and, conceptually, a
// relay-client handle if one was configured) and returns the
// behaviour the Swarm will drive.
type BehaviourBuilder struct {
	ws WebsocketBuilder
}

func newBehaviourBuilder(ws WebsocketBuilder) BehaviourBuilder {
	return BehaviourBuilder{ws: ws}
}

// WithBehaviour finishes phase 11, taking a constructor closure the
// way rust's with_behaviour does, and returns the terminal Build phase.
func WithBehaviour[O any](b BehaviourBuilder, behaviourFn func(priv crypto.PrivKey, relayClient any) (coreswarm.NetworkBehaviour[O], error)) (BuildBuilder[O], error) {
	relay := b.ws.relay
	behaviour, err := behaviourFn(relay.dns.other.quic.noise.tls.tcp.provider.privKey, relay.relayClient)
	if err != nil {
		return BuildBuilder[O]{}, fmt.Errorf("swarmcore: constructing behaviour: %w", err)
	}
	return BuildBuilder[O]{ws: b.ws, behaviour: behaviour}, nil
}

// BuildBuilder is phase 12: freeze the transport and behaviour into a
// running Swarm.
type BuildBuilder[O any] struct {
	ws        WebsocketBuilder
	behaviour coreswarm.NetworkBehaviour[O]
}

// Build assembles the accumulated transport phases into one
// transport.Transport (boxed, in rust's terms) and returns a Swarm
// driving it alongside the configured behaviour.
func (b BuildBuilder[O]) Build() (*swarm.Swarm[O], error) {
	relay := b.ws.relay
	dnsPhase := relay.dns
	otherPhase := dnsPhase.other
	quicPhase := otherPhase.quic
	noisePhase := quicPhase.noise
	tlsPhase := noisePhase.tls
	tcpPhase := tlsPhase.tcp
	provider := tcpPhase.provider

	set := swarm.NewTransportSet()

	if tcpPhase.useTcp {
		var securities []sec.SecureTransport
		if tlsPhase.tlsEnabled {
			tp, err := tls.New(provider.privKey)
			if err != nil {
				return nil, fmt.Errorf("swarmcore: building tls transport: %w", err)
			}
			securities = append(securities, tp)
		}
		if noisePhase.noiseEnabled {
			n, err := noise.New(provider.privKey)
			if err != nil {
				return nil, fmt.Errorf("swarmcore: building noise transport: %w", err)
			}
			securities = append(securities, n)
		}
		if len(securities) == 0 {
			return nil, fmt.Errorf("swarmcore: tcp was selected but no security transport was configured (select WithTls and/or WithNoise)")
		}
		up := upgrader.New(securities, yamux.New(), upgrader.V1Lazy)
		tcpTpt, err := tcp.NewTransport(up, tcpPhase.tcpOpts...)
		if err != nil {
			return nil, fmt.Errorf("swarmcore: building tcp transport: %w", err)
		}
		if err := set.Add(tcpTpt); err != nil {
			return nil, err
		}
	}

	if quicPhase.useQuic {
		if err := set.Add(quicPhase.quicTpt); err != nil {
			return nil, err
		}
	}

	for _, other := range otherPhase.others {
		if err := set.Add(other); err != nil {
			return nil, err
		}
	}

	if b.ws.useWs {
		if err := set.Add(b.ws.wsTpt); err != nil {
			return nil, err
		}
	}

	// The set (plus an optional Dns wrap) is erased to a single boxed
	// transport.Transport via transport.Box, the same erasure
	// rust-libp2p's SwarmBuilder::build performs on its accumulated
	// transport stack.
	var assembled transport.Transport = set
	if dnsPhase.useDns {
		wrapped, err := dns.New(set)
		if err != nil {
			return nil, fmt.Errorf("swarmcore: building dns transport: %w", err)
		}
		assembled = wrapped
	}
	boxed := transport.Box(assembled)

	return swarm.NewSwarm[O](provider.localID, boxed, b.behaviour), nil
}
