// Package tcp implements the TCP transport: raw stream dialing and
// listening, feeding the shared upgrader to produce authenticated,
// muxed connections.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/transport"
	"github.com/meridianlabs/swarmcore/p2p/net/upgrader"

	logging "github.com/ipfs/go-log/v2"
	tec "github.com/jbenet/go-temp-err-catcher"
	"github.com/libp2p/go-reuseport"
	ma "github.com/multiformats/go-multiaddr"
	mafmt "github.com/multiformats/go-multiaddr-fmt"
	manet "github.com/multiformats/go-multiaddr/net"
)

var log = logging.Logger("tcp-tpt")

const (
	defaultConnectTimeout = 5 * time.Second
	keepAlivePeriod       = 30 * time.Second
)

type canKeepAlive interface {
	SetKeepAlive(bool) error
	SetKeepAlivePeriod(time.Duration) error
}

var _ canKeepAlive = &net.TCPConn{}

func tryKeepAlive(conn net.Conn, keepAlive bool) {
	kac, ok := conn.(canKeepAlive)
	if !ok {
		return
	}
	if err := kac.SetKeepAlive(keepAlive); err != nil {
		if errors.Is(err, os.ErrInvalid) || errors.Is(err, syscall.EINVAL) {
			log.Debugw("failed to enable TCP keepalive", "error", err)
		} else {
			log.Errorw("failed to enable TCP keepalive", "error", err)
		}
		return
	}
	if runtime.GOOS != "openbsd" {
		if err := kac.SetKeepAlivePeriod(keepAlivePeriod); err != nil {
			log.Errorw("failed to set keepalive period", "error", err)
		}
	}
}

func tryLinger(conn net.Conn, sec int) {
	type canLinger interface{ SetLinger(int) error }
	if l, ok := conn.(canLinger); ok {
		_ = l.SetLinger(sec)
	}
}

// Option configures a Transport.
type Option func(*Transport) error

func DisableReuseport() Option {
	return func(t *Transport) error { t.disableReuseport = true; return nil }
}

func WithConnectionTimeout(d time.Duration) Option {
	return func(t *Transport) error { t.connectTimeout = d; return nil }
}

func WithMetrics() Option {
	return func(t *Transport) error { t.enableMetrics = true; return nil }
}

var dialMatcher = mafmt.And(mafmt.IP, mafmt.Base(ma.P_TCP))

// Transport is the TCP transport.
type Transport struct {
	upgrader         *upgrader.Upgrader
	disableReuseport bool
	enableMetrics    bool
	connectTimeout   time.Duration

	metricsCollector *aggregatingCollector

	mu        sync.Mutex
	listeners map[transport.ListenerID]*tcpListener
	events    chan transport.TransportEvent
	waker     chan struct{}
}

var _ transport.Transport = (*Transport)(nil)

func NewTransport(up *upgrader.Upgrader, opts ...Option) (*Transport, error) {
	t := &Transport{
		upgrader:       up,
		connectTimeout: defaultConnectTimeout,
		listeners:      make(map[transport.ListenerID]*tcpListener),
		events:         make(chan transport.TransportEvent, 32),
		waker:          make(chan struct{}, 1),
	}
	for _, o := range opts {
		if err := o(t); err != nil {
			return nil, err
		}
	}
	if t.enableMetrics {
		t.metricsCollector = newAggregatingCollector()
	}
	return t, nil
}

func (t *Transport) CanDial(addr ma.Multiaddr) bool { return dialMatcher.Matches(addr) }

func (t *Transport) AddressTranslation(observed, local ma.Multiaddr) (ma.Multiaddr, bool) {
	return nil, false
}

func (t *Transport) maDial(ctx context.Context, raddr ma.Multiaddr) (manet.Conn, error) {
	if t.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.connectTimeout)
		defer cancel()
	}
	if t.useReuseport() {
		rnet, rnaddr, err := manet.DialArgs(raddr)
		if err != nil {
			return nil, err
		}
		nc, err := reuseport.DialContext(ctx, rnet, "", rnaddr)
		if err != nil {
			return nil, err
		}
		return manet.WrapNetConn(nc)
	}
	var d manet.Dialer
	return d.DialContext(ctx, raddr)
}

func (t *Transport) useReuseport() bool {
	return !t.disableReuseport && reuseport.Available()
}

func (t *Transport) Dial(ctx context.Context, raddr ma.Multiaddr, p peer.ID) (transport.CapableConn, error) {
	conn, err := t.maDial(ctx, raddr)
	if err != nil {
		return nil, transport.NewTransportError(raddr, err)
	}
	tryLinger(conn, 0)
	tryKeepAlive(conn, true)

	var mc manet.Conn = conn
	if t.enableMetrics {
		tc, err := newTracingConn(conn, t.metricsCollector, true)
		if err != nil {
			conn.Close()
			return nil, err
		}
		mc = tc
	}

	dir := network.DirOutbound
	if ok, isClient, _ := network.GetSimultaneousConnect(ctx); ok && !isClient {
		dir = network.DirInbound
	}
	return t.upgrader.Upgrade(ctx, t, mc, dir, p)
}

func (t *Transport) DialAsListener(ctx context.Context, addr ma.Multiaddr, p peer.ID) (transport.CapableConn, error) {
	ctx = network.WithSimultaneousConnect(ctx, true, "tcp-simultaneous-connect")
	return t.Dial(ctx, addr, p)
}

func (t *Transport) ListenOn(laddr ma.Multiaddr) (transport.ListenerID, error) {
	var ml manet.Listener
	var err error
	if t.useReuseport() {
		rnet, raddr, aerr := manet.DialArgs(laddr)
		if aerr != nil {
			return 0, aerr
		}
		nl, lerr := reuseport.Listen(rnet, raddr)
		if lerr != nil {
			return 0, lerr
		}
		ml, err = manet.WrapNetListener(nl)
	} else {
		ml, err = manet.Listen(laddr)
	}
	if err != nil {
		return 0, err
	}

	id := transport.NewListenerID()
	tl := &tcpListener{id: id, ml: ml, t: t}
	t.mu.Lock()
	t.listeners[id] = tl
	t.mu.Unlock()

	t.emit(transport.TransportEvent{Kind: transport.EventNewAddress, ListenerID: id, Addr: ml.Multiaddr()})
	go tl.run(t)
	return id, nil
}

func (t *Transport) RemoveListener(id transport.ListenerID) error {
	t.mu.Lock()
	tl, ok := t.listeners[id]
	delete(t.listeners, id)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("tcp: unknown listener %d", id)
	}
	return tl.ml.Close()
}

func (t *Transport) emit(ev transport.TransportEvent) {
	select {
	case t.events <- ev:
	default:
		log.Warnw("dropping tcp transport event, queue full", "kind", ev.Kind)
	}
	select {
	case t.waker <- struct{}{}:
	default:
	}
}

func (t *Transport) Poll(ctx context.Context) (transport.TransportEvent, bool) {
	select {
	case ev := <-t.events:
		return ev, true
	default:
		return transport.TransportEvent{}, false
	}
}

func (t *Transport) Protocols() []int { return []int{ma.P_TCP} }
func (t *Transport) Proxy() bool      { return false }
func (t *Transport) String() string   { return "TCP" }

type tcpListener struct {
	id transport.ListenerID
	ml manet.Listener
	t  *Transport
}

func (l *tcpListener) run(t *Transport) {
	var catcher tec.TempErrCatcher
	for {
		conn, err := l.ml.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				log.Infof("tcp: temporary accept error: %s", err)
				continue
			}
			t.emit(transport.TransportEvent{Kind: transport.EventListenerClosed, ListenerID: l.id, Err: err})
			return
		}
		catcher.Reset()

		tryLinger(conn, 0)
		tryKeepAlive(conn, true)

		var mc manet.Conn = conn
		if t.enableMetrics {
			tc, err := newTracingConn(conn, t.metricsCollector, false)
			if err != nil {
				conn.Close()
				continue
			}
			mc = tc
		}

		local, remote := mc.LocalMultiaddr(), mc.RemoteMultiaddr()
		t.emit(transport.TransportEvent{
			Kind:         transport.EventIncoming,
			ListenerID:   l.id,
			LocalAddr:    local,
			SendBackAddr: remote,
			Upgrade: func(ctx context.Context) (transport.CapableConn, error) {
				return t.upgrader.Upgrade(ctx, t, mc, network.DirInbound, "")
			},
		})
	}
}
