// Package yamux adapts libp2p/go-yamux/v5 sessions to the
// network.MuxedConn/MuxedStream contract the swarm upgrade pipeline
// expects.
package yamux

import (
	"context"

	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/sec"

	"github.com/libp2p/go-yamux/v5"
)

const ID = "/yamux/1.0.0"

// Transport builds yamux sessions atop an already-secured connection,
// satisfying upgrader.Muxer.
type Transport struct {
	Config *yamux.Config
}

func New() *Transport {
	return &Transport{Config: yamux.DefaultConfig()}
}

func (t *Transport) ID() string { return ID }

func (t *Transport) NewConn(nc sec.SecureConn, isServer bool) (network.MuxedConn, error) {
	cfg := t.Config
	if cfg == nil {
		cfg = yamux.DefaultConfig()
	}
	var sess *yamux.Session
	var err error
	if isServer {
		sess, err = yamux.Server(nc, cfg, nil)
	} else {
		sess, err = yamux.Client(nc, cfg, nil)
	}
	if err != nil {
		return nil, err
	}
	return (*conn)(sess), nil
}

// conn implements network.MuxedConn over yamux.Session.
type conn yamux.Session

var _ network.MuxedConn = (*conn)(nil)

func (c *conn) Close() error      { return c.yamux().Close() }
func (c *conn) IsClosed() bool    { return c.yamux().IsClosed() }
func (c *conn) yamux() *yamux.Session { return (*yamux.Session)(c) }

func (c *conn) OpenStream(ctx context.Context) (network.MuxedStream, error) {
	s, err := c.yamux().OpenStream(ctx)
	if err != nil {
		return nil, err
	}
	return (*stream)(s), nil
}

func (c *conn) AcceptStream() (network.MuxedStream, error) {
	s, err := c.yamux().AcceptStream()
	if err != nil {
		return nil, err
	}
	return (*stream)(s), nil
}
