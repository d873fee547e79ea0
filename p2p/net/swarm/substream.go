package swarm

import (
	"context"

	"github.com/meridianlabs/swarmcore/core/network"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	"github.com/multiformats/go-multistream"
)

// substreamOutcome is posted back to the Swarm loop by either the
// per-connection inbound accept loop or an outbound substream-open
// goroutine. Inbound substreams are delivered to the handler raw,
// without running multistream-select server side: ConnectionHandler
// exposes no queryable protocol set to build a responder muxer from,
// so negotiation for inbound streams is left to the handler itself.
type substreamOutcome struct {
	connID   coreswarm.ConnectionID
	protocol string
	stream   network.MuxedStream
	inbound  bool
	err      error
}

// acceptSubstreams runs for the lifetime of one connection, handing
// every inbound substream to the Swarm loop as it arrives.
func (s *Swarm[O]) acceptSubstreams(c *Conn) {
	for {
		str, err := c.capable.AcceptStream()
		if err != nil {
			return
		}
		s.substreamResults <- substreamOutcome{connID: c.id, stream: str, inbound: true}
	}
}

// openSubstream services a HandlerOutboundSubstreamRequest: it opens
// a fresh substream and negotiates the single requested protocol via
// client-side multistream-select.
func (s *Swarm[O]) openSubstream(ctx context.Context, c *Conn, protocol string) {
	str, err := c.capable.OpenStream(ctx)
	if err != nil {
		s.substreamResults <- substreamOutcome{connID: c.id, protocol: protocol, err: err}
		return
	}
	if _, err := multistream.SelectOneOf([]string{protocol}, str); err != nil {
		str.Reset()
		s.substreamResults <- substreamOutcome{connID: c.id, protocol: protocol, err: err}
		return
	}
	s.substreamResults <- substreamOutcome{connID: c.id, protocol: protocol, stream: str}
}

func (s *Swarm[O]) deliverSubstream(r substreamOutcome) {
	c := s.lookupConn(r.connID)
	if c == nil {
		if r.stream != nil {
			r.stream.Close()
		}
		return
	}
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		if r.stream != nil {
			r.stream.Close()
		}
		return
	}

	switch {
	case r.err != nil:
		kind := coreswarm.ConnEventDialUpgradeError
		if r.inbound {
			kind = coreswarm.ConnEventListenUpgradeError
		}
		handler.OnConnectionEvent(coreswarm.ConnectionEvent{Kind: kind, Protocol: r.protocol, Error: r.err})
	case r.inbound:
		handler.OnConnectionEvent(coreswarm.ConnectionEvent{Kind: coreswarm.ConnEventFullyNegotiatedInbound, Protocol: r.protocol, Stream: r.stream})
	default:
		handler.OnConnectionEvent(coreswarm.ConnectionEvent{Kind: coreswarm.ConnEventFullyNegotiatedOutbound, Protocol: r.protocol, Stream: r.stream})
	}
}
