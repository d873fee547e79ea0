package yamux

import (
	"time"

	"github.com/meridianlabs/swarmcore/core/network"

	"github.com/libp2p/go-yamux/v5"
)

// stream implements network.MuxedStream over yamux.Stream.
type stream yamux.Stream

var _ network.MuxedStream = (*stream)(nil)

func (s *stream) yamux() *yamux.Stream { return (*yamux.Stream)(s) }

func (s *stream) Read(b []byte) (int, error)  { return s.yamux().Read(b) }
func (s *stream) Write(b []byte) (int, error) { return s.yamux().Write(b) }
func (s *stream) Close() error                { return s.yamux().Close() }
func (s *stream) Reset() error                { return s.yamux().Reset() }
func (s *stream) CloseRead() error            { return s.yamux().CloseRead() }
func (s *stream) CloseWrite() error           { return s.yamux().CloseWrite() }

func (s *stream) SetDeadline(t time.Time) error      { return s.yamux().SetDeadline(t) }
func (s *stream) SetReadDeadline(t time.Time) error  { return s.yamux().SetReadDeadline(t) }
func (s *stream) SetWriteDeadline(t time.Time) error { return s.yamux().SetWriteDeadline(t) }
