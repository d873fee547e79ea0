package noise

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/flynn/noise"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/peer"
)

// secureSession is the Noise XX session: a sec.SecureConn wrapping an
// insecure net.Conn with per-direction ChaCha20-Poly1305 cipher
// states established by the handshake.
type secureSession struct {
	initiator   bool
	checkPeerID bool

	localID   peer.ID
	localKey  crypto.PrivKey
	remoteID  peer.ID
	remoteKey crypto.PubKey

	readLock  sync.Mutex
	writeLock sync.Mutex

	insecureConn   net.Conn
	insecureReader *bufio.Reader // to cushion io read syscalls

	qseek int     // queued bytes seek value.
	qbuf  []byte  // queued bytes buffer.
	rlen  [2]byte // work buffer to read in the incoming message length.

	enc *noise.CipherState
	dec *noise.CipherState

	prologue []byte
}

// newSecureSession runs the Noise XX handshake over insecure and, on
// success, returns a session ready to frame encrypted application
// data.
func newSecureSession(tpt *Transport, ctx context.Context, insecure net.Conn, remote peer.ID, prologue []byte, initiator, checkPeerID bool) (*secureSession, error) {
	s := &secureSession{
		insecureConn:   insecure,
		insecureReader: bufio.NewReader(insecure),
		initiator:      initiator,
		localID:        tpt.localID,
		localKey:       tpt.privateKey,
		remoteID:       remote,
		prologue:       prologue,
		checkPeerID:    checkPeerID,
	}

	// the go-routine we create to run the handshake will
	// write the result of the handshake to the respCh.
	respCh := make(chan error, 1)
	go func() {
		respCh <- s.runHandshake(ctx)
	}()

	select {
	case err := <-respCh:
		if err != nil {
			_ = s.insecureConn.Close()
		}
		return s, err

	case <-ctx.Done():
		_ = s.insecureConn.Close()
		<-respCh
		return nil, ctx.Err()
	}
}

func (s *secureSession) LocalAddr() net.Addr { return s.insecureConn.LocalAddr() }

func (s *secureSession) LocalPeer() peer.ID { return s.localID }

func (s *secureSession) LocalPublicKey() crypto.PubKey { return s.localKey.GetPublic() }

func (s *secureSession) RemoteAddr() net.Addr { return s.insecureConn.RemoteAddr() }

func (s *secureSession) RemotePeer() peer.ID { return s.remoteID }

func (s *secureSession) RemotePublicKey() crypto.PubKey { return s.remoteKey }

func (s *secureSession) SetDeadline(t time.Time) error { return s.insecureConn.SetDeadline(t) }

func (s *secureSession) SetReadDeadline(t time.Time) error { return s.insecureConn.SetReadDeadline(t) }

func (s *secureSession) SetWriteDeadline(t time.Time) error {
	return s.insecureConn.SetWriteDeadline(t)
}

func (s *secureSession) Close() error { return s.insecureConn.Close() }
