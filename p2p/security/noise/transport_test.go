package noise

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/peer"

	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T) (*Transport, peer.ID) {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519)
	require.NoError(t, err)
	tpt, err := New(priv)
	require.NoError(t, err)
	return tpt, tpt.localID
}

func TestHandshakeAndTransfer(t *testing.T) {
	initTpt, initID := newTestTransport(t)
	respTpt, respID := newTestTransport(t)

	initConn, respConn := net.Pipe()
	defer initConn.Close()
	defer respConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		conn interface {
			io.ReadWriteCloser
		}
		remote peer.ID
		err    error
	}
	initCh := make(chan result, 1)
	respCh := make(chan result, 1)

	go func() {
		c, err := initTpt.SecureOutbound(ctx, initConn, respID)
		if err != nil {
			initCh <- result{err: err}
			return
		}
		initCh <- result{conn: c, remote: c.RemotePeer()}
	}()
	go func() {
		c, err := respTpt.SecureInbound(ctx, respConn, "")
		if err != nil {
			respCh <- result{err: err}
			return
		}
		respCh <- result{conn: c, remote: c.RemotePeer()}
	}()

	ir := <-initCh
	rr := <-respCh
	require.NoError(t, ir.err)
	require.NoError(t, rr.err)
	require.Equal(t, respID, ir.remote)
	require.Equal(t, initID, rr.remote)

	msg := []byte("hello over noise")
	go func() {
		_, _ = ir.conn.Write(msg)
	}()
	buf := make([]byte, len(msg))
	_, err := io.ReadFull(rr.conn, buf)
	require.NoError(t, err)
	require.Equal(t, msg, buf)
}

func TestHandshakeRejectsWrongPeerID(t *testing.T) {
	initTpt, _ := newTestTransport(t)
	respTpt, _ := newTestTransport(t)
	_, otherID := newTestTransport(t)

	initConn, respConn := net.Pipe()
	defer initConn.Close()
	defer respConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		_, err := initTpt.SecureOutbound(ctx, initConn, otherID)
		errCh <- err
	}()
	go func() {
		_, err := respTpt.SecureInbound(ctx, respConn, "")
		errCh <- err
	}()

	err1 := <-errCh
	err2 := <-errCh
	require.True(t, err1 != nil || err2 != nil, "expected at least one side to reject the mismatched peer id")
}
