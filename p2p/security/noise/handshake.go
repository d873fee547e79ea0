package noise

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/sec"

	"github.com/flynn/noise"
	pool "github.com/libp2p/go-buffer-pool"
)

// payloadSigPrefix is prepended to our Noise static key before signing with
// our libp2p identity key.
const payloadSigPrefix = "noise-libp2p-static-key:"

// All noise sessions share a fixed cipher suite.
var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// runHandshake exchanges handshake messages with the remote peer to establish
// a noise-libp2p session. It blocks until the handshake completes or fails.
func (s *secureSession) runHandshake(ctx context.Context) (err error) {
	defer func() {
		if rerr := recover(); rerr != nil {
			fmt.Fprintf(os.Stderr, "caught panic: %s\n%s\n", rerr, debug.Stack())
			err = fmt.Errorf("panic in Noise handshake: %s", rerr)
		}
	}()

	kp, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return fmt.Errorf("error generating static keypair: %w", err)
	}

	cfg := noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     s.initiator,
		StaticKeypair: kp,
		Prologue:      s.prologue,
	}

	hs, err := noise.NewHandshakeState(cfg)
	if err != nil {
		return fmt.Errorf("error initializing handshake state: %w", err)
	}

	// set a deadline to complete the handshake, if one has been supplied.
	// clear it after we're done.
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.SetDeadline(deadline); err == nil {
			defer s.SetDeadline(time.Time{})
		}
	}

	// We can re-use this buffer for all handshake messages.
	hbuf := pool.Get(2 << 10)
	defer pool.Put(hbuf)

	if s.initiator {
		// stage 0: handshake msg len = len(DH ephemeral key)
		if err := s.sendHandshakeMessage(hs, nil, hbuf); err != nil {
			return fmt.Errorf("error sending handshake message: %w", err)
		}

		// stage 1
		plaintext, err := s.readHandshakeMessage(hs)
		if err != nil {
			return fmt.Errorf("error reading handshake message: %w", err)
		}
		if _, err := s.handleRemoteHandshakePayload(plaintext, hs.PeerStatic()); err != nil {
			return err
		}

		// stage 2: handshake msg len = len(DH static key) + MAC + len(payload) + MAC
		payload, err := s.generateHandshakePayload(kp)
		if err != nil {
			return err
		}
		if err := s.sendHandshakeMessage(hs, payload, hbuf); err != nil {
			return fmt.Errorf("error sending handshake message: %w", err)
		}
		return nil
	}

	// responder
	// stage 0
	if _, err := s.readHandshakeMessage(hs); err != nil {
		return fmt.Errorf("error reading handshake message: %w", err)
	}

	// stage 1
	payload, err := s.generateHandshakePayload(kp)
	if err != nil {
		return err
	}
	if err := s.sendHandshakeMessage(hs, payload, hbuf); err != nil {
		return fmt.Errorf("error sending handshake message: %w", err)
	}

	// stage 2
	plaintext, err := s.readHandshakeMessage(hs)
	if err != nil {
		return fmt.Errorf("error reading handshake message: %w", err)
	}
	if _, err := s.handleRemoteHandshakePayload(plaintext, hs.PeerStatic()); err != nil {
		return err
	}
	return nil
}

// setCipherStates sets the initial cipher states that will be used to protect
// traffic after the handshake. Called when the final handshake message is
// processed by either sendHandshakeMessage or readHandshakeMessage.
func (s *secureSession) setCipherStates(cs1, cs2 *noise.CipherState) {
	if s.initiator {
		s.enc = cs1
		s.dec = cs2
	} else {
		s.enc = cs2
		s.dec = cs1
	}
}

// sendHandshakeMessage sends the next handshake message in the sequence. If
// payload is non-empty, it will be included in the handshake message.
func (s *secureSession) sendHandshakeMessage(hs *noise.HandshakeState, payload []byte, hbuf []byte) error {
	// the first two bytes will be the length of the noise handshake message.
	bz, cs1, cs2, err := hs.WriteMessage(hbuf[:LengthPrefixLength], payload)
	if err != nil {
		return err
	}

	binary.BigEndian.PutUint16(bz, uint16(len(bz)-LengthPrefixLength))

	if _, err := s.writeMsgInsecure(bz); err != nil {
		return err
	}

	if cs1 != nil && cs2 != nil {
		s.setCipherStates(cs1, cs2)
	}
	return nil
}

// readHandshakeMessage reads a message from the insecure conn and tries to
// process it as the expected next message in the handshake sequence.
func (s *secureSession) readHandshakeMessage(hs *noise.HandshakeState) ([]byte, error) {
	l, err := s.readNextInsecureMsgLen()
	if err != nil {
		return nil, err
	}

	buf := pool.Get(l)
	defer pool.Put(buf)

	if err := s.readNextMsgInsecure(buf); err != nil {
		return nil, err
	}

	msg, cs1, cs2, err := hs.ReadMessage(nil, buf)
	if err != nil {
		return nil, err
	}
	if cs1 != nil && cs2 != nil {
		s.setCipherStates(cs1, cs2)
	}
	return msg, nil
}

// generateHandshakePayload creates a libp2p handshake payload with a
// signature of our static noise key.
func (s *secureSession) generateHandshakePayload(localStatic noise.DHKey) ([]byte, error) {
	localKeyRaw, err := crypto.MarshalPublicKey(s.LocalPublicKey())
	if err != nil {
		return nil, fmt.Errorf("error serializing libp2p identity key: %w", err)
	}

	toSign := append([]byte(payloadSigPrefix), localStatic.Public...)
	signedPayload, err := s.localKey.Sign(toSign)
	if err != nil {
		return nil, fmt.Errorf("error signing handshake payload: %w", err)
	}

	return handshakePayload{identityKey: localKeyRaw, identitySig: signedPayload}.marshal(), nil
}

// handleRemoteHandshakePayload unmarshals the handshake payload sent by the
// remote peer and validates the signature against the peer's static Noise
// key.
func (s *secureSession) handleRemoteHandshakePayload(payload []byte, remoteStatic []byte) (handshakePayload, error) {
	nhp, err := unmarshalHandshakePayload(payload)
	if err != nil {
		return nhp, fmt.Errorf("error unmarshaling remote handshake payload: %w", err)
	}

	remotePubKey, err := crypto.UnmarshalPublicKey(nhp.identityKey)
	if err != nil {
		return nhp, err
	}
	id, err := peer.IDFromPublicKey(remotePubKey)
	if err != nil {
		return nhp, err
	}

	if s.checkPeerID && s.remoteID != "" && s.remoteID != id {
		return nhp, sec.ErrPeerIDMismatch{Expected: s.remoteID, Actual: id}
	}

	msg := append([]byte(payloadSigPrefix), remoteStatic...)
	ok, err := remotePubKey.Verify(msg, nhp.identitySig)
	if err != nil {
		return nhp, fmt.Errorf("error verifying signature: %w", err)
	} else if !ok {
		return nhp, fmt.Errorf("handshake signature invalid")
	}

	s.remoteID = id
	s.remoteKey = remotePubKey
	return nhp, nil
}
