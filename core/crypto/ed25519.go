package crypto

import (
	"crypto/ed25519"
	"fmt"
)

// Ed25519PrivateKey is a libp2p PrivKey backed by crypto/ed25519.
type Ed25519PrivateKey struct {
	k ed25519.PrivateKey
}

func (k *Ed25519PrivateKey) Type() KeyType { return Ed25519 }

func (k *Ed25519PrivateKey) Raw() ([]byte, error) {
	return append([]byte(nil), k.k...), nil
}

func (k *Ed25519PrivateKey) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(k.k, msg), nil
}

func (k *Ed25519PrivateKey) GetPublic() PubKey {
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pub, k.k[ed25519.PublicKeySize:])
	return &Ed25519PublicKey{k: pub}
}

func (k *Ed25519PrivateKey) Equals(other PrivKey) bool {
	o, ok := other.(*Ed25519PrivateKey)
	if !ok {
		return false
	}
	return string(k.k) == string(o.k)
}

// Ed25519PublicKey is a libp2p PubKey backed by crypto/ed25519.
type Ed25519PublicKey struct {
	k ed25519.PublicKey
}

func (k *Ed25519PublicKey) Type() KeyType { return Ed25519 }

func (k *Ed25519PublicKey) Raw() ([]byte, error) {
	return append([]byte(nil), k.k...), nil
}

func (k *Ed25519PublicKey) Verify(data, sig []byte) (bool, error) {
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("%w: got %d want %d", ErrBadSigLen, len(sig), ed25519.SignatureSize)
	}
	return ed25519.Verify(k.k, data, sig), nil
}

func (k *Ed25519PublicKey) Equals(other PubKey) bool {
	o, ok := other.(*Ed25519PublicKey)
	if !ok {
		return false
	}
	return string(k.k) == string(o.k)
}
