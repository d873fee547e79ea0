// Package crypto provides key types used to derive and verify peer
// identity: generation, signing, and a protobuf-wire envelope for
// exchanging public keys over the network (used by the Noise
// handshake's identity payload).
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"google.golang.org/protobuf/encoding/protowire"
)

// KeyType identifies the concrete algorithm behind a PrivKey/PubKey pair.
type KeyType int

const (
	Ed25519 KeyType = iota
	Secp256k1
)

// Protobuf field numbers for the KeyType/Data envelope, mirroring the
// upstream libp2p crypto PublicKey/PrivateKey protobuf messages.
const (
	fieldKeyType = protowire.Number(1)
	fieldData    = protowire.Number(2)
)

var (
	ErrBadKeyType  = errors.New("crypto: invalid or unsupported key type")
	ErrMalformed   = errors.New("crypto: malformed key envelope")
	ErrBadSigLen   = errors.New("crypto: signature length mismatch")
	ErrKeyMismatch = errors.New("crypto: public key does not match private key")
)

// PrivKey is an asymmetric private key used to prove possession of the
// local PeerId and to authenticate handshake payloads.
type PrivKey interface {
	// Type reports the concrete algorithm.
	Type() KeyType
	// Raw returns the non-standardized serialization for this key type.
	Raw() ([]byte, error)
	// Sign signs the given bytes.
	Sign(msg []byte) ([]byte, error)
	// GetPublic returns the public half of this keypair.
	GetPublic() PubKey
	// Equals reports whether two keys are the same.
	Equals(PrivKey) bool
}

// PubKey is the public half of a PrivKey; it is what other peers
// verify signatures against and what a PeerId is derived from.
type PubKey interface {
	Type() KeyType
	Raw() ([]byte, error)
	Verify(data []byte, sig []byte) (bool, error)
	Equals(PubKey) bool
}

// GenerateKeyPair creates a new keypair of the given type using the
// system randomness source.
func GenerateKeyPair(typ KeyType) (PrivKey, PubKey, error) {
	return GenerateKeyPairWithReader(typ, rand.Reader)
}

// GenerateKeyPairWithReader is GenerateKeyPair with an explicit
// randomness source, for deterministic tests.
func GenerateKeyPairWithReader(typ KeyType, src io.Reader) (PrivKey, PubKey, error) {
	switch typ {
	case Ed25519:
		pub, priv, err := ed25519.GenerateKey(src)
		if err != nil {
			return nil, nil, err
		}
		sk := &Ed25519PrivateKey{k: priv}
		return sk, sk.GetPublic(), nil
	case Secp256k1:
		sk, err := secp256k1.GeneratePrivateKeyFromRand(src)
		if err != nil {
			return nil, nil, err
		}
		priv := &Secp256k1PrivateKey{k: sk}
		return priv, priv.GetPublic(), nil
	default:
		return nil, nil, ErrBadKeyType
	}
}

// MarshalPublicKey encodes a PubKey into the wire envelope: a protobuf
// message of {KeyType type = 1; bytes data = 2;}, written by hand via
// protowire since no .proto/codegen artifacts accompany this module.
func MarshalPublicKey(pk PubKey) ([]byte, error) {
	raw, err := pk.Raw()
	if err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, fieldKeyType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(pk.Type()))
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, raw)
	return b, nil
}

// UnmarshalPublicKey decodes the envelope written by MarshalPublicKey.
func UnmarshalPublicKey(data []byte) (PubKey, error) {
	typ, raw, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch KeyType(typ) {
	case Ed25519:
		if len(raw) != ed25519.PublicKeySize {
			return nil, ErrMalformed
		}
		return &Ed25519PublicKey{k: ed25519.PublicKey(raw)}, nil
	case Secp256k1:
		pk, err := secp256k1.ParsePubKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return &Secp256k1PublicKey{k: pk}, nil
	default:
		return nil, ErrBadKeyType
	}
}

// MarshalPrivateKey encodes a PrivKey using the same envelope shape as
// MarshalPublicKey. Used only for local persistence of a generated
// identity; never sent over the wire.
func MarshalPrivateKey(sk PrivKey) ([]byte, error) {
	raw, err := sk.Raw()
	if err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, fieldKeyType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(sk.Type()))
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, raw)
	return b, nil
}

// UnmarshalPrivateKey decodes the envelope written by MarshalPrivateKey.
func UnmarshalPrivateKey(data []byte) (PrivKey, error) {
	typ, raw, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch KeyType(typ) {
	case Ed25519:
		if len(raw) != ed25519.PrivateKeySize {
			return nil, ErrMalformed
		}
		return &Ed25519PrivateKey{k: ed25519.PrivateKey(raw)}, nil
	case Secp256k1:
		sk := secp256k1.PrivKeyFromBytes(raw)
		return &Secp256k1PrivateKey{k: sk}, nil
	default:
		return nil, ErrBadKeyType
	}
}

func decodeEnvelope(data []byte) (typ uint64, raw []byte, err error) {
	var sawType, sawData bool
	for len(data) > 0 {
		num, wt, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0, nil, ErrMalformed
		}
		data = data[n:]
		switch {
		case num == fieldKeyType && wt == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return 0, nil, ErrMalformed
			}
			typ = v
			sawType = true
			data = data[n:]
		case num == fieldData && wt == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return 0, nil, ErrMalformed
			}
			raw = append([]byte(nil), v...)
			sawData = true
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, wt, data)
			if n < 0 {
				return 0, nil, ErrMalformed
			}
			data = data[n:]
		}
	}
	if !sawType || !sawData {
		return 0, nil, ErrMalformed
	}
	return typ, raw, nil
}
