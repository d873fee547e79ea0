package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Secp256k1PrivateKey is a libp2p PrivKey using the secp256k1 curve,
// the curve used for Ethereum/Bitcoin-style identities.
type Secp256k1PrivateKey struct {
	k *secp256k1.PrivateKey
}

func (k *Secp256k1PrivateKey) Type() KeyType { return Secp256k1 }

func (k *Secp256k1PrivateKey) Raw() ([]byte, error) {
	return k.k.Serialize(), nil
}

func (k *Secp256k1PrivateKey) Sign(msg []byte) ([]byte, error) {
	h := sha256.Sum256(msg)
	sig := ecdsa.Sign(k.k, h[:])
	return sig.Serialize(), nil
}

func (k *Secp256k1PrivateKey) GetPublic() PubKey {
	return &Secp256k1PublicKey{k: k.k.PubKey()}
}

func (k *Secp256k1PrivateKey) Equals(other PrivKey) bool {
	o, ok := other.(*Secp256k1PrivateKey)
	if !ok {
		return false
	}
	return k.k.Key.Equals(&o.k.Key)
}

// Secp256k1PublicKey is a libp2p PubKey using the secp256k1 curve.
type Secp256k1PublicKey struct {
	k *secp256k1.PublicKey
}

func (k *Secp256k1PublicKey) Type() KeyType { return Secp256k1 }

func (k *Secp256k1PublicKey) Raw() ([]byte, error) {
	return k.k.SerializeCompressed(), nil
}

func (k *Secp256k1PublicKey) Verify(data, sigBytes []byte) (bool, error) {
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false, fmt.Errorf("crypto: parsing secp256k1 signature: %w", err)
	}
	h := sha256.Sum256(data)
	return sig.Verify(h[:], k.k), nil
}

func (k *Secp256k1PublicKey) Equals(other PubKey) bool {
	o, ok := other.(*Secp256k1PublicKey)
	if !ok {
		return false
	}
	return k.k.IsEqual(o.k)
}
