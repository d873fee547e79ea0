// Package peer defines the PeerId type: a content-addressed identity
// derived from a public key, and helpers for the address-book shape
// (AddrInfo) used when dialing.
package peer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/mr-tron/base58"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-multihash"
)

// ID is a libp2p peer identity: the multihash of a public key (or, for
// keys whose serialized form fits in maxInlineKeyLength, an "identity"
// multihash directly wrapping the key bytes).
type ID string

const maxInlineKeyLength = 42

var (
	ErrEmptyPeerID   = errors.New("peer: empty peer ID")
	ErrNoPublicKey   = errors.New("peer: public key not embedded in peer ID")
	ErrInvalidAddr   = errors.New("peer: invalid p2p multiaddr")
)

// IDFromPublicKey derives a peer ID from a public key, following the
// upstream rule: keys that marshal to 42 bytes or less are embedded
// directly via the "identity" multihash; larger keys are addressed by
// their sha2-256 digest.
func IDFromPublicKey(pk crypto.PubKey) (ID, error) {
	b, err := crypto.MarshalPublicKey(pk)
	if err != nil {
		return "", err
	}
	var alg uint64 = multihash.SHA2_256
	if len(b) <= maxInlineKeyLength {
		alg = multihash.IDENTITY
	}
	mh, err := multihash.Sum(b, alg, -1)
	if err != nil {
		return "", err
	}
	return ID(mh), nil
}

// IDFromPrivateKey derives a peer ID from the public half of a private key.
func IDFromPrivateKey(sk crypto.PrivKey) (ID, error) {
	return IDFromPublicKey(sk.GetPublic())
}

// Decode parses a base58/multibase-encoded peer ID string.
func Decode(s string) (ID, error) {
	if len(s) == 0 {
		return "", ErrEmptyPeerID
	}
	// Legacy Qm.../1... form is raw base58btc, no multibase prefix.
	if s[0] == 'Q' || s[0] == '1' {
		b, err := base58.Decode(s)
		if err != nil {
			return "", fmt.Errorf("peer: decoding base58 id: %w", err)
		}
		if _, err := multihash.Cast(b); err != nil {
			return "", err
		}
		return ID(b), nil
	}
	_, b, err := multibaseDecode(s)
	if err != nil {
		return "", err
	}
	if _, err := multihash.Cast(b); err != nil {
		return "", err
	}
	return ID(b), nil
}

// String renders the ID in the legacy base58btc form used throughout
// the ecosystem for "Qm..." identifiers.
func (id ID) String() string {
	return base58.Encode([]byte(id))
}

// ExtractPublicKey recovers the embedded public key, if the ID was
// derived via the identity-multihash inlining path; returns
// ErrNoPublicKey for digest-addressed IDs.
func (id ID) ExtractPublicKey() (crypto.PubKey, error) {
	decoded, err := multihash.Decode([]byte(id))
	if err != nil {
		return nil, err
	}
	if decoded.Code != multihash.IDENTITY {
		return nil, ErrNoPublicKey
	}
	return crypto.UnmarshalPublicKey(decoded.Digest)
}

// MatchesPublicKey reports whether id was derived from pk.
func (id ID) MatchesPublicKey(pk crypto.PubKey) bool {
	other, err := IDFromPublicKey(pk)
	if err != nil {
		return false
	}
	return id == other
}

func (id ID) Validate() error {
	if len(id) == 0 {
		return ErrEmptyPeerID
	}
	return nil
}

// MarshalJSON/UnmarshalJSON let peer.ID participate in config/address
// book serialization as its string form rather than raw bytes.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *ID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	pid, err := Decode(s)
	if err != nil {
		return err
	}
	*id = pid
	return nil
}

// AddrInfo bundles a peer identity with a set of addresses it may be
// reachable at, the unit exchanged by peer routing/discovery.
type AddrInfo struct {
	ID    ID
	Addrs []ma.Multiaddr
}

// AddrInfoFromP2pAddr splits a /.../p2p/<id> multiaddr into the
// peer ID and the remaining address, per the §6 p2p/PEER_ID component.
func AddrInfoFromP2pAddr(addr ma.Multiaddr) (*AddrInfo, error) {
	if addr == nil {
		return nil, ErrInvalidAddr
	}
	transport, id := ma.SplitLast(addr)
	if id == nil || id.Protocol().Code != ma.P_P2P {
		return nil, ErrInvalidAddr
	}
	pid, err := Decode(id.Value())
	if err != nil {
		return nil, fmt.Errorf("peer: %w: %w", ErrInvalidAddr, err)
	}
	info := &AddrInfo{ID: pid}
	if transport != nil {
		info.Addrs = []ma.Multiaddr{transport}
	}
	return info, nil
}

// P2pAddr rejoins a single address in info with its /p2p/<id> suffix.
func (pi *AddrInfo) P2pAddr() (ma.Multiaddr, error) {
	if len(pi.Addrs) == 0 {
		return nil, errors.New("peer: AddrInfo has no addresses")
	}
	suffix, err := ma.NewComponent("p2p", pi.ID.String())
	if err != nil {
		return nil, err
	}
	return pi.Addrs[0].Encapsulate(suffix), nil
}

func (pi AddrInfo) String() string {
	return fmt.Sprintf("{%s: %v}", pi.ID, pi.Addrs)
}
