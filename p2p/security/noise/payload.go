package noise

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// handshakePayload mirrors the NoiseHandshakePayload message libp2p's
// noise spec defines: the static Noise key is bound to the libp2p
// identity key by carrying a signature over it, so a peer can't use a
// stolen Noise key without also knowing the identity private key.
type handshakePayload struct {
	identityKey []byte
	identitySig []byte
}

const (
	payloadFieldIdentityKey = protowire.Number(1)
	payloadFieldIdentitySig = protowire.Number(2)
)

func (p handshakePayload) marshal() []byte {
	var b []byte
	if len(p.identityKey) > 0 {
		b = protowire.AppendTag(b, payloadFieldIdentityKey, protowire.BytesType)
		b = protowire.AppendBytes(b, p.identityKey)
	}
	if len(p.identitySig) > 0 {
		b = protowire.AppendTag(b, payloadFieldIdentitySig, protowire.BytesType)
		b = protowire.AppendBytes(b, p.identitySig)
	}
	return b
}

func unmarshalHandshakePayload(data []byte) (handshakePayload, error) {
	var p handshakePayload
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return p, fmt.Errorf("noise: malformed handshake payload: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case payloadFieldIdentityKey:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return p, fmt.Errorf("noise: malformed identity key field: %w", protowire.ParseError(n))
			}
			p.identityKey = append([]byte(nil), v...)
			data = data[n:]
		case payloadFieldIdentitySig:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return p, fmt.Errorf("noise: malformed identity sig field: %w", protowire.ParseError(n))
			}
			p.identitySig = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return p, fmt.Errorf("noise: malformed handshake payload field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return p, nil
}
