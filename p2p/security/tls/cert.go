package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/peer"

	"google.golang.org/protobuf/encoding/protowire"
)

// extensionID is the libp2p TLS extension OID carrying the proof that
// binds a TLS certificate's ephemeral key to a libp2p identity.
var extensionID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 53594, 1, 1}

// certSigPrefix is prepended to the certificate's public key before
// signing with the libp2p identity key, mirroring Noise's
// payloadSigPrefix binding of a Noise static key to the same identity.
const certSigPrefix = "libp2p-tls-handshake:"

const (
	extFieldIdentityKey = protowire.Number(1)
	extFieldSignature   = protowire.Number(2)
)

func marshalExtension(identityKeyRaw, sig []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, extFieldIdentityKey, protowire.BytesType)
	b = protowire.AppendBytes(b, identityKeyRaw)
	b = protowire.AppendTag(b, extFieldSignature, protowire.BytesType)
	b = protowire.AppendBytes(b, sig)
	return b
}

func unmarshalExtension(data []byte) (identityKeyRaw, sig []byte, err error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, nil, fmt.Errorf("tls: malformed extension: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case extFieldIdentityKey:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, nil, fmt.Errorf("tls: malformed identity key field: %w", protowire.ParseError(n))
			}
			identityKeyRaw = append([]byte(nil), v...)
			data = data[n:]
		case extFieldSignature:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, nil, fmt.Errorf("tls: malformed signature field: %w", protowire.ParseError(n))
			}
			sig = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, nil, fmt.Errorf("tls: malformed extension field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return identityKeyRaw, sig, nil
}

// generateCert produces a self-signed certificate (valid from one hour
// ago for 100 years) over a
// fresh ECDSA P-256 key, binding that key to identityKey via a custom
// extension: identityKey's marshaled public key plus a signature (by
// identityKey) over certSigPrefix + the certificate's raw public key.
// A peer verifying the certificate checks that signature rather than
// trusting any CA, the same way Noise's handshake payload binds a
// Noise static key to the libp2p identity instead of a PKI.
func generateCert(identityKey crypto.PrivKey) (tls.Certificate, error) {
	certKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tls: generating certificate key: %w", err)
	}
	certPubDER, err := x509.MarshalPKIXPublicKey(&certKey.PublicKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tls: marshaling certificate public key: %w", err)
	}

	identityKeyRaw, err := crypto.MarshalPublicKey(identityKey.GetPublic())
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tls: marshaling identity public key: %w", err)
	}
	sig, err := identityKey.Sign(append([]byte(certSigPrefix), certPubDER...))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tls: signing certificate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tls: generating serial number: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "libp2p"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(100 * 365 * 24 * time.Hour),
		ExtraExtensions: []pkix.Extension{{
			Id:    extensionID,
			Value: marshalExtension(identityKeyRaw, sig),
		}},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &certKey.PublicKey, certKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tls: creating certificate: %w", err)
	}
	return tls.Certificate{Certificate: [][]byte{certDER}, PrivateKey: certKey}, nil
}

// verifyCert checks that the leaf of chain carries a valid libp2p TLS
// extension and returns the peer identity and public key it proves.
func verifyCert(chain [][]byte) (peer.ID, crypto.PubKey, error) {
	if len(chain) == 0 {
		return "", nil, fmt.Errorf("tls: peer presented no certificate")
	}
	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return "", nil, fmt.Errorf("tls: parsing peer certificate: %w", err)
	}
	if err := leaf.CheckSignature(leaf.SignatureAlgorithm, leaf.RawTBSCertificate, leaf.Signature); err != nil {
		return "", nil, fmt.Errorf("tls: peer certificate self-signature: %w", err)
	}

	var ext *pkix.Extension
	for i := range leaf.Extensions {
		if leaf.Extensions[i].Id.Equal(extensionID) {
			ext = &leaf.Extensions[i]
			break
		}
	}
	if ext == nil {
		return "", nil, fmt.Errorf("tls: peer certificate is missing the libp2p extension")
	}
	identityKeyRaw, sig, err := unmarshalExtension(ext.Value)
	if err != nil {
		return "", nil, err
	}
	identityPub, err := crypto.UnmarshalPublicKey(identityKeyRaw)
	if err != nil {
		return "", nil, fmt.Errorf("tls: unmarshaling identity public key: %w", err)
	}

	certPubDER, err := x509.MarshalPKIXPublicKey(leaf.PublicKey)
	if err != nil {
		return "", nil, fmt.Errorf("tls: marshaling leaf public key: %w", err)
	}
	ok, err := identityPub.Verify(append([]byte(certSigPrefix), certPubDER...), sig)
	if err != nil {
		return "", nil, fmt.Errorf("tls: verifying certificate signature: %w", err)
	}
	if !ok {
		return "", nil, fmt.Errorf("tls: certificate signature does not match identity key")
	}

	id, err := peer.IDFromPublicKey(identityPub)
	if err != nil {
		return "", nil, err
	}
	return id, identityPub, nil
}
