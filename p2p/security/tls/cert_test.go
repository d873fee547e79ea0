package tls

import (
	"testing"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/peer"

	"github.com/stretchr/testify/require"
)

func TestGenerateCertVerifiesAgainstItsOwnIdentity(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair(crypto.Ed25519)
	require.NoError(t, err)
	wantID, err := peer.IDFromPublicKey(pub)
	require.NoError(t, err)

	cert, err := generateCert(priv)
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)

	gotID, gotPub, err := verifyCert(cert.Certificate)
	require.NoError(t, err)
	require.Equal(t, wantID, gotID)
	require.True(t, pub.Equals(gotPub))
}

func TestVerifyCertRejectsATamperedCertificate(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519)
	require.NoError(t, err)

	cert, err := generateCert(priv)
	require.NoError(t, err)

	tampered := append([]byte(nil), cert.Certificate[0]...)
	tampered[len(tampered)-1] ^= 0xFF

	_, _, err = verifyCert([][]byte{tampered})
	require.Error(t, err)
}

func TestVerifyCertRejectsAnEmptyChain(t *testing.T) {
	_, _, err := verifyCert(nil)
	require.Error(t, err)
}
