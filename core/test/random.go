// Package test holds small helpers shared by package tests across the
// module: generating throwaway peer identities without repeating the
// keypair-then-derive boilerplate at every call site.
package test

import (
	"testing"

	"github.com/meridianlabs/swarmcore/core/crypto"
	"github.com/meridianlabs/swarmcore/core/peer"
)

// RandPeerID generates a fresh Ed25519-backed peer identity.
func RandPeerID() (peer.ID, error) {
	_, pub, err := crypto.GenerateKeyPair(crypto.Ed25519)
	if err != nil {
		return "", err
	}
	return peer.IDFromPublicKey(pub)
}

// RandPeerIDFatal is RandPeerID for tests that want to fail fast on error.
func RandPeerIDFatal(t *testing.T) peer.ID {
	t.Helper()
	p, err := RandPeerID()
	if err != nil {
		t.Fatal(err)
	}
	return p
}
