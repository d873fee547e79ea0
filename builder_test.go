package swarmcore

import (
	"testing"

	"github.com/meridianlabs/swarmcore/behaviour/dummy"
	"github.com/meridianlabs/swarmcore/core/crypto"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	"github.com/stretchr/testify/require"
)

func TestBuilderAssemblesTcpNoiseYamuxSwarm(t *testing.T) {
	provider, err := NewBuilder().WithNewIdentity()
	require.NoError(t, err)

	ws, err := buildThroughWebsocket(provider)
	require.NoError(t, err)

	bb, err := WithBehaviour[struct{}](ws, func(priv crypto.PrivKey, relayClient any) (coreswarm.NetworkBehaviour[struct{}], error) {
		return dummy.Behaviour{}, nil
	})
	require.NoError(t, err)

	sw, err := bb.Build()
	require.NoError(t, err)
	require.NotEmpty(t, sw.LocalPeer())
}

func TestBuilderAssemblesTcpTlsYamuxSwarm(t *testing.T) {
	provider, err := NewBuilder().WithNewIdentity()
	require.NoError(t, err)

	ws := provider.WithTokioExecutor().
		WithTcp().
		WithTls().
		WithoutNoise().
		WithoutQuic().
		Done().
		WithoutDns().
		WithoutRelayClient().
		WithoutWebsocket()

	bb, err := WithBehaviour[struct{}](ws, func(priv crypto.PrivKey, relayClient any) (coreswarm.NetworkBehaviour[struct{}], error) {
		return dummy.Behaviour{}, nil
	})
	require.NoError(t, err)

	sw, err := bb.Build()
	require.NoError(t, err)
	require.NotEmpty(t, sw.LocalPeer())
}

func TestBuilderRequiresSecurityWhenTcpIsSelected(t *testing.T) {
	provider, err := NewBuilder().WithNewIdentity()
	require.NoError(t, err)

	ws := provider.WithTokioExecutor().
		WithTcp().
		WithoutTls().
		WithoutNoise().
		WithoutQuic().
		Done().
		WithoutDns().
		WithoutRelayClient().
		WithoutWebsocket()

	bb, err := WithBehaviour[struct{}](ws, func(priv crypto.PrivKey, relayClient any) (coreswarm.NetworkBehaviour[struct{}], error) {
		return dummy.Behaviour{}, nil
	})
	require.NoError(t, err)

	_, err = bb.Build()
	require.Error(t, err)
}

func buildThroughWebsocket(provider ProviderBuilder) (BehaviourBuilder, error) {
	return provider.WithTokioExecutor().
		WithTcp().
		WithoutTls().
		WithNoise().
		WithoutQuic().
		Done().
		WithoutDns().
		WithoutRelayClient().
		WithoutWebsocket(), nil
}
