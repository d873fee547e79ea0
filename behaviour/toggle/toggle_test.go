package toggle

import (
	"context"
	"testing"

	"github.com/meridianlabs/swarmcore/behaviour/dummy"
	"github.com/meridianlabs/swarmcore/core/peer"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

func TestDisabledNeverCallsInner(t *testing.T) {
	tg := Disabled[string]()
	local := ma.StringCast("/ip4/127.0.0.1/tcp/4001")

	require.NoError(t, tg.HandlePendingInboundConnection(coreswarm.NewConnectionID(), local, local))

	handler, err := tg.HandleEstablishedInboundConnection(coreswarm.NewConnectionID(), peer.ID("p"), local, local)
	require.NoError(t, err)
	require.IsType(t, dummy.Handler{}, handler)

	_, ok := tg.Poll(context.Background())
	require.False(t, ok)
}

type countingBehaviour struct {
	coreswarm.DefaultBehaviour
	polls int
}

func (b *countingBehaviour) HandleEstablishedInboundConnection(coreswarm.ConnectionID, peer.ID, ma.Multiaddr, ma.Multiaddr) (coreswarm.AnyHandler, error) {
	return dummy.Handler{}, nil
}

func (b *countingBehaviour) Poll(ctx context.Context) (coreswarm.ToSwarm[string, any], bool) {
	b.polls++
	return coreswarm.ToSwarm[string, any]{}, false
}

func TestEnabledDelegatesToInner(t *testing.T) {
	inner := &countingBehaviour{}
	tg := Enabled[string](inner)

	_, ok := tg.Poll(context.Background())
	require.False(t, ok)
	require.Equal(t, 1, inner.polls)
}
