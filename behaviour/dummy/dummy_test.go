package dummy

import (
	"context"
	"testing"

	"github.com/meridianlabs/swarmcore/core/peer"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

func TestHandlerNeverProducesAndKeepAliveIsNever(t *testing.T) {
	h := Handler{}
	_, ok := h.Poll(context.Background())
	require.False(t, ok)
	require.False(t, h.ConnectionKeepAlive().Active(h.ConnectionKeepAlive().Until))
}

func TestBehaviourAcceptsEveryConnectionAndPollsDry(t *testing.T) {
	b := Behaviour{}
	local := ma.StringCast("/ip4/127.0.0.1/tcp/4001")

	require.NoError(t, b.HandlePendingInboundConnection(coreswarm.NewConnectionID(), local, local))

	handler, err := b.HandleEstablishedInboundConnection(coreswarm.NewConnectionID(), peer.ID("p"), local, local)
	require.NoError(t, err)
	require.IsType(t, Handler{}, handler)

	_, ok := b.Poll(context.Background())
	require.False(t, ok)
}
