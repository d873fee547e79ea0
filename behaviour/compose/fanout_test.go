package compose

import (
	"context"
	"testing"

	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

type stubBehaviour struct {
	coreswarm.DefaultBehaviour
	name      string
	ready     bool
	swarmEvts []coreswarm.FromSwarm
}

func (b *stubBehaviour) HandleEstablishedInboundConnection(coreswarm.ConnectionID, peer.ID, ma.Multiaddr, ma.Multiaddr) (coreswarm.AnyHandler, error) {
	return nil, nil
}

func (b *stubBehaviour) HandleEstablishedOutboundConnection(coreswarm.ConnectionID, peer.ID, ma.Multiaddr, network.Endpoint, coreswarm.PortUse) (coreswarm.AnyHandler, error) {
	return nil, nil
}

func (b *stubBehaviour) OnSwarmEvent(ev coreswarm.FromSwarm) {
	b.swarmEvts = append(b.swarmEvts, ev)
}

func (b *stubBehaviour) Poll(ctx context.Context) (coreswarm.ToSwarm[string, any], bool) {
	if !b.ready {
		return coreswarm.ToSwarm[string, any]{}, false
	}
	b.ready = false
	return coreswarm.GenerateEvent[string, any](b.name), true
}

func TestFanOutBroadcastsSwarmEventsToEveryChildInOrder(t *testing.T) {
	a := &stubBehaviour{name: "a"}
	b := &stubBehaviour{name: "b"}
	f := NewFanOut[string](a, b)

	f.OnSwarmEvent(coreswarm.NewListener{ListenerID: 1})

	require.Len(t, a.swarmEvts, 1)
	require.Len(t, b.swarmEvts, 1)
}

func TestFanOutPollRotatesAcrossChildren(t *testing.T) {
	a := &stubBehaviour{name: "a"}
	b := &stubBehaviour{name: "b"}
	f := NewFanOut[string](a, b)

	a.ready, b.ready = true, true

	first, ok := f.Poll(context.Background())
	require.True(t, ok)
	require.Equal(t, "a", first.GenerateEvent)

	second, ok := f.Poll(context.Background())
	require.True(t, ok)
	require.Equal(t, "b", second.GenerateEvent)

	_, ok = f.Poll(context.Background())
	require.False(t, ok)
}

func TestFanOutPollEmptyIsFalse(t *testing.T) {
	f := NewFanOut[string]()
	_, ok := f.Poll(context.Background())
	require.False(t, ok)
}
