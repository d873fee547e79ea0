// Package compose supplies the mechanical half of composing several
// NetworkBehaviours into one, the way libp2p's NetworkBehaviour
// derive macro does for rust-libp2p: lifecycle notifications fan out
// to every child in declaration order, and polling rotates across
// children so a fast producer cannot starve its siblings.
//
// It deliberately stops short of building the composite's
// ConnectionHandler: merging several children's handlers into one
// handler that multiplexes substreams by negotiated protocol is
// domain-specific (it depends on what each child's handler does with
// a stream), so a hand-written composite still owns
// HandleEstablished{Inbound,Outbound}Connection and defines its own
// sum OutEvent type, embedding FanOut for everything else.
package compose

import (
	"context"

	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
)

// FanOut holds an ordered list of behaviours that have already been
// adapted to a common OutEvent type (typically via small wrapper
// behaviours that convert each child's own event type into the
// composite's sum type before returning it from Poll).
type FanOut[OutEvent any] struct {
	children []coreswarm.NetworkBehaviour[OutEvent]
	cursor   int
}

// NewFanOut builds a FanOut over children, in declaration order.
func NewFanOut[OutEvent any](children ...coreswarm.NetworkBehaviour[OutEvent]) *FanOut[OutEvent] {
	return &FanOut[OutEvent]{children: children}
}

// Children returns the wrapped behaviours, in declaration order.
func (f *FanOut[O]) Children() []coreswarm.NetworkBehaviour[O] {
	return f.children
}

// OnSwarmEvent notifies every child, in declaration order.
func (f *FanOut[O]) OnSwarmEvent(ev coreswarm.FromSwarm) {
	for _, c := range f.children {
		c.OnSwarmEvent(ev)
	}
}

// Poll tries children starting after whichever one last produced a
// command, wrapping around, and returns the first command found. The
// cursor advances past the producing child so repeated calls visit
// every child fairly instead of always favoring index 0.
func (f *FanOut[O]) Poll(ctx context.Context) (coreswarm.ToSwarm[O, any], bool) {
	n := len(f.children)
	if n == 0 {
		return coreswarm.ToSwarm[O, any]{}, false
	}
	for i := 0; i < n; i++ {
		idx := (f.cursor + i) % n
		if cmd, ok := f.children[idx].Poll(ctx); ok {
			f.cursor = (idx + 1) % n
			return cmd, true
		}
	}
	return coreswarm.ToSwarm[O, any]{}, false
}
