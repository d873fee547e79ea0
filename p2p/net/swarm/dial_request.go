package swarm

import (
	"context"

	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
)

// dialRequest is what activeDial.dial sends to the per-peer dial
// worker goroutine: the context to dial under and the options
// (candidate addresses, role, port use) the Swarm wants honored.
type dialRequest struct {
	ctx   context.Context
	opts  *coreswarm.DialOpts
	resch chan dialResponse
}

type dialResponse struct {
	conn *Conn
	err  error
}
