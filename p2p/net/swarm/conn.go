package swarm

import (
	"sync"

	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	coreswarm "github.com/meridianlabs/swarmcore/core/swarm"
	"github.com/meridianlabs/swarmcore/core/transport"
)

// Conn is the Swarm's bookkeeping record for one established
// connection: the upgraded transport connection, the per-behaviour
// handler driving it, and enough metadata to answer
// FromSwarm/SwarmEvent queries without re-deriving them.
type Conn struct {
	id       coreswarm.ConnectionID
	peer     peer.ID
	capable  transport.CapableConn
	endpoint network.ConnectedPoint

	mu      sync.Mutex
	handler coreswarm.AnyHandler
	closing bool
}

func (c *Conn) ID() coreswarm.ConnectionID { return c.id }
func (c *Conn) Peer() peer.ID              { return c.peer }
