package swarm

import (
	"github.com/meridianlabs/swarmcore/core/network"
	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/transport"
	ma "github.com/multiformats/go-multiaddr"
)

// FromSwarm is delivered from the Swarm to a NetworkBehaviour's
// OnSwarmEvent. Variants borrow into longer-lived swarm state: a
// behaviour must not retain references past the call that delivered
// them (they are observed, not owned).
type FromSwarm interface {
	isFromSwarm()
}

type ConnectionEstablished struct {
	PeerID           peer.ID
	ConnectionID     ConnectionID
	Endpoint         network.ConnectedPoint
	OtherEstablished int
}

type ConnectionClosed struct {
	PeerID           peer.ID
	ConnectionID     ConnectionID
	Endpoint         network.ConnectedPoint
	RemainingEstablished int
	Cause            error
}

type AddressChange struct {
	PeerID       peer.ID
	ConnectionID ConnectionID
	Old          network.ConnectedPoint
	New          network.ConnectedPoint
}

type DialFailure struct {
	PeerID       peer.ID // may be zero value if unknown
	ConnectionID ConnectionID
	Error        error
}

type ListenFailure struct {
	LocalAddr  ma.Multiaddr
	SendBack   ma.Multiaddr
	Error      error
}

type NewListener struct {
	ListenerID transport.ListenerID
}

type NewListenAddr struct {
	ListenerID transport.ListenerID
	Addr       ma.Multiaddr
}

type ExpiredListenAddr struct {
	ListenerID transport.ListenerID
	Addr       ma.Multiaddr
}

type ListenerError struct {
	ListenerID transport.ListenerID
	Error      error
}

type ListenerClosed struct {
	ListenerID transport.ListenerID
	Reason     error
}

type NewExternalAddrCandidate struct{ Addr ma.Multiaddr }
type ExternalAddrConfirmed struct{ Addr ma.Multiaddr }
type ExternalAddrExpired struct{ Addr ma.Multiaddr }

func (ConnectionEstablished) isFromSwarm()     {}
func (ConnectionClosed) isFromSwarm()           {}
func (AddressChange) isFromSwarm()              {}
func (DialFailure) isFromSwarm()                {}
func (ListenFailure) isFromSwarm()              {}
func (NewListener) isFromSwarm()                {}
func (NewListenAddr) isFromSwarm()              {}
func (ExpiredListenAddr) isFromSwarm()          {}
func (ListenerError) isFromSwarm()              {}
func (ListenerClosed) isFromSwarm()             {}
func (NewExternalAddrCandidate) isFromSwarm()   {}
func (ExternalAddrConfirmed) isFromSwarm()      {}
func (ExternalAddrExpired) isFromSwarm()        {}

// NotifyTargetKind tags a NotifyHandler/CloseConnection command target.
type NotifyTargetKind int

const (
	TargetAny NotifyTargetKind = iota
	TargetOne
	TargetAll
)

// NotifyHandlerTarget selects which of a peer's open connections a
// NotifyHandler command is delivered to.
type NotifyHandlerTarget struct {
	Kind NotifyTargetKind // TargetAny or TargetOne
	ID   ConnectionID
}

// CloseConnectionTarget selects which of a peer's open connections a
// CloseConnection command closes. Default is TargetAll.
type CloseConnectionTarget struct {
	Kind NotifyTargetKind // TargetOne or TargetAll
	ID   ConnectionID
}

// ToSwarmKind tags a ToSwarm command's active field.
type ToSwarmKind int

const (
	CmdGenerateEvent ToSwarmKind = iota
	CmdDial
	CmdListenOn
	CmdRemoveListener
	CmdNotifyHandler
	CmdCloseConnection
	CmdNewExternalAddrCandidate
	CmdExternalAddrConfirmed
	CmdExternalAddrExpired
)

// ToSwarm is a command a NetworkBehaviour emits to the Swarm via
// Poll. It is generic over the behaviour's own output event type and
// the input event type its ConnectionHandler accepts.
type ToSwarm[OutEvent any, HandlerInEvent any] struct {
	Kind ToSwarmKind

	GenerateEvent OutEvent

	Dial *DialOpts

	ListenOn *ListenOpts

	RemoveListenerID transport.ListenerID

	NotifyPeer   peer.ID
	NotifyTarget NotifyHandlerTarget
	NotifyEvent  HandlerInEvent

	ClosePeer   peer.ID
	CloseTarget CloseConnectionTarget

	Addr ma.Multiaddr // New/Confirmed/Expired external addr candidate
}

func GenerateEvent[O, H any](ev O) ToSwarm[O, H] {
	return ToSwarm[O, H]{Kind: CmdGenerateEvent, GenerateEvent: ev}
}

func Dial[O, H any](opts *DialOpts) ToSwarm[O, H] {
	return ToSwarm[O, H]{Kind: CmdDial, Dial: opts}
}

func ListenOn[O, H any](opts *ListenOpts) ToSwarm[O, H] {
	return ToSwarm[O, H]{Kind: CmdListenOn, ListenOn: opts}
}

func RemoveListener[O, H any](id transport.ListenerID) ToSwarm[O, H] {
	return ToSwarm[O, H]{Kind: CmdRemoveListener, RemoveListenerID: id}
}

func NotifyHandler[O, H any](p peer.ID, target NotifyHandlerTarget, ev H) ToSwarm[O, H] {
	return ToSwarm[O, H]{Kind: CmdNotifyHandler, NotifyPeer: p, NotifyTarget: target, NotifyEvent: ev}
}

func CloseConnection[O, H any](p peer.ID, target CloseConnectionTarget) ToSwarm[O, H] {
	return ToSwarm[O, H]{Kind: CmdCloseConnection, ClosePeer: p, CloseTarget: target}
}

func NewExternalAddrCandidateCmd[O, H any](addr ma.Multiaddr) ToSwarm[O, H] {
	return ToSwarm[O, H]{Kind: CmdNewExternalAddrCandidate, Addr: addr}
}

func ExternalAddrConfirmedCmd[O, H any](addr ma.Multiaddr) ToSwarm[O, H] {
	return ToSwarm[O, H]{Kind: CmdExternalAddrConfirmed, Addr: addr}
}

func ExternalAddrExpiredCmd[O, H any](addr ma.Multiaddr) ToSwarm[O, H] {
	return ToSwarm[O, H]{Kind: CmdExternalAddrExpired, Addr: addr}
}
