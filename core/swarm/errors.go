package swarm

import (
	"errors"
	"fmt"

	"github.com/meridianlabs/swarmcore/core/peer"
	"github.com/meridianlabs/swarmcore/core/transport"
	ma "github.com/multiformats/go-multiaddr"
)

// ConnectionDenied carries a chain of causes from NetworkBehaviour
// callbacks refusing a connection; any non-nil Cause aborts the
// connection.
type ConnectionDenied struct {
	Cause error
}

func (e *ConnectionDenied) Error() string {
	return fmt.Sprintf("swarm: connection denied: %s", e.Cause)
}

func (e *ConnectionDenied) Unwrap() error { return e.Cause }

// AuthenticationErrorKind distinguishes TLS vs Noise builder failures.
type AuthenticationErrorKind int

const (
	AuthTLS AuthenticationErrorKind = iota
	AuthNoise
)

type AuthenticationError struct {
	Kind  AuthenticationErrorKind
	Cause error
}

func (e *AuthenticationError) Error() string {
	name := "tls"
	if e.Kind == AuthNoise {
		name = "noise"
	}
	return fmt.Sprintf("swarm: constructing %s authenticator: %s", name, e.Cause)
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// DialErrorKind tags the reason a dial attempt failed overall.
type DialErrorKind int

const (
	DialErrNoAddresses DialErrorKind = iota
	DialErrLocalPeerID
	DialErrDenied
	DialErrTransport
	DialErrWrongPeerID
	DialErrAborted
	DialErrPeerConditionFalse
)

// TransportDialError pairs a dial candidate address with the error
// that specific attempt produced.
type TransportDialError struct {
	Addr ma.Multiaddr
	Err  error
}

type DialError struct {
	Kind    DialErrorKind
	Denied  *ConnectionDenied
	Want    peer.ID
	Got     peer.ID
	Attempts []TransportDialError
}

func (e *DialError) Error() string {
	switch e.Kind {
	case DialErrNoAddresses:
		return "swarm: dial failed: no addresses"
	case DialErrLocalPeerID:
		return "swarm: dial failed: target is the local peer id"
	case DialErrDenied:
		return fmt.Sprintf("swarm: dial denied: %s", e.Denied)
	case DialErrTransport:
		return fmt.Sprintf("swarm: dial failed on %d address(es): %v", len(e.Attempts), e.Attempts)
	case DialErrWrongPeerID:
		return fmt.Sprintf("swarm: dial failed: expected peer %s, got %s", e.Want, e.Got)
	case DialErrAborted:
		return "swarm: dial aborted"
	case DialErrPeerConditionFalse:
		return "swarm: dial skipped: peer condition false"
	default:
		return "swarm: dial failed"
	}
}

func (e *TransportDialError) Error() string {
	return fmt.Sprintf("%s: %s", e.Addr, e.Err)
}

// ListenErrorKind tags why ListenOn ultimately failed.
type ListenErrorKind int

const (
	ListenErrDenied ListenErrorKind = iota
	ListenErrAborted
	ListenErrTransport
	ListenErrWrongPeerID
)

type ListenError struct {
	Kind      ListenErrorKind
	Denied    *ConnectionDenied
	Transport *transport.TransportError
}

func (e *ListenError) Error() string {
	switch e.Kind {
	case ListenErrDenied:
		return fmt.Sprintf("swarm: listen denied: %s", e.Denied)
	case ListenErrAborted:
		return "swarm: listen aborted"
	case ListenErrTransport:
		return fmt.Sprintf("swarm: listen transport error: %s", e.Transport)
	case ListenErrWrongPeerID:
		return "swarm: listen accepted connection with unexpected peer id"
	default:
		return "swarm: listen failed"
	}
}

var (
	ErrNoGoodAddresses = errors.New("swarm: no dialable addresses")
	ErrDialSelf        = errors.New("swarm: dialing local peer id")
)
