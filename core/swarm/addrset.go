package swarm

import (
	"sync"

	ma "github.com/multiformats/go-multiaddr"
)

// ExternalAddrSet tracks process-wide confirmed externally reachable
// addresses plus the separate set of unconfirmed candidates.
// Confirmation requires prior candidacy; expiry only removes from the
// confirmed set (supplemented from the source's ExternalAddresses
// helper, referenced but not excerpted in the distillation).
type ExternalAddrSet struct {
	mu         sync.RWMutex
	candidates map[string]ma.Multiaddr
	confirmed  map[string]ma.Multiaddr
}

func NewExternalAddrSet() *ExternalAddrSet {
	return &ExternalAddrSet{
		candidates: make(map[string]ma.Multiaddr),
		confirmed:  make(map[string]ma.Multiaddr),
	}
}

func (s *ExternalAddrSet) AddCandidate(addr ma.Multiaddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[addr.String()] = addr
}

// Confirm promotes addr to the confirmed set. It reports false (no-op)
// if addr was never seen as a candidate.
func (s *ExternalAddrSet) Confirm(addr ma.Multiaddr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := addr.String()
	if _, ok := s.candidates[key]; !ok {
		return false
	}
	s.confirmed[key] = addr
	return true
}

func (s *ExternalAddrSet) Expire(addr ma.Multiaddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.confirmed, addr.String())
}

func (s *ExternalAddrSet) IsConfirmed(addr ma.Multiaddr) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.confirmed[addr.String()]
	return ok
}

func (s *ExternalAddrSet) IsCandidate(addr ma.Multiaddr) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.candidates[addr.String()]
	return ok
}

func (s *ExternalAddrSet) Confirmed() []ma.Multiaddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ma.Multiaddr, 0, len(s.confirmed))
	for _, a := range s.confirmed {
		out = append(out, a)
	}
	return out
}

// ListenAddrSet tracks the addresses a Swarm is currently listening
// on, supplemented similarly from the source's ListenAddresses helper.
type ListenAddrSet struct {
	mu    sync.RWMutex
	addrs map[string]ma.Multiaddr
}

func NewListenAddrSet() *ListenAddrSet {
	return &ListenAddrSet{addrs: make(map[string]ma.Multiaddr)}
}

func (s *ListenAddrSet) Add(addr ma.Multiaddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addrs[addr.String()] = addr
}

func (s *ListenAddrSet) Remove(addr ma.Multiaddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.addrs, addr.String())
}

func (s *ListenAddrSet) Contains(addr ma.Multiaddr) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.addrs[addr.String()]
	return ok
}

func (s *ListenAddrSet) All() []ma.Multiaddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ma.Multiaddr, 0, len(s.addrs))
	for _, a := range s.addrs {
		out = append(out, a)
	}
	return out
}
