package transmitter

import (
	"sync"
	"sync/atomic"
)

// ConnState is an observable connection flag. Reads are lock-free; writers
// wake every waiter by closing the current change channel.
type ConnState struct {
	connected atomic.Bool
	mu        sync.Mutex
	changed   chan struct{}
}

func NewConnState(initial bool) *ConnState {
	s := &ConnState{changed: make(chan struct{})}
	s.connected.Store(initial)
	return s
}

func (s *ConnState) Connected() bool {
	return s.connected.Load()
}

// Changed returns a channel closed on the next transition.
func (s *ConnState) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Set stores v and reports whether it differed from the previous value.
func (s *ConnState) Set(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected.Swap(v) == v {
		return false
	}
	close(s.changed)
	s.changed = make(chan struct{})
	return true
}
