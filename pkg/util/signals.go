package util

import (
	"sort"
	"sync"
)

// SigHandler receives the emitting object plus signal-specific params.
type SigHandler func(sender any, params ...any)

// Signals 进程内信号总线，同步调用
type Signals struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[string]map[uint64]SigHandler
}

func NewSignals() *Signals {
	return &Signals{handlers: make(map[string]map[uint64]SigHandler)}
}

var (
	sigOnce sync.Once
	sig     *Signals
)

// Sig returns the process-wide bus.
func Sig() *Signals {
	sigOnce.Do(func() { sig = NewSignals() })
	return sig
}

// Connect registers h and returns an id for Disconnect.
func (s *Signals) Connect(signal string, h SigHandler) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	if s.handlers[signal] == nil {
		s.handlers[signal] = make(map[uint64]SigHandler)
	}
	s.handlers[signal][s.next] = h
	return s.next
}

func (s *Signals) Disconnect(signal string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers[signal], id)
}

// Emit calls every handler of signal in connect order. Handlers must not
// block.
func (s *Signals) Emit(signal string, sender any, params ...any) {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.handlers[signal]))
	for id := range s.handlers[signal] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	hs := make([]SigHandler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, s.handlers[signal][id])
	}
	s.mu.RUnlock()

	for _, h := range hs {
		h(sender, params...)
	}
}

// Count returns the number of handlers connected to signal.
func (s *Signals) Count(signal string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers[signal])
}
