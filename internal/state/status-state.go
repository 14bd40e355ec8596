package state

import (
	"sync"
	"time"

	"github.com/fisaks/voldisp/internal/voldisp"
)

// StatusStore remembers the last published status per key so the broker only
// publishes on change or when a heartbeat is due.
type StatusStore interface {
	GetLast(key string) (voldisp.StatusMessage, time.Time, bool)
	Update(key string, status voldisp.StatusMessage)
	HasChanged(key string, status voldisp.StatusMessage) bool
	Clear()
}

type statusStore struct {
	store     map[string]voldisp.StatusMessage
	heartbeat map[string]time.Time
	now       func() time.Time
	mu        sync.RWMutex
}

func NewStatusStore() StatusStore {
	return NewStatusStoreWithClock(time.Now)
}

func NewStatusStoreWithClock(now func() time.Time) StatusStore {
	return &statusStore{
		store:     make(map[string]voldisp.StatusMessage),
		heartbeat: make(map[string]time.Time),
		now:       now,
	}
}

func (s *statusStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = make(map[string]voldisp.StatusMessage)
	s.heartbeat = make(map[string]time.Time)
}

func (s *statusStore) GetLast(key string) (voldisp.StatusMessage, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.store[key]
	heartbeat, ok2 := s.heartbeat[key]
	return status, heartbeat, ok && ok2
}

func (s *statusStore) Update(key string, status voldisp.StatusMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = status
	s.heartbeat[key] = s.now()
}

func (s *statusStore) HasChanged(key string, status voldisp.StatusMessage) bool {
	last, _, ok := s.GetLast(key)
	if !ok {
		return true
	}
	return !statusEqual(last, status)
}

// timestamp is ignored, it changes on every tick
func statusEqual(a, b voldisp.StatusMessage) bool {
	a.Timestamp = time.Time{}
	b.Timestamp = time.Time{}
	return a == b
}
