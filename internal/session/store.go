package session

import (
	"log/slog"
	"sync"
	"time"
)

// Store owns every live session. Creation is lazy, deletion is
// idempotent, and neither operation can fail.
type Store interface {
	GetOrCreate(id string) *Session
	Delete(id string) bool
	Len() int
}

// MemoryStore is the in-process Store. Sessions live only for the
// lifetime of the process; there is no bound on the number of sessions
// unless an idle TTL is configured via StartJanitor.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for id, creating an empty collecting
// session on first use. Get-or-create is atomic: two concurrent callers
// for a new id observe the same session.
func (s *MemoryStore) GetOrCreate(id string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess = &Session{
		ID:         id,
		StartTime:  time.Now(),
		Mode:       ModeCollecting,
		lastActive: time.Now(),
	}
	s.sessions[id] = sess
	return sess
}

// Delete removes the session if present and reports whether it existed.
func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// evictIdle drops sessions whose last activity is older than ttl.
func (s *MemoryStore) evictIdle(ttl time.Duration, logger *slog.Logger) {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			logger.Info("evicted idle session", "session_id", id)
		}
	}
}

// StartJanitor evicts idle sessions every ttl/2 until stop is closed.
// A zero ttl disables eviction entirely, matching the original behavior
// of never expiring sessions.
func (s *MemoryStore) StartJanitor(ttl time.Duration, logger *slog.Logger, stop <-chan struct{}) {
	if ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.evictIdle(ttl, logger)
			case <-stop:
				return
			}
		}
	}()
}
