package session

import (
	"sync"
	"time"
)

// Mode tracks where a session is in the collect-then-summarize flow.
type Mode string

const (
	ModeCollecting Mode = "collecting"
	ModeFinalized  Mode = "finalized"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn represents a single chat message
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents one conversation, identified by an opaque key.
// The embedded mutex serializes whole turns for the same session id:
// callers hold it from reading history until the assistant turn is
// appended, so concurrent requests for one id cannot interleave.
type Session struct {
	mu sync.Mutex

	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Mode      Mode      `json:"mode"`
	Turns     []Turn    `json:"turns"`

	lastActive time.Time
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Append records a turn. Callers must hold the session lock.
func (s *Session) Append(role, content string) {
	s.Turns = append(s.Turns, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// Snapshot copies the current history. Callers must hold the session lock.
func (s *Session) Snapshot() []Turn {
	turns := make([]Turn, len(s.Turns))
	copy(turns, s.Turns)
	return turns
}

// Touch marks the session as recently used for idle eviction.
// Callers must hold the session lock.
func (s *Session) Touch() {
	s.lastActive = time.Now()
}
