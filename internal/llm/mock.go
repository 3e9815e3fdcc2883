package llm

import (
	"context"
	"fmt"
	"sync"

	"specbuddy/internal/session"
)

// MockClient is a scripted Client for tests. Replies are returned in
// order; when the script runs out it echoes the last user turn.
type MockClient struct {
	mu        sync.Mutex
	Replies   []string
	Err       error
	Calls     []string // system prompts seen, in order
	LastTurns []session.Turn
	next      int
}

func NewMockClient(replies ...string) *MockClient {
	return &MockClient{Replies: replies}
}

func (m *MockClient) Complete(_ context.Context, system string, turns []session.Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, system)
	m.LastTurns = append([]session.Turn(nil), turns...)
	if m.Err != nil {
		return "", m.Err
	}
	if m.next < len(m.Replies) {
		reply := m.Replies[m.next]
		m.next++
		return reply, nil
	}
	last := ""
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == session.RoleUser {
			last = turns[i].Content
			break
		}
	}
	return fmt.Sprintf("You said %q. Tell me more.", last), nil
}
