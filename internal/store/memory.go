package store

import (
	"sync"

	"multibot/internal/session"
)

// Memory keeps the active sessions in process memory. It is the
// default for the cron dispatcher and for tests; nothing survives a
// restart.
type Memory struct {
	mu       sync.Mutex
	sessions []session.Session
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load() ([]session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]session.Session, len(m.sessions))
	copy(out, m.sessions)
	return out, nil
}

func (m *Memory) Save(sessions []session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make([]session.Session, len(sessions))
	copy(m.sessions, sessions)
	return nil
}
