// Package store persists the active multi-turn sessions between
// process restarts behind a narrow Load/Save interface.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"multibot/internal/session"
)

// Store loads and saves the full set of active sessions. Save replaces
// the previous snapshot wholesale.
type Store interface {
	Load() ([]session.Session, error)
	Save(sessions []session.Session) error
}

// Factory builds an empty session of one registered type, ready to
// receive restored state.
type Factory func(userID string) session.Session

// Codec turns sessions into JSON records and back. Only registered
// types survive a round trip; records of unknown types are dropped on
// load so old snapshots do not wedge a newer binary.
type Codec struct {
	factories map[string]Factory
}

func NewCodec() *Codec {
	return &Codec{factories: map[string]Factory{}}
}

// Register binds a session type name to its factory.
func (c *Codec) Register(sessionType string, factory Factory) {
	c.factories[sessionType] = factory
}

type record struct {
	Type         string          `json:"type"`
	UserID       string          `json:"user_id"`
	Active       bool            `json:"active"`
	LastActivity time.Time       `json:"last_activity"`
	State        json.RawMessage `json:"state,omitempty"`
}

// Encode serializes sessions. Sessions of unregistered types are
// skipped: they cannot be rebuilt on load anyway.
func (c *Codec) Encode(sessions []session.Session) ([]byte, error) {
	records := make([]record, 0, len(sessions))
	for _, s := range sessions {
		if _, ok := c.factories[s.Type()]; !ok {
			continue
		}
		rec := record{
			Type:         s.Type(),
			UserID:       s.UserID(),
			Active:       s.IsActive(),
			LastActivity: s.LastActivity(),
		}
		if st, ok := s.(session.Stateful); ok {
			state, err := st.MarshalState()
			if err != nil {
				return nil, fmt.Errorf("cannot marshal state of %s session: %w", s.Type(), err)
			}
			rec.State = state
		}
		records = append(records, rec)
	}
	return json.Marshal(records)
}

// Decode rebuilds sessions from a snapshot produced by Encode.
func (c *Codec) Decode(data []byte) ([]session.Session, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("cannot decode session snapshot: %w", err)
	}

	var sessions []session.Session
	for _, rec := range records {
		factory, ok := c.factories[rec.Type]
		if !ok {
			continue
		}
		s := factory(rec.UserID)
		s.RestoreActivity(rec.Active, rec.LastActivity)
		if st, ok := s.(session.Stateful); ok && len(rec.State) > 0 {
			if err := st.UnmarshalState(rec.State); err != nil {
				return nil, fmt.Errorf("cannot restore state of %s session: %w", rec.Type, err)
			}
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
