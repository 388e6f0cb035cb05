package session

import "encoding/json"

// Stateful is implemented by sessions whose mid-conversation state must
// survive an active-session store round-trip. Sessions without it are
// restored blank, which is fine for single-turn handlers.
type Stateful interface {
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

type argSnapshot struct {
	State int        `json:"state"`
	Mute  bool       `json:"mute"`
	Args  []argValue `json:"args"`
}

type argValue struct {
	Key    string `json:"key"`
	Called bool   `json:"called"`
	Value  string `json:"value,omitempty"`
}

// MarshalState snapshots the collection progress. Captured Requests
// (GetAll arguments) are not persisted; an interrupted capture restarts
// after a reload.
func (s *ArgSession) MarshalState() ([]byte, error) {
	snap := argSnapshot{State: int(s.state), Mute: s.mute}
	for _, arg := range s.Args {
		snap.Args = append(snap.Args, argValue{Key: arg.Key, Called: arg.Called, Value: arg.Value})
	}
	return json.Marshal(snap)
}

func (s *ArgSession) UnmarshalState(data []byte) error {
	var snap argSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.state = argState(snap.State)
	s.mute = snap.Mute
	for _, saved := range snap.Args {
		if arg := s.Arg(saved.Key); arg != nil {
			arg.Called = saved.Called
			arg.Value = saved.Value
		}
	}
	return nil
}

func (s *Standby) MarshalState() ([]byte, error) { return json.Marshal(s.FirstTime) }

func (s *Standby) UnmarshalState(data []byte) error { return json.Unmarshal(data, &s.FirstTime) }
