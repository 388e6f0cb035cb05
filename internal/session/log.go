package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"multibot/internal/message"
)

// Log is the diagnostic session the dispatcher spawns when a plugin
// crashes. It inherits the failed session's transcript plus the
// traceback and offers the user an opt-in save of the report. Any reply
// that is not an agreement is handed back to the dispatcher unchanged.
type Log struct {
	Base

	Trace string
	Lines []string

	// Dir is where accepted reports are written.
	Dir string
}

// LogType is the registry/store type name of the diagnostic session.
const LogType = "error-log"

func NewLog(userID string, transcript []string, trace, dir string) *Log {
	s := &Log{
		Base:  NewBase(userID, LogType),
		Trace: trace,
		Lines: transcript,
		Dir:   dir,
	}
	s.IdleTimeout = 60 * time.Second
	s.Desc = "records crash reports for debugging"
	return s
}

func (s *Log) IsLegalRequest(req *message.Request) bool { return true }

func (s *Log) Handle(req *message.Request) ([]message.Output, error) {
	s.Deactivate()
	if req.Msg != "" && agrees(req.Msg) {
		if err := s.save(); err != nil {
			return []message.Output{message.NewMsg(fmt.Sprintf("[%s] saving failed: %v", s.SessionType, err))}, nil
		}
		return []message.Output{message.NewMsg(fmt.Sprintf("[%s] error report saved.", s.SessionType))}, nil
	}
	// Not an agreement: decline, then let the message be dispatched
	// as if the crash never interposed.
	return []message.Output{
		message.NewMsg(fmt.Sprintf("[%s] error report discarded.", s.SessionType)),
		req,
	}, nil
}

// agrees matches the reply's first word against the accepted forms of
// consent. Anything else, including replies that merely start with a
// "y", counts as a decline.
func agrees(msg string) bool {
	fields := strings.Fields(strings.ToLower(msg))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "y", "yes", "yep", "是", "是的", "好", "好的":
		return true
	}
	return false
}

func (s *Log) save() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("cannot create log directory: %w", err)
	}
	name := time.Now().Format("debug_log_20060102-150405.txt")
	body := strings.Join(s.Lines, "\n") + "\n\n" + s.Trace + "\n"
	return os.WriteFile(filepath.Join(s.Dir, name), []byte(body), 0o644)
}

type logSnapshot struct {
	Trace string   `json:"trace"`
	Lines []string `json:"lines"`
}

// MarshalState keeps the captured report across a store round-trip.
func (s *Log) MarshalState() ([]byte, error) {
	return json.Marshal(logSnapshot{Trace: s.Trace, Lines: s.Lines})
}

func (s *Log) UnmarshalState(data []byte) error {
	var snap logSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.Trace = snap.Trace
	s.Lines = snap.Lines
	return nil
}
