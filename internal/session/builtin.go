package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"multibot/internal/message"
)

// Intro answers a greeting with a short self-introduction.
type Intro struct {
	Base
	Text string
}

func NewIntro(userID string) *Intro {
	s := &Intro{Base: NewBase(userID, "intro")}
	s.StrictTriggers = []string{"hello", "hi", "你好"}
	s.Text = "Hi, I am MultiBot. Send \"help\" for the plugin list."
	return s
}

func (s *Intro) Handle(req *message.Request) ([]message.Output, error) {
	s.Deactivate()
	return []message.Output{message.NewMsg(s.Text)}, nil
}

// Identity reports the requester's platform and user id, for debugging
// adapter wiring.
type Identity struct {
	Base
}

func NewIdentity(userID string) *Identity {
	s := &Identity{Base: NewBase(userID, "identity")}
	s.StrictTriggers = []string{"id"}
	s.Desc = "show the message platform and user id"
	return s
}

func (s *Identity) Handle(req *message.Request) ([]message.Output, error) {
	s.Deactivate()
	text := fmt.Sprintf("[%s]\nplatform=%s\nuser_id=%s", s.SessionType, req.Platform, req.UserID)
	return []message.Output{message.NewMsg(text)}, nil
}

// Version reports the build version it was constructed with.
type Version struct {
	Base
	Text string
}

func NewVersion(userID, version string) *Version {
	s := &Version{Base: NewBase(userID, "version"), Text: version}
	s.StrictTriggers = []string{"version", "版本"}
	return s
}

func (s *Version) Handle(req *message.Request) ([]message.Output, error) {
	s.Deactivate()
	return []message.Output{message.NewMsg("[version] " + s.Text)}, nil
}

// Repeat echoes the message or image back. It also serves as the carrier
// for echo (diagnostic) requests, which it claims with a score above
// every normal plugin.
type Repeat struct {
	Base
	header string
}

func NewRepeat(userID string) *Repeat {
	s := &Repeat{Base: NewBase(userID, "repeat")}
	s.ExtendTriggers = []string{"repeat", "复读"}
	s.Desc = "repeat a message or image once"
	s.header = "[repeat] "
	return s
}

func (s *Repeat) ProbabilityToCall(req *message.Request) int {
	if req.Echo {
		s.header = ""
		return 200
	}
	if p := s.CalledByCommand(req.Msg); p > 20 {
		return p
	}
	return 20
}

func (s *Repeat) IsLegalRequest(req *message.Request) bool {
	return req.Msg != "" || req.Img != ""
}

func (s *Repeat) Handle(req *message.Request) ([]message.Output, error) {
	var out []message.Output
	if req.Img != "" {
		out = append(out, message.NewMsg(s.header+"repeating image"), message.NewImage(req.Img))
	}
	if req.Msg != "" {
		out = append(out, message.NewMsg(s.header+req.Msg))
	}
	s.Deactivate()
	return out, nil
}

// Help aggregates the registry's per-session help blocks. The text
// source is injected so the session package stays independent of the
// registry.
type Help struct {
	Base
	Source func() string
}

func NewHelp(userID string, source func() string) *Help {
	s := &Help{Base: NewBase(userID, "help"), Source: source}
	s.StrictTriggers = []string{"help", "帮助"}
	return s
}

func (s *Help) Handle(req *message.Request) ([]message.Output, error) {
	s.Deactivate()
	text := "[help]\nMessage handling is plugin-driven. Triggers are " +
		"case-insensitive; a trailing + marks a contains-match trigger. " +
		"Plugins tagged (restricted) only answer allowed platforms/users.\n\n"
	if s.Source != nil {
		text += s.Source()
	}
	return []message.Output{message.NewMsg(text)}, nil
}

// ErrFault is the deliberate failure raised by the Fault session.
var ErrFault = errors.New("deliberate error for crash isolation testing")

// Fault fails on purpose so operators can exercise the dispatcher's
// error reporting pipeline end to end.
type Fault struct {
	Base
}

func NewFault(userID string) *Fault {
	s := &Fault{Base: NewBase(userID, "fault-test")}
	s.StrictTriggers = []string{"error", "报错"}
	return s
}

func (s *Fault) Handle(req *message.Request) ([]message.Output, error) {
	s.Deactivate()
	return nil, ErrFault
}

// Standby is the low-priority catch-all: once called out (directly or by
// any message it wins by default score), it answers and then hands the
// next message straight back to the dispatcher.
type Standby struct {
	Base
	FirstTime bool
}

func NewStandby(userID string) *Standby {
	s := &Standby{Base: NewBase(userID, "standby"), FirstTime: true}
	s.IdleTimeout = 60 * time.Second
	s.Desc = "stays around after being addressed and answers follow-ups"
	return s
}

func (s *Standby) ProbabilityToCall(req *message.Request) int { return 10 }

func (s *Standby) IsLegalRequest(req *message.Request) bool { return true }

func (s *Standby) Handle(req *message.Request) ([]message.Output, error) {
	if s.FirstTime {
		s.FirstTime = false
		return []message.Output{message.NewMsg("here")}, nil
	}
	s.Deactivate()
	return []message.Output{req}, nil
}

// History reports how often each plugin has been dispatched. Counts are
// injected from the history recorder.
type History struct {
	Base
	Counts func() (map[string]int, error)
}

func NewHistory(userID string, counts func() (map[string]int, error)) *History {
	s := &History{Base: NewBase(userID, "history"), Counts: counts}
	s.StrictTriggers = []string{"history", "历史"}
	return s
}

func (s *History) Handle(req *message.Request) ([]message.Output, error) {
	s.Deactivate()
	if s.Counts == nil {
		return []message.Output{message.NewMsg("[history] no records")}, nil
	}
	counts, err := s.Counts()
	if err != nil {
		return nil, fmt.Errorf("history counts: %w", err)
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s[%d]", t, counts[t]))
	}
	text := "[history]\n" + strings.Join(parts, ", ")
	return []message.Output{message.NewMsg(text)}, nil
}
