package session

import (
	"fmt"
	"strings"

	"multibot/internal/message"
)

// Argument is one named parameter an ArgSession collects, possibly across
// several conversational turns.
type Argument struct {
	Key      string
	Aliases  []string
	Required bool

	// GetNext consumes the token following the flag as the value.
	GetNext bool
	// GetAll captures the whole current Request instead of a token,
	// for non-textual payloads.
	GetAll bool

	Default  string
	AskText  string // prompt used when asking for this argument
	HelpText string

	Called bool
	Value  string
	Req    *message.Request
}

func (a *Argument) matches(token string) bool {
	if token == a.Key {
		return true
	}
	for _, alias := range a.Aliases {
		if token == alias {
			return true
		}
	}
	return false
}

// parse states for the argument-collection machine.
type argState int

const (
	stateCollectingFlags argState = iota // first turn: flag walk
	stateAskingRequired                  // asking for missing required args
	stateCompleted
)

// Default reserved alias sets.
var (
	defaultHelpAliases = []string{"help", "-h", "--h", "--help", "帮助"}
	defaultMuteAliases = []string{"-mute", "--mute", "静默"}
)

// ArgSession implements the common "collect N named parameters, asking
// the user for any missing required one" pattern on top of Base. A
// concrete command configures Args and the two hooks; everything else is
// shared plumbing.
type ArgSession struct {
	Base

	Args []*Argument

	// DefaultArgs receive tokens that match no alias, in declared
	// order: each unmatched token fills the next not-yet-filled slot.
	DefaultArgs []*Argument

	HelpAliases []string
	MuteAliases []string

	// Detail is appended to the detailed help output.
	Detail string

	// OnFill runs after each argument fill. A non-nil error aborts the
	// fill: the argument is cleared, the error text is reported, and
	// the next turn retries the same argument.
	OnFill func(arg *Argument) error

	// Complete runs once every required argument is filled.
	Complete func(req *message.Request) ([]message.Output, error)

	state argState
	mute  bool
}

// NewArgSession builds the shared state for an argument-collecting
// command session.
func NewArgSession(userID, sessionType string) ArgSession {
	return ArgSession{
		Base:        NewBase(userID, sessionType),
		HelpAliases: defaultHelpAliases,
		MuteAliases: defaultMuteAliases,
	}
}

// AddArg appends an argument and returns it for further reference.
func (s *ArgSession) AddArg(arg Argument) *Argument {
	arg.Value = arg.Default
	a := &arg
	s.Args = append(s.Args, a)
	return a
}

// Arg returns the argument registered under key, or nil.
func (s *ArgSession) Arg(key string) *Argument {
	for _, a := range s.Args {
		if a.Key == key {
			return a
		}
	}
	return nil
}

// Muted reports whether the mute alias was seen on the first turn.
func (s *ArgSession) Muted() bool { return s.mute }

// ProbabilityToCall matches the leading command word against the
// session's triggers.
func (s *ArgSession) ProbabilityToCall(req *message.Request) int {
	fields := strings.Fields(req.Msg)
	if len(fields) == 0 {
		return 0
	}
	return s.CalledByCommand(fields[0])
}

func (s *ArgSession) Handle(req *message.Request) ([]message.Output, error) {
	if s.state == stateCompleted {
		// The command already ran; a completed session never fires
		// its logic twice.
		return nil, nil
	}
	firstTurn := s.state == stateCollectingFlags
	if firstTurn {
		s.state = stateAskingRequired
		if out, done := s.parseFlags(req); done {
			return out, nil
		}
	}
	return s.collect(req, firstTurn)
}

// parseFlags walks the first message's tokens after the command word.
// It returns (outputs, true) when parsing terminated the turn (help
// requested or fatal parse error).
func (s *ArgSession) parseFlags(req *message.Request) ([]message.Output, bool) {
	tokens := Tokenize(req.Msg)
	if len(tokens) > 0 {
		tokens = tokens[1:] // drop the command word
	}

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		if contains(s.HelpAliases, token) {
			s.Deactivate()
			return []message.Output{message.NewMsg(s.DetailedHelp())}, true
		}
		if contains(s.MuteAliases, token) {
			s.mute = true
			continue
		}

		var matched *Argument
		for _, arg := range s.Args {
			if arg.matches(token) {
				matched = arg
				break
			}
		}
		if matched == nil {
			// Route the bare token to the next open default slot.
			slot, err := s.defaultSlot()
			if err != nil {
				s.Deactivate()
				return []message.Output{s.errorf("%v: %q", err, token)}, true
			}
			slot.Called = true
			slot.Value = token
			if slot.GetAll {
				slot.Req = req
			}
			if out, aborted := s.runFillHook(slot); aborted {
				return out, true
			}
			continue
		}

		matched.Called = true
		if matched.GetAll {
			matched.Req = req
		}
		if matched.GetNext {
			if i == len(tokens)-1 {
				s.Deactivate()
				return []message.Output{s.errorf("missing value for %q", matched.Key)}, true
			}
			i++
			matched.Value = tokens[i]
		}
		if out, aborted := s.runFillHook(matched); aborted {
			return out, true
		}
	}
	return nil, false
}

// defaultSlot returns the next default argument able to take a value.
func (s *ArgSession) defaultSlot() (*Argument, error) {
	for _, arg := range s.DefaultArgs {
		if arg.Called {
			continue
		}
		if !arg.GetNext {
			return nil, fmt.Errorf("argument %q cannot take a bare value", arg.Key)
		}
		return arg, nil
	}
	return nil, fmt.Errorf("unexpected token")
}

// collect fills required arguments turn by turn. On the first turn the
// message was already consumed by the flag walk, so no argument is
// filled from it; on later turns the whole message fills exactly one.
func (s *ArgSession) collect(req *message.Request, firstTurn bool) ([]message.Output, error) {
	filled := firstTurn
	for _, arg := range s.Args {
		if !arg.Required || arg.Called {
			continue
		}
		if !filled {
			filled = true
			arg.Called = true
			if arg.GetNext {
				arg.Value = req.Msg
			}
			if arg.GetAll {
				arg.Req = req
			}
			if out, aborted := s.runFillHook(arg); aborted {
				return out, nil
			}
			continue
		}
		// Ask for this argument; the next turn's message answers it.
		prompt := arg.AskText
		if prompt == "" {
			prompt = fmt.Sprintf("need a value for %q", arg.Key)
		}
		return []message.Output{s.msgf("%s", prompt)}, nil
	}

	s.state = stateCompleted
	s.Deactivate()
	if s.Complete == nil {
		return nil, nil
	}
	out, err := s.Complete(req)
	if err != nil {
		return nil, err
	}
	if s.mute {
		// Domain logic already ran for its side effects; say nothing.
		return nil, nil
	}
	return out, nil
}

// runFillHook applies the interruption hook. On abort the argument is
// cleared so the next turn retries it as a fresh continuation.
func (s *ArgSession) runFillHook(arg *Argument) ([]message.Output, bool) {
	if s.OnFill == nil {
		return nil, false
	}
	if err := s.OnFill(arg); err != nil {
		arg.Called = false
		arg.Value = arg.Default
		arg.Req = nil
		return []message.Output{s.errorf("%v", err)}, true
	}
	return nil, false
}

func (s *ArgSession) msgf(format string, a ...any) *message.Msg {
	return message.NewMsg(fmt.Sprintf("[%s] ", s.SessionType) + fmt.Sprintf(format, a...))
}

func (s *ArgSession) errorf(format string, a ...any) *message.Msg {
	return s.msgf("error, "+format, a...)
}

// DetailedHelp extends the default help with the per-argument directives.
func (s *ArgSession) DetailedHelp() string {
	var sb strings.Builder
	sb.WriteString(s.DefaultHelp())
	if len(s.Args) > 0 {
		sb.WriteString("\n[directives]")
		for _, arg := range s.Args {
			fmt.Fprintf(&sb, "\n%s", arg.Key)
			if arg.Required {
				sb.WriteString(" (required)")
			}
			if len(arg.Aliases) > 0 {
				fmt.Fprintf(&sb, ": %s", strings.Join(arg.Aliases, ", "))
			}
			if arg.HelpText != "" {
				sb.WriteString("\n  " + arg.HelpText)
			}
		}
	}
	if s.Detail != "" {
		sb.WriteString("\n[details]\n" + s.Detail)
	}
	return sb.String()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// quote pairs recognized by Tokenize; ASCII quotes close with themselves,
// the CJK variants with their paired closer.
var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'“':  '”',
	'‘':  '’',
}

func isQuoteRune(r rune) bool {
	if _, ok := quotePairs[r]; ok {
		return true
	}
	for _, closer := range quotePairs {
		if r == closer {
			return true
		}
	}
	return false
}

// Tokenize splits a command line on whitespace with quote-aware grouping.
// A token may be wrapped in matching quotation marks to embed literal
// spaces; a backslash immediately before a quote character escapes it to
// a literal quote; an unterminated opening quote is implicitly closed at
// the end of the input.
func Tokenize(s string) []string {
	var (
		tokens  []string
		current strings.Builder
		closer  rune // active quote closer, 0 when outside a group
		started bool // current token has content (possibly empty quotes)
	)
	flush := func() {
		if started || current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
			started = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes) && isQuoteRune(runes[i+1]):
			i++
			current.WriteRune(runes[i])
			started = true
		case closer != 0 && r == closer:
			closer = 0
			started = true
		case closer != 0:
			current.WriteRune(r)
		default:
			if c, ok := quotePairs[r]; ok {
				closer = c
				started = true
				continue
			}
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
				flush()
				continue
			}
			current.WriteRune(r)
			started = true
		}
	}
	flush()
	return tokens
}
