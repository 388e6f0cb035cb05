// Package session defines the contract every conversational handler
// implements, plus the shared timeout, permission, and trigger machinery
// so concrete handlers only carry domain logic.
package session

import (
	"fmt"
	"strings"
	"time"

	"multibot/internal/message"
)

// DefaultIdleTimeout is how long a session waits for the next message
// before it expires, unless the session type configures its own window.
const DefaultIdleTimeout = 10 * time.Second

// Session is a stateful, possibly multi-turn conversation handler bound
// to one user. Instances are owned by the dispatcher's active set for
// their whole lifetime.
type Session interface {
	UserID() string
	Type() string

	// IsActive reports whether the session may still handle requests.
	// Observing an elapsed idle timeout permanently deactivates the
	// session: the transition is one-way and checked lazily.
	IsActive() bool
	// Deactivate unconditionally and permanently ends the session.
	Deactivate()
	// Refresh marks the session active and resets its idle clock.
	Refresh()

	// ProbabilityToCall scores the session's eagerness to handle the
	// request, 0..100 (larger wins; 0 means "not interested").
	ProbabilityToCall(req *message.Request) int
	// IsLegalRequest reports whether the request passes the session's
	// permission and payload gates.
	IsLegalRequest(req *message.Request) bool

	// Handle runs the session's domain logic for one turn.
	Handle(req *message.Request) ([]message.Output, error)
	// ProcessOutput continues the conversation with the result of a
	// PlatformCall response the session previously emitted.
	ProcessOutput(output any) ([]message.Output, error)

	Help() string

	// Transcript bookkeeping, maintained by the dispatcher and consumed
	// by the diagnostic pipeline.
	RecordRequest(req *message.Request)
	RecordResponse(resp message.Response)
	Transcript() []string

	// Lifecycle snapshot, used by the active-session store.
	LastActivity() time.Time
	RestoreActivity(active bool, last time.Time)
}

// Base carries the machinery shared by every session type. Concrete
// sessions embed it and override the methods whose defaults do not fit
// (typically ProbabilityToCall and IsLegalRequest).
type Base struct {
	User        string
	SessionType string
	Desc        string

	// IdleTimeout is the per-type idle window; zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	// ExtendTriggers match when the message contains the trigger;
	// StrictTriggers only on exact equality. Both case-insensitive.
	ExtendTriggers []string
	StrictTriggers []string

	// Permissions maps platform to allowed user ids. An empty list
	// allows every user on that platform; an absent platform denies.
	// A nil map applies no restriction at all.
	Permissions map[string][]string

	// HideTriggers omits the trigger list from the default help text.
	HideTriggers bool

	active       bool
	lastActivity time.Time
	transcript   []string
}

// NewBase constructs the shared state for a session owned by user.
func NewBase(userID, sessionType string) Base {
	return Base{
		User:         userID,
		SessionType:  sessionType,
		IdleTimeout:  DefaultIdleTimeout,
		active:       true,
		lastActivity: time.Now(),
	}
}

func (b *Base) UserID() string { return b.User }

func (b *Base) Type() string { return b.SessionType }

func (b *Base) IsActive() bool {
	if b.active {
		timeout := b.IdleTimeout
		if timeout <= 0 {
			timeout = DefaultIdleTimeout
		}
		if time.Since(b.lastActivity) < timeout {
			return true
		}
	}
	b.active = false
	return false
}

func (b *Base) Deactivate() { b.active = false }

func (b *Base) Refresh() {
	b.active = true
	b.lastActivity = time.Now()
}

// CalledByCommand is the default trigger scorer: 100 when msg contains
// any extend trigger or exactly equals any strict trigger, else 0.
func (b *Base) CalledByCommand(msg string) int {
	if msg == "" {
		return 0
	}
	lower := strings.ToLower(msg)
	for _, cmd := range b.ExtendTriggers {
		if strings.Contains(lower, strings.ToLower(cmd)) {
			return 100
		}
	}
	for _, cmd := range b.StrictTriggers {
		if lower == strings.ToLower(cmd) {
			return 100
		}
	}
	return 0
}

func (b *Base) ProbabilityToCall(req *message.Request) int {
	return b.CalledByCommand(req.Msg)
}

// SetPermissions installs the platform allow-list, usually from the
// dispatcher's permission source when the session is constructed.
func (b *Base) SetPermissions(perms map[string][]string) { b.Permissions = perms }

// HasPermission applies the platform/user allow-list when one is set.
func (b *Base) HasPermission(req *message.Request) bool {
	if b.Permissions == nil {
		return true
	}
	ids, ok := b.Permissions[req.Platform]
	if !ok {
		return false
	}
	if len(ids) == 0 { // wildcard: whole platform allowed
		return true
	}
	for _, id := range ids {
		if id == req.UserID {
			return true
		}
	}
	return false
}

// TextOnly is the default payload gate: non-empty text, no image.
func (b *Base) TextOnly(req *message.Request) bool {
	return req.Msg != "" && req.Img == ""
}

func (b *Base) IsLegalRequest(req *message.Request) bool {
	return b.HasPermission(req) && b.TextOnly(req)
}

func (b *Base) Handle(req *message.Request) ([]message.Output, error) {
	return nil, nil
}

// ProcessOutput discards the platform call result by default.
func (b *Base) ProcessOutput(output any) ([]message.Output, error) {
	return nil, nil
}

func (b *Base) Help() string { return b.DefaultHelp() }

// DefaultHelp assembles the standard per-session help block from the
// trigger lists, idle timeout, permission flag, and description.
func (b *Base) DefaultHelp() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[plugin] %s", b.SessionType)
	if b.Permissions != nil {
		sb.WriteString(" (restricted)")
	}
	if !b.HideTriggers && (len(b.ExtendTriggers) > 0 || len(b.StrictTriggers) > 0) {
		sb.WriteString("\n[triggers] ")
		parts := make([]string, 0, len(b.ExtendTriggers)+len(b.StrictTriggers))
		for _, cmd := range b.ExtendTriggers {
			parts = append(parts, cmd+"+")
		}
		parts = append(parts, b.StrictTriggers...)
		sb.WriteString(strings.Join(parts, ", "))
	}
	if b.IdleTimeout > 0 && b.IdleTimeout != DefaultIdleTimeout {
		fmt.Fprintf(&sb, "\n[wait] %d s", int(b.IdleTimeout/time.Second))
	}
	if b.Desc != "" {
		sb.WriteString("\n" + b.Desc)
	}
	return sb.String()
}

func (b *Base) RecordRequest(req *message.Request) {
	b.transcript = append(b.transcript, "<- "+req.Info())
}

func (b *Base) RecordResponse(resp message.Response) {
	b.transcript = append(b.transcript, fmt.Sprintf("-> %#v", resp))
}

func (b *Base) Transcript() []string {
	out := make([]string, len(b.transcript))
	copy(out, b.transcript)
	return out
}

func (b *Base) LastActivity() time.Time { return b.lastActivity }

func (b *Base) RestoreActivity(active bool, last time.Time) {
	b.active = active
	b.lastActivity = last
}
