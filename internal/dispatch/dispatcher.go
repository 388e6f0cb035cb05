package dispatch

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"multibot/internal/message"
	"multibot/internal/perm"
	"multibot/internal/session"
	"multibot/internal/store"
)

// Re-injection budgets. The cron budget is much larger because
// scheduled jobs legitimately chain one follow-up command per due
// subscription.
const (
	DefaultBudget     = 10
	DefaultCronBudget = 100
)

// Auditor records which session types get started, for usage
// statistics.
type Auditor interface {
	Record(platform, sessionType, userID string) error
}

// Config assembles a dispatcher's collaborators. Store may be nil to
// disable persistence of the active-session set.
type Config struct {
	Registry *Registry
	Store    store.Store
	Perms    perm.Source
	History  Auditor
	Logger   *slog.Logger

	// Budget bounds re-injected requests per dispatcher instance;
	// zero selects the pool's default.
	Budget int

	// Debug enables the fault-reporting pipeline. LogDir is where
	// accepted crash reports are written.
	Debug  bool
	LogDir string
}

// Dispatcher routes one inbound occasion. Adapters construct a fresh
// one per event: construction reloads the active-session set, so the
// instance is cheap and carries no long-lived state of its own.
type Dispatcher struct {
	entries []Entry
	store   store.Store
	perms   perm.Table
	history Auditor
	logger  *slog.Logger
	debug   bool
	logDir  string

	sessions []session.Session
	current  session.Session
	budget   int
}

// New builds a dispatcher over the interactive pool, restoring the
// persisted active-session set.
func New(cfg Config) (*Dispatcher, error) {
	return build(cfg, cfg.Registry.Interactive, DefaultBudget)
}

// NewCron builds the scheduler-facing variant: the cron pool, no
// persistence, a far larger re-injection budget.
func NewCron(cfg Config) (*Dispatcher, error) {
	cfg.Store = nil
	if cfg.Budget == 0 {
		cfg.Budget = DefaultCronBudget
	}
	return build(cfg, cfg.Registry.Cron, DefaultCronBudget)
}

func build(cfg Config, entries []Entry, defaultBudget int) (*Dispatcher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	budget := cfg.Budget
	if budget <= 0 {
		budget = defaultBudget
	}

	d := &Dispatcher{
		entries: entries,
		store:   cfg.Store,
		history: cfg.History,
		logger:  logger,
		debug:   cfg.Debug,
		logDir:  cfg.LogDir,
		budget:  budget,
	}

	if cfg.Perms != nil {
		table, err := cfg.Perms.GetPermissions()
		if err != nil {
			return nil, fmt.Errorf("cannot load permissions: %w", err)
		}
		d.perms = table
	}
	if cfg.Store != nil {
		sessions, err := cfg.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("cannot load active sessions: %w", err)
		}
		d.sessions = sessions
	}
	return d, nil
}

// RefreshAndSave drops expired sessions from the active set and, when
// save is set, persists the survivors.
func (d *Dispatcher) RefreshAndSave(save bool) {
	alive := d.sessions[:0]
	for _, s := range d.sessions {
		if s.IsActive() {
			alive = append(alive, s)
		}
	}
	d.sessions = alive

	if save && d.store != nil {
		if err := d.store.Save(d.sessions); err != nil {
			d.logger.Warn("cannot persist active sessions", "error", err)
		}
	}
}

// UseActive binds the first still-legal active session owned by the
// request's user, refreshing it. An active session whose legality
// check no longer passes is silently ended: the follow-up no longer
// applies. Echo diagnostics never continue a conversation.
func (d *Dispatcher) UseActive(req *message.Request) bool {
	d.RefreshAndSave(true)
	if req.Echo {
		return false
	}
	for _, s := range d.sessions {
		if s.UserID() != req.UserID {
			continue
		}
		if !s.IsLegalRequest(req) {
			s.Deactivate()
			continue
		}
		s.Refresh()
		d.current = s
		return true
	}
	return false
}

// Handle routes one request and returns the flattened responses. It
// never returns an error: session faults are contained and reported
// through the response stream, and an unaddressed request simply
// yields nil.
func (d *Dispatcher) Handle(req *message.Request) []message.Response {
	var sess session.Session
	if d.UseActive(req) {
		sess = d.current
	} else {
		sess = d.newSession(req)
	}
	if sess == nil {
		return nil
	}

	sess.RecordRequest(req)
	outputs, err := d.run(sess, req)

	var responses []message.Response
	if err != nil {
		responses = d.fault(sess, req, err)
		sess = d.current // transcript continues on the diagnostic session
	} else {
		responses = d.collect(outputs)
	}

	for _, resp := range responses {
		if resp.Destination() == "" {
			resp.SetDestination(req.UserID)
		}
		sess.RecordResponse(resp)
	}

	d.RefreshAndSave(true)
	return responses
}

// newSession scores the candidate pool and instantiates the winner.
// Scoring uses a strict comparison, so equal scores keep the
// earlier-declared candidate.
func (d *Dispatcher) newSession(req *message.Request) session.Session {
	var (
		winner     session.Session
		winnerName string
		max        int
	)
	for _, e := range d.entries {
		cand := e.New(req.UserID)
		d.bindPermissions(cand)
		if !cand.IsLegalRequest(req) {
			continue
		}
		if score := cand.ProbabilityToCall(req); score > max {
			max = score
			winner = cand
			winnerName = e.Name
		}
	}
	if winner == nil {
		return nil
	}

	d.sessions = append(d.sessions, winner)
	d.current = winner
	d.logger.Debug("session started", "type", winnerName, "platform", req.Platform, "user_id", req.UserID)
	if d.history != nil {
		if err := d.history.Record(req.Platform, winnerName, req.UserID); err != nil {
			d.logger.Warn("cannot record history entry", "error", err)
		}
	}
	return winner
}

type permissionTarget interface {
	SetPermissions(perms map[string][]string)
}

// bindPermissions installs the stored allow-list for the candidate's
// type. Types without stored data keep whatever default they declared.
func (d *Dispatcher) bindPermissions(s session.Session) {
	if d.perms == nil {
		return
	}
	perms, ok := d.perms[s.Type()]
	if !ok {
		return
	}
	if target, ok := s.(permissionTarget); ok {
		target.SetPermissions(perms)
	}
}

// run invokes the session's domain logic with crash isolation: a panic
// surfaces as an error carrying the stack.
func (d *Dispatcher) run(s session.Session, req *message.Request) (outputs []message.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s session panicked: %v\n%s", s.Type(), r, debug.Stack())
		}
	}()
	return s.Handle(req)
}

// collect partitions session outputs: responses accumulate, re-injected
// requests recurse through Handle while the budget lasts and are
// dropped without comment once it is spent.
func (d *Dispatcher) collect(outputs []message.Output) []message.Response {
	var responses []message.Response
	for _, out := range outputs {
		switch v := out.(type) {
		case *message.Request:
			if d.budget <= 0 {
				d.logger.Debug("re-injected request dropped", "info", v.Info())
				continue
			}
			d.budget--
			responses = append(responses, d.Handle(v)...)
		case message.Response:
			responses = append(responses, v)
		}
	}
	return responses
}

// fault contains a session failure: the session ends, the reporter
// sees either the full trace or an opaque notice depending on the
// debug allow-list, and a diagnostic session inheriting the transcript
// offers the opt-in crash report.
func (d *Dispatcher) fault(sess session.Session, req *message.Request, cause error) []message.Response {
	sess.Deactivate()
	d.logger.Error("session fault", "type", sess.Type(), "platform", req.Platform, "user_id", req.UserID, "error", cause)
	if !d.debug {
		d.current = sess
		return nil
	}

	trace := cause.Error()
	var responses []message.Response
	if d.debugAllowed(req) {
		responses = append(responses, message.NewMsg(trace))
	} else {
		responses = append(responses, message.NewMsg("something went wrong while handling your request."))
	}

	logSess := session.NewLog(req.UserID, sess.Transcript(), trace, d.logDir)
	d.sessions = append(d.sessions, logSess)
	d.current = logSess
	responses = append(responses, message.NewMsg("save an error report for the operator? (y/n)"))
	return responses
}

// debugAllowed consults the permission table's debug entry: an absent
// entry or platform means nobody, an empty platform list means everyone
// on that platform.
func (d *Dispatcher) debugAllowed(req *message.Request) bool {
	perms, ok := d.perms["debug"]
	if !ok {
		return false
	}
	ids, ok := perms[req.Platform]
	if !ok {
		return false
	}
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == req.UserID {
			return true
		}
	}
	return false
}

// ProcessOutput forwards a platform call result to the session bound
// by the preceding Handle. Calling it with no bound session is an
// integration error and panics.
func (d *Dispatcher) ProcessOutput(output any) []message.Response {
	if d.current == nil {
		panic("dispatch: ProcessOutput called without a bound session")
	}
	sess := d.current
	sess.Refresh()

	outputs, err := sess.ProcessOutput(output)
	if err != nil {
		sess.Deactivate()
		d.logger.Error("session fault on platform call result", "type", sess.Type(), "error", err)
		return nil
	}

	responses := d.collect(outputs)
	for _, resp := range responses {
		if resp.Destination() == "" {
			resp.SetDestination(sess.UserID())
		}
		sess.RecordResponse(resp)
	}
	d.RefreshAndSave(true)
	return responses
}
