package sched

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"multibot/internal/message"
	"multibot/internal/session"
)

// TickCommand is the synthetic message the scheduler loop injects once
// a minute.
const TickCommand = "tick"

// Lister is the subscription read surface the tick session needs.
type Lister interface {
	All() ([]Subscription, error)
}

// ScheduleSession lives in the cron pool and fires everything due in
// the current minute by re-injecting each saved command as a request.
type ScheduleSession struct {
	session.Base
	Subs  Lister
	Tasks []Task

	// Now is the reference clock, replaceable in tests.
	Now func() time.Time
}

func NewScheduleSession(userID string, subs Lister, tasks []Task) *ScheduleSession {
	s := &ScheduleSession{Base: session.NewBase(userID, "schedule"), Subs: subs, Tasks: tasks, Now: time.Now}
	s.StrictTriggers = []string{TickCommand}
	s.HideTriggers = true
	return s
}

// IsLegalRequest only admits scheduler-originated ticks, so a live
// user typing the tick command cannot fire everyone's subscriptions.
func (s *ScheduleSession) IsLegalRequest(req *message.Request) bool {
	return req.FromScheduler && s.TextOnly(req)
}

func (s *ScheduleSession) Handle(req *message.Request) ([]message.Output, error) {
	defer s.Deactivate()
	now := s.Now()

	var out []message.Output
	for _, task := range s.Tasks {
		if dueAt(task.Cron, now) {
			out = append(out, commandRequest(task.Platform, task.UserID, task.Command))
		}
	}
	if s.Subs != nil {
		subs, err := s.Subs.All()
		if err != nil {
			return nil, fmt.Errorf("cannot load subscriptions: %w", err)
		}
		for _, sub := range subs {
			if dueAt(sub.Cron, now) {
				out = append(out, commandRequest(sub.Platform, sub.UserID, sub.Command))
			}
		}
	}
	return out, nil
}

func commandRequest(platform, userID, command string) *message.Request {
	return &message.Request{
		Platform:      platform,
		UserID:        userID,
		Msg:           command,
		FromScheduler: true,
	}
}

// Writer is the subscription write surface the interactive sessions
// need.
type Writer interface {
	Add(platform, userID, cronExpr, command string) (int64, error)
	Remove(id int64, platform, userID string) error
	ByUser(platform, userID string) ([]Subscription, error)
}

// NewAddSubscription builds the interactive "subscribe" command: save
// a cron expression plus the command line to replay on schedule.
func NewAddSubscription(userID string, repo Writer) *session.ArgSession {
	s := &session.ArgSession{}
	*s = session.NewArgSession(userID, "subscribe")
	s.StrictTriggers = []string{"subscribe", "订阅"}
	s.Desc = "run a command on a schedule"
	s.AddArg(session.Argument{
		Key:      "cron",
		Aliases:  []string{"-c", "--cron"},
		Required: true,
		GetNext:  true,
		AskText:  "when should it run? (5-field cron, e.g. \"0 9 * * *\")",
		HelpText: "firing schedule, standard 5-field cron",
	})
	s.AddArg(session.Argument{
		Key:      "command",
		Aliases:  []string{"-e", "--exec"},
		Required: true,
		GetNext:  true,
		AskText:  "which command should run?",
		HelpText: "command line to replay when due",
	})
	s.DefaultArgs = []*session.Argument{s.Arg("cron"), s.Arg("command")}
	s.OnFill = func(arg *session.Argument) error {
		if arg.Key == "cron" {
			return ValidateCron(arg.Value)
		}
		return nil
	}
	s.Complete = func(req *message.Request) ([]message.Output, error) {
		id, err := repo.Add(req.Platform, s.UserID(), s.Arg("cron").Value, s.Arg("command").Value)
		if err != nil {
			return nil, err
		}
		return []message.Output{message.NewMsg(fmt.Sprintf("[subscribe] saved as #%d.", id))}, nil
	}
	return s
}

// NewDelSubscription builds the interactive "unsubscribe" command.
func NewDelSubscription(userID string, repo Writer) *session.ArgSession {
	s := &session.ArgSession{}
	*s = session.NewArgSession(userID, "unsubscribe")
	s.StrictTriggers = []string{"unsubscribe", "退订"}
	s.Desc = "remove a saved subscription by id"
	s.AddArg(session.Argument{
		Key:      "id",
		Aliases:  []string{"-i", "--id"},
		Required: true,
		GetNext:  true,
		AskText:  "which subscription id?",
	})
	s.DefaultArgs = []*session.Argument{s.Arg("id")}
	s.OnFill = func(arg *session.Argument) error {
		if _, err := strconv.ParseInt(arg.Value, 10, 64); err != nil {
			return fmt.Errorf("%q is not a subscription id", arg.Value)
		}
		return nil
	}
	s.Complete = func(req *message.Request) ([]message.Output, error) {
		id, _ := strconv.ParseInt(s.Arg("id").Value, 10, 64)
		if err := repo.Remove(id, req.Platform, s.UserID()); err != nil {
			return []message.Output{message.NewMsg(fmt.Sprintf("[unsubscribe] %v", err))}, nil
		}
		return []message.Output{message.NewMsg(fmt.Sprintf("[unsubscribe] removed #%d.", id))}, nil
	}
	return s
}

// ListSubscriptions shows the caller's saved subscriptions.
type ListSubscriptions struct {
	session.Base
	Repo Writer
}

func NewListSubscriptions(userID string, repo Writer) *ListSubscriptions {
	s := &ListSubscriptions{Base: session.NewBase(userID, "subscriptions"), Repo: repo}
	s.StrictTriggers = []string{"subscriptions", "订阅列表"}
	s.Desc = "list your saved subscriptions"
	return s
}

func (s *ListSubscriptions) Handle(req *message.Request) ([]message.Output, error) {
	defer s.Deactivate()
	subs, err := s.Repo.ByUser(req.Platform, s.UserID())
	if err != nil {
		return nil, fmt.Errorf("cannot load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return []message.Output{message.NewMsg("[subscriptions] none saved.")}, nil
	}
	lines := make([]string, 0, len(subs)+1)
	lines = append(lines, "[subscriptions]")
	for _, sub := range subs {
		lines = append(lines, fmt.Sprintf("#%d  %s  %s", sub.ID, sub.Cron, sub.Command))
	}
	return []message.Output{message.NewMsg(strings.Join(lines, "\n"))}, nil
}
