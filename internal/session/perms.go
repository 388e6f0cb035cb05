package session

import (
	"fmt"

	"multibot/internal/message"
)

// PermissionWriter mutates the persisted permission table. Satisfied
// by perm.Store.
type PermissionWriter interface {
	Grant(kind, platform, userID string) error
	Revoke(kind, platform, userID string) error
}

// NewPermAdd builds the "grant" command: add one row to the permission
// table. The user id "all" opens the kind to the whole platform.
func NewPermAdd(userID string, store PermissionWriter) *ArgSession {
	s := &ArgSession{}
	*s = NewArgSession(userID, "grant")
	s.StrictTriggers = []string{"grant"}
	s.Desc = "grant a permission (operator only)"
	s.Permissions = map[string][]string{} // deny all until the table says otherwise
	addPermArgs(s)
	s.Complete = func(req *message.Request) ([]message.Output, error) {
		kind, platform, target := s.Arg("kind").Value, s.Arg("platform").Value, s.Arg("user").Value
		if err := store.Grant(kind, platform, target); err != nil {
			return nil, err
		}
		return []message.Output{message.NewMsg(fmt.Sprintf("[grant] %s on %s now allows %s.", kind, platform, target))}, nil
	}
	return s
}

// NewPermDel builds the "revoke" command, the inverse of "grant".
func NewPermDel(userID string, store PermissionWriter) *ArgSession {
	s := &ArgSession{}
	*s = NewArgSession(userID, "revoke")
	s.StrictTriggers = []string{"revoke"}
	s.Desc = "revoke a permission (operator only)"
	s.Permissions = map[string][]string{}
	addPermArgs(s)
	s.Complete = func(req *message.Request) ([]message.Output, error) {
		kind, platform, target := s.Arg("kind").Value, s.Arg("platform").Value, s.Arg("user").Value
		if err := store.Revoke(kind, platform, target); err != nil {
			return []message.Output{message.NewMsg(fmt.Sprintf("[revoke] %v", err))}, nil
		}
		return []message.Output{message.NewMsg(fmt.Sprintf("[revoke] %s on %s no longer allows %s.", kind, platform, target))}, nil
	}
	return s
}

func addPermArgs(s *ArgSession) {
	s.AddArg(Argument{
		Key:      "kind",
		Aliases:  []string{"-k", "--kind"},
		Required: true,
		GetNext:  true,
		AskText:  "which permission kind? (e.g. \"debug\")",
		HelpText: "permission kind to change",
	})
	s.AddArg(Argument{
		Key:      "platform",
		Aliases:  []string{"-p", "--platform"},
		Required: true,
		GetNext:  true,
		AskText:  "which platform? (e.g. \"Telegram\")",
		HelpText: "platform the rule applies to",
	})
	s.AddArg(Argument{
		Key:      "user",
		Aliases:  []string{"-u", "--user"},
		GetNext:  true,
		Default:  "all",
		AskText:  "which user id?",
		HelpText: "user id, or \"all\" for the whole platform",
	})
	s.DefaultArgs = []*Argument{s.Arg("kind"), s.Arg("platform"), s.Arg("user")}
}
