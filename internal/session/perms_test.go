package session

import (
	"errors"
	"strings"
	"testing"

	"multibot/internal/message"
)

type fakePermWriter struct {
	granted [][3]string
	revoked [][3]string
	err     error
}

func (w *fakePermWriter) Grant(kind, platform, userID string) error {
	w.granted = append(w.granted, [3]string{kind, platform, userID})
	return w.err
}

func (w *fakePermWriter) Revoke(kind, platform, userID string) error {
	w.revoked = append(w.revoked, [3]string{kind, platform, userID})
	return w.err
}

func TestPermAdd(t *testing.T) {
	w := &fakePermWriter{}
	s := NewPermAdd("1", w)

	out, err := s.Handle(&message.Request{Platform: "Console", UserID: "1", Msg: "grant -k debug -p Telegram -u 42"})
	if err != nil {
		t.Fatal(err)
	}
	if len(w.granted) != 1 || w.granted[0] != [3]string{"debug", "Telegram", "42"} {
		t.Fatalf("granted = %v", w.granted)
	}
	if len(out) != 1 || !strings.Contains(out[0].(*message.Msg).Text, "now allows 42") {
		t.Fatalf("unexpected output: %v", out)
	}
	if s.IsActive() {
		t.Fatal("session should end after a complete turn")
	}
}

func TestPermAddDefaultsToWholePlatform(t *testing.T) {
	w := &fakePermWriter{}
	s := NewPermAdd("1", w)

	if _, err := s.Handle(&message.Request{Platform: "Console", UserID: "1", Msg: "grant debug Telegram"}); err != nil {
		t.Fatal(err)
	}
	if len(w.granted) != 1 || w.granted[0][2] != "all" {
		t.Fatalf("granted = %v", w.granted)
	}
}

func TestPermDelReportsStoreError(t *testing.T) {
	w := &fakePermWriter{err: errors.New("no such grant")}
	s := NewPermDel("1", w)

	out, err := s.Handle(&message.Request{Platform: "Console", UserID: "1", Msg: "revoke debug Telegram 42"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || !strings.Contains(out[0].(*message.Msg).Text, "no such grant") {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestPermSessionsRestrictedByDefault(t *testing.T) {
	s := NewPermAdd("1", &fakePermWriter{})
	if s.IsLegalRequest(&message.Request{Platform: "Console", UserID: "1", Msg: "grant"}) {
		t.Fatal("grant must be denied until the permission table opens it")
	}
	s.SetPermissions(map[string][]string{"Console": {"1"}})
	if !s.IsLegalRequest(&message.Request{Platform: "Console", UserID: "1", Msg: "grant"}) {
		t.Fatal("granted operator should pass")
	}
}
