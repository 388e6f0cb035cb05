package sched

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"multibot/internal/message"
)

func testRepo(t *testing.T) *Repo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := sql.Open("sqlite", path+"?_journal_mode=WAL")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	repo, err := NewRepo(conn, nil)
	if err != nil {
		t.Fatal(err)
	}
	return repo
}

func TestDueAt(t *testing.T) {
	nine := time.Date(2024, 3, 1, 9, 0, 30, 0, time.UTC) // friday
	cases := []struct {
		expr string
		want bool
	}{
		{"0 9 * * *", true},
		{"* * * * *", true},
		{"30 9 * * *", false},
		{"0 9 * * 1", false}, // monday only
		{"0 9 * * 5", true},  // friday
		{"not a cron", false},
	}
	for _, tc := range cases {
		if got := dueAt(tc.expr, nine); got != tc.want {
			t.Errorf("dueAt(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestRepoRoundTrip(t *testing.T) {
	repo := testRepo(t)
	id, err := repo.Add("Console", "0", "0 9 * * *", "weather")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Add("Console", "0", "bogus", "weather"); err == nil {
		t.Fatal("invalid cron expression must be rejected")
	}

	subs, err := repo.ByUser("Console", "0")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].Command != "weather" {
		t.Fatalf("unexpected subscriptions: %#v", subs)
	}

	if err := repo.Remove(id, "Console", "999"); err == nil {
		t.Fatal("removing someone else's subscription must fail")
	}
	if err := repo.Remove(id, "Console", "0"); err != nil {
		t.Fatal(err)
	}
}

func TestLoadTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	const doc = `
tasks:
  - name: morning
    cron: "0 9 * * *"
    platform: Console
    user_id: "0"
    command: weather
  - name: broken
    cron: "not a cron"
    platform: Console
    user_id: "0"
    command: weather
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	tasks, err := LoadTasks(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Name != "morning" {
		t.Fatalf("broken task should be skipped, got %#v", tasks)
	}

	// A missing file is simply an empty list.
	tasks, err = LoadTasks(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err != nil || tasks != nil {
		t.Fatalf("missing file should load empty, got %v, %v", tasks, err)
	}
}

func TestScheduleSessionFiresDueCommands(t *testing.T) {
	repo := testRepo(t)
	if _, err := repo.Add("Console", "0", "0 9 * * *", "weather"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Add("Console", "1", "0 18 * * *", "news"); err != nil {
		t.Fatal(err)
	}

	s := NewScheduleSession(SchedulerUser, repo, []Task{
		{Name: "static", Cron: "0 9 * * *", Platform: "Telegram", UserID: "7", Command: "report"},
	})
	s.Now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 10, 0, time.UTC) }

	tick := &message.Request{Platform: PlatformTag, UserID: SchedulerUser, Msg: TickCommand, FromScheduler: true}
	if !s.IsLegalRequest(tick) {
		t.Fatal("scheduler tick should be legal")
	}
	// A live user typing the tick command is refused.
	if s.IsLegalRequest(&message.Request{Platform: "Console", UserID: "0", Msg: TickCommand}) {
		t.Fatal("a user-typed tick must not fire subscriptions")
	}

	out, err := s.Handle(tick)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected the two due commands, got %d outputs", len(out))
	}
	first := out[0].(*message.Request)
	if first.Platform != "Telegram" || first.Msg != "report" || !first.FromScheduler {
		t.Fatalf("static task request wrong: %#v", first)
	}
	second := out[1].(*message.Request)
	if second.UserID != "0" || second.Msg != "weather" {
		t.Fatalf("subscription request wrong: %#v", second)
	}
	if s.IsActive() {
		t.Fatal("the tick session should end after one turn")
	}
}

func TestAddSubscriptionSession(t *testing.T) {
	repo := testRepo(t)
	s := NewAddSubscription("0", repo)

	req := &message.Request{Platform: "Console", UserID: "0", Msg: `subscribe -c "0 9 * * *" -e weather`}
	out, err := s.Handle(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || !strings.Contains(out[0].(*message.Msg).Text, "#1") {
		t.Fatalf("expected the saved confirmation, got %v", out)
	}

	subs, err := repo.ByUser("Console", "0")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].Cron != "0 9 * * *" {
		t.Fatalf("subscription not saved: %#v", subs)
	}
}

func TestAddSubscriptionRejectsBadCron(t *testing.T) {
	repo := testRepo(t)
	s := NewAddSubscription("0", repo)

	out, err := s.Handle(&message.Request{Platform: "Console", UserID: "0", Msg: "subscribe -c nonsense -e weather"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || !strings.Contains(out[0].(*message.Msg).Text, "invalid cron") {
		t.Fatalf("expected the validation message, got %v", out)
	}
	// The rejected fill retries: the next turn supplies a valid
	// expression, and the turn after that answers the command prompt.
	out, err = s.Handle(&message.Request{Platform: "Console", UserID: "0", Msg: "0 9 * * *"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || !strings.Contains(out[0].(*message.Msg).Text, "which command") {
		t.Fatalf("expected the command prompt, got %v", out)
	}
	if _, err = s.Handle(&message.Request{Platform: "Console", UserID: "0", Msg: "weather"}); err != nil {
		t.Fatal(err)
	}
	subs, err := repo.ByUser("Console", "0")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 {
		t.Fatalf("retry did not complete the subscription: %#v", subs)
	}
}

func TestDelAndListSubscriptions(t *testing.T) {
	repo := testRepo(t)
	if _, err := repo.Add("Console", "0", "0 9 * * *", "weather"); err != nil {
		t.Fatal(err)
	}

	list := NewListSubscriptions("0", repo)
	out, err := list.Handle(&message.Request{Platform: "Console", UserID: "0", Msg: "subscriptions"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out[0].(*message.Msg).Text, "weather") {
		t.Fatalf("listing missing the subscription: %v", out)
	}

	del := NewDelSubscription("0", repo)
	out, err = del.Handle(&message.Request{Platform: "Console", UserID: "0", Msg: "unsubscribe 1"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out[0].(*message.Msg).Text, "removed #1") {
		t.Fatalf("expected the removal confirmation, got %v", out)
	}
}
