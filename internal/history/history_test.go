package history

import (
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"
)

func testRecorder(t *testing.T) *Recorder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := sql.Open("sqlite", path+"?_journal_mode=WAL")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	rec, err := NewRecorder(conn, nil)
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestRecordAndCounts(t *testing.T) {
	rec := testRecorder(t)
	for _, e := range []struct{ platform, sessionType, user string }{
		{"Console", "repeat", "0"},
		{"Console", "repeat", "0"},
		{"Telegram", "repeat", "100"},
		{"Telegram", "help", "100"},
	} {
		if err := rec.Record(e.platform, e.sessionType, e.user); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := rec.Counts()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int{"repeat": 3, "help": 1}
	if !reflect.DeepEqual(counts, want) {
		t.Fatalf("counts = %#v, want %#v", counts, want)
	}
}

func TestCountsEmpty(t *testing.T) {
	rec := testRecorder(t)
	counts, err := rec.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected no entries, got %#v", counts)
	}
}
