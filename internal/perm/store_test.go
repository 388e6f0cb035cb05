package perm

import (
	"database/sql"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := sql.Open("sqlite", path+"?_journal_mode=WAL")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	store, err := NewStore(conn, nil)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestGrantAndLoad(t *testing.T) {
	store := testStore(t)
	for _, g := range []struct{ kind, platform, user string }{
		{"perm", "Console", "0"},
		{"perm", "Telegram", "100"},
		{"perm", "Telegram", "200"},
		{"debug", "Console", "0"},
	} {
		if err := store.Grant(g.kind, g.platform, g.user); err != nil {
			t.Fatal(err)
		}
	}
	// Duplicate grants are silently ignored.
	if err := store.Grant("perm", "Console", "0"); err != nil {
		t.Fatal(err)
	}

	table, err := store.GetPermissions()
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(table["perm"]["Telegram"])
	want := Table{
		"perm": {
			"Console":  {"0"},
			"Telegram": {"100", "200"},
		},
		"debug": {
			"Console": {"0"},
		},
	}
	if !reflect.DeepEqual(table, want) {
		t.Fatalf("table = %#v, want %#v", table, want)
	}
}

func TestWildcardCollapsesPlatform(t *testing.T) {
	store := testStore(t)
	if err := store.Grant("perm", "Telegram", "100"); err != nil {
		t.Fatal(err)
	}
	if err := store.Grant("perm", "Telegram", WildcardUser); err != nil {
		t.Fatal(err)
	}
	if err := store.Grant("perm", "Telegram", "200"); err != nil {
		t.Fatal(err)
	}

	table, err := store.GetPermissions()
	if err != nil {
		t.Fatal(err)
	}
	got := table["perm"]["Telegram"]
	if got == nil || len(got) != 0 {
		t.Fatalf("wildcard platform should collapse to the empty list, got %#v", got)
	}
}

func TestRevoke(t *testing.T) {
	store := testStore(t)
	if err := store.Grant("perm", "Console", "0"); err != nil {
		t.Fatal(err)
	}
	if err := store.Revoke("perm", "Console", "0"); err != nil {
		t.Fatal(err)
	}
	if err := store.Revoke("perm", "Console", "0"); err == nil {
		t.Fatal("revoking an absent grant should fail")
	}

	table, err := store.GetPermissions()
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 0 {
		t.Fatalf("table should be empty, got %#v", table)
	}
}

func TestStaticAndKind(t *testing.T) {
	src := Static{
		"perm": {"Console": {"0"}},
	}
	perms, err := Kind(src, "perm")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(perms, map[string][]string{"Console": {"0"}}) {
		t.Fatalf("Kind returned %#v", perms)
	}

	open, err := Kind(src, "unknown")
	if err != nil {
		t.Fatal(err)
	}
	if open != nil {
		t.Fatalf("absent kind should be unrestricted, got %#v", open)
	}
}
