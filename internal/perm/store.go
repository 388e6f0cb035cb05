package perm

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// WildcardUser marks a platform-wide grant. A row with this user id
// collapses the platform's list to the empty wildcard.
const WildcardUser = "all"

// Store persists permission grants in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS permissions (
	kind       TEXT NOT NULL,
	platform   TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(kind, platform, user_id)
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("cannot migrate permissions table: %w", err)
	}
	return nil
}

// GetPermissions loads the whole grant table. A platform holding the
// wildcard user collapses to an empty id list, which Base treats as
// "everyone on this platform".
func (s *Store) GetPermissions() (Table, error) {
	rows, err := s.db.Query(`SELECT kind, platform, user_id FROM permissions ORDER BY kind, platform`)
	if err != nil {
		return nil, fmt.Errorf("cannot query permissions: %w", err)
	}
	defer rows.Close()

	table := Table{}
	wildcard := map[string]map[string]bool{} // kind -> platform
	for rows.Next() {
		var kind, platform, userID string
		if err := rows.Scan(&kind, &platform, &userID); err != nil {
			return nil, fmt.Errorf("cannot scan permission row: %w", err)
		}
		if table[kind] == nil {
			table[kind] = map[string][]string{}
		}
		if userID == WildcardUser {
			if wildcard[kind] == nil {
				wildcard[kind] = map[string]bool{}
			}
			wildcard[kind][platform] = true
			table[kind][platform] = []string{}
			continue
		}
		if wildcard[kind][platform] {
			continue
		}
		table[kind][platform] = append(table[kind][platform], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot read permissions: %w", err)
	}
	return table, nil
}

// Grant records that userID on platform may use the command kind.
func (s *Store) Grant(kind, platform, userID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO permissions (kind, platform, user_id) VALUES (?, ?, ?)`,
		kind, platform, userID,
	)
	if err != nil {
		return fmt.Errorf("cannot grant %s/%s for %s: %w", platform, userID, kind, err)
	}
	s.logger.Info("permission granted", "kind", kind, "platform", platform, "user_id", userID)
	return nil
}

// Revoke removes a grant. Revoking the wildcard user restores
// per-user checks for the platform.
func (s *Store) Revoke(kind, platform, userID string) error {
	res, err := s.db.Exec(
		`DELETE FROM permissions WHERE kind = ? AND platform = ? AND user_id = ?`,
		kind, platform, userID,
	)
	if err != nil {
		return fmt.Errorf("cannot revoke %s/%s for %s: %w", platform, userID, kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no grant %s/%s for %s", platform, userID, kind)
	}
	s.logger.Info("permission revoked", "kind", kind, "platform", platform, "user_id", userID)
	return nil
}
