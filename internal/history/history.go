// Package history records which command sessions were started, when
// and by whom, for usage statistics.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Recorder appends dispatch events to SQLite and aggregates them.
type Recorder struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRecorder(db *sql.DB, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	platform     TEXT NOT NULL,
	session_type TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	created_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_type ON history(session_type);`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("cannot migrate history table: %w", err)
	}
	return nil
}

// Record notes that userID on platform started a session of the given
// type.
func (r *Recorder) Record(platform, sessionType, userID string) error {
	_, err := r.db.Exec(
		`INSERT INTO history (platform, session_type, user_id, created_at) VALUES (?, ?, ?, ?)`,
		platform, sessionType, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cannot record history entry: %w", err)
	}
	return nil
}

// Counts aggregates recorded entries per session type.
func (r *Recorder) Counts() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT session_type, COUNT(*) FROM history GROUP BY session_type`)
	if err != nil {
		return nil, fmt.Errorf("cannot query history: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var sessionType string
		var n int
		if err := rows.Scan(&sessionType, &n); err != nil {
			return nil, fmt.Errorf("cannot scan history row: %w", err)
		}
		counts[sessionType] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot read history: %w", err)
	}
	return counts, nil
}
