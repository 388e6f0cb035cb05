package sched

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Subscription is one saved per-user command with its firing schedule.
type Subscription struct {
	ID       int64
	Platform string
	UserID   string
	Cron     string
	Command  string
}

// Repo persists subscriptions in SQLite.
type Repo struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepo(db *sql.DB, logger *slog.Logger) (*Repo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repo{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repo) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	platform   TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	cron       TEXT NOT NULL,
	command    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(platform, user_id);`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("cannot migrate subscriptions table: %w", err)
	}
	return nil
}

// Add validates the cron expression and saves the subscription,
// returning its id.
func (r *Repo) Add(platform, userID, cronExpr, command string) (int64, error) {
	if err := ValidateCron(cronExpr); err != nil {
		return 0, err
	}
	res, err := r.db.Exec(
		`INSERT INTO subscriptions (platform, user_id, cron, command, created_at) VALUES (?, ?, ?, ?, ?)`,
		platform, userID, cronExpr, command, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("cannot save subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("cannot read subscription id: %w", err)
	}
	r.logger.Info("subscription added", "id", id, "platform", platform, "user_id", userID, "cron", cronExpr)
	return id, nil
}

// Remove deletes one subscription. The user id must match, so a user
// can only remove their own.
func (r *Repo) Remove(id int64, platform, userID string) error {
	res, err := r.db.Exec(
		`DELETE FROM subscriptions WHERE id = ? AND platform = ? AND user_id = ?`,
		id, platform, userID,
	)
	if err != nil {
		return fmt.Errorf("cannot remove subscription %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no subscription %d for this user", id)
	}
	return nil
}

// ByUser lists the user's subscriptions, oldest first.
func (r *Repo) ByUser(platform, userID string) ([]Subscription, error) {
	return r.query(
		`SELECT id, platform, user_id, cron, command FROM subscriptions
		 WHERE platform = ? AND user_id = ? ORDER BY id`,
		platform, userID,
	)
}

// All lists every subscription.
func (r *Repo) All() ([]Subscription, error) {
	return r.query(`SELECT id, platform, user_id, cron, command FROM subscriptions ORDER BY id`)
}

func (r *Repo) query(q string, args ...any) ([]Subscription, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.Platform, &s.UserID, &s.Cron, &s.Command); err != nil {
			return nil, fmt.Errorf("cannot scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot read subscriptions: %w", err)
	}
	return subs, nil
}
