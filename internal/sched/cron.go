// Package sched fires saved commands on cron schedules: static tasks
// from a YAML file plus per-user subscriptions, both re-injected
// through the cron dispatcher pool once a minute.
package sched

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard 5-field expressions (minute, hour, dom,
// month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron reports whether expr is a parseable 5-field expression.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// dueAt reports whether expr fires in the minute containing now.
func dueAt(expr string, now time.Time) bool {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return false
	}
	minute := now.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute)
}
