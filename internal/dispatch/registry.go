// Package dispatch arbitrates every inbound request: it selects or
// continues the session that should handle it, drives the session's
// lifecycle, bounds re-injected follow-up requests and isolates
// session crashes.
package dispatch

import (
	"strings"

	"multibot/internal/session"
	"multibot/internal/store"
)

// Constructor builds a fresh session owned by userID.
type Constructor func(userID string) session.Session

// Entry is one registered session type. Name doubles as the history
// tag and the persistence type key.
type Entry struct {
	Name string
	New  Constructor
}

// Registry holds the two ordered candidate pools. Declaration order is
// the tie-break for equal dispatch scores, so order matters.
type Registry struct {
	Interactive []Entry
	Cron        []Entry

	// LogDir is where a restored crash-report session writes an
	// accepted report. It mirrors the dispatcher's LogDir so the
	// opt-in prompt survives a store round-trip.
	LogDir string
}

// HelpText aggregates the per-session help blocks of the interactive
// pool into one user-facing document.
func (r *Registry) HelpText() string {
	var blocks []string
	for _, e := range r.Interactive {
		if text := e.New("").Help(); text != "" {
			blocks = append(blocks, text)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// Codec builds a session codec covering both pools, so any session the
// dispatcher can create can also be persisted and restored.
func (r *Registry) Codec() *store.Codec {
	codec := store.NewCodec()
	for _, e := range append(append([]Entry{}, r.Interactive...), r.Cron...) {
		codec.Register(e.Name, store.Factory(e.New))
	}
	// The crash-report session is spawned by the dispatcher, not
	// declared in a pool; register it so a pending opt-in prompt is
	// not dropped on save.
	codec.Register(session.LogType, func(userID string) session.Session {
		return session.NewLog(userID, nil, "", r.LogDir)
	})
	return codec
}
