package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"multibot/internal/channel"
	"multibot/internal/config"
	"multibot/internal/db"
	"multibot/internal/dispatch"
	"multibot/internal/history"
	"multibot/internal/perm"
	"multibot/internal/sched"
	"multibot/internal/session"
	"multibot/internal/store"

	"github.com/redis/go-redis/v9"
)

// app bundles the long-lived collaborators every dispatcher built
// during this process shares: the database-backed stores, the session
// registry and the active-session store driver.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB

	perms    *perm.Store
	history  *history.Recorder
	subs     *sched.Repo
	tasks    []sched.Task
	registry *dispatch.Registry
	store    store.Store
	logDir   string
}

func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.General.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create data directory: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.General.DataDir, "multibot.db"))
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	rt := &app{
		cfg:    cfg,
		logger: logger,
		db:     database,
		logDir: filepath.Join(cfg.General.DataDir, "logs"),
	}

	if rt.perms, err = perm.NewStore(database, logger); err != nil {
		database.Close()
		return nil, err
	}
	if rt.history, err = history.NewRecorder(database, logger); err != nil {
		database.Close()
		return nil, err
	}
	if rt.subs, err = sched.NewRepo(database, logger); err != nil {
		database.Close()
		return nil, err
	}
	if cfg.Cron.Enabled {
		if rt.tasks, err = sched.LoadTasks(cfg.Cron.TasksFile, logger); err != nil {
			database.Close()
			return nil, fmt.Errorf("cannot load scheduled tasks: %w", err)
		}
	}

	rt.registry = buildRegistry(rt)

	if rt.store, err = buildStore(cfg, rt.registry, logger); err != nil {
		database.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *app) Close() {
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("cannot close database", "error", err)
	}
}

// buildRegistry declares the session pools. Declaration order is the
// dispatch tie-break, so the catch-all standby goes last.
func buildRegistry(rt *app) *dispatch.Registry {
	reg := &dispatch.Registry{LogDir: rt.logDir}
	reg.Interactive = []dispatch.Entry{
		{Name: "intro", New: func(u string) session.Session { return session.NewIntro(u) }},
		{Name: "identity", New: func(u string) session.Session { return session.NewIdentity(u) }},
		{Name: "repeat", New: func(u string) session.Session { return session.NewRepeat(u) }},
		{Name: "version", New: func(u string) session.Session { return session.NewVersion(u, version) }},
		{Name: "help", New: func(u string) session.Session { return session.NewHelp(u, reg.HelpText) }},
		{Name: "history", New: func(u string) session.Session { return session.NewHistory(u, rt.history.Counts) }},
		{Name: "grant", New: func(u string) session.Session { return session.NewPermAdd(u, rt.perms) }},
		{Name: "revoke", New: func(u string) session.Session { return session.NewPermDel(u, rt.perms) }},
		{Name: "subscribe", New: func(u string) session.Session { return sched.NewAddSubscription(u, rt.subs) }},
		{Name: "unsubscribe", New: func(u string) session.Session { return sched.NewDelSubscription(u, rt.subs) }},
		{Name: "subscriptions", New: func(u string) session.Session { return sched.NewListSubscriptions(u, rt.subs) }},
		{Name: "fault", New: func(u string) session.Session { return session.NewFault(u) }},
		{Name: "standby", New: func(u string) session.Session { return session.NewStandby(u) }},
	}

	// The cron pool answers the minute tick plus the commands that
	// scheduled subscriptions replay. The standby chatter stays out:
	// an unmatched scheduled command should fall through silently.
	reg.Cron = []dispatch.Entry{
		{Name: "schedule", New: func(u string) session.Session { return sched.NewScheduleSession(u, rt.subs, rt.tasks) }},
	}
	for _, e := range reg.Interactive {
		if e.Name == "standby" {
			continue
		}
		reg.Cron = append(reg.Cron, e)
	}
	return reg
}

func buildStore(cfg *config.Config, reg *dispatch.Registry, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return nil, fmt.Errorf("cannot create session store directory: %w", err)
		}
		return store.NewFile(cfg.Store.Path, reg.Codec(), logger), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		ttl := time.Duration(cfg.Store.RedisTTLHours) * time.Hour
		return store.NewRedis(client, reg.Codec(), cfg.Store.RedisKey, ttl), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// factory builds one interactive dispatcher per inbound event.
func (rt *app) factory() channel.Factory {
	return func() (*dispatch.Dispatcher, error) {
		return dispatch.New(dispatch.Config{
			Registry: rt.registry,
			Store:    rt.store,
			Perms:    rt.perms,
			History:  rt.history,
			Logger:   rt.logger,
			Budget:   rt.cfg.General.MaxIterate,
			Debug:    rt.cfg.General.Debug,
			LogDir:   rt.logDir,
		})
	}
}

// cronFactory builds one scheduler dispatcher per minute tick.
func (rt *app) cronFactory() sched.Factory {
	return func() (sched.Handler, error) {
		return dispatch.NewCron(dispatch.Config{
			Registry: rt.registry,
			Perms:    rt.perms,
			History:  rt.history,
			Logger:   rt.logger,
			Budget:   rt.cfg.General.MaxIterateCron,
			Debug:    rt.cfg.General.Debug,
			LogDir:   rt.logDir,
		})
	}
}
