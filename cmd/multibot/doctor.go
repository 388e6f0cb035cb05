package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"multibot/internal/config"
	"multibot/internal/sched"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your MultiBot installation",
		Long: `Verifies that MultiBot's configuration, database, session store and
channels are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("MultiBot Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'multibot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\nResults: %d passed, %d failed\n", passed, failed+1)
				return fmt.Errorf("config invalid")
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Data directory exists
			if info, err := os.Stat(cfg.General.DataDir); err != nil {
				printWarn("Data directory", fmt.Sprintf("not found: %s (created on first run)", cfg.General.DataDir))
				warned++
			} else if !info.IsDir() {
				printFail("Data directory", fmt.Sprintf("not a directory: %s", cfg.General.DataDir))
				failed++
			} else {
				printPass("Data directory", cfg.General.DataDir)
				passed++
			}

			// 4. Database writable
			dbPath := filepath.Join(cfg.General.DataDir, "multibot.db")
			if err := checkDatabase(dbPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", dbPath)
				passed++
			}

			// 5. Session store
			switch cfg.Store.Driver {
			case "memory":
				printWarn("Session store", "memory driver: active sessions are lost on restart")
				warned++
			case "file":
				if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
					printFail("Session store", fmt.Sprintf("cannot create directory for %s: %v", cfg.Store.Path, err))
					failed++
				} else {
					printPass("Session store", cfg.Store.Path)
					passed++
				}
			case "redis":
				if err := checkRedis(cfg); err != nil {
					printFail("Session store", fmt.Sprintf("redis %s: %v", cfg.Store.RedisAddr, err))
					failed++
				} else {
					printPass("Session store", "redis "+cfg.Store.RedisAddr)
					passed++
				}
			}

			// 6. Channels
			channelCount := 0
			if cfg.Channels.Console.Enabled {
				channelCount++
				printPass("Channel: console", "enabled")
				passed++
			}
			if cfg.Channels.Webhook.Enabled {
				channelCount++
				if err := checkPort(cfg.Channels.Webhook.Port); err != nil {
					printWarn("Channel: webhook", fmt.Sprintf("port %d may be in use: %v", cfg.Channels.Webhook.Port, err))
					warned++
				} else {
					printPass("Channel: webhook", fmt.Sprintf(":%d available", cfg.Channels.Webhook.Port))
					passed++
				}
				if cfg.Channels.Webhook.Secret == "" {
					printWarn("Channel: webhook", "no secret set, requests are unauthenticated")
					warned++
				}
			}
			if cfg.Channels.Telegram.Enabled {
				channelCount++
				if len(cfg.Channels.Telegram.AllowFrom) == 0 {
					printWarn("Channel: telegram", "allowFrom empty, every sender is accepted")
					warned++
				} else {
					printPass("Channel: telegram", fmt.Sprintf("%d allowed senders", len(cfg.Channels.Telegram.AllowFrom)))
					passed++
				}
			}
			if cfg.Channels.Discord.Enabled {
				channelCount++
				printPass("Channel: discord", "configured")
				passed++
			}
			if channelCount == 0 {
				printFail("Channels", "no channels enabled")
				failed++
			}

			// 7. Scheduled task file parses
			if cfg.Cron.Enabled && cfg.Cron.TasksFile != "" {
				if tasks, err := sched.LoadTasks(cfg.Cron.TasksFile, logger); err != nil {
					printFail("Task file", err.Error())
					failed++
				} else {
					printPass("Task file", fmt.Sprintf("%d task(s)", len(tasks)))
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running MultiBot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nMultiBot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! MultiBot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkRedis(cfg *config.Config) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
