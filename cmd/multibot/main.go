package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"multibot/internal/channel"
	"multibot/internal/config"
	"multibot/internal/message"
	"multibot/internal/sched"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "multibot",
		Short: "MultiBot: multi-platform chat bot gateway",
		Long:  "MultiBot routes chat messages from Telegram, Discord, webhooks and the terminal through one session-based plugin dispatcher.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.multibot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(serveCronCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(daemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file and rebuilds the process logger per
// its logging section.
func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cannot load config %s: %w", cfgPath, err)
	}
	logger = buildLogger(cfg)
	slog.SetDefault(logger)
	return cfg, nil
}

func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var out io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.General.LogFile, "error", err)
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(config.ExpandPath(cfg.General.DataDir), 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "data_dir", cfg.General.DataDir)
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start interactive chat in the terminal",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		logger.Warn("config not found, using defaults", "err", err)
		cfg = config.Defaults()
		cfg.General.DataDir = config.ExpandPath(cfg.General.DataDir)
		cfg.Store.Path = config.ExpandPath(cfg.Store.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	console := channel.NewConsole(channel.ConsoleConfig{
		Factory: rt.factory(),
		UserID:  cfg.Channels.Console.UserID,
		Logger:  logger,
	})
	return console.Run(ctx)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured channels and stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false, "err", err)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)
			logger.Info("store", "driver", cfg.Store.Driver)
			logger.Info("channel", "name", "console", "enabled", cfg.Channels.Console.Enabled)
			logger.Info("channel", "name", "webhook", "enabled", cfg.Channels.Webhook.Enabled)
			logger.Info("channel", "name", "telegram", "enabled", cfg.Channels.Telegram.Enabled)
			logger.Info("channel", "name", "discord", "enabled", cfg.Channels.Discord.Enabled)
			logger.Info("cron", "enabled", cfg.Cron.Enabled)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("cannot load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start gateway (all enabled channels + scheduler)",
		Long:  "Starts every enabled channel adapter and, when configured, the minute scheduler. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	started := 0

	var telegram *channel.Telegram
	if cfg.Channels.Telegram.Enabled {
		telegram = channel.NewTelegram(channel.TelegramAdapterConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			Factory:   rt.factory(),
			Logger:    logger,
		})
		go func() {
			if err := telegram.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("telegram adapter stopped", "error", err)
			}
		}()
		logger.Info("telegram adapter enabled")
		started++
	}

	if cfg.Channels.Discord.Enabled {
		discord := channel.NewDiscord(channel.DiscordAdapterConfig{
			Token:   cfg.Channels.Discord.Token,
			GuildID: cfg.Channels.Discord.GuildID,
			Factory: rt.factory(),
			Logger:  logger,
		})
		go func() {
			if err := discord.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("discord adapter stopped", "error", err)
			}
		}()
		logger.Info("discord adapter enabled")
		started++
	}

	if cfg.Channels.Webhook.Enabled {
		webhook := channel.NewWebhook(channel.WebhookConfig{
			Host:    cfg.Channels.Webhook.Host,
			Port:    cfg.Channels.Webhook.Port,
			Path:    cfg.Channels.Webhook.Path,
			Secret:  cfg.Channels.Webhook.Secret,
			Factory: rt.factory(),
			Logger:  logger,
		})
		go func() {
			if err := webhook.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("webhook adapter stopped", "error", err)
			}
		}()
		started++
	}

	if cfg.Cron.Enabled {
		scheduler := sched.NewScheduler(rt.cronFactory(), renderScheduled(telegram), logger)
		go func() {
			if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("scheduler stopped", "error", err)
			}
		}()
		started++
	}

	if started == 0 {
		return fmt.Errorf("nothing to run: enable at least one channel or the scheduler")
	}

	logger.Info("gateway started", "version", version)
	<-ctx.Done()
	logger.Info("gateway shutting down")
	return nil
}

func serveCronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-cron",
		Short: "Run only the minute scheduler",
		Long:  "Runs the subscription and task scheduler without any channel adapter. Due output goes to the log.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			scheduler := sched.NewScheduler(rt.cronFactory(), renderScheduled(nil), logger)
			err = scheduler.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

// renderScheduled delivers what a minute tick produced. Telegram is
// the only adapter with an outbound push path; without it the output
// only reaches the log.
func renderScheduled(telegram *channel.Telegram) func([]message.Response) {
	return func(responses []message.Response) {
		for _, resp := range responses {
			if telegram != nil {
				telegram.Push(resp)
				continue
			}
			logger.Info("scheduled output", "to", resp.Destination(), "text", channel.RenderText(resp))
		}
	}
}
