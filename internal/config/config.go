package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for MultiBot.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Store    StoreConfig    `json:"store"`
	Channels ChannelsConfig `json:"channels"`
	Cron     CronConfig     `json:"cron"`
}

type GeneralConfig struct {
	// DataDir holds the SQLite database and crash reports.
	DataDir  string `json:"dataDir"`
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"`

	// Debug enables the fault-reporting pipeline (tracebacks gated by
	// the debug permission entry).
	Debug bool `json:"debug"`

	// MaxIterate bounds re-injected requests per dispatch; zero keeps
	// the built-in defaults (10 interactive, 100 cron).
	MaxIterate     int `json:"maxIterate,omitempty"`
	MaxIterateCron int `json:"maxIterateCron,omitempty"`
}

// StoreConfig selects where the active-session set is persisted.
type StoreConfig struct {
	Driver string `json:"driver"` // "memory" | "file" | "redis"
	Path   string `json:"path,omitempty"`

	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword string `json:"redisPassword,omitempty"`
	RedisDB       int    `json:"redisDb,omitempty"`
	RedisKey      string `json:"redisKey,omitempty"`
	RedisTTLHours int    `json:"redisTtlHours,omitempty"`
}

type ChannelsConfig struct {
	Console  ConsoleConfig  `json:"console"`
	Webhook  WebhookConfig  `json:"webhook"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
}

type ConsoleConfig struct {
	Enabled bool `json:"enabled"`
	// UserID is the caller identity the console adapter stamps on
	// every request.
	UserID string `json:"userId,omitempty"`
}

type WebhookConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Path    string `json:"path,omitempty"`
	Secret  string `json:"secret,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	GuildID string `json:"guildId,omitempty"`
}

type CronConfig struct {
	Enabled   bool   `json:"enabled"`
	TasksFile string `json:"tasksFile,omitempty"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays
// containing both strings and numbers (chat ids are frequently pasted
// as bare numbers).
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.multibot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".multibot"
	}
	return filepath.Join(home, ".multibot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Store.Path = ExpandPath(cfg.Store.Path)
	cfg.Cron.TasksFile = ExpandPath(cfg.Cron.TasksFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is
// unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.DataDir == "" {
		errs = append(errs, "general.dataDir must be set")
	}
	if cfg.General.MaxIterate < 0 || cfg.General.MaxIterate > 1000 {
		errs = append(errs, "general.maxIterate must be between 0 and 1000")
	}
	if cfg.General.MaxIterateCron < 0 || cfg.General.MaxIterateCron > 10000 {
		errs = append(errs, "general.maxIterateCron must be between 0 and 10000")
	}

	switch cfg.Store.Driver {
	case "memory":
	case "file":
		if cfg.Store.Path == "" {
			errs = append(errs, "store.path is required for the file driver")
		}
	case "redis":
		if cfg.Store.RedisAddr == "" {
			errs = append(errs, "store.redisAddr is required for the redis driver")
		}
	default:
		errs = append(errs, "store.driver must be one of: memory, file, redis")
	}

	if cfg.Channels.Webhook.Port < 0 || cfg.Channels.Webhook.Port > 65535 {
		errs = append(errs, "channels.webhook.port must be between 0 and 65535")
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token == "" {
		errs = append(errs, "channels.discord.token is required when discord is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Sanitize returns a copy with secrets masked, for display in status
// output and logs.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Store.RedisPassword = maskSecret(cfg.Store.RedisPassword)
	out.Channels.Webhook.Secret = maskSecret(cfg.Channels.Webhook.Secret)
	out.Channels.Telegram.Token = maskSecret(cfg.Channels.Telegram.Token)
	out.Channels.Discord.Token = maskSecret(cfg.Channels.Discord.Token)
	return &out
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
