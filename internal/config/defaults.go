package config

// Defaults returns the baseline configuration: console chat on a
// file-backed session store, no network channels, cron off.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:  "~/.multibot/data",
			LogLevel: "info",
			Debug:    true,
		},
		Store: StoreConfig{
			Driver:        "file",
			Path:          "~/.multibot/data/sessions.json",
			RedisKey:      "multibot:sessions",
			RedisTTLHours: 24,
		},
		Channels: ChannelsConfig{
			Console: ConsoleConfig{
				Enabled: true,
				UserID:  "0",
			},
			Webhook: WebhookConfig{
				Enabled: false,
				Host:    "127.0.0.1",
				Port:    8080,
				Path:    "/webhook",
			},
			Telegram: TelegramConfig{
				Enabled: false,
			},
			Discord: DiscordConfig{
				Enabled: false,
			},
		},
		Cron: CronConfig{
			Enabled:   false,
			TasksFile: "~/.multibot/tasks.yaml",
		},
	}
}
