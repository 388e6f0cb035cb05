package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_MissingDataDir(t *testing.T) {
	cfg := Defaults()
	cfg.General.DataDir = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty dataDir")
	}
}

func TestValidate_MaxIterate_OutOfRange(t *testing.T) {
	cfg := Defaults()
	cfg.General.MaxIterate = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxIterate=-1")
	}

	cfg = Defaults()
	cfg.General.MaxIterate = 9999
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxIterate=9999")
	}
}

func TestValidate_StoreDrivers(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Driver = "unknown"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown store driver")
	}

	cfg = Defaults()
	cfg.Store.Driver = "file"
	cfg.Store.Path = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for file driver without a path")
	}

	cfg = Defaults()
	cfg.Store.Driver = "redis"
	cfg.Store.RedisAddr = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for redis driver without an address")
	}

	cfg = Defaults()
	cfg.Store.Driver = "memory"
	cfg.Store.Path = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("memory driver needs no path: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Webhook.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg.Channels.Webhook.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_EnabledChannelsNeedTokens(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled telegram without token")
	}

	cfg = Defaults()
	cfg.Channels.Discord.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled discord without token")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.General.DataDir = dir
	original.Store.Driver = "memory"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.General.DataDir != dir {
		t.Fatalf("expected %q, got %q", dir, loaded.General.DataDir)
	}
	if loaded.Store.Driver != "memory" {
		t.Fatalf("expected memory driver, got %q", loaded.Store.Driver)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.Store.Driver = "unknown"
	data, _ := json.Marshal(cfg)
	os.WriteFile(path, data, 0o644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error on load")
	}
}

// --- Sanitize ---

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Token = "123456789:ABCdefGHIjklMNOpqrSTUvwxyz"
	cfg.Channels.Discord.Token = "discord-token-12345678"

	sanitized := Sanitize(cfg)

	if sanitized.Channels.Telegram.Token == cfg.Channels.Telegram.Token {
		t.Fatal("telegram token should be masked")
	}
	if sanitized.Channels.Discord.Token == cfg.Channels.Discord.Token {
		t.Fatal("discord token should be masked")
	}
	// Verify original is untouched
	if cfg.Channels.Telegram.Token != "123456789:ABCdefGHIjklMNOpqrSTUvwxyz" {
		t.Fatal("original config should not be modified")
	}
}

func TestSanitize_ShortSecret(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Token = "short"
	sanitized := Sanitize(cfg)
	if sanitized.Channels.Telegram.Token != "***" {
		t.Fatalf("short secret should be '***', got %q", sanitized.Channels.Telegram.Token)
	}
}

// --- FlexStringList ---

func TestFlexStringList_MixedTypes(t *testing.T) {
	var f FlexStringList
	if err := json.Unmarshal([]byte(`["123", 456, "789"]`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"123", "456", "789"}
	if len(f) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(f))
	}
	for i := range want {
		if f[i] != want[i] {
			t.Fatalf("entry %d: expected %q, got %q", i, want[i], f[i])
		}
	}
}

func TestFlexStringList_PureStrings(t *testing.T) {
	var f FlexStringList
	if err := json.Unmarshal([]byte(`["a", "b"]`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(f) != 2 || f[0] != "a" || f[1] != "b" {
		t.Fatalf("unexpected result: %v", f)
	}
}

func TestFlexStringList_InvalidJSON(t *testing.T) {
	var f FlexStringList
	if err := json.Unmarshal([]byte(`"not an array"`), &f); err == nil {
		t.Fatal("expected error for non-array JSON")
	}
}

// --- Env var expansion ---

func TestExpandEnvVars_SimpleSubstitution(t *testing.T) {
	t.Setenv("MB_TEST_TOKEN", "secret123")
	got := ExpandEnvVars(`{"token": "${MB_TEST_TOKEN}"}`)
	want := `{"token": "secret123"}`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExpandEnvVars_DefaultValue(t *testing.T) {
	os.Unsetenv("MB_TEST_UNSET")
	got := ExpandEnvVars(`${MB_TEST_UNSET:-fallback}`)
	if got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestExpandEnvVars_SetVarOverridesDefault(t *testing.T) {
	t.Setenv("MB_TEST_SET", "actual")
	got := ExpandEnvVars(`${MB_TEST_SET:-fallback}`)
	if got != "actual" {
		t.Fatalf("expected actual, got %q", got)
	}
}

func TestExpandEnvVars_UnsetVarNoDefault_KeepsOriginal(t *testing.T) {
	os.Unsetenv("MB_TEST_MISSING")
	input := `${MB_TEST_MISSING}`
	if got := ExpandEnvVars(input); got != input {
		t.Fatalf("expected original %q, got %q", input, got)
	}
}

func TestExpandEnvVars_EmptyVarUsesDefault(t *testing.T) {
	t.Setenv("MB_TEST_EMPTY", "")
	got := ExpandEnvVars(`${MB_TEST_EMPTY:-fallback}`)
	if got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestExpandEnvVars_DollarSignWithoutBraces(t *testing.T) {
	input := `cost is $5 and $HOME stays`
	if got := ExpandEnvVars(input); got != input {
		t.Fatalf("expected original %q, got %q", input, got)
	}
}

func TestLoad_WithEnvVarSubstitution(t *testing.T) {
	t.Setenv("MB_TEST_TG_TOKEN", "tok-from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	doc := `{
  "general": {"dataDir": "` + dir + `"},
  "store": {"driver": "memory"},
  "channels": {
    "telegram": {"enabled": true, "token": "${MB_TEST_TG_TOKEN}", "allowFrom": []}
  }
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Channels.Telegram.Token != "tok-from-env" {
		t.Fatalf("expected substituted token, got %q", cfg.Channels.Telegram.Token)
	}
}

func TestDefaults_ReturnsValidConfig(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}
