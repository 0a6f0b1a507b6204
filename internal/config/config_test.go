package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"BOT_TOKEN", "OWNER_ID", "REQUIRED_CHANNEL", "REQUIRED_CHANNEL_URL", "WEBAPP_URL",
	"DB_PATH", "PORT", "EM_API_BASE", "EM_POLL_TIMEOUT_SECS", "EM_IMAGE_DIR",
	"EM_REGISTRY_PATH", "EM_SETTINGS_PATH", "EM_WEBAPP_DIR", "EM_HTTP_CORS_ORIGINS",
	"EM_HTTP_RATE_RPS", "EM_HTTP_RATE_BURST", "EM_HTTP_METRICS", "EM_HTTP_ACCESS_LOG",
	"EM_HTTP_PPROF", "EM_ADMIN_TOKEN", "EM_SQLITE_TUNING",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.Bot.Token != "" || cfg.Bot.OwnerID != 0 {
		t.Fatalf("expected no credentials by default, got %q/%d", cfg.Bot.Token, cfg.Bot.OwnerID)
	}
	if cfg.Bot.Channel != "@qqgram_news" || cfg.Bot.ChannelURL != "https://t.me/qqgram_news" {
		t.Fatalf("unexpected channel defaults: %q %q", cfg.Bot.Channel, cfg.Bot.ChannelURL)
	}
	if cfg.Storage.DBPath != "events.db" {
		t.Fatalf("unexpected db path: %q", cfg.Storage.DBPath)
	}
	if cfg.Storage.RegistryPath != "business_connections.json" {
		t.Fatalf("unexpected registry path: %q", cfg.Storage.RegistryPath)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr: %q", cfg.Addr())
	}
	if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "*" {
		t.Fatalf("expected wildcard cors by default, got %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Bot.PollTimeout != 30*time.Second {
		t.Fatalf("unexpected poll timeout: %s", cfg.Bot.PollTimeout)
	}
	if !cfg.HTTP.Metrics || cfg.HTTP.Pprof || cfg.HTTP.AccessLog {
		t.Fatalf("unexpected http toggles: %+v", cfg.HTTP)
	}
	if cfg.Bot.APIBase != "https://api.telegram.org" {
		t.Fatalf("unexpected api base: %q", cfg.Bot.APIBase)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("OWNER_ID", "777")
	t.Setenv("REQUIRED_CHANNEL", "@other")
	t.Setenv("WEBAPP_URL", "https://example.test/app")
	t.Setenv("DB_PATH", "/data/events.db")
	t.Setenv("PORT", "9090")
	t.Setenv("EM_API_BASE", "http://localhost:8081/")
	t.Setenv("EM_POLL_TIMEOUT_SECS", "5")
	t.Setenv("EM_HTTP_CORS_ORIGINS", "https://b.test, https://a.test;https://B.test")
	t.Setenv("EM_HTTP_RATE_RPS", "3")
	t.Setenv("EM_HTTP_METRICS", "false")
	t.Setenv("EM_HTTP_PPROF", "true")
	t.Setenv("EM_ADMIN_TOKEN", "s3cret")
	t.Setenv("EM_SQLITE_TUNING", "1")

	cfg := Load()
	if !cfg.Storage.SQLiteTuning {
		t.Fatalf("expected sqlite tuning enabled")
	}
	if cfg.Bot.Token != "123:abc" || cfg.Bot.OwnerID != 777 {
		t.Fatalf("unexpected credentials: %q/%d", cfg.Bot.Token, cfg.Bot.OwnerID)
	}
	if cfg.Bot.Channel != "@other" {
		t.Fatalf("unexpected channel: %q", cfg.Bot.Channel)
	}
	if cfg.Storage.DBPath != "/data/events.db" {
		t.Fatalf("unexpected db path: %q", cfg.Storage.DBPath)
	}
	if cfg.Addr() != "0.0.0.0:9090" {
		t.Fatalf("unexpected addr: %q", cfg.Addr())
	}
	if cfg.Bot.APIBase != "http://localhost:8081" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Bot.APIBase)
	}
	if cfg.Bot.PollTimeout != 5*time.Second {
		t.Fatalf("unexpected poll timeout: %s", cfg.Bot.PollTimeout)
	}
	want := []string{"https://a.test", "https://b.test"}
	if strings.Join(cfg.HTTP.CORSOrigins, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected cors origins: %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.HTTP.RateRPS != 3 || cfg.HTTP.RateBurst != 40 {
		t.Fatalf("unexpected rate limit: %d/%d", cfg.HTTP.RateRPS, cfg.HTTP.RateBurst)
	}
	if cfg.HTTP.Metrics || !cfg.HTTP.Pprof {
		t.Fatalf("unexpected toggles: %+v", cfg.HTTP)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("OWNER_ID", "me")
	t.Setenv("EM_HTTP_METRICS", "maybe")

	cfg := Load()
	if cfg.HTTP.Port != 8080 || cfg.Bot.OwnerID != 0 || !cfg.HTTP.Metrics {
		t.Fatalf("expected defaults for malformed values, got port=%d owner=%d metrics=%v",
			cfg.HTTP.Port, cfg.Bot.OwnerID, cfg.HTTP.Metrics)
	}
}

func TestValidate(t *testing.T) {
	good := Config{
		Bot:  BotConfig{Token: strings.Repeat("x", 46), OwnerID: 1},
		HTTP: HTTPConfig{Port: 8080},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(*Config){
		"empty token":       func(c *Config) { c.Bot.Token = "" },
		"placeholder token": func(c *Config) { c.Bot.Token = PlaceholderToken },
		"zero owner":        func(c *Config) { c.Bot.OwnerID = 0 },
		"webapp scheme":     func(c *Config) { c.Bot.WebAppURL = "example.test" },
		"port range":        func(c *Config) { c.HTTP.Port = 70000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := good
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Bot:  BotConfig{Token: "short", OwnerID: 1},
		HTTP: HTTPConfig{Port: 8080, WebAppDir: dir},
	}
	warnings := strings.Join(cfg.Warnings(), "\n")
	for _, want := range []string{"too short", "REQUIRED_CHANNEL", "WEBAPP_URL", "index.html", "EM_ADMIN_TOKEN"} {
		if !strings.Contains(warnings, want) {
			t.Fatalf("expected warning about %s, got:\n%s", want, warnings)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	cfg.Bot.Token = strings.Repeat("x", 46)
	cfg.Bot.Channel = "@c"
	cfg.Bot.WebAppURL = "https://example.test"
	cfg.HTTP.AdminToken = "t"
	if got := cfg.Warnings(); len(got) != 0 {
		t.Fatalf("expected no warnings, got %v", got)
	}

	cfg.HTTP.WebAppDir = filepath.Join(dir, "absent")
	warnings = strings.Join(cfg.Warnings(), "\n")
	if !strings.Contains(warnings, "bundled dashboard") {
		t.Fatalf("expected bundled dashboard notice, got:\n%s", warnings)
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("OWNER_ID", "5")
	// godotenv skips keys that exist even when empty
	os.Unsetenv("DB_PATH")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("OWNER_ID=9\nDB_PATH=/tmp/from-dotenv.db\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	cfg := Load()
	if cfg.Bot.OwnerID != 5 {
		t.Fatalf("expected existing OWNER_ID to win, got %d", cfg.Bot.OwnerID)
	}
	if cfg.Storage.DBPath != "/tmp/from-dotenv.db" {
		t.Fatalf("expected DB_PATH from dotenv, got %q", cfg.Storage.DBPath)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Config{
		Bot:  BotConfig{Token: "123:supersecret", OwnerID: 1},
		HTTP: HTTPConfig{Port: 8080, AdminToken: "admin-secret"},
	}
	for _, data := range [][]byte{cfg.RedactedJSON(), cfg.SummaryJSON()} {
		if strings.Contains(string(data), "supersecret") || strings.Contains(string(data), "admin-secret") {
			t.Fatalf("secret leaked: %s", data)
		}
	}

	var summary struct {
		Config Summary `json:"config_summary"`
	}
	if err := json.Unmarshal(cfg.SummaryJSON(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Config.OwnerID != 1 || !summary.Config.Admin {
		t.Fatalf("unexpected summary: %+v", summary.Config)
	}
}
