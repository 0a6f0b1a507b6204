package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Bot     BotConfig
	Storage StorageConfig
	HTTP    HTTPConfig
}

type BotConfig struct {
	Token      string
	OwnerID    int64
	Channel    string
	ChannelURL string
	WebAppURL  string
	APIBase    string
	// PollTimeout is the getUpdates long-poll window.
	PollTimeout time.Duration
	ImageDir    string
}

type StorageConfig struct {
	DBPath       string
	RegistryPath string
	SettingsPath string
	// SQLiteTuning applies the synchronous/mmap pragma set after open.
	SQLiteTuning bool
}

type HTTPConfig struct {
	Port        int
	WebAppDir   string
	CORSOrigins []string
	RateRPS     int
	RateBurst   int
	Metrics     bool
	AccessLog   bool
	Pprof       bool
	AdminToken  string
}

// PlaceholderToken is the value shipped in sample configs.
const PlaceholderToken = "PASTE_YOUR_TOKEN_HERE"

const (
	defaultChannel      = "@qqgram_news"
	defaultChannelURL   = "https://t.me/qqgram_news"
	defaultAPIBase      = "https://api.telegram.org"
	defaultPollSecs     = 30
	defaultDBPath       = "events.db"
	defaultRegistryPath = "business_connections.json"
	defaultSettingsPath = "settings.yaml"
	defaultPort         = 8080
	defaultWebAppDir    = "webapp"
	defaultImageDir     = "img"
	defaultRateRPS      = 20
	defaultRateBurst    = 40
	minTokenLength      = 40
)

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	cfg := Config{}

	cfg.Bot.Token = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	cfg.Bot.OwnerID = readInt64("OWNER_ID", 0)
	cfg.Bot.Channel = readString("REQUIRED_CHANNEL", defaultChannel)
	cfg.Bot.ChannelURL = readString("REQUIRED_CHANNEL_URL", defaultChannelURL)
	cfg.Bot.WebAppURL = strings.TrimSpace(os.Getenv("WEBAPP_URL"))
	cfg.Bot.APIBase = strings.TrimRight(readString("EM_API_BASE", defaultAPIBase), "/")
	cfg.Bot.PollTimeout = time.Duration(readInt("EM_POLL_TIMEOUT_SECS", defaultPollSecs)) * time.Second
	cfg.Bot.ImageDir = readString("EM_IMAGE_DIR", defaultImageDir)

	cfg.Storage.DBPath = readString("DB_PATH", defaultDBPath)
	cfg.Storage.RegistryPath = readString("EM_REGISTRY_PATH", defaultRegistryPath)
	cfg.Storage.SettingsPath = readString("EM_SETTINGS_PATH", defaultSettingsPath)
	cfg.Storage.SQLiteTuning = readBool("EM_SQLITE_TUNING", false)

	cfg.HTTP.Port = readInt("PORT", defaultPort)
	cfg.HTTP.WebAppDir = readString("EM_WEBAPP_DIR", defaultWebAppDir)
	cfg.HTTP.CORSOrigins = SplitList(os.Getenv("EM_HTTP_CORS_ORIGINS"))
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"*"}
	}
	cfg.HTTP.RateRPS = readInt("EM_HTTP_RATE_RPS", defaultRateRPS)
	cfg.HTTP.RateBurst = readInt("EM_HTTP_RATE_BURST", defaultRateBurst)
	cfg.HTTP.Metrics = readBool("EM_HTTP_METRICS", true)
	cfg.HTTP.AccessLog = readBool("EM_HTTP_ACCESS_LOG", false)
	cfg.HTTP.Pprof = readBool("EM_HTTP_PPROF", false)
	cfg.HTTP.AdminToken = strings.TrimSpace(os.Getenv("EM_ADMIN_TOKEN"))

	return cfg
}

// Addr is the listen address; the server binds every interface.
func (c Config) Addr() string {
	return "0.0.0.0:" + strconv.Itoa(c.HTTP.Port)
}

// Validate returns the problems that make the bot unable to start.
func (c Config) Validate() error {
	var problems []string
	if c.Bot.Token == "" || c.Bot.Token == PlaceholderToken || c.Bot.Token == "YOUR_BOT_TOKEN_HERE" {
		problems = append(problems, "BOT_TOKEN is not set")
	}
	if c.Bot.OwnerID <= 0 {
		problems = append(problems, "OWNER_ID must be a positive user id")
	}
	if c.Bot.WebAppURL != "" && !hasHTTPScheme(c.Bot.WebAppURL) {
		problems = append(problems, "WEBAPP_URL must start with http:// or https://")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		problems = append(problems, "PORT must be between 1 and 65535")
	}
	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Warnings lists settings that work but are probably not what the operator
// wants.
func (c Config) Warnings() []string {
	var out []string
	if c.Bot.Token != "" && len(c.Bot.Token) < minTokenLength {
		out = append(out, "BOT_TOKEN looks too short")
	}
	if c.Bot.Channel == "" {
		out = append(out, "REQUIRED_CHANNEL is empty; every subscription check will fail")
	}
	if c.Bot.WebAppURL == "" {
		out = append(out, "WEBAPP_URL is not set; the dashboard button is hidden")
	}
	if info, err := os.Stat(c.HTTP.WebAppDir); err != nil || !info.IsDir() {
		out = append(out, fmt.Sprintf("%s not found; serving the bundled dashboard", c.HTTP.WebAppDir))
	} else if _, err := os.Stat(filepath.Join(c.HTTP.WebAppDir, "index.html")); err != nil {
		out = append(out, fmt.Sprintf("%s/index.html not found; the dashboard will 404", c.HTTP.WebAppDir))
	}
	if c.HTTP.AdminToken == "" {
		out = append(out, "EM_ADMIN_TOKEN is not set; settings reload over HTTP is disabled")
	}
	return out
}

func hasHTTPScheme(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

func SplitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\n':
			return true
		}
		return false
	})
	return dedupe(parts)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(v))
	}
	sort.Strings(out)
	return out
}

func readString(name, def string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	return raw
}

func readInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

func readInt64(name string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func readBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

type Summary struct {
	OwnerID      int64    `json:"owner_id"`
	Token        string   `json:"token"`
	Channel      string   `json:"channel"`
	WebApp       bool     `json:"webapp"`
	DBPath       string   `json:"db_path"`
	RegistryPath string   `json:"registry_path"`
	SettingsPath string   `json:"settings_path"`
	Addr         string   `json:"addr"`
	CORSOrigins  []string `json:"cors_origins"`
	Metrics      bool     `json:"metrics"`
	Admin        bool     `json:"admin"`
}

func (c Config) Summary() Summary {
	return Summary{
		OwnerID:      c.Bot.OwnerID,
		Token:        redactString(c.Bot.Token),
		Channel:      c.Bot.Channel,
		WebApp:       c.Bot.WebAppURL != "",
		DBPath:       c.Storage.DBPath,
		RegistryPath: c.Storage.RegistryPath,
		SettingsPath: c.Storage.SettingsPath,
		Addr:         c.Addr(),
		CORSOrigins:  append([]string(nil), c.HTTP.CORSOrigins...),
		Metrics:      c.HTTP.Metrics,
		Admin:        c.HTTP.AdminToken != "",
	}
}

func (c Config) SummaryJSON() []byte {
	summary := struct {
		Config Summary `json:"config_summary"`
	}{Config: c.Summary()}
	data, _ := json.Marshal(summary)
	return data
}

func (c Config) Redacted() map[string]any {
	return map[string]any{
		"bot": map[string]any{
			"token":        redactString(c.Bot.Token),
			"owner_id":     c.Bot.OwnerID,
			"channel":      c.Bot.Channel,
			"channel_url":  c.Bot.ChannelURL,
			"webapp_url":   c.Bot.WebAppURL,
			"api_base":     c.Bot.APIBase,
			"poll_timeout": c.Bot.PollTimeout.String(),
			"image_dir":    c.Bot.ImageDir,
		},
		"storage": map[string]any{
			"db_path":       c.Storage.DBPath,
			"registry_path": c.Storage.RegistryPath,
			"settings_path": c.Storage.SettingsPath,
			"sqlite_tuning": c.Storage.SQLiteTuning,
		},
		"http": map[string]any{
			"addr":         c.Addr(),
			"webapp_dir":   c.HTTP.WebAppDir,
			"cors_origins": append([]string(nil), c.HTTP.CORSOrigins...),
			"rate_rps":     c.HTTP.RateRPS,
			"rate_burst":   c.HTTP.RateBurst,
			"metrics":      c.HTTP.Metrics,
			"access_log":   c.HTTP.AccessLog,
			"pprof":        c.HTTP.Pprof,
			"admin_token":  redactString(c.HTTP.AdminToken),
		},
	}
}

func (c Config) RedactedJSON() []byte {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return data
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "***REDACTED*** (len=" + strconv.Itoa(len(value)) + ")"
}
