// Package settings holds the runtime knobs that can change without a restart.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/you/eternalmod/internal/cache"
	"github.com/you/eternalmod/internal/gate"
	"github.com/you/eternalmod/internal/httpapi"
	"github.com/you/eternalmod/internal/media"
)

type Settings struct {
	Subscription Subscription `yaml:"subscription"`
	Cache        Cache        `yaml:"cache"`
	Media        Media        `yaml:"media"`
	Stream       Stream       `yaml:"stream"`
	Texts        Texts        `yaml:"texts"`
}

type Subscription struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

type Cache struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	SweepCron  string        `yaml:"sweep_cron"`
}

type Media struct {
	// MaxDownload is a human size such as "50 MB".
	MaxDownload string `yaml:"max_download"`
}

type Stream struct {
	Heartbeat time.Duration `yaml:"heartbeat"`
}

type Texts struct {
	// FooterHTML is appended to edit and delete notifications.
	FooterHTML string `yaml:"footer_html"`
}

// Default returns the settings used when no file exists.
func Default() Settings {
	var s Settings
	s.fillDefaults()
	return s
}

func (s *Settings) fillDefaults() {
	if s.Subscription.Cooldown <= 0 {
		s.Subscription.Cooldown = gate.DefaultCooldown
	}
	if s.Cache.TTL <= 0 {
		s.Cache.TTL = cache.DefaultTTL
	}
	if s.Cache.MaxEntries <= 0 {
		s.Cache.MaxEntries = cache.DefaultMaxEntries
	}
	if strings.TrimSpace(s.Cache.SweepCron) == "" {
		s.Cache.SweepCron = cache.DefaultSweepCron
	}
	if strings.TrimSpace(s.Media.MaxDownload) == "" {
		s.Media.MaxDownload = media.DefaultMaxDownload
	}
	if s.Stream.Heartbeat <= 0 {
		s.Stream.Heartbeat = httpapi.DefaultHeartbeat
	}
}

// Validate rejects values that the components would refuse.
func (s Settings) Validate() error {
	var problems []string
	if !gronx.IsValid(s.Cache.SweepCron) {
		problems = append(problems, fmt.Sprintf("cache.sweep_cron %q is not a valid cron expression", s.Cache.SweepCron))
	}
	if _, err := media.ParseMaxDownload(s.Media.MaxDownload); err != nil {
		problems = append(problems, err.Error())
	}
	if s.Stream.Heartbeat < time.Second {
		problems = append(problems, "stream.heartbeat must be at least 1s")
	}
	if len(problems) > 0 {
		return errors.New("settings: " + strings.Join(problems, "; "))
	}
	return nil
}

// MaxDownloadBytes returns the parsed media cap. Call after Validate.
func (s Settings) MaxDownloadBytes() int64 {
	n, err := media.ParseMaxDownload(s.Media.MaxDownload)
	if err != nil {
		return 0
	}
	return n
}

// CachePolicy converts the cache section.
func (s Settings) CachePolicy() cache.Policy {
	return cache.Policy{TTL: s.Cache.TTL, MaxEntries: s.Cache.MaxEntries}
}

// Summary is a one-line description for logs and the admin endpoint.
func (s Settings) Summary() string {
	footer := "none"
	if s.Texts.FooterHTML != "" {
		footer = fmt.Sprintf("%d chars", len(s.Texts.FooterHTML))
	}
	return fmt.Sprintf("cooldown=%s cache_ttl=%s cache_max=%s sweep=%q max_download=%s heartbeat=%s footer=%s",
		s.Subscription.Cooldown,
		s.Cache.TTL,
		humanize.Comma(int64(s.Cache.MaxEntries)),
		s.Cache.SweepCron,
		humanize.Bytes(uint64(s.MaxDownloadBytes())),
		s.Stream.Heartbeat,
		footer,
	)
}

// Parse decodes YAML, rejecting unknown keys, then fills defaults and
// validates. An empty document yields the defaults.
func Parse(data []byte) (Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("settings: decode: %w", err)
	}
	s.fillDefaults()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Load reads path. A missing file is not an error and yields the defaults.
func Load(path string) (Settings, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings: read %s: %w", path, err)
	}
	return Parse(data)
}
