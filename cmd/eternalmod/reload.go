package main

import (
	"log"
	"sync"
	"time"

	"github.com/you/eternalmod/internal/cache"
	"github.com/you/eternalmod/internal/reconcile"
	"github.com/you/eternalmod/internal/settings"
)

type (
	cooldownSetter  interface{ SetCooldown(time.Duration) }
	policySetter    interface{ SetPolicy(cache.Policy) }
	scheduleSetter  interface{ SetSchedule(string) error }
	maxSetter       interface{ SetMaxDownload(int64) }
	heartbeatSetter interface{ SetHeartbeat(time.Duration) }
	footerSetter    interface{ SetFooter(string) }
)

// settingsApplier pushes runtime settings into the live components. Both the
// file watcher and the admin reload endpoint go through it.
type settingsApplier struct {
	path string

	gate      cooldownSetter
	cache     policySetter
	sweeper   scheduleSetter
	media     maxSetter
	heartbeat heartbeatSetter
	footer    footerSetter

	mu      sync.Mutex
	current settings.Settings
}

func (a *settingsApplier) Apply(s settings.Settings) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.gate != nil {
		a.gate.SetCooldown(s.Subscription.Cooldown)
	}
	if a.cache != nil {
		a.cache.SetPolicy(s.CachePolicy())
	}
	if a.sweeper != nil {
		if err := a.sweeper.SetSchedule(s.Cache.SweepCron); err != nil {
			log.Printf("eternalmod: settings: sweep schedule: %v", err)
		}
	}
	if a.media != nil {
		a.media.SetMaxDownload(s.MaxDownloadBytes())
	}
	if a.heartbeat != nil {
		a.heartbeat.SetHeartbeat(s.Stream.Heartbeat)
	}
	if a.footer != nil {
		footer := s.Texts.FooterHTML
		if footer == "" {
			footer = reconcile.DefaultFooter
		}
		a.footer.SetFooter(footer)
	}
	a.current = s
	log.Printf("eternalmod: settings applied: %s", s.Summary())
}

// ReloadSettings rereads the settings file. An invalid file leaves the
// running settings untouched.
func (a *settingsApplier) ReloadSettings() (string, error) {
	s, err := settings.Load(a.path)
	if err != nil {
		return "", err
	}
	a.Apply(s)
	return s.Summary(), nil
}

func (a *settingsApplier) Current() settings.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
