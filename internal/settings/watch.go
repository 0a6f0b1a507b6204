package settings

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watch reloads path on change and hands every valid result to apply. Invalid
// files are logged and the previous settings stay in force. Watch returns
// once the watcher is running; it stops when ctx is cancelled.
func Watch(ctx context.Context, path string, apply func(Settings)) error {
	if path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		slog.Error("settings: watch add", "path", path, "err", err)
		w.Close()
		return nil
	}

	go func() {
		defer w.Close()
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case <-ctx.Done():
				debounce.Stop()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := w.Add(ev.Name); err != nil {
						slog.Error("settings: watch re-add", "path", ev.Name, "err", err)
					}
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(watchDebounce)
				}
			case <-debounce.C:
				s, err := Load(path)
				if err != nil {
					slog.Error("settings: reload failed", "path", path, "err", err)
					continue
				}
				slog.Info("settings: reloaded", "path", path, "summary", s.Summary())
				apply(s)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("settings: watch error", "err", err)
			}
		}
	}()
	return nil
}
