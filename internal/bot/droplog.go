package bot

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const skipSummaryInterval = 30 * time.Second

type skipReasonSummary struct {
	total      int
	byKind     map[string]int
	chatByKind map[string]int64
}

// skipLogger aggregates skipped updates and emits one summary line per reason
// every interval instead of a line per update.
type skipLogger struct {
	verbose  bool
	interval time.Duration

	mu       sync.Mutex
	nextEmit time.Time
	reasons  map[string]*skipReasonSummary
}

func newSkipLogger(now time.Time, verbose bool, interval time.Duration) *skipLogger {
	if interval <= 0 {
		interval = skipSummaryInterval
	}
	return &skipLogger{
		verbose:  verbose,
		interval: interval,
		nextEmit: now.Add(interval),
		reasons:  make(map[string]*skipReasonSummary),
	}
}

func (d *skipLogger) note(now time.Time, reason, kind string, chatID int64) {
	if d == nil {
		return
	}
	if d.verbose {
		slog.Debug("bot: skipped update", "reason", reason, "kind", kind, "chat", chatID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry := d.reasons[reason]
	if entry == nil {
		entry = &skipReasonSummary{
			byKind:     make(map[string]int),
			chatByKind: make(map[string]int64),
		}
		d.reasons[reason] = entry
	}
	entry.total++
	entry.byKind[kind]++
	if _, ok := entry.chatByKind[kind]; !ok {
		entry.chatByKind[kind] = chatID
	}

	if !now.Before(d.nextEmit) {
		d.flushLocked(now)
	}
}

func (d *skipLogger) flush(now time.Time) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.flushLocked(now)
	d.mu.Unlock()
}

func (d *skipLogger) flushLocked(now time.Time) {
	for _, reason := range sortedKeys(d.reasons) {
		rs := d.reasons[reason]
		if rs.total == 0 {
			continue
		}
		slog.Info("bot: skipped_"+reason,
			"total", rs.total,
			"kinds", formatKindCounts(rs.byKind),
			"sample_chats", formatKindChats(rs.chatByKind),
		)
	}
	clear(d.reasons)
	d.nextEmit = now.Add(d.interval)
}

func formatKindCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(counts))
	for _, kind := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s:%d", kind, counts[kind]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func formatKindChats(chats map[string]int64) string {
	if len(chats) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(chats))
	for _, kind := range sortedKeys(chats) {
		parts = append(parts, fmt.Sprintf("%s:%d", kind, chats[kind]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
