package ingesttrace

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync"
)

// Stage names a step an update passes through in the dispatcher.
type Stage string

const (
	StageReceived  Stage = "received"
	StageCached    Stage = "cached"
	StageRouted    Stage = "routed"
	StageNotified  Stage = "notified"
	StageRecovered Stage = "recovered"

	stageSkippedPrefix = "skipped_"
)

// StageSkipped creates a Stage for an update that was ignored for reason.
func StageSkipped(reason string) Stage {
	return Stage(stageSkippedPrefix + reason)
}

// UpdateTrace follows one Telegram update through the dispatcher.
type UpdateTrace struct {
	UpdateID int64
	ChatID   int64
	Kind     string
	TraceID  string

	mu       sync.Mutex
	counters map[Stage]int64
}

// New seeds a trace for an update with the received counter set.
func New(updateID, chatID int64, kind string) *UpdateTrace {
	trace := &UpdateTrace{
		UpdateID: updateID,
		ChatID:   chatID,
		Kind:     kind,
		TraceID:  computeTraceID(updateID, chatID, kind),
		counters: make(map[Stage]int64),
	}
	trace.counters[StageReceived] = 1
	return trace
}

// Inc increments the counter for stage and returns the new value.
func (t *UpdateTrace) Inc(stage Stage) int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters[stage]++
	return t.counters[stage]
}

// Count returns the counter for stage.
func (t *UpdateTrace) Count(stage Stage) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters[stage]
}

// Log writes the trace and its counters at debug level.
func (t *UpdateTrace) Log(logger *slog.Logger, msg string) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug(msg,
		"trace_id", t.TraceID,
		"update_id", t.UpdateID,
		"chat", t.ChatID,
		"kind", t.Kind,
		"counters", t.snapshotCounters(),
	)
}

func (t *UpdateTrace) snapshotCounters() map[Stage]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[Stage]int64, len(t.counters))
	for stage, count := range t.counters {
		out[stage] = count
	}
	return out
}

func computeTraceID(updateID, chatID int64, kind string) string {
	digest := sha256.Sum256([]byte(strconv.FormatInt(updateID, 10) + "\x1f" + strconv.FormatInt(chatID, 10) + "\x1f" + kind))
	return hex.EncodeToString(digest[:8])
}
