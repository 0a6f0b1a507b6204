package eventlog

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/you/eternalmod/internal/core"
	"github.com/you/eternalmod/internal/httpapi"
)

// MirrorCap is how many events per owner the in-memory mirror keeps.
const MirrorCap = 1000

// Store is the durable side of the log.
type Store interface {
	InsertEvent(ctx context.Context, ev core.Event) (int64, error)
	ListEvents(ctx context.Context, ownerID int64, filters httpapi.Filters) ([]core.Event, error)
}

// Publisher receives every recorded event for live delivery.
type Publisher interface {
	Publish(ownerID int64, ev core.Event)
}

// Metrics is optional instrumentation.
type Metrics interface {
	EventRecorded(typ string)
	DBError(op string)
}

// Log records dashboard events. A write is persisted, mirrored and published
// in that order; a storage failure degrades the first step only.
type Log struct {
	store   Store
	pub     Publisher
	metrics Metrics
	now     func() time.Time

	mu     sync.RWMutex
	mirror map[int64][]core.Event
}

func New(store Store, pub Publisher, metrics Metrics) *Log {
	return &Log{
		store:   store,
		pub:     pub,
		metrics: metrics,
		now:     time.Now,
		mirror:  make(map[int64][]core.Event),
	}
}

// Record appends an event for owner and returns it.
func (l *Log) Record(ctx context.Context, ownerID int64, typ core.EventType, author, content string, oldContent *string) core.Event {
	ev := core.Event{
		OwnerID:    ownerID,
		Type:       typ,
		Author:     author,
		Content:    content,
		OldContent: oldContent,
		Timestamp:  l.now().Unix(),
	}

	if l.store != nil {
		id, err := l.store.InsertEvent(ctx, ev)
		if err != nil {
			log.Printf("eventlog: persist %s for owner %d: %v", typ, ownerID, err)
			l.dbError("insert")
		} else {
			ev.ID = id
		}
	}

	l.mu.Lock()
	history := append(l.mirror[ownerID], ev)
	if len(history) > MirrorCap {
		history = append([]core.Event(nil), history[len(history)-MirrorCap:]...)
	}
	l.mirror[ownerID] = history
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.EventRecorded(string(typ))
	}
	if l.pub != nil {
		l.pub.Publish(ownerID, ev)
	}
	return ev
}

// Query returns owner's history newest first. When the store fails the
// mirror answers instead and degraded is true.
func (l *Log) Query(ctx context.Context, ownerID int64, filters httpapi.Filters) (events []core.Event, degraded bool) {
	if l.store != nil {
		events, err := l.store.ListEvents(ctx, ownerID, filters)
		if err == nil {
			return events, false
		}
		log.Printf("eventlog: query owner %d: %v; serving mirror", ownerID, err)
		l.dbError("query")
	}
	return l.fromMirror(ownerID, filters), true
}

// Recent returns the mirror for owner, newest first.
func (l *Log) Recent(ownerID int64) []core.Event {
	return l.fromMirror(ownerID, httpapi.Filters{Limit: MirrorCap})
}

func (l *Log) fromMirror(ownerID int64, filters httpapi.Filters) []core.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.mirror[ownerID]
	limit := filters.Limit
	if limit <= 0 {
		limit = filters.EffectiveLimit()
	}
	out := make([]core.Event, 0, min(limit, len(history)))
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		if filters.Matches(history[i]) {
			out = append(out, history[i])
		}
	}
	return out
}

func (l *Log) dbError(op string) {
	if l.metrics != nil {
		l.metrics.DBError(op)
	}
}
