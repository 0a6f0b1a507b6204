package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/you/eternalmod/internal/core"
)

const (
	DefaultTTL        = 72 * time.Hour
	DefaultMaxEntries = 200000
)

// Policy bounds how long and how many snapshots are retained.
type Policy struct {
	TTL        time.Duration
	MaxEntries int
}

func (p Policy) normalized() Policy {
	if p.TTL <= 0 {
		p.TTL = DefaultTTL
	}
	if p.MaxEntries <= 0 {
		p.MaxEntries = DefaultMaxEntries
	}
	return p
}

// Cache keeps the most recent snapshot for every observed message. Entries are
// ordered by the time they were last written so the oldest can be evicted
// first.
type Cache struct {
	mu      sync.RWMutex
	policy  Policy
	entries map[core.Key]*list.Element
	order   *list.List
	now     func() time.Time
}

func New(policy Policy) *Cache {
	return &Cache{
		policy:  policy.normalized(),
		entries: make(map[core.Key]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Remember stores snap, replacing any earlier snapshot for the same key.
func (c *Cache) Remember(snap core.Snapshot) {
	c.mu.Lock()
	snap.SeenAt = c.now()
	defer c.mu.Unlock()

	if el, ok := c.entries[snap.Key]; ok {
		el.Value = snap
		c.order.MoveToBack(el)
	} else {
		c.entries[snap.Key] = c.order.PushBack(snap)
	}
	for c.order.Len() > c.policy.MaxEntries {
		c.removeLocked(c.order.Front())
	}
}

// Lookup returns the last snapshot remembered for the message.
func (c *Cache) Lookup(chatID, messageID int64) (core.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	el, ok := c.entries[core.Key{ChatID: chatID, MessageID: messageID}]
	if !ok {
		return core.Snapshot{}, false
	}
	return el.Value.(core.Snapshot), true
}

// ConnectionFor returns the first business connection id recorded on any of
// the given cached messages.
func (c *Cache) ConnectionFor(chatID int64, messageIDs ...int64) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range messageIDs {
		el, ok := c.entries[core.Key{ChatID: chatID, MessageID: id}]
		if !ok {
			continue
		}
		if bc := el.Value.(core.Snapshot).BusinessConnectionID; bc != "" {
			return bc
		}
	}
	return ""
}

// Len reports the number of cached snapshots.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// SetPolicy replaces the retention policy. A smaller MaxEntries takes effect
// immediately; a shorter TTL on the next Sweep.
func (c *Cache) SetPolicy(policy Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = policy.normalized()
	for c.order.Len() > c.policy.MaxEntries {
		c.removeLocked(c.order.Front())
	}
}

// Sweep evicts snapshots older than the TTL and returns how many were removed.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-c.policy.TTL)
	removed := 0
	for el := c.order.Front(); el != nil; el = c.order.Front() {
		if !el.Value.(core.Snapshot).SeenAt.Before(cutoff) {
			break
		}
		c.removeLocked(el)
		removed++
	}
	return removed
}

func (c *Cache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	snap := c.order.Remove(el).(core.Snapshot)
	delete(c.entries, snap.Key)
}
