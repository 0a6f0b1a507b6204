package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownConnection is returned by Remove for ids not in the registry.
var ErrUnknownConnection = errors.New("registry: unknown business connection")

// Entry is where notifications for a business connection go and who owns it.
type Entry struct {
	ChatID  int64 `json:"chat_id"`
	OwnerID int64 `json:"owner_id"`
}

// Registry maps business connection ids to their notification chat and owner.
// Every mutation rewrites the whole file before returning.
type Registry struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry
}

// Open loads the registry stored at path. A missing file yields an empty
// registry; entries in the legacy bare-chat-id format are upgraded with an
// unknown owner.
func Open(path string) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path), entries: make(map[string]Entry)}
	if r.path == "" {
		return nil, errors.New("registry: path is empty")
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("registry: read %s: %w", r.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return r, nil
	}

	entries, legacy, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("registry: decode %s: %w", r.path, err)
	}
	r.entries = entries
	if legacy > 0 {
		log.Printf("registry: upgraded %d legacy connection(s) without owner", legacy)
	}
	return r, nil
}

func decode(data []byte) (map[string]Entry, int, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, err
	}

	out := make(map[string]Entry, len(raw))
	legacy := 0
	for id, value := range raw {
		var entry Entry
		if err := json.Unmarshal(value, &entry); err == nil {
			out[id] = entry
			continue
		}
		var chatID int64
		if err := json.Unmarshal(value, &chatID); err == nil {
			out[id] = Entry{ChatID: chatID}
			legacy++
			continue
		}
		log.Printf("registry: skipping unparsable entry %q", id)
	}
	return out, legacy, nil
}

// Upsert records or replaces a connection and persists the registry.
func (r *Registry) Upsert(id string, chatID, ownerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = Entry{ChatID: chatID, OwnerID: ownerID}
	return r.saveLocked()
}

// Remove drops a connection and persists the registry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return ErrUnknownConnection
	}
	delete(r.entries, id)
	return r.saveLocked()
}

// ChatFor returns the notification chat for a connection.
func (r *Registry) ChatFor(id string) (int64, bool) {
	if id == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok || entry.ChatID == 0 {
		return 0, false
	}
	return entry.ChatID, true
}

// OwnerFor returns the owner of a connection. Connections stored without an
// owner report false.
func (r *Registry) OwnerFor(id string) (int64, bool) {
	if id == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok || entry.OwnerID == 0 {
		return 0, false
	}
	return entry.OwnerID, true
}

// HasOwner reports whether userID owns at least one connection.
func (r *Registry) HasOwner(userID int64) bool {
	if userID == 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if entry.OwnerID == userID {
			return true
		}
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns the registered connection ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) saveLocked() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	if err := atomicWrite(r.path, data, 0o600); err != nil {
		return fmt.Errorf("registry: write %s: %w", r.path, err)
	}
	return nil
}

func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil && !os.IsExist(err) {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
