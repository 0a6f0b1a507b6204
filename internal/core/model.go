package core

import (
	"html"
	"strconv"
	"time"
)

// NoText is stored when a message carries neither text nor caption.
const NoText = "<без текста>"

// MediaKind enumerates the attachment kinds the bot can capture.
type MediaKind string

const (
	MediaNone      MediaKind = ""
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaVoice     MediaKind = "voice"
	MediaVideoNote MediaKind = "video_note"
	MediaAnimation MediaKind = "animation"
	MediaDocument  MediaKind = "document"
)

// Media references an attachment by its platform file id.
type Media struct {
	Kind   MediaKind
	FileID string
}

// Present reports whether the media reference can be re-sent.
func (m Media) Present() bool {
	return m.Kind != MediaNone && m.FileID != ""
}

// Author identifies who wrote a message. A zero ID means unknown.
type Author struct {
	ID   int64
	Name string
}

// Mention renders the author as an HTML user link.
func (a Author) Mention() string {
	if a.ID == 0 {
		return "кто-то"
	}
	return `<a href="tg://user?id=` + strconv.FormatInt(a.ID, 10) + `">` + html.EscapeString(a.Name) + `</a>`
}

// DisplayName is the plain name stored on events.
func (a Author) DisplayName() string {
	if a.ID == 0 || a.Name == "" {
		return "Неизвестно"
	}
	return a.Name
}

// Key addresses a message within a chat.
type Key struct {
	ChatID    int64
	MessageID int64
}

// Snapshot is the last observed version of a message.
type Snapshot struct {
	Key
	Content              string
	Author               Author
	BusinessConnectionID string
	Media                Media
	SeenAt               time.Time
}

// EventType distinguishes recorded events.
type EventType string

const (
	EventEdited  EventType = "edited"
	EventDeleted EventType = "deleted"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t == EventEdited || t == EventDeleted
}

// Event is a durable record of an edit or delete seen in a business chat.
type Event struct {
	ID         int64     `json:"-"`
	OwnerID    int64     `json:"-"`
	Type       EventType `json:"type"`
	Author     string    `json:"author"`
	Content    string    `json:"content"`
	OldContent *string   `json:"old_content"`
	Timestamp  int64     `json:"timestamp"`
}
