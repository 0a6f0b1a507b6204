package telegram

import (
	"strings"

	"github.com/you/eternalmod/internal/core"
)

// Update kinds the bot subscribes to.
const (
	KindMessage                 = "message"
	KindEditedMessage           = "edited_message"
	KindBusinessConnection      = "business_connection"
	KindBusinessMessage         = "business_message"
	KindEditedBusinessMessage   = "edited_business_message"
	KindDeletedBusinessMessages = "deleted_business_messages"
	KindCallbackQuery           = "callback_query"
)

// AllowedUpdates is sent with every getUpdates call.
var AllowedUpdates = []string{
	KindMessage,
	KindEditedMessage,
	KindBusinessConnection,
	KindBusinessMessage,
	KindEditedBusinessMessage,
	KindDeletedBusinessMessages,
	KindCallbackQuery,
}

type Update struct {
	UpdateID                int64                    `json:"update_id"`
	Message                 *Message                 `json:"message,omitempty"`
	EditedMessage           *Message                 `json:"edited_message,omitempty"`
	BusinessConnection      *BusinessConnection      `json:"business_connection,omitempty"`
	BusinessMessage         *Message                 `json:"business_message,omitempty"`
	EditedBusinessMessage   *Message                 `json:"edited_business_message,omitempty"`
	DeletedBusinessMessages *BusinessMessagesDeleted `json:"deleted_business_messages,omitempty"`
	CallbackQuery           *CallbackQuery           `json:"callback_query,omitempty"`
}

// Kind names the populated payload, or "unknown".
func (u Update) Kind() string {
	switch {
	case u.Message != nil:
		return KindMessage
	case u.EditedMessage != nil:
		return KindEditedMessage
	case u.BusinessConnection != nil:
		return KindBusinessConnection
	case u.BusinessMessage != nil:
		return KindBusinessMessage
	case u.EditedBusinessMessage != nil:
		return KindEditedBusinessMessage
	case u.DeletedBusinessMessages != nil:
		return KindDeletedBusinessMessages
	case u.CallbackQuery != nil:
		return KindCallbackQuery
	default:
		return "unknown"
	}
}

// ChatID returns the chat the update belongs to, or 0.
func (u Update) ChatID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.Chat.ID
	case u.EditedMessage != nil:
		return u.EditedMessage.Chat.ID
	case u.BusinessConnection != nil:
		return u.BusinessConnection.UserChatID
	case u.BusinessMessage != nil:
		return u.BusinessMessage.Chat.ID
	case u.EditedBusinessMessage != nil:
		return u.EditedBusinessMessage.Chat.ID
	case u.DeletedBusinessMessages != nil:
		return u.DeletedBusinessMessages.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat.ID
	default:
		return 0
	}
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// FullName joins the first and last name.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Author converts u to the core identity; nil yields the unknown author.
func (u *User) Author() core.Author {
	if u == nil {
		return core.Author{}
	}
	return core.Author{ID: u.ID, Name: u.FullName()}
}

type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// FileRef covers the attachment objects that only matter to the bot by id.
type FileRef struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// MessageOrigin describes where a forwarded message came from.
type MessageOrigin struct {
	Type           string `json:"type"`
	SenderUser     *User  `json:"sender_user,omitempty"`
	SenderUserName string `json:"sender_user_name,omitempty"`
}

type Message struct {
	MessageID            int64          `json:"message_id"`
	From                 *User          `json:"from,omitempty"`
	Chat                 Chat           `json:"chat"`
	Date                 int64          `json:"date"`
	BusinessConnectionID string         `json:"business_connection_id,omitempty"`
	Text                 string         `json:"text,omitempty"`
	Caption              string         `json:"caption,omitempty"`
	Photo                []PhotoSize    `json:"photo,omitempty"`
	Video                *FileRef       `json:"video,omitempty"`
	Voice                *FileRef       `json:"voice,omitempty"`
	VideoNote            *FileRef       `json:"video_note,omitempty"`
	Animation            *FileRef       `json:"animation,omitempty"`
	Document             *FileRef       `json:"document,omitempty"`
	ReplyToMessage       *Message       `json:"reply_to_message,omitempty"`
	ForwardOrigin        *MessageOrigin `json:"forward_origin,omitempty"`
	ForwardFrom          *User          `json:"forward_from,omitempty"`
	ForwardSenderName    string         `json:"forward_sender_name,omitempty"`
}

// Media picks the attachment with the fixed precedence photo, video, voice,
// video_note, animation, document. For photos the last (largest) size wins.
func (m *Message) Media() core.Media {
	if m == nil {
		return core.Media{}
	}
	switch {
	case len(m.Photo) > 0:
		return core.Media{Kind: core.MediaPhoto, FileID: m.Photo[len(m.Photo)-1].FileID}
	case m.Video != nil:
		return core.Media{Kind: core.MediaVideo, FileID: m.Video.FileID}
	case m.Voice != nil:
		return core.Media{Kind: core.MediaVoice, FileID: m.Voice.FileID}
	case m.VideoNote != nil:
		return core.Media{Kind: core.MediaVideoNote, FileID: m.VideoNote.FileID}
	case m.Animation != nil:
		return core.Media{Kind: core.MediaAnimation, FileID: m.Animation.FileID}
	case m.Document != nil:
		return core.Media{Kind: core.MediaDocument, FileID: m.Document.FileID}
	default:
		return core.Media{}
	}
}

// Content is the text or caption, or the placeholder when both are empty.
func (m *Message) Content() string {
	if m == nil {
		return core.NoText
	}
	if m.Text != "" {
		return m.Text
	}
	if m.Caption != "" {
		return m.Caption
	}
	return core.NoText
}

// Snapshot captures m for the cache. connectionID overrides the message's own
// business connection when set.
func (m *Message) Snapshot(connectionID string) core.Snapshot {
	if connectionID == "" {
		connectionID = m.BusinessConnectionID
	}
	return core.Snapshot{
		Key:                  core.Key{ChatID: m.Chat.ID, MessageID: m.MessageID},
		Content:              m.Content(),
		Author:               m.From.Author(),
		BusinessConnectionID: connectionID,
		Media:                m.Media(),
	}
}

// BusinessBotRights is the subset of rights the bot inspects.
type BusinessBotRights struct {
	CanReply bool `json:"can_reply"`
}

type BusinessConnection struct {
	ID         string             `json:"id"`
	User       User               `json:"user"`
	UserChatID int64              `json:"user_chat_id"`
	Date       int64              `json:"date"`
	CanReply   bool               `json:"can_reply"`
	Rights     *BusinessBotRights `json:"rights,omitempty"`
	IsEnabled  bool               `json:"is_enabled"`
}

// CanReplyMessages reports reply rights under either API revision.
func (b *BusinessConnection) CanReplyMessages() bool {
	if b.Rights != nil {
		return b.Rights.CanReply
	}
	return b.CanReply
}

type BusinessMessagesDeleted struct {
	BusinessConnectionID string  `json:"business_connection_id"`
	Chat                 Chat    `json:"chat"`
	MessageIDs           []int64 `json:"message_ids"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type InlineKeyboardButton struct {
	Text         string      `json:"text"`
	CallbackData string      `json:"callback_data,omitempty"`
	URL          string      `json:"url,omitempty"`
	WebApp       *WebAppInfo `json:"web_app,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type WebAppInfo struct {
	URL string `json:"url"`
}

type KeyboardButton struct {
	Text   string      `json:"text"`
	WebApp *WebAppInfo `json:"web_app,omitempty"`
}

type ReplyKeyboardMarkup struct {
	Keyboard              [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard        bool               `json:"resize_keyboard,omitempty"`
	InputFieldPlaceholder string             `json:"input_field_placeholder,omitempty"`
}

type ChatMember struct {
	Status string `json:"status"`
	User   *User  `json:"user,omitempty"`
}

type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}
