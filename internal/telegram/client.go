package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/eternalmod/internal/core"
)

const (
	DefaultAPIBase = "https://api.telegram.org"
	ParseModeHTML  = "HTML"

	defaultCallTimeout = 30 * time.Second
)

type Options struct {
	APIBase string
	HTTP    *http.Client
}

// Client is a minimal Bot API client covering the calls the bot makes.
type Client struct {
	token string
	base  string
	http  *http.Client
}

func New(token string, opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		// long polls hold the connection for the poll timeout, so per-call
		// deadlines come from the request context instead
		httpClient = &http.Client{}
	}
	return &Client{token: token, base: base, http: httpClient}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (c *Client) methodURL(method string) string {
	return c.base + "/bot" + c.token + "/" + method
}

// redact strips the request URL, which embeds the bot token, from transport
// errors. The wrapped cause stays reachable for errors.Is.
func (c *Client) redact(op string, err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = &url.Error{Op: ue.Op, URL: op, Err: ue.Err}
	}
	if c.token != "" && strings.Contains(err.Error(), c.token) {
		err = errors.New(strings.ReplaceAll(err.Error(), c.token, "<token>"))
	}
	return fmt.Errorf("telegram: %s: %w", op, err)
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram: %s: encode: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return c.redact(method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return c.redact(method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram: %s: read: %w", method, err)
	}

	var payload apiResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return &APIError{Method: method, Code: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
	}
	if !payload.OK {
		apiErr := &APIError{Method: method, Code: payload.ErrorCode, Description: payload.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if payload.Parameters != nil && payload.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(payload.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if out == nil || len(payload.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload.Result, out); err != nil {
		return fmt.Errorf("telegram: %s: decode result: %w", method, err)
	}
	return nil
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSecs int, allowed []string) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSecs,
		"allowed_updates": allowed,
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendOptions are the optional parts of an outgoing text message.
type SendOptions struct {
	ReplyMarkup           any
	BusinessConnectionID  string
	ReplyToMessageID      int64
	DisableWebPagePreview bool
}

type sendMessageParams struct {
	ChatID               int64           `json:"chat_id"`
	Text                 string          `json:"text"`
	ParseMode            string          `json:"parse_mode"`
	ReplyMarkup          any             `json:"reply_markup,omitempty"`
	BusinessConnectionID string          `json:"business_connection_id,omitempty"`
	ReplyParameters      *replyParams    `json:"reply_parameters,omitempty"`
	LinkPreviewOptions   *linkPreviewOpt `json:"link_preview_options,omitempty"`
}

type replyParams struct {
	MessageID int64 `json:"message_id"`
}

type linkPreviewOpt struct {
	IsDisabled bool `json:"is_disabled"`
}

// SendMessage sends HTML text to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error) {
	params := sendMessageParams{ChatID: chatID, Text: text, ParseMode: ParseModeHTML}
	if opts != nil {
		params.ReplyMarkup = opts.ReplyMarkup
		params.BusinessConnectionID = opts.BusinessConnectionID
		if opts.ReplyToMessageID != 0 {
			params.ReplyParameters = &replyParams{MessageID: opts.ReplyToMessageID}
		}
		if opts.DisableWebPagePreview {
			params.LinkPreviewOptions = &linkPreviewOpt{IsDisabled: true}
		}
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CopyMessage copies a message without a forward header, replacing its
// caption when one is given.
func (c *Client) CopyMessage(ctx context.Context, chatID, fromChatID, messageID int64, caption string) error {
	params := map[string]any{
		"chat_id":      chatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	if caption != "" {
		params["caption"] = caption
		params["parse_mode"] = ParseModeHTML
	}
	return c.call(ctx, "copyMessage", params, nil)
}

type mediaMethod struct {
	method string
	field  string
}

var mediaMethods = map[core.MediaKind]mediaMethod{
	core.MediaPhoto:     {"sendPhoto", "photo"},
	core.MediaVideo:     {"sendVideo", "video"},
	core.MediaVoice:     {"sendVoice", "voice"},
	core.MediaVideoNote: {"sendVideoNote", "video_note"},
	core.MediaAnimation: {"sendAnimation", "animation"},
	core.MediaDocument:  {"sendDocument", "document"},
}

func methodFor(kind core.MediaKind) (mediaMethod, error) {
	m, ok := mediaMethods[kind]
	if !ok {
		return mediaMethod{}, fmt.Errorf("telegram: unsupported media kind %q", kind)
	}
	return m, nil
}

// SendMedia resends an attachment by file id. Video notes cannot carry a
// caption, so it is ignored for them.
func (c *Client) SendMedia(ctx context.Context, chatID int64, media core.Media, caption string) error {
	m, err := methodFor(media.Kind)
	if err != nil {
		return err
	}
	params := map[string]any{
		"chat_id": chatID,
		m.field:   media.FileID,
	}
	if caption != "" && media.Kind != core.MediaVideoNote {
		params["caption"] = caption
		params["parse_mode"] = ParseModeHTML
	}
	return c.call(ctx, m.method, params, nil)
}

// UploadMedia sends data as a new attachment of the given kind.
func (c *Client) UploadMedia(ctx context.Context, chatID int64, kind core.MediaKind, filename string, data io.Reader, caption string) error {
	m, err := methodFor(kind)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", strconv.FormatInt(chatID, 10))
	if caption != "" && kind != core.MediaVideoNote {
		_ = w.WriteField("caption", caption)
		_ = w.WriteField("parse_mode", ParseModeHTML)
	}
	part, err := w.CreateFormFile(m.field, filename)
	if err != nil {
		return fmt.Errorf("telegram: %s: form: %w", m.method, err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return fmt.Errorf("telegram: %s: copy upload: %w", m.method, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("telegram: %s: form: %w", m.method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(m.method), &buf)
	if err != nil {
		return c.redact(m.method, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, m.method, nil)
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var f File
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &f); err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, ErrEmptyFile
	}
	return &f, nil
}

// OpenFile starts downloading a path returned by GetFile. The caller closes
// the body.
func (c *Client) OpenFile(ctx context.Context, filePath string) (io.ReadCloser, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, ErrEmptyFile
	}
	u := c.base + "/file/bot" + c.token + "/" + strings.TrimLeft(filePath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, c.redact("download", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.redact("download", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &APIError{Method: "download", Code: resp.StatusCode, Description: resp.Status}
	}
	return resp.Body, nil
}

// GetChatMember looks userID up in chat, which may be an @username.
func (c *Client) GetChatMember(ctx context.Context, chat string, userID int64) (*ChatMember, error) {
	params := map[string]any{"chat_id": chat, "user_id": userID}
	var member ChatMember
	if err := c.call(ctx, "getChatMember", params, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error {
	params := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		params["text"] = text
	}
	if showAlert {
		params["show_alert"] = true
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// EditMessageText replaces the text (and optionally markup) of a sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup any) error {
	params := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": ParseModeHTML,
	}
	if markup != nil {
		params["reply_markup"] = markup
	}
	err := c.call(ctx, "editMessageText", params, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified") {
		return nil
	}
	return err
}

func (c *Client) SendChatAction(ctx context.Context, chatID int64, action, businessConnectionID string) error {
	params := map[string]any{"chat_id": chatID, "action": action}
	if businessConnectionID != "" {
		params["business_connection_id"] = businessConnectionID
	}
	return c.call(ctx, "sendChatAction", params, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{"chat_id": chatID, "message_id": messageID}, nil)
}

func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}

// WithTimeout bounds a single call when ctx carries no deadline.
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultCallTimeout)
}
