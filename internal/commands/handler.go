// Package commands answers the prank and help layer: slash commands, reply
// keyboard buttons, dot-commands and their inline callbacks.
package commands

import (
	"context"
	"fmt"
	"html"
	"log"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/you/eternalmod/internal/core"
	"github.com/you/eternalmod/internal/gate"
	"github.com/you/eternalmod/internal/telegram"
)

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup any) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
	SendChatAction(ctx context.Context, chatID int64, action, businessConnectionID string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

type Gate interface {
	IsSubscribed(ctx context.Context, userID int64) bool
	Prompt(ctx context.Context, s gate.Sender, chatID int64, businessConnectionID string)
	Notice(ctx context.Context, s gate.Sender, chatID, ownerID int64) bool
	ResetCooldown(ownerID int64)
	Keyboard() telegram.InlineKeyboardMarkup
	Cooldown() time.Duration
}

type Registry interface {
	ChatFor(id string) (int64, bool)
	OwnerFor(id string) (int64, bool)
	HasOwner(userID int64) bool
}

type Cache interface {
	Lookup(chatID, messageID int64) (core.Snapshot, bool)
}

type Options struct {
	Channel    string
	ChannelURL string
	WebAppURL  string
}

// Handler serves the command layer. It is safe for concurrent use.
type Handler struct {
	sender   Sender
	gate     Gate
	registry Registry
	cache    Cache
	opts     Options
	kawaii   *kawaii

	mu          sync.RWMutex
	botUsername string

	intn  func(n int) int
	sleep func(ctx context.Context, d time.Duration)
}

func New(sender Sender, g Gate, registry Registry, cache Cache, opts Options) *Handler {
	return &Handler{
		sender:   sender,
		gate:     g,
		registry: registry,
		cache:    cache,
		opts:     opts,
		kawaii:   newKawaii(),
		intn:     rand.IntN,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// SetBotUsername records the bot's own handle for the connection guide.
func (h *Handler) SetBotUsername(name string) {
	h.mu.Lock()
	h.botUsername = name
	h.mu.Unlock()
}

func (h *Handler) username() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.botUsername
}

func (h *Handler) pick(lines []string) string {
	return lines[h.intn(len(lines))]
}

func (h *Handler) kawaiify(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return "nya~"
	}
	return t + h.pick(kawaiiSuffixes)
}

// target says where and how an answer goes. Business chats get no reply
// keyboard and must carry the connection id.
type target struct {
	chatID   int64
	bcID     string
	keyboard any
}

func privateTarget(chatID int64) target {
	return target{chatID: chatID, keyboard: MainKeyboard()}
}

func (h *Handler) send(ctx context.Context, to target, text string, markup any) {
	opts := &telegram.SendOptions{BusinessConnectionID: to.bcID, ReplyMarkup: markup}
	if _, err := h.sender.SendMessage(ctx, to.chatID, text, opts); err != nil {
		log.Printf("commands: send to %d failed: %v", to.chatID, err)
	}
}

// reply answers with the target's default keyboard.
func (h *Handler) reply(ctx context.Context, to target, text string) {
	h.send(ctx, to, text, to.keyboard)
}

// Private handles a message in a private chat with the bot.
func (h *Handler) Private(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	if !h.gate.IsSubscribed(ctx, msg.From.ID) {
		h.gate.Prompt(ctx, h.sender, chatID, "")
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/"):
		if h.slash(ctx, msg, text) {
			return
		}
	case strings.HasPrefix(text, "."):
		h.dot(ctx, msg, privateTarget(chatID), false)
		return
	}

	to := privateTarget(chatID)
	switch text {
	case ButtonRofl:
		h.rofl(ctx, chatID)
	case ButtonDarkRofl:
		h.darkRofl(ctx, chatID)
	case ButtonMock:
		h.reply(ctx, to, mockButton)
	case ButtonCoin:
		h.reply(ctx, to, h.coin())
	case ButtonInstruction:
		h.instruction(ctx, chatID)
	case ButtonCommands:
		h.send(ctx, to, commandsText, commandsKeyboard())
	default:
		echo := fmt.Sprintf(echoText, html.EscapeString(msg.Text))
		if h.kawaii.Enabled(msg.From.ID) {
			echo = h.kawaiify(echo)
		}
		h.reply(ctx, to, echo)
	}
}

func splitCommand(text string) (cmd, arg string) {
	cmd, arg, _ = strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

// slash runs a slash command and reports whether it was one the bot knows.
func (h *Handler) slash(ctx context.Context, msg *telegram.Message, text string) bool {
	cmd, arg := splitCommand(text)
	chatID := msg.Chat.ID
	to := privateTarget(chatID)
	switch cmd {
	case "/start":
		h.send(ctx, to, startText, h.startKeyboard())
	case "/help":
		h.help(ctx, chatID)
	case "/about":
		h.send(ctx, to, aboutText, h.aboutKeyboard())
	case "/rofl":
		h.rofl(ctx, chatID)
	case "/dark":
		h.darkRofl(ctx, chatID)
	case "/mock":
		if arg == "" {
			h.send(ctx, to, mockUsage, nil)
			return true
		}
		h.reply(ctx, to, html.EscapeString(Mock(arg)))
	case "/coin":
		h.reply(ctx, to, h.coin())
	case "/commands":
		h.send(ctx, to, commandsText, commandsKeyboard())
	case "/instruction":
		h.instruction(ctx, chatID)
	default:
		return false
	}
	return true
}

func (h *Handler) coin() string {
	return "Подбрасываю монетку... " + h.pick(coinSides) + "!"
}

func (h *Handler) iq() string {
	return fmt.Sprintf("🧠 Твой IQ сегодня: <b>%d</b>", 40+h.intn(161))
}

func (h *Handler) rofl(ctx context.Context, chatID int64) {
	h.send(ctx, target{chatID: chatID}, html.EscapeString(h.pick(roflLines)), roflKeyboard())
}

func (h *Handler) darkRofl(ctx context.Context, chatID int64) {
	h.send(ctx, target{chatID: chatID}, html.EscapeString(h.pick(darkRoflLines)), darkRoflKeyboard())
}

func (h *Handler) help(ctx context.Context, chatID int64) {
	h.send(ctx, target{chatID: chatID}, helpText, h.helpKeyboard())
}

func (h *Handler) instruction(ctx context.Context, chatID int64) {
	name := h.username()
	mention := "этого бота"
	if name != "" {
		mention = "@" + name
	} else {
		name = "этого бота"
	}
	text := fmt.Sprintf(instructionText, html.EscapeString(mention), html.EscapeString(name))
	h.send(ctx, target{chatID: chatID}, text, instructionKeyboard())
}

func (h *Handler) prankMenu(ctx context.Context, to target) {
	h.send(ctx, to, prankMenuText, prankKeyboard())
}

// Business runs a dot-command typed inside a business chat. Only the
// connection owner may use them; messages from anyone else are ignored.
// It reports whether msg was a dot-command.
func (h *Handler) Business(ctx context.Context, msg *telegram.Message) bool {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, ".") {
		return false
	}
	var sender int64
	if msg.From != nil {
		sender = msg.From.ID
	}
	owner, known := h.registry.OwnerFor(msg.BusinessConnectionID)
	if known && sender != owner {
		return true
	}
	if !known {
		slog.Info("commands: business dot-command with unknown owner; allowing", "connection", msg.BusinessConnectionID)
	}
	h.dot(ctx, msg, target{chatID: msg.Chat.ID, bcID: msg.BusinessConnectionID}, true)
	return true
}

func (h *Handler) dot(ctx context.Context, msg *telegram.Message, to target, business bool) {
	cmd, arg := splitCommand(strings.TrimSpace(msg.Text))
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}

	switch cmd {
	case ".type":
		if arg == "" {
			h.reply(ctx, to, typeUsage)
			return
		}
		if err := h.sender.SendChatAction(ctx, to.chatID, "typing", to.bcID); err != nil {
			slog.Debug("commands: chat action failed", "chat", to.chatID, "err", err)
		}
		h.sleep(ctx, typingDelay(arg))
		out := arg
		if h.kawaii.Enabled(userID) {
			out = h.kawaiify(out)
		}
		h.reply(ctx, to, html.EscapeString(out))

	case ".switch":
		h.switchLayout(ctx, msg, to, arg)

	case ".команды", ".commands":
		if !business {
			if err := h.sender.DeleteMessage(ctx, msg.Chat.ID, msg.MessageID); err != nil {
				slog.Debug("commands: could not delete command message", "err", err)
			}
		}
		h.prankMenu(ctx, to)

	case ".kawaii":
		if userID == 0 {
			return
		}
		h.reply(ctx, to, kawaiiState(h.kawaii.Toggle(userID)))

	case ".love":
		if business {
			h.reply(ctx, to, h.pick(shortLoveLines))
		} else {
			h.reply(ctx, to, h.pick(loveLines))
		}

	case ".iq":
		h.reply(ctx, to, h.iq())

	case ".zaebu":
		h.reply(ctx, to, "Заебушка ✨")

	case ".info":
		if msg.From == nil {
			return
		}
		text := infoText(msg.From)
		if !business {
			state := "неизвестно"
			if h.registry.HasOwner(userID) {
				state = "подключён (бизнес)"
			}
			text += "\n• business: <b>" + state + "</b>"
		}
		h.reply(ctx, to, text)

	case ".тест":
		if userID == 0 {
			return
		}
		h.subscriptionTest(ctx, msg, to, userID, business)

	default:
		if business {
			h.reply(ctx, to, unknownBusiness)
		} else {
			h.reply(ctx, to, unknownPrivate)
		}
	}
}

// typingDelay grows with the text and is capped at two seconds.
func typingDelay(text string) time.Duration {
	d := 20*time.Millisecond*time.Duration(len([]rune(text))) + 200*time.Millisecond
	return min(d, 2*time.Second)
}

func infoText(u *telegram.User) string {
	username := u.Username
	if username == "" {
		username = "-"
	}
	return fmt.Sprintf("ℹ️ <b>Инфо</b>\n• id: <code>%d</code>\n• username: <code>%s</code>",
		u.ID, html.EscapeString(username))
}

func (h *Handler) switchLayout(ctx context.Context, msg *telegram.Message, to target, arg string) {
	if arg != "" {
		h.reply(ctx, to, html.EscapeString(SwitchLayout(arg)))
		return
	}
	replied := msg.ReplyToMessage
	if replied == nil {
		h.reply(ctx, to, switchUsage)
		return
	}
	text := replied.Text
	if text == "" {
		text = replied.Caption
	}
	if text == "" {
		if snap, ok := h.cache.Lookup(replied.Chat.ID, replied.MessageID); ok && snap.Content != core.NoText {
			text = snap.Content
		}
	}
	if text == "" {
		h.reply(ctx, to, switchNoText)
		return
	}
	h.reply(ctx, to, html.EscapeString(SwitchLayout(text)))
}

// subscriptionTest lets an owner check the paused-mirroring notice on demand.
func (h *Handler) subscriptionTest(ctx context.Context, msg *telegram.Message, to target, userID int64, business bool) {
	noticeChat := msg.Chat.ID
	if business {
		chat, ok := h.registry.ChatFor(msg.BusinessConnectionID)
		if !ok {
			return
		}
		noticeChat = chat
	}
	if h.gate.IsSubscribed(ctx, userID) {
		h.reply(ctx, to, fmt.Sprintf(testSubscribedText,
			html.EscapeString(h.opts.Channel), h.gate.Cooldown()))
		return
	}
	h.gate.ResetCooldown(userID)
	h.gate.Notice(ctx, h.sender, noticeChat, userID)
	h.reply(ctx, to, testSentText)
}
