package botwatch

import (
	"context"
	"fmt"
	"html"
	"log"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/you/eternalmod/internal/telegram"
)

// Callback data prefixes.
const (
	PrefixReport  = "report_new_bot_"
	PrefixApprove = "approve_bot_"
	PrefixScam    = "mark_scam_"
	PrefixIgnore  = "ignore_bot_"

	// Telegram rejects callback data longer than this.
	maxCallbackData = 64

	scamReason = "Помечен как скам владельцем"
	notAdmin   = "Только владелец может решать"
)

// Ledger persists sightings and verdicts.
type Ledger interface {
	MarkBotSeen(ctx context.Context, botID string, chatID int64, at time.Time) (bool, error)
	ForgetBot(ctx context.Context, botID string) error
	MarkScam(ctx context.Context, botID, reason string, addedBy int64, at time.Time) error
	IsScam(ctx context.Context, botID string) (bool, error)
}

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup any) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
}

// Watcher warns chats about bots it has never seen and routes reports to the
// admin for a verdict.
type Watcher struct {
	ledger  Ledger
	sender  Sender
	adminID int64
	now     func() time.Time
}

func New(ledger Ledger, sender Sender, adminID int64) *Watcher {
	return &Watcher{ledger: ledger, sender: sender, adminID: adminID, now: time.Now}
}

// Check warns msg's chat once per newly sighted bot and on every sighting of
// a bot the owner marked as scam. It returns how many warnings were sent.
func (w *Watcher) Check(ctx context.Context, msg *telegram.Message) int {
	handles := Candidates(msg)
	if len(handles) == 0 {
		return 0
	}
	warned := 0
	for _, handle := range handles {
		key := Key(handle)
		scam, err := w.ledger.IsScam(ctx, key)
		if err != nil {
			log.Printf("botwatch: scam lookup %s: %v", key, err)
		}
		if scam {
			slog.Info("botwatch: scam bot sighted", "bot", key, "chat", msg.Chat.ID)
			if w.alertScam(ctx, msg, key) {
				warned++
			}
			continue
		}
		fresh, err := w.ledger.MarkBotSeen(ctx, key, msg.Chat.ID, w.now())
		if err != nil {
			log.Printf("botwatch: record %s: %v", key, err)
			continue
		}
		if !fresh {
			continue
		}
		slog.Info("botwatch: new bot sighted", "bot", key, "chat", msg.Chat.ID)
		if w.warn(ctx, msg, key) {
			warned++
		}
	}
	return warned
}

func warningText(key string) string {
	return fmt.Sprintf("🤔 EternalMOD видит бота %s впервые.\n\n"+
		"Будьте аккуратны, если вам пишет незнакомый человек и "+
		"предлагает получить подарок/использовать его «гаранта».\n\n"+
		"Настоятельно рекомендуем обратиться в чат @savemod_chat и "+
		"попросить помочь с данной ситуацией.\n\n"+
		"Чтобы отправить бота на проверку команде EternalMOD, нажмите кнопку ниже.",
		html.EscapeString(Display(key)))
}

func scamAlertText(key string) string {
	return fmt.Sprintf("🚫 Бот %s помечен командой EternalMOD как <b>скам</b>!\n\n"+
		"Не переходите по ссылкам, не передавайте подарки и не вводите "+
		"никаких данных. Если вам предлагают «гаранта», это мошенничество.",
		html.EscapeString(Display(key)))
}

// alertScam has no report button; the verdict is already in.
func (w *Watcher) alertScam(ctx context.Context, msg *telegram.Message, key string) bool {
	opts := &telegram.SendOptions{
		BusinessConnectionID:  msg.BusinessConnectionID,
		DisableWebPagePreview: true,
	}
	if _, err := w.sender.SendMessage(ctx, msg.Chat.ID, scamAlertText(key), opts); err != nil {
		log.Printf("botwatch: scam alert chat %d: %v", msg.Chat.ID, err)
		return false
	}
	return true
}

func (w *Watcher) warn(ctx context.Context, msg *telegram.Message, key string) bool {
	opts := &telegram.SendOptions{
		BusinessConnectionID:  msg.BusinessConnectionID,
		DisableWebPagePreview: true,
	}
	if data := callbackData(PrefixReport, key, msg.Chat.ID); len(data) <= maxCallbackData {
		opts.ReplyMarkup = telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "Отправить на проверку", CallbackData: data}},
		}}
	} else {
		slog.Warn("botwatch: report button omitted, callback data too long", "bot", key, "len", len(data))
	}
	if _, err := w.sender.SendMessage(ctx, msg.Chat.ID, warningText(key), opts); err != nil {
		log.Printf("botwatch: warn chat %d: %v", msg.Chat.ID, err)
		return false
	}
	return true
}

func callbackData(prefix, key string, chatID int64) string {
	return prefix + key + "_" + strconv.FormatInt(chatID, 10)
}

// parseCallback splits "<prefix><key>_<chat>" on the last underscore so
// handles that contain underscores survive.
func parseCallback(data, prefix string) (key string, chatID int64, ok bool) {
	rest, found := strings.CutPrefix(data, prefix)
	if !found {
		return "", 0, false
	}
	i := strings.LastIndex(rest, "_")
	if i <= 0 || i == len(rest)-1 {
		return "", 0, false
	}
	chatID, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return rest[:i], chatID, true
}

// Handles reports whether data belongs to the watcher.
func Handles(data string) bool {
	for _, prefix := range []string{PrefixReport, PrefixApprove, PrefixScam, PrefixIgnore} {
		if strings.HasPrefix(data, prefix) {
			return true
		}
	}
	return false
}

// HandleCallback processes a report or admin verdict button.
func (w *Watcher) HandleCallback(ctx context.Context, cq *telegram.CallbackQuery) {
	switch {
	case strings.HasPrefix(cq.Data, PrefixReport):
		w.report(ctx, cq)
	case strings.HasPrefix(cq.Data, PrefixApprove):
		w.verdict(ctx, cq, PrefixApprove)
	case strings.HasPrefix(cq.Data, PrefixScam):
		w.verdict(ctx, cq, PrefixScam)
	case strings.HasPrefix(cq.Data, PrefixIgnore):
		w.verdict(ctx, cq, PrefixIgnore)
	}
}

func (w *Watcher) answer(ctx context.Context, cq *telegram.CallbackQuery, text string, alert bool) {
	if err := w.sender.AnswerCallbackQuery(ctx, cq.ID, text, alert); err != nil {
		log.Printf("botwatch: answer callback: %v", err)
	}
}

func (w *Watcher) report(ctx context.Context, cq *telegram.CallbackQuery) {
	key, chatID, ok := parseCallback(cq.Data, PrefixReport)
	if !ok {
		w.answer(ctx, cq, "Ошибка данных", true)
		return
	}

	text := fmt.Sprintf("📩 Новая проверка бота от пользователя %d\n\n"+
		"Бот: %s\n"+
		"Ключ в БД: %s\n"+
		"Чат владельца: %d\n"+
		"Время: %s\n\n"+
		"Что делать?",
		chatID,
		html.EscapeString(Display(key)),
		html.EscapeString(key),
		chatID,
		w.now().Format("2006-01-02 15:04:05"),
	)
	kb := telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{
			{Text: "✅ Одобрить", CallbackData: callbackData(PrefixApprove, key, chatID)},
			{Text: "🚫 Скам", CallbackData: callbackData(PrefixScam, key, chatID)},
		},
		{
			{Text: "❌ Игнорировать", CallbackData: callbackData(PrefixIgnore, key, chatID)},
		},
	}}
	opts := &telegram.SendOptions{ReplyMarkup: kb, DisableWebPagePreview: true}
	if _, err := w.sender.SendMessage(ctx, w.adminID, text, opts); err != nil {
		log.Printf("botwatch: report %s to admin: %v", key, err)
		w.answer(ctx, cq, "Не удалось отправить на проверку", true)
		return
	}
	w.answer(ctx, cq, "Бот отправлен на проверку владельцу!", false)
}

func (w *Watcher) verdict(ctx context.Context, cq *telegram.CallbackQuery, prefix string) {
	if cq.From.ID != w.adminID {
		w.answer(ctx, cq, notAdmin, true)
		return
	}
	key, chatID, ok := parseCallback(cq.Data, prefix)
	if !ok {
		w.answer(ctx, cq, "Ошибка данных", true)
		return
	}
	display := html.EscapeString(Display(key))

	var (
		chatText string
		outcome  string
		reply    string
	)
	switch prefix {
	case PrefixApprove:
		if err := w.ledger.ForgetBot(ctx, key); err != nil {
			log.Printf("botwatch: approve %s: %v", key, err)
		}
		chatText = "✅ Бот " + display + " одобрен владельцем — безопасен."
		outcome = "✅ Одобрено владельцем"
		reply = "Одобрено!"
	case PrefixScam:
		if err := w.ledger.MarkScam(ctx, key, scamReason, w.adminID, w.now()); err != nil {
			log.Printf("botwatch: mark scam %s: %v", key, err)
		}
		chatText = "🚫 Бот " + display + " помечен как <b>скам</b>! Не взаимодействуйте."
		outcome = "🚫 Помечен как скам"
		reply = "Помечен как скам!"
	default:
		outcome = "❌ Игнорировано владельцем"
		reply = "Игнорировано"
	}

	if chatText != "" {
		if _, err := w.sender.SendMessage(ctx, chatID, chatText, nil); err != nil {
			log.Printf("botwatch: notify chat %d: %v", chatID, err)
		}
	}
	if cq.Message != nil {
		edited := html.EscapeString(cq.Message.Text) + "\n\n" + outcome
		if err := w.sender.EditMessageText(ctx, cq.Message.Chat.ID, cq.Message.MessageID, edited, nil); err != nil {
			log.Printf("botwatch: edit admin message: %v", err)
		}
	}
	slog.Info("botwatch: verdict", "bot", key, "chat", chatID, "outcome", outcome)
	w.answer(ctx, cq, reply, false)
}
