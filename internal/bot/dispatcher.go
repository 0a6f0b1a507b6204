// Package bot routes Telegram updates to the reconciliation pipeline, the
// bot-sighting watcher and the command layer.
package bot

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/you/eternalmod/internal/botwatch"
	"github.com/you/eternalmod/internal/commands"
	"github.com/you/eternalmod/internal/core"
	"github.com/you/eternalmod/internal/ingesttrace"
	"github.com/you/eternalmod/internal/reconcile"
	"github.com/you/eternalmod/internal/registry"
	"github.com/you/eternalmod/internal/telegram"
)

const (
	noRightsText = "⚙️ Вы не выдали боту необходимый набор разрешений, поэтому он не может отвечать на команды"

	welcomeText = "👍🏻 Вы подключили официальное зеркало <b>EternalMod</b>\n\n" +
		"ℹ️ <b>Что вы получаете:</b>\n\n" +
		"⚠️ <b>Надёжная защита от мошенников.</b> Если вам отправят вредоносного бота, мы сразу вас предупредим. " +
		"Защита работает в реальном времени и блокирует популярные схемы, включая кражу подарков.\n\n" +
		"💨 <b>Мгновенные уведомления.</b> Кто-то удалил или отредактировал сообщение? Вы узнаете сразу, " +
		"уведомление придет прямо в личку.\n\n" +
		"🔍 <b>Эксклюзивные функции.</b> Уникальные инструменты и возможности. Мы не просто сохраняем сообщения, " +
		"мы уровень выше."

	disabledText = "🚫 EternalMod был отключён.\n\n" +
		"Если вы это сделали для подключения другого бота по просьбе малознакомого пользователя " +
		"для проведения сделки/получения подарка или под другим предлогом, советуем вам написать админу " +
		"в ЛС @un1quexd и описать происходящую ситуацию."
)

// permissionImages are tried in order inside Options.ImageDir.
var permissionImages = []string{"permission.jpg", "permissions.png", "permission.png", "permissions.jpg"}

type Cache interface {
	Remember(core.Snapshot)
}

type Registry interface {
	Upsert(id string, chatID, ownerID int64) error
	Remove(id string) error
	Len() int
}

type Reconciler interface {
	Edited(ctx context.Context, msg *telegram.Message) reconcile.Outcome
	Deleted(ctx context.Context, ev *telegram.BusinessMessagesDeleted) reconcile.Outcome
	ReplyMedia(ctx context.Context, msg *telegram.Message) reconcile.Outcome
}

type Watcher interface {
	Check(ctx context.Context, msg *telegram.Message) int
	HandleCallback(ctx context.Context, cq *telegram.CallbackQuery)
}

type Commands interface {
	Private(ctx context.Context, msg *telegram.Message)
	Business(ctx context.Context, msg *telegram.Message) bool
	Callback(ctx context.Context, cq *telegram.CallbackQuery) bool
}

type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error)
	UploadMedia(ctx context.Context, chatID int64, kind core.MediaKind, filename string, data io.Reader, caption string) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
}

// Metrics is optional instrumentation.
type Metrics interface {
	Update(kind, outcome string)
}

type Deps struct {
	Client    Client
	Cache     Cache
	Registry  Registry
	Reconcile Reconciler
	Watcher   Watcher
	Commands  Commands
	Metrics   Metrics
}

type Options struct {
	// ImageDir holds the optional permissions screenshot.
	ImageDir string
	// VerboseSkips logs every skipped update at debug level.
	VerboseSkips bool
}

// Dispatcher handles updates one at a time. A panic in one handler is
// recovered and logged so the poll loop keeps going.
type Dispatcher struct {
	deps  Deps
	opts  Options
	skips *skipLogger
	now   func() time.Time
}

func New(deps Deps, opts Options) *Dispatcher {
	return &Dispatcher{
		deps:  deps,
		opts:  opts,
		skips: newSkipLogger(time.Now(), opts.VerboseSkips, skipSummaryInterval),
		now:   time.Now,
	}
}

// Flush emits pending skip summaries.
func (d *Dispatcher) Flush() {
	d.skips.flush(d.now())
}

// Handle processes one update. It matches the poller's handler signature.
func (d *Dispatcher) Handle(ctx context.Context, upd telegram.Update) {
	kind := upd.Kind()
	trace := ingesttrace.New(upd.UpdateID, upd.ChatID(), kind)
	defer func() {
		if r := recover(); r != nil {
			trace.Inc(ingesttrace.StageRecovered)
			log.Printf("bot: panic handling update %d (%s, trace %s): %v\n%s", upd.UpdateID, kind, trace.TraceID, r, debug.Stack())
			d.count(kind, "panic")
		}
		trace.Log(nil, "bot: update done")
	}()

	outcome := d.route(ctx, upd, trace)
	if outcome != "" && outcome != "handled" && outcome != string(reconcile.OutcomeNotified) {
		trace.Inc(ingesttrace.StageSkipped(outcome))
		d.skips.note(d.now(), outcome, kind, upd.ChatID())
	}
	d.count(kind, outcome)
}

func (d *Dispatcher) route(ctx context.Context, upd telegram.Update, trace *ingesttrace.UpdateTrace) string {
	switch {
	case upd.Message != nil:
		return d.message(ctx, upd.Message, trace)
	case upd.EditedMessage != nil:
		return d.edited(ctx, upd.EditedMessage, trace)
	case upd.BusinessConnection != nil:
		d.connection(ctx, upd.BusinessConnection)
		return "handled"
	case upd.BusinessMessage != nil:
		return d.businessMessage(ctx, upd.BusinessMessage, trace)
	case upd.EditedBusinessMessage != nil:
		return d.edited(ctx, upd.EditedBusinessMessage, trace)
	case upd.DeletedBusinessMessages != nil:
		trace.Inc(ingesttrace.StageRouted)
		outcome := d.deps.Reconcile.Deleted(ctx, upd.DeletedBusinessMessages)
		if outcome == reconcile.OutcomeNotified {
			trace.Inc(ingesttrace.StageNotified)
		}
		return string(outcome)
	case upd.CallbackQuery != nil:
		return d.callback(ctx, upd.CallbackQuery)
	default:
		return "unsupported"
	}
}

func (d *Dispatcher) message(ctx context.Context, msg *telegram.Message, trace *ingesttrace.UpdateTrace) string {
	if msg.From == nil {
		return "no_sender"
	}
	d.deps.Cache.Remember(msg.Snapshot(""))
	trace.Inc(ingesttrace.StageCached)
	if msg.Chat.Type != "private" {
		return "not_private"
	}
	trace.Inc(ingesttrace.StageRouted)
	d.deps.Commands.Private(ctx, msg)
	return "handled"
}

func (d *Dispatcher) edited(ctx context.Context, msg *telegram.Message, trace *ingesttrace.UpdateTrace) string {
	d.deps.Watcher.Check(ctx, msg)
	trace.Inc(ingesttrace.StageRouted)
	outcome := d.deps.Reconcile.Edited(ctx, msg)
	trace.Inc(ingesttrace.StageCached)
	if outcome == reconcile.OutcomeNotified || outcome == reconcile.OutcomeDegraded {
		trace.Inc(ingesttrace.StageNotified)
		return string(reconcile.OutcomeNotified)
	}
	return string(outcome)
}

func (d *Dispatcher) businessMessage(ctx context.Context, msg *telegram.Message, trace *ingesttrace.UpdateTrace) string {
	slog.Debug("bot: business message", "chat", msg.Chat.ID, "message", msg.MessageID, "connection", msg.BusinessConnectionID)
	d.deps.Watcher.Check(ctx, msg)
	d.deps.Cache.Remember(msg.Snapshot(""))
	trace.Inc(ingesttrace.StageCached)

	if d.deps.Commands.Business(ctx, msg) {
		trace.Inc(ingesttrace.StageRouted)
		return "handled"
	}
	if msg.ReplyToMessage == nil {
		return ""
	}
	trace.Inc(ingesttrace.StageRouted)
	outcome := d.deps.Reconcile.ReplyMedia(ctx, msg)
	if outcome == reconcile.OutcomeNotMedia {
		return ""
	}
	if outcome == reconcile.OutcomeNotified {
		trace.Inc(ingesttrace.StageNotified)
	}
	return string(outcome)
}

func (d *Dispatcher) callback(ctx context.Context, cq *telegram.CallbackQuery) string {
	if botwatch.Handles(cq.Data) {
		d.deps.Watcher.HandleCallback(ctx, cq)
		return "handled"
	}
	if d.deps.Commands.Callback(ctx, cq) {
		return "handled"
	}
	if err := d.deps.Client.AnswerCallbackQuery(ctx, cq.ID, "", false); err != nil {
		log.Printf("bot: answer unknown callback: %v", err)
	}
	return "unknown_callback"
}

// connection keeps the registry in step with the account's business
// connection and tells the owner what changed.
func (d *Dispatcher) connection(ctx context.Context, bc *telegram.BusinessConnection) {
	chatID := bc.UserChatID
	owner := bc.User.ID
	canReply := bc.CanReplyMessages()
	log.Printf("bot: business connection %s user=%d enabled=%t can_reply=%t chat=%d",
		bc.ID, owner, bc.IsEnabled, canReply, chatID)

	switch {
	case bc.IsEnabled && chatID != 0:
		if err := d.deps.Registry.Upsert(bc.ID, chatID, owner); err != nil {
			log.Printf("bot: save business connection %s: %v", bc.ID, err)
		}
	case !bc.IsEnabled:
		if err := d.deps.Registry.Remove(bc.ID); err != nil && !errors.Is(err, registry.ErrUnknownConnection) {
			log.Printf("bot: remove business connection %s: %v", bc.ID, err)
		}
	}
	slog.Info("bot: business connections", "total", d.deps.Registry.Len())

	if chatID == 0 {
		return
	}
	switch {
	case bc.IsEnabled && !canReply:
		d.permissionNotice(ctx, chatID)
	case bc.IsEnabled:
		d.send(ctx, chatID, welcomeText, commands.CommandsButton())
	default:
		d.send(ctx, chatID, disabledText, commands.MainKeyboard())
	}
}

func (d *Dispatcher) permissionNotice(ctx context.Context, chatID int64) {
	if path, ok := d.permissionImage(); ok {
		err := d.uploadPhoto(ctx, chatID, path)
		if err == nil {
			return
		}
		log.Printf("bot: permissions image: %v", err)
	}
	d.send(ctx, chatID, noRightsText, commands.MainKeyboard())
}

func (d *Dispatcher) permissionImage() (string, bool) {
	if d.opts.ImageDir == "" {
		return "", false
	}
	for _, name := range permissionImages {
		path := filepath.Join(d.opts.ImageDir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func (d *Dispatcher) uploadPhoto(ctx context.Context, chatID int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return d.deps.Client.UploadMedia(ctx, chatID, core.MediaPhoto, filepath.Base(path), f, noRightsText)
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string, markup any) {
	if _, err := d.deps.Client.SendMessage(ctx, chatID, text, &telegram.SendOptions{ReplyMarkup: markup}); err != nil {
		log.Printf("bot: send to %d failed: %v", chatID, err)
	}
}

func (d *Dispatcher) count(kind, outcome string) {
	if d.deps.Metrics == nil {
		return
	}
	if outcome == "" {
		outcome = "ignored"
	}
	d.deps.Metrics.Update(kind, outcome)
}
