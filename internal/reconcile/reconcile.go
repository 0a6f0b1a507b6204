package reconcile

import (
	"context"
	"fmt"
	"html"
	"log"
	"log/slog"
	"strings"
	"sync"

	"github.com/you/eternalmod/internal/core"
	"github.com/you/eternalmod/internal/diff"
	"github.com/you/eternalmod/internal/gate"
	"github.com/you/eternalmod/internal/media"
	"github.com/you/eternalmod/internal/telegram"
)

// DefaultFooter is appended to every notification.
const DefaultFooter = "\n\n<a href=\"https://t.me/SaveModStarsBot\">Telegram Stars со скидкой</a> 🌟"

const (
	mediaNoteText    = "🧷 Сохранено медиа из ответа (возможное исчезающее).\nАвтор: "
	mediaFailureText = "⚠️ Не смог сохранить медиа из ответа (сообщение недоступно).\n" +
		"Если хочешь, отправь это медиа ещё раз без исчезания."
	degradedEditText = "Сообщение изменено, но старой версии нет в кэше."
)

// Outcome says how an update was resolved.
type Outcome string

const (
	OutcomeNotified          Outcome = "notified"
	OutcomeDegraded          Outcome = "degraded"
	OutcomeNoConnection      Outcome = "no_connection"
	OutcomeUnknownConnection Outcome = "unknown_connection"
	OutcomeGated             Outcome = "gated"
	OutcomeNothingCached     Outcome = "nothing_cached"
	OutcomeNotMedia          Outcome = "not_media"
	OutcomeMediaFailed       Outcome = "media_failed"
)

type Cache interface {
	Remember(core.Snapshot)
	Lookup(chatID, messageID int64) (core.Snapshot, bool)
	ConnectionFor(chatID int64, messageIDs ...int64) string
}

type Registry interface {
	ChatFor(id string) (int64, bool)
	OwnerFor(id string) (int64, bool)
}

type Gate interface {
	IsSubscribed(ctx context.Context, userID int64) bool
	Notice(ctx context.Context, s gate.Sender, chatID, ownerID int64) bool
}

type Recorder interface {
	Record(ctx context.Context, ownerID int64, typ core.EventType, author, content string, oldContent *string) core.Event
}

type Deliverer interface {
	Deliver(ctx context.Context, req media.Request) media.Result
}

// Metrics is optional instrumentation.
type Metrics interface {
	Notification(kind string)
}

type Deps struct {
	Cache    Cache
	Registry Registry
	Gate     Gate
	Events   Recorder
	Sender   gate.Sender
	Media    Deliverer
	Metrics  Metrics
}

// Reconciler turns edit, delete and reply-to-media updates from business
// chats into owner notifications and dashboard events.
type Reconciler struct {
	deps Deps

	mu     sync.RWMutex
	footer string
}

func New(deps Deps) *Reconciler {
	return &Reconciler{deps: deps, footer: DefaultFooter}
}

// SetFooter replaces the HTML appended to notifications.
func (r *Reconciler) SetFooter(footer string) {
	r.mu.Lock()
	r.footer = footer
	r.mu.Unlock()
}

func (r *Reconciler) Footer() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.footer
}

// route resolves the notification chat and owner for a connection and applies
// the subscription gate. ok is false when nothing should be sent.
func (r *Reconciler) route(ctx context.Context, connectionID string) (target, owner int64, outcome Outcome, ok bool) {
	if connectionID == "" {
		return 0, 0, OutcomeNoConnection, false
	}
	target, found := r.deps.Registry.ChatFor(connectionID)
	if !found {
		log.Printf("reconcile: business connection %s not registered; reconnect the bot to restore notifications", connectionID)
		return 0, 0, OutcomeUnknownConnection, false
	}
	owner, _ = r.deps.Registry.OwnerFor(connectionID)
	if owner != 0 && !r.deps.Gate.IsSubscribed(ctx, owner) {
		slog.Info("reconcile: owner not subscribed", "owner", owner, "connection", connectionID)
		if r.deps.Gate.Notice(ctx, r.deps.Sender, target, owner) {
			r.count("gate_notice")
		}
		return target, owner, OutcomeGated, false
	}
	return target, owner, "", true
}

// Edited handles an edited message in any chat the bot can see.
func (r *Reconciler) Edited(ctx context.Context, msg *telegram.Message) Outcome {
	old, cached := r.deps.Cache.Lookup(msg.Chat.ID, msg.MessageID)
	snap := msg.Snapshot("")
	r.deps.Cache.Remember(snap)

	connectionID := msg.BusinessConnectionID
	if connectionID == "" && cached {
		connectionID = old.BusinessConnectionID
	}
	slog.Debug("reconcile: edit", "chat", msg.Chat.ID, "message", msg.MessageID, "connection", connectionID, "cached", cached)

	target, owner, outcome, ok := r.route(ctx, connectionID)
	if !ok {
		return outcome
	}

	footer := r.Footer()
	newText := snap.Content
	if !cached {
		text := html.EscapeString(degradedEditText) + "\n" +
			"Новое: <blockquote>" + html.EscapeString(newText) + "</blockquote>" + footer
		r.send(ctx, target, text)
		r.count("edit_degraded")
		return OutcomeDegraded
	}

	text := fmt.Sprintf("🔏 %s изменил сообщение.\n\n"+
		"<b>Старый текст:</b> <blockquote>%s</blockquote>\n"+
		"<b>Новый текст:</b> <blockquote>%s</blockquote>\n"+
		"Изменилось:\n<blockquote>%s</blockquote>%s",
		old.Author.Mention(),
		html.EscapeString(old.Content),
		html.EscapeString(newText),
		diff.Render(old.Content, newText),
		footer,
	)
	r.send(ctx, target, text)
	r.count("edited")

	if owner != 0 {
		oldContent := old.Content
		r.deps.Events.Record(ctx, owner, core.EventEdited, old.Author.DisplayName(), newText, &oldContent)
	}
	return OutcomeNotified
}

// Deleted handles a batch of deleted business messages.
func (r *Reconciler) Deleted(ctx context.Context, ev *telegram.BusinessMessagesDeleted) Outcome {
	chatID := ev.Chat.ID
	connectionID := ev.BusinessConnectionID
	if connectionID == "" {
		connectionID = r.deps.Cache.ConnectionFor(chatID, ev.MessageIDs...)
	}
	slog.Debug("reconcile: delete", "chat", chatID, "messages", ev.MessageIDs, "connection", connectionID)

	target, owner, outcome, ok := r.route(ctx, connectionID)
	if !ok {
		return outcome
	}

	lines := make([]string, 0, len(ev.MessageIDs))
	for _, id := range ev.MessageIDs {
		snap, found := r.deps.Cache.Lookup(chatID, id)
		if !found {
			continue
		}
		lines = append(lines, "🗑️ Это сообщение было удалено\n\n"+
			"<blockquote>"+snap.Author.Mention()+"\n"+html.EscapeString(snap.Content)+"</blockquote>")
		if owner != 0 {
			r.deps.Events.Record(ctx, owner, core.EventDeleted, snap.Author.DisplayName(), snap.Content, nil)
		}
	}
	if len(lines) == 0 {
		slog.Debug("reconcile: deleted messages were never cached", "chat", chatID, "count", len(ev.MessageIDs))
		return OutcomeNothingCached
	}

	r.send(ctx, target, strings.Join(lines, "\n\n")+r.Footer())
	r.count("deleted")
	return OutcomeNotified
}

// ReplyMedia captures the media a business message replies to, which may be
// a disappearing attachment, into the owner's chat with the bot.
func (r *Reconciler) ReplyMedia(ctx context.Context, msg *telegram.Message) Outcome {
	replied := msg.ReplyToMessage
	if replied == nil || !replied.Media().Present() {
		return OutcomeNotMedia
	}

	target, _, outcome, ok := r.route(ctx, msg.BusinessConnectionID)
	if !ok {
		return outcome
	}

	snap := replied.Snapshot(msg.BusinessConnectionID)
	snap.Key.ChatID = msg.Chat.ID
	r.deps.Cache.Remember(snap)

	footer := r.Footer()
	note := mediaNoteText + snap.Author.Mention() + footer
	res := r.deps.Media.Deliver(ctx, media.Request{
		TargetChat: target,
		SourceChat: msg.Chat.ID,
		MessageID:  replied.MessageID,
		Media:      snap.Media,
		Caption:    note,
	})
	if res.Delivered {
		slog.Info("reconcile: reply media saved", "path", res.Path, "kind", snap.Media.Kind, "target", target)
		r.count("media_saved")
		return OutcomeNotified
	}

	r.send(ctx, target, mediaFailureText+footer)
	r.count("media_failed")
	return OutcomeMediaFailed
}

func (r *Reconciler) send(ctx context.Context, chatID int64, text string) {
	if _, err := r.deps.Sender.SendMessage(ctx, chatID, text, nil); err != nil {
		log.Printf("reconcile: notify %d failed: %v", chatID, err)
	}
}

func (r *Reconciler) count(kind string) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.Notification(kind)
	}
}
