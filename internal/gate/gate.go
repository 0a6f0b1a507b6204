package gate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/you/eternalmod/internal/telegram"
)

const DefaultCooldown = time.Hour

const (
	// PromptText answers a gated action.
	PromptText = "⚠️ <b>Требуется подписка</b>\n\n" +
		"Для продолжения работы с ботом подпишись на канал и нажми «Проверить подписку»."

	// NoticeText tells a business owner that mirroring is paused.
	NoticeText = "⚠️ <b>Доступ к функциям бизнес-бота закрыт</b>\n\n" +
		"Для использования функций отслеживания изменённых, удалённых и исчезающих сообщений " +
		"необходимо подписаться на канал.\n\n" +
		"Подпишись на канал и нажми «Проверить подписку» для восстановления доступа."

	CheckSubscriptionData = "check_sub"
)

// MembershipChecker looks a user up in a chat.
type MembershipChecker interface {
	GetChatMember(ctx context.Context, chat string, userID int64) (*telegram.ChatMember, error)
}

// Sender delivers gate prompts.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error)
}

// Gate decides whether a user may use the bot, based on membership of the
// required channel. Any lookup failure counts as not subscribed.
type Gate struct {
	checker    MembershipChecker
	channel    string
	channelURL string
	now        func() time.Time

	mu         sync.Mutex
	cooldown   time.Duration
	lastNotice map[int64]time.Time
}

func New(checker MembershipChecker, channel, channelURL string, cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Gate{
		checker:    checker,
		channel:    channel,
		channelURL: channelURL,
		now:        time.Now,
		cooldown:   cooldown,
		lastNotice: make(map[int64]time.Time),
	}
}

func isMemberStatus(status string) bool {
	switch status {
	case "member", "administrator", "creator":
		return true
	default:
		return false
	}
}

// IsSubscribed reports whether userID is a member of the required channel.
func (g *Gate) IsSubscribed(ctx context.Context, userID int64) bool {
	if userID == 0 {
		return false
	}
	ctx, cancel := telegram.WithTimeout(ctx)
	defer cancel()
	member, err := g.checker.GetChatMember(ctx, g.channel, userID)
	if err != nil {
		log.Printf("gate: membership check failed user=%d: %v", userID, err)
		return false
	}
	return isMemberStatus(member.Status)
}

// Keyboard is the subscribe / re-check markup attached to every prompt.
func (g *Gate) Keyboard() telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "🔔 Подписаться", URL: g.channelURL}},
		{{Text: "✅ Проверить подписку", CallbackData: CheckSubscriptionData}},
	}}
}

// Prompt sends the subscription prompt to chatID.
func (g *Gate) Prompt(ctx context.Context, s Sender, chatID int64, businessConnectionID string) {
	opts := &telegram.SendOptions{ReplyMarkup: g.Keyboard(), BusinessConnectionID: businessConnectionID}
	if _, err := s.SendMessage(ctx, chatID, PromptText, opts); err != nil {
		log.Printf("gate: prompt to %d failed: %v", chatID, err)
	}
}

// SetCooldown changes the minimum gap between notices to one owner.
func (g *Gate) SetCooldown(d time.Duration) {
	if d <= 0 {
		d = DefaultCooldown
	}
	g.mu.Lock()
	g.cooldown = d
	g.mu.Unlock()
}

func (g *Gate) Cooldown() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cooldown
}

// ResetCooldown forgets the last notice to ownerID.
func (g *Gate) ResetCooldown(ownerID int64) {
	g.mu.Lock()
	delete(g.lastNotice, ownerID)
	g.mu.Unlock()
}

// claimNotice reports whether a notice to ownerID is due and, if so, marks it
// as sent now.
func (g *Gate) claimNotice(ownerID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if last, ok := g.lastNotice[ownerID]; ok && now.Sub(last) < g.cooldown {
		return false
	}
	g.lastNotice[ownerID] = now
	return true
}

// Notice sends the paused-mirroring notice for ownerID to chatID unless one
// went out within the cooldown. It reports whether a notice was sent.
func (g *Gate) Notice(ctx context.Context, s Sender, chatID, ownerID int64) bool {
	if !g.claimNotice(ownerID) {
		return false
	}
	if _, err := s.SendMessage(ctx, chatID, NoticeText, &telegram.SendOptions{ReplyMarkup: g.Keyboard()}); err != nil {
		log.Printf("gate: notice to %d failed: %v", chatID, err)
	}
	return true
}
