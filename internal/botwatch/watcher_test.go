package botwatch

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/you/eternalmod/internal/sink"
	"github.com/you/eternalmod/internal/telegram"
)

type sentMessage struct {
	chatID int64
	text   string
	opts   *telegram.SendOptions
}

type answer struct {
	text  string
	alert bool
}

type fakeSender struct {
	sent    []sentMessage
	edits   []string
	answers []answer
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error) {
	f.sent = append(f.sent, sentMessage{chatID, text, opts})
	return &telegram.Message{}, nil
}

func (f *fakeSender) EditMessageText(_ context.Context, _, _ int64, text string, _ any) error {
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, _ string, text string, alert bool) error {
	f.answers = append(f.answers, answer{text, alert})
	return nil
}

const admin = 900

func newWatcher(t *testing.T) (*Watcher, *fakeSender, *sink.SQLiteSink) {
	t.Helper()
	store, err := sink.OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	s := &fakeSender{}
	w := New(store, s, admin)
	w.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return w, s, store
}

func TestCandidates(t *testing.T) {
	msg := &telegram.Message{
		From:              &telegram.User{ID: 1, IsBot: true, Username: "Spam_Bot"},
		Text:              "try @GiftGuarantor_bot and @shop_robot, not @alice or @xbot",
		ForwardFrom:       &telegram.User{IsBot: true, Username: "fwdbot"},
		ForwardSenderName: "Gift Bot",
	}
	got := Candidates(msg)
	want := []string{"fwdbot", "gift_bot", "giftguarantor_bot", "shop_robot", "spam_bot"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}

	if Candidates(&telegram.Message{From: &telegram.User{ID: 2}, Text: "hello"}) != nil {
		t.Fatalf("expected no candidates for plain text")
	}
	if Candidates(&telegram.Message{Text: "@some_bot"}) != nil {
		t.Fatalf("messages without a sender are ignored")
	}
	origin := &telegram.Message{
		From:          &telegram.User{ID: 3},
		ForwardOrigin: &telegram.MessageOrigin{Type: "hidden_user", SenderUserName: "Robo.Bot"},
	}
	if got := Candidates(origin); len(got) != 1 || got[0] != "robobot" {
		t.Fatalf("unexpected hidden forward candidates %v", got)
	}
}

func TestCheckWarnsOnce(t *testing.T) {
	w, s, _ := newWatcher(t)
	msg := &telegram.Message{
		From:                 &telegram.User{ID: 5},
		Chat:                 telegram.Chat{ID: 100},
		Text:                 "use @gift_bot",
		BusinessConnectionID: "bc1",
	}
	if n := w.Check(context.Background(), msg); n != 1 {
		t.Fatalf("expected one warning, got %d", n)
	}
	if n := w.Check(context.Background(), msg); n != 0 {
		t.Fatalf("expected repeat sighting to be silent, got %d", n)
	}

	warn := s.sent[0]
	if warn.chatID != 100 || !strings.Contains(warn.text, "видит бота @gift_bot впервые") {
		t.Fatalf("unexpected warning %+v", warn)
	}
	if warn.opts.BusinessConnectionID != "bc1" {
		t.Fatalf("expected warning sent through the business connection")
	}
	kb := warn.opts.ReplyMarkup.(telegram.InlineKeyboardMarkup)
	if data := kb.InlineKeyboard[0][0].CallbackData; data != "report_new_bot_bot_gift_bot_100" {
		t.Fatalf("unexpected callback data %q", data)
	}
}

func TestCheckAlertsOnKnownScam(t *testing.T) {
	w, s, store := newWatcher(t)
	ctx := context.Background()
	if err := store.MarkScam(ctx, "bot_gift_bot", "test", admin, time.Now()); err != nil {
		t.Fatalf("seed scam: %v", err)
	}
	msg := &telegram.Message{
		From:                 &telegram.User{ID: 5},
		Chat:                 telegram.Chat{ID: 100},
		Text:                 "use @gift_bot or @fresh_bot",
		BusinessConnectionID: "bc1",
	}
	if n := w.Check(ctx, msg); n != 2 {
		t.Fatalf("expected scam alert and first-sighting warning, got %d", n)
	}
	if n := w.Check(ctx, msg); n != 1 {
		t.Fatalf("expected scam alert to repeat, got %d", n)
	}

	var alerts int
	for _, m := range s.sent {
		if strings.Contains(m.text, "@gift_bot помечен командой EternalMOD как <b>скам</b>") {
			alerts++
			if m.opts.ReplyMarkup != nil {
				t.Fatalf("scam alert must not offer a report button")
			}
			if m.opts.BusinessConnectionID != "bc1" {
				t.Fatalf("expected scam alert through the business connection")
			}
		}
		if strings.Contains(m.text, "видит бота @gift_bot впервые") {
			t.Fatalf("scam bot must not get the first-sighting warning")
		}
	}
	if alerts != 2 {
		t.Fatalf("expected 2 scam alerts, got %d", alerts)
	}
}

func TestParseCallbackKeepsUnderscores(t *testing.T) {
	key, chat, ok := parseCallback("report_new_bot_bot_my_cool_bot_-100123", PrefixReport)
	if !ok || key != "bot_my_cool_bot" || chat != -100123 {
		t.Fatalf("unexpected parse key=%q chat=%d ok=%v", key, chat, ok)
	}
	for _, bad := range []string{"report_new_bot_", "report_new_bot_key_", "report_new_bot_key_x", "other_key_1"} {
		if _, _, ok := parseCallback(bad, PrefixReport); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestReportGoesToAdmin(t *testing.T) {
	w, s, _ := newWatcher(t)
	cq := &telegram.CallbackQuery{ID: "q", From: telegram.User{ID: 5}, Data: "report_new_bot_bot_my_cool_bot_100"}
	w.HandleCallback(context.Background(), cq)

	if len(s.sent) != 1 || s.sent[0].chatID != admin {
		t.Fatalf("expected admin notice, got %+v", s.sent)
	}
	if !strings.Contains(s.sent[0].text, "Бот: @my_cool_bot") || !strings.Contains(s.sent[0].text, "Время: 2026-03-01 10:00:00") {
		t.Fatalf("unexpected admin text %q", s.sent[0].text)
	}
	kb := s.sent[0].opts.ReplyMarkup.(telegram.InlineKeyboardMarkup)
	if kb.InlineKeyboard[0][1].CallbackData != "mark_scam_bot_my_cool_bot_100" {
		t.Fatalf("unexpected verdict buttons %+v", kb)
	}
	if s.answers[0].text != "Бот отправлен на проверку владельцу!" {
		t.Fatalf("unexpected answer %+v", s.answers)
	}
}

func TestVerdictsRequireAdmin(t *testing.T) {
	w, s, _ := newWatcher(t)
	cq := &telegram.CallbackQuery{ID: "q", From: telegram.User{ID: 5}, Data: "approve_bot_bot_x_bot_100"}
	w.HandleCallback(context.Background(), cq)
	if len(s.answers) != 1 || s.answers[0].text != "Только владелец может решать" || !s.answers[0].alert {
		t.Fatalf("expected owner-only alert, got %+v", s.answers)
	}
	if len(s.sent) != 0 {
		t.Fatalf("non-admin verdict must not notify")
	}
}

func TestApproveScamIgnore(t *testing.T) {
	w, s, store := newWatcher(t)
	ctx := context.Background()
	if _, err := store.MarkBotSeen(ctx, "bot_x_bot", 100, time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	adminMsg := &telegram.Message{MessageID: 1, Chat: telegram.Chat{ID: admin}, Text: "📩 Новая проверка"}

	w.HandleCallback(ctx, &telegram.CallbackQuery{ID: "a", From: telegram.User{ID: admin}, Message: adminMsg, Data: "approve_bot_bot_x_bot_100"})
	if fresh, _ := store.MarkBotSeen(ctx, "bot_x_bot", 100, time.Now()); !fresh {
		t.Fatalf("approve should forget the sighting")
	}
	if s.sent[0].chatID != 100 || !strings.Contains(s.sent[0].text, "@x_bot одобрен") {
		t.Fatalf("unexpected approve notice %+v", s.sent[0])
	}
	if s.edits[0] != "📩 Новая проверка\n\n✅ Одобрено владельцем" {
		t.Fatalf("unexpected admin edit %q", s.edits[0])
	}

	w.HandleCallback(ctx, &telegram.CallbackQuery{ID: "b", From: telegram.User{ID: admin}, Message: adminMsg, Data: "mark_scam_bot_x_bot_100"})
	if scam, _ := store.IsScam(ctx, "bot_x_bot"); !scam {
		t.Fatalf("expected scam verdict stored")
	}
	if !strings.Contains(s.sent[1].text, "<b>скам</b>") {
		t.Fatalf("unexpected scam notice %q", s.sent[1].text)
	}

	w.HandleCallback(ctx, &telegram.CallbackQuery{ID: "c", From: telegram.User{ID: admin}, Message: adminMsg, Data: "ignore_bot_bot_x_bot_100"})
	if len(s.sent) != 2 {
		t.Fatalf("ignore must not notify the chat")
	}
	if !strings.HasSuffix(s.edits[2], "❌ Игнорировано владельцем") {
		t.Fatalf("unexpected ignore edit %q", s.edits[2])
	}
	if !Handles("ignore_bot_x_1") || Handles("check_sub") {
		t.Fatalf("unexpected Handles result")
	}
}
