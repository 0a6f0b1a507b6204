package bot

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/you/eternalmod/internal/core"
	"github.com/you/eternalmod/internal/reconcile"
	"github.com/you/eternalmod/internal/registry"
	"github.com/you/eternalmod/internal/telegram"
)

type sentMessage struct {
	chatID int64
	text   string
	markup any
}

type fakeClient struct {
	sent      []sentMessage
	uploads   []string
	uploadErr error
	answers   []string
}

func (f *fakeClient) SendMessage(_ context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error) {
	var markup any
	if opts != nil {
		markup = opts.ReplyMarkup
	}
	f.sent = append(f.sent, sentMessage{chatID, text, markup})
	return &telegram.Message{}, nil
}

func (f *fakeClient) UploadMedia(_ context.Context, _ int64, kind core.MediaKind, filename string, data io.Reader, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	if _, err := io.ReadAll(data); err != nil {
		return err
	}
	f.uploads = append(f.uploads, string(kind)+":"+filename)
	return nil
}

func (f *fakeClient) AnswerCallbackQuery(_ context.Context, id, _ string, _ bool) error {
	f.answers = append(f.answers, id)
	return nil
}

type fakeCache struct{ snaps []core.Snapshot }

func (f *fakeCache) Remember(s core.Snapshot) { f.snaps = append(f.snaps, s) }

type fakeRegistry struct {
	entries map[string][2]int64
}

func (f *fakeRegistry) Upsert(id string, chatID, ownerID int64) error {
	f.entries[id] = [2]int64{chatID, ownerID}
	return nil
}

func (f *fakeRegistry) Remove(id string) error {
	if _, ok := f.entries[id]; !ok {
		return registry.ErrUnknownConnection
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeRegistry) Len() int { return len(f.entries) }

type fakeReconciler struct {
	edited, deleted, replies int
	outcome                  reconcile.Outcome
}

func (f *fakeReconciler) Edited(context.Context, *telegram.Message) reconcile.Outcome {
	f.edited++
	return f.outcome
}

func (f *fakeReconciler) Deleted(context.Context, *telegram.BusinessMessagesDeleted) reconcile.Outcome {
	f.deleted++
	return f.outcome
}

func (f *fakeReconciler) ReplyMedia(context.Context, *telegram.Message) reconcile.Outcome {
	f.replies++
	return f.outcome
}

type fakeWatcher struct {
	checked   int
	callbacks []string
}

func (f *fakeWatcher) Check(context.Context, *telegram.Message) int {
	f.checked++
	return 0
}

func (f *fakeWatcher) HandleCallback(_ context.Context, cq *telegram.CallbackQuery) {
	f.callbacks = append(f.callbacks, cq.Data)
}

type fakeCommands struct {
	private    int
	business   bool
	businessN  int
	callback   bool
	callbacks  []string
	panicOnDot bool
}

func (f *fakeCommands) Private(context.Context, *telegram.Message) {
	if f.panicOnDot {
		panic("boom")
	}
	f.private++
}

func (f *fakeCommands) Business(context.Context, *telegram.Message) bool {
	f.businessN++
	return f.business
}

func (f *fakeCommands) Callback(_ context.Context, cq *telegram.CallbackQuery) bool {
	f.callbacks = append(f.callbacks, cq.Data)
	return f.callback
}

type fakeMetrics struct{ seen []string }

func (f *fakeMetrics) Update(kind, outcome string) { f.seen = append(f.seen, kind+"/"+outcome) }

type harness struct {
	d        *Dispatcher
	client   *fakeClient
	cache    *fakeCache
	registry *fakeRegistry
	rec      *fakeReconciler
	watcher  *fakeWatcher
	cmds     *fakeCommands
	metrics  *fakeMetrics
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		client:   &fakeClient{},
		cache:    &fakeCache{},
		registry: &fakeRegistry{entries: make(map[string][2]int64)},
		rec:      &fakeReconciler{outcome: reconcile.OutcomeNotified},
		watcher:  &fakeWatcher{},
		cmds:     &fakeCommands{},
		metrics:  &fakeMetrics{},
	}
	h.d = New(Deps{
		Client:    h.client,
		Cache:     h.cache,
		Registry:  h.registry,
		Reconcile: h.rec,
		Watcher:   h.watcher,
		Commands:  h.cmds,
		Metrics:   h.metrics,
	}, opts)
	return h
}

func privateMessage(text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 7,
		From:      &telegram.User{ID: 42, FirstName: "Ann"},
		Chat:      telegram.Chat{ID: 42, Type: "private"},
		Text:      text,
	}
}

func TestPrivateMessageIsCachedAndRouted(t *testing.T) {
	h := newHarness(t, Options{})
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 1, Message: privateMessage("hi")})

	if len(h.cache.snaps) != 1 || h.cache.snaps[0].Content != "hi" {
		t.Fatalf("expected message cached, got %+v", h.cache.snaps)
	}
	if h.cmds.private != 1 {
		t.Fatalf("expected private handler to run once, got %d", h.cmds.private)
	}
	if got := h.metrics.seen; len(got) != 1 || got[0] != "message/handled" {
		t.Fatalf("unexpected metrics %v", got)
	}
}

func TestGroupMessageOnlyCached(t *testing.T) {
	h := newHarness(t, Options{})
	msg := privateMessage("hi")
	msg.Chat = telegram.Chat{ID: -100, Type: "supergroup"}
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 2, Message: msg})

	if len(h.cache.snaps) != 1 {
		t.Fatalf("expected group message cached")
	}
	if h.cmds.private != 0 {
		t.Fatalf("group messages must not reach private commands")
	}
	if got := h.metrics.seen[0]; got != "message/not_private" {
		t.Fatalf("unexpected outcome %q", got)
	}
}

func TestMessageWithoutSenderSkipped(t *testing.T) {
	h := newHarness(t, Options{})
	msg := privateMessage("hi")
	msg.From = nil
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 3, Message: msg})
	if len(h.cache.snaps) != 0 {
		t.Fatalf("expected nothing cached")
	}
}

func TestEditsRunWatcherThenReconcile(t *testing.T) {
	h := newHarness(t, Options{})
	msg := privateMessage("edited")
	msg.BusinessConnectionID = "bc"
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 4, EditedBusinessMessage: msg})
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 5, EditedMessage: msg})

	if h.watcher.checked != 2 || h.rec.edited != 2 {
		t.Fatalf("expected both edits checked and reconciled, got %d/%d", h.watcher.checked, h.rec.edited)
	}
}

func TestDegradedEditCountsAsNotified(t *testing.T) {
	h := newHarness(t, Options{})
	h.rec.outcome = reconcile.OutcomeDegraded
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 6, EditedBusinessMessage: privateMessage("x")})
	if got := h.metrics.seen[0]; got != "edited_business_message/notified" {
		t.Fatalf("unexpected outcome %q", got)
	}
}

func TestBusinessMessageCommandStopsReplyMedia(t *testing.T) {
	h := newHarness(t, Options{})
	h.cmds.business = true
	msg := privateMessage(".love")
	msg.BusinessConnectionID = "bc"
	msg.ReplyToMessage = privateMessage("photo")
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 7, BusinessMessage: msg})

	if h.watcher.checked != 1 {
		t.Fatalf("expected watcher check")
	}
	if len(h.cache.snaps) != 1 {
		t.Fatalf("expected business message cached")
	}
	if h.rec.replies != 0 {
		t.Fatalf("commands must short-circuit reply media")
	}
}

func TestBusinessReplyGoesToReplyMedia(t *testing.T) {
	h := newHarness(t, Options{})
	msg := privateMessage("look")
	msg.BusinessConnectionID = "bc"
	msg.ReplyToMessage = privateMessage("")
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 8, BusinessMessage: msg})
	if h.rec.replies != 1 {
		t.Fatalf("expected reply media routing")
	}

	plain := privateMessage("no reply")
	plain.BusinessConnectionID = "bc"
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 9, BusinessMessage: plain})
	if h.rec.replies != 1 {
		t.Fatalf("plain business message must not hit reply media")
	}
	if got := h.metrics.seen[1]; got != "business_message/ignored" {
		t.Fatalf("unexpected outcome %q", got)
	}
}

func TestDeletedRoutesToReconcile(t *testing.T) {
	h := newHarness(t, Options{})
	h.rec.outcome = reconcile.OutcomeUnknownConnection
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 10, DeletedBusinessMessages: &telegram.BusinessMessagesDeleted{
		BusinessConnectionID: "bc",
		Chat:                 telegram.Chat{ID: 5},
		MessageIDs:           []int64{1, 2},
	}})
	if h.rec.deleted != 1 {
		t.Fatalf("expected delete routing")
	}
	if got := h.metrics.seen[0]; got != "deleted_business_messages/unknown_connection" {
		t.Fatalf("unexpected outcome %q", got)
	}
}

func TestCallbackRouting(t *testing.T) {
	h := newHarness(t, Options{})
	cq := func(data string) telegram.Update {
		return telegram.Update{CallbackQuery: &telegram.CallbackQuery{ID: data, Data: data}}
	}

	h.d.Handle(context.Background(), cq("approve_bot_bot_x_1"))
	if len(h.watcher.callbacks) != 1 || len(h.cmds.callbacks) != 0 {
		t.Fatalf("bot verdicts belong to the watcher")
	}

	h.cmds.callback = true
	h.d.Handle(context.Background(), cq("rofl"))
	if len(h.cmds.callbacks) != 1 || len(h.client.answers) != 0 {
		t.Fatalf("expected commands to handle rofl")
	}

	h.cmds.callback = false
	h.d.Handle(context.Background(), cq("mystery"))
	if len(h.client.answers) != 1 || h.client.answers[0] != "mystery" {
		t.Fatalf("unknown callbacks must still be answered, got %v", h.client.answers)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness(t, Options{})
	h.cmds.panicOnDot = true
	h.d.Handle(context.Background(), telegram.Update{UpdateID: 11, Message: privateMessage("x")})

	if got := h.metrics.seen; len(got) != 1 || got[0] != "message/panic" {
		t.Fatalf("expected panic outcome, got %v", got)
	}
}

func TestConnectionEnabledWelcomes(t *testing.T) {
	h := newHarness(t, Options{})
	h.d.Handle(context.Background(), telegram.Update{BusinessConnection: &telegram.BusinessConnection{
		ID: "bc", User: telegram.User{ID: 42}, UserChatID: 420, IsEnabled: true, CanReply: true,
	}})

	if got := h.registry.entries["bc"]; got != [2]int64{420, 42} {
		t.Fatalf("expected registry entry, got %v", got)
	}
	if len(h.client.sent) != 1 || h.client.sent[0].text != welcomeText || h.client.sent[0].chatID != 420 {
		t.Fatalf("expected welcome, got %+v", h.client.sent)
	}
}

func TestConnectionWithoutRightsFallsBackToText(t *testing.T) {
	h := newHarness(t, Options{ImageDir: t.TempDir()})
	h.d.Handle(context.Background(), telegram.Update{BusinessConnection: &telegram.BusinessConnection{
		ID: "bc", User: telegram.User{ID: 42}, UserChatID: 420, IsEnabled: true,
		Rights: &telegram.BusinessBotRights{CanReply: false}, CanReply: true,
	}})

	if len(h.client.uploads) != 0 {
		t.Fatalf("no image exists, nothing should be uploaded")
	}
	if len(h.client.sent) != 1 || h.client.sent[0].text != noRightsText {
		t.Fatalf("expected permissions text, got %+v", h.client.sent)
	}
}

func TestConnectionWithoutRightsSendsImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "permissions.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	h := newHarness(t, Options{ImageDir: dir})
	h.d.Handle(context.Background(), telegram.Update{BusinessConnection: &telegram.BusinessConnection{
		ID: "bc", User: telegram.User{ID: 42}, UserChatID: 420, IsEnabled: true,
	}})

	if len(h.client.uploads) != 1 || h.client.uploads[0] != "photo:permissions.png" {
		t.Fatalf("expected photo upload, got %v", h.client.uploads)
	}
	if len(h.client.sent) != 0 {
		t.Fatalf("image succeeded, no text expected")
	}
}

func TestConnectionDisabledRemovesAndSaysGoodbye(t *testing.T) {
	h := newHarness(t, Options{})
	h.registry.entries["bc"] = [2]int64{420, 42}
	h.d.Handle(context.Background(), telegram.Update{BusinessConnection: &telegram.BusinessConnection{
		ID: "bc", User: telegram.User{ID: 42}, UserChatID: 420, IsEnabled: false,
	}})

	if _, ok := h.registry.entries["bc"]; ok {
		t.Fatalf("expected entry removed")
	}
	if len(h.client.sent) != 1 || h.client.sent[0].text != disabledText {
		t.Fatalf("expected goodbye, got %+v", h.client.sent)
	}

	// A second disable for an unknown id is quiet apart from the goodbye.
	h.d.Handle(context.Background(), telegram.Update{BusinessConnection: &telegram.BusinessConnection{
		ID: "bc", User: telegram.User{ID: 42}, UserChatID: 420,
	}})
	if len(h.client.sent) != 2 {
		t.Fatalf("expected second goodbye")
	}
}

func TestConnectionWithoutChatIsSilent(t *testing.T) {
	h := newHarness(t, Options{})
	h.d.Handle(context.Background(), telegram.Update{BusinessConnection: &telegram.BusinessConnection{
		ID: "bc", User: telegram.User{ID: 42}, IsEnabled: true, CanReply: true,
	}})
	if len(h.registry.entries) != 0 || len(h.client.sent) != 0 {
		t.Fatalf("expected no registry write and no message")
	}
}
