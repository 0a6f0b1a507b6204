package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/you/eternalmod/internal/core"
)

type apiCall struct {
	Method      string
	Params      map[string]any
	ContentType string
	Form        map[string]string
	FileField   string
	FileName    string
	FileBody    string
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	replies map[string]string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()
	api := &fakeAPI{replies: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)
	return api, New("TOKEN", Options{APIBase: srv.URL, HTTP: srv.Client()})
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/botTOKEN/") {
		_, _ = io.WriteString(w, "file:"+strings.TrimPrefix(r.URL.Path, "/file/botTOKEN/"))
		return
	}
	method := strings.TrimPrefix(r.URL.Path, "/botTOKEN/")
	call := apiCall{Method: method, ContentType: r.Header.Get("Content-Type")}

	if strings.HasPrefix(call.ContentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			call.Form = make(map[string]string)
			for k, v := range r.MultipartForm.Value {
				call.Form[k] = v[0]
			}
			for field, headers := range r.MultipartForm.File {
				call.FileField = field
				call.FileName = headers[0].Filename
				fh, _ := headers[0].Open()
				data, _ := io.ReadAll(fh)
				fh.Close()
				call.FileBody = string(data)
			}
		}
	} else {
		_ = json.NewDecoder(r.Body).Decode(&call.Params)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	reply, ok := f.replies[method]
	f.mu.Unlock()
	if !ok {
		reply = `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, reply)
}

func (f *fakeAPI) last(t *testing.T) apiCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatalf("no api calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

func TestSendMessageUsesHTMLAndOptions(t *testing.T) {
	api, c := newFakeAPI(t)
	api.replies["sendMessage"] = `{"ok":true,"result":{"message_id":9,"chat":{"id":555,"type":"private"}}}`

	markup := InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{{Text: "x", CallbackData: "check_sub"}}}}
	msg, err := c.SendMessage(context.Background(), 555, "<b>hi</b>", &SendOptions{ReplyMarkup: markup, BusinessConnectionID: "bc1"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.MessageID != 9 || msg.Chat.ID != 555 {
		t.Fatalf("unexpected result %+v", msg)
	}

	call := api.last(t)
	if call.Method != "sendMessage" {
		t.Fatalf("unexpected method %s", call.Method)
	}
	if call.Params["parse_mode"] != "HTML" || call.Params["business_connection_id"] != "bc1" {
		t.Fatalf("unexpected params %+v", call.Params)
	}
	if _, ok := call.Params["reply_markup"].(map[string]any); !ok {
		t.Fatalf("expected reply_markup object, got %T", call.Params["reply_markup"])
	}
}

func TestAPIErrorCarriesRetryAfter(t *testing.T) {
	api, c := newFakeAPI(t)
	api.replies["sendMessage"] = `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`

	_, err := c.SendMessage(context.Background(), 1, "x", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 429 || apiErr.RetryAfter != 3*time.Second || apiErr.Method != "sendMessage" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if wait, ok := RetryAfter(err); !ok || wait != 3*time.Second {
		t.Fatalf("expected retry hint, got %s ok=%v", wait, ok)
	}
}

func TestIsSelfDestructing(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&APIError{Description: "Bad Request: MEDIA_SelfDestructing"}, true},
		{&APIError{Description: "Bad Request: message is SELFDESTRUCT"}, true},
		{&APIError{Description: "Bad Request: wrong file identifier"}, false},
		{errors.New("SelfDestructing but not an api error"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsSelfDestructing(tc.err); got != tc.want {
			t.Fatalf("IsSelfDestructing(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestSendMediaPicksMethodPerKind(t *testing.T) {
	api, c := newFakeAPI(t)
	ctx := context.Background()

	if err := c.SendMedia(ctx, 5, core.Media{Kind: core.MediaPhoto, FileID: "ph"}, "cap"); err != nil {
		t.Fatalf("send photo: %v", err)
	}
	call := api.last(t)
	if call.Method != "sendPhoto" || call.Params["photo"] != "ph" || call.Params["caption"] != "cap" {
		t.Fatalf("unexpected photo call %+v", call)
	}

	if err := c.SendMedia(ctx, 5, core.Media{Kind: core.MediaVideoNote, FileID: "vn"}, "cap"); err != nil {
		t.Fatalf("send video note: %v", err)
	}
	call = api.last(t)
	if call.Method != "sendVideoNote" || call.Params["video_note"] != "vn" {
		t.Fatalf("unexpected video note call %+v", call)
	}
	if _, ok := call.Params["caption"]; ok {
		t.Fatalf("video note must not carry a caption")
	}

	if err := c.SendMedia(ctx, 5, core.Media{}, ""); err == nil {
		t.Fatalf("expected error for empty media")
	}
}

func TestUploadMediaMultipart(t *testing.T) {
	api, c := newFakeAPI(t)
	err := c.UploadMedia(context.Background(), 77, core.MediaVoice, "media.oga", strings.NewReader("OGG"), "note")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	call := api.last(t)
	if call.Method != "sendVoice" || call.FileField != "voice" || call.FileName != "media.oga" || call.FileBody != "OGG" {
		t.Fatalf("unexpected upload %+v", call)
	}
	if call.Form["chat_id"] != "77" || call.Form["caption"] != "note" || call.Form["parse_mode"] != "HTML" {
		t.Fatalf("unexpected form %+v", call.Form)
	}
}

func TestGetFileAndOpen(t *testing.T) {
	api, c := newFakeAPI(t)
	api.replies["getFile"] = `{"ok":true,"result":{"file_id":"f1","file_path":"photos/file_1.jpg","file_size":10}}`

	f, err := c.GetFile(context.Background(), "f1")
	if err != nil {
		t.Fatalf("getFile: %v", err)
	}
	body, err := c.OpenFile(context.Background(), f.FilePath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "file:photos/file_1.jpg" {
		t.Fatalf("unexpected download %q", data)
	}

	api.replies["getFile"] = `{"ok":true,"result":{"file_id":"f2"}}`
	if _, err := c.GetFile(context.Background(), "f2"); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestEditMessageTextIgnoresNotModified(t *testing.T) {
	api, c := newFakeAPI(t)
	api.replies["editMessageText"] = `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`
	if err := c.EditMessageText(context.Background(), 1, 2, "same", nil); err != nil {
		t.Fatalf("expected not-modified to be ignored, got %v", err)
	}
}

func TestMessageHelpers(t *testing.T) {
	var msg Message
	raw := `{"message_id":7,"chat":{"id":100,"type":"private"},"from":{"id":1,"first_name":"Alice","last_name":"Liddell"},
"caption":"look","photo":[{"file_id":"small"},{"file_id":"big"}],"video":{"file_id":"vid"},"business_connection_id":"bc1"}`
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m := msg.Media(); m.Kind != core.MediaPhoto || m.FileID != "big" {
		t.Fatalf("expected largest photo to win, got %+v", m)
	}
	snap := msg.Snapshot("")
	if snap.Content != "look" || snap.BusinessConnectionID != "bc1" || snap.Author.Name != "Alice Liddell" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if over := msg.Snapshot("bc2"); over.BusinessConnectionID != "bc2" {
		t.Fatalf("expected override connection")
	}

	empty := Message{MessageID: 1}
	if empty.Content() != core.NoText || empty.Media().Present() {
		t.Fatalf("unexpected empty message helpers")
	}
	if empty.Snapshot("").Author.ID != 0 {
		t.Fatalf("expected unknown author")
	}

	upd := Update{DeletedBusinessMessages: &BusinessMessagesDeleted{Chat: Chat{ID: 3}}}
	if upd.Kind() != KindDeletedBusinessMessages || upd.ChatID() != 3 {
		t.Fatalf("unexpected update kind %s chat %d", upd.Kind(), upd.ChatID())
	}
}

func TestBusinessConnectionRights(t *testing.T) {
	legacy := BusinessConnection{CanReply: true}
	if !legacy.CanReplyMessages() {
		t.Fatalf("expected legacy can_reply")
	}
	modern := BusinessConnection{CanReply: true, Rights: &BusinessBotRights{CanReply: false}}
	if modern.CanReplyMessages() {
		t.Fatalf("expected rights object to take precedence")
	}
}

func TestTransportErrorsHideToken(t *testing.T) {
	const token = "123456:SECRET-TOKEN-abcdef"
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(token, Options{APIBase: base})
	ctx := context.Background()

	_, err := c.GetChatMember(ctx, "@chan", 1)
	if err == nil {
		t.Fatalf("expected getChatMember to fail against a closed server")
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("token leaked in error: %v", err)
	}
	if !strings.Contains(err.Error(), "getChatMember") {
		t.Fatalf("expected method name in error, got %v", err)
	}

	_, err = c.OpenFile(ctx, "photos/x.jpg")
	if err == nil {
		t.Fatalf("expected download to fail against a closed server")
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("token leaked in error: %v", err)
	}
}

func TestTransportErrorsKeepCause(t *testing.T) {
	_, c := newFakeAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetMe(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled to survive redaction, got %v", err)
	}
	if strings.Contains(err.Error(), "TOKEN") {
		t.Fatalf("token leaked in error: %v", err)
	}
}
