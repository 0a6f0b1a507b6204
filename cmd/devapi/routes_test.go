package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/you/eternalmod/internal/core"
	"github.com/you/eternalmod/internal/httpapi"
)

type fakeRecorder struct {
	got []core.Event
}

func (f *fakeRecorder) Record(_ context.Context, ownerID int64, typ core.EventType, author, content string, old *string) core.Event {
	ev := core.Event{OwnerID: ownerID, Type: typ, Author: author, Content: content, OldContent: old, Timestamp: 1}
	f.got = append(f.got, ev)
	return ev
}

type fakeCounter struct {
	owner int64
	n     int64
}

func (f *fakeCounter) CountEvents(_ context.Context, ownerID int64, _ httpapi.Filters) (int64, error) {
	f.owner = ownerID
	return f.n, nil
}

func newRoutes() (*devRoutes, *fakeRecorder, *http.ServeMux) {
	rec := &fakeRecorder{}
	d := &devRoutes{
		events: rec,
		store:  &fakeCounter{n: 3},
		token:  devToken,
		now:    func() time.Time { return time.Unix(1700000000, 0) },
	}
	mux := http.NewServeMux()
	d.Register(mux)
	return d, rec, mux
}

func TestEmitRecordsEvent(t *testing.T) {
	_, rec, mux := newRoutes()

	body := `{"owner_id":42,"type":"edited","content":"new","old_content":"old"}`
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/emit", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(rec.got) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(rec.got))
	}
	ev := rec.got[0]
	if ev.OwnerID != 42 || ev.Type != core.EventEdited || ev.Author != "Dev User" || ev.OldContent == nil || *ev.OldContent != "old" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestEmitRejectsBadInput(t *testing.T) {
	_, rec, mux := newRoutes()

	for _, body := range []string{`{`, `{"owner_id":1,"type":"pinned","content":"x"}`, `{"type":"deleted","content":"x"}`} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/emit", strings.NewReader(body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rr.Code)
		}
	}
	if len(rec.got) != 0 {
		t.Fatalf("expected nothing recorded")
	}
}

func TestInitDataValidatesAgainstToken(t *testing.T) {
	_, _, mux := newRoutes()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/initdata?user_id=77", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		InitData string `json:"initData"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !httpapi.ValidInitData(resp.InitData, devToken) {
		t.Fatalf("minted initData does not validate: %s", resp.InitData)
	}
	if httpapi.ValidInitData(resp.InitData, "other-token") {
		t.Fatalf("initData validated against the wrong token")
	}
}

func TestCountPassesOwner(t *testing.T) {
	d, _, mux := newRoutes()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/count?owner_id=9&types=deleted", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"count":3`) {
		t.Fatalf("unexpected response %d: %s", rr.Code, rr.Body.String())
	}
	if d.store.(*fakeCounter).owner != 9 {
		t.Fatalf("expected owner 9 forwarded")
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/count", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without owner, got %d", rr.Code)
	}
}
