package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/you/eternalmod/internal/core"
	"github.com/you/eternalmod/internal/httpapi"
)

type recorder interface {
	Record(ctx context.Context, ownerID int64, typ core.EventType, author, content string, oldContent *string) core.Event
}

type counter interface {
	CountEvents(ctx context.Context, ownerID int64, filters httpapi.Filters) (int64, error)
}

type emitReq struct {
	OwnerID    int64   `json:"owner_id"`
	Type       string  `json:"type"`
	Author     string  `json:"author"`
	Content    string  `json:"content"`
	OldContent *string `json:"old_content,omitempty"`
}

// devRoutes are mounted next to the regular API.
type devRoutes struct {
	events recorder
	store  counter
	token  string
	now    func() time.Time
}

func (d *devRoutes) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /emit", d.handleEmit)
	mux.HandleFunc("GET /initdata", d.handleInitData)
	mux.HandleFunc("GET /count", d.handleCount)
}

func (d *devRoutes) handleEmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req emitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	typ := core.EventType(req.Type)
	if req.OwnerID <= 0 || !typ.Valid() || req.Content == "" {
		http.Error(w, "owner_id, type (edited|deleted), content required", http.StatusBadRequest)
		return
	}
	if req.Author == "" {
		req.Author = "Dev User"
	}
	ev := d.events.Record(r.Context(), req.OwnerID, typ, req.Author, req.Content, req.OldContent)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "event": ev})
}

// handleInitData mints a signed initData string for user_id, valid against
// the token this devapi was started with.
func (d *devRoutes) handleInitData(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	now := time.Now
	if d.now != nil {
		now = d.now
	}
	user, _ := json.Marshal(map[string]any{"id": userID, "first_name": "Dev"})
	initData := httpapi.EncodeInitData(map[string]string{
		"auth_date": strconv.FormatInt(now().Unix(), 10),
		"query_id":  uuid.NewString(),
		"user":      string(user),
	}, d.token)
	writeJSON(w, http.StatusOK, map[string]any{"initData": initData})
}

func (d *devRoutes) handleCount(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if err != nil {
		http.Error(w, "owner_id required", http.StatusBadRequest)
		return
	}
	filters, err := httpapi.ParseQueryFilters(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := d.store.CountEvents(r.Context(), ownerID, filters)
	if err != nil {
		http.Error(w, "count failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
