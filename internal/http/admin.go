package httpadmin

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// TokenHeader carries the admin token on every mutating request.
const TokenHeader = "X-Admin-Token"

type Reloader interface {
	ReloadSettings() (summary string, err error)
}

type Server struct {
	rel   Reloader
	token string
}

// New returns the admin endpoints. An empty token disables the reload route.
func New(rel Reloader, token string) *Server { return &Server{rel: rel, token: token} }

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/admin/settings/reload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !s.authorized(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		summary, err := s.rel.ReloadSettings()
		if err != nil {
			http.Error(w, "reload failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "reloaded": true, "settings": summary})
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return false
	}
	got := r.Header.Get(TokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}
