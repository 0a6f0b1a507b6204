package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/you/eternalmod/internal/core"
	"github.com/you/eternalmod/internal/stream"
)

const (
	DefaultHeartbeat = 60 * time.Second
	wsWriteTimeout   = 10 * time.Second
)

// Events is the read side of the event log.
type Events interface {
	Query(ctx context.Context, ownerID int64, filters Filters) ([]core.Event, bool)
	Recent(ownerID int64) []core.Event
}

// Stream hands out live subscriptions.
type Stream interface {
	Subscribe(ownerID int64) *stream.Subscription
	Unsubscribe(sub *stream.Subscription)
}

// Registrar mounts extra routes, such as the admin endpoints.
type Registrar interface {
	Register(mux *http.ServeMux)
}

type Options struct {
	Addr           string
	BotToken       string
	WebAppDir      string
	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int
	EnableMetrics  bool
	AccessLog      bool
	EnablePprof    bool
	Heartbeat      time.Duration
	Build          BuildInfo
	Metrics        *Metrics
	Admin          Registrar
}

// Server exposes the dashboard API, the live event stream and the Mini App
// static files.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	events     Events
	hub        Stream
	opts       Options
	metrics    *Metrics
	limiter    *ipRateLimiter
	cors       *corsPolicy
	static     fs.FS
	heartbeat  atomic.Int64

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func New(events Events, hub Stream, opts Options) *Server {
	if opts.WebAppDir == "" {
		opts.WebAppDir = "webapp"
	}
	srv := &Server{
		events:  events,
		hub:     hub,
		opts:    opts,
		metrics: opts.Metrics,
		limiter: newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		cors:    newCORSPolicy(opts.CORSOrigins),
		static:  webRoot(opts.WebAppDir),
		done:    make(chan struct{}),
	}
	if srv.metrics == nil && opts.EnableMetrics {
		srv.metrics = NewMetrics()
	}
	srv.SetHeartbeat(opts.Heartbeat)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/info", srv.handleInfo)
	mux.HandleFunc("/api/messages", srv.handleMessages)
	mux.HandleFunc("/api/events/stream", srv.handleStream)
	mux.HandleFunc("/api/events/ws", srv.handleWS)
	mux.HandleFunc("/api/events/recent", srv.handleRecent)
	mux.HandleFunc("/", srv.handleStatic)
	if opts.EnableMetrics && srv.metrics != nil {
		mux.Handle("/metrics", srv.metrics.Handler())
	}
	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	if opts.Admin != nil {
		opts.Admin.Register(mux)
	}

	srv.handler = srv.middleware(mux)
	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Metrics returns the collectors in use, or nil.
func (s *Server) Metrics() *Metrics { return s.metrics }

// SetHeartbeat changes the SSE/WebSocket keepalive for new and running
// streams. Non-positive values select DefaultHeartbeat.
func (s *Server) SetHeartbeat(d time.Duration) {
	if d <= 0 {
		d = DefaultHeartbeat
	}
	s.heartbeat.Store(int64(d))
}

func (s *Server) heartbeatInterval() time.Duration {
	return time.Duration(s.heartbeat.Load())
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, compress: wantsGzip(r)}

		defer func() {
			rec.close()
			route := r.Pattern
			if route == "" {
				route = "other"
			}
			s.metrics.ObserveRequest(route, r.Method, rec.Status(), time.Since(start))
			if s.opts.AccessLog {
				log.Printf("httpapi: %s %s %d %dB %s", r.Method, r.URL.Path, rec.Status(), rec.bytes, time.Since(start).Round(time.Millisecond))
			}
		}()

		if handled, _ := s.cors.handlePreflight(rec, r); handled {
			return
		}
		if !s.cors.applyHeaders(rec, r) {
			writeJSON(rec, http.StatusForbidden, map[string]string{"error": "origin not allowed"})
			return
		}
		if !s.limiter.Allow(remoteIP(r)) {
			s.metrics.IncRateLimited()
			writeJSON(rec, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			return
		}
		next.ServeHTTP(rec, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type messagesResponse struct {
	Messages []core.Event `json:"messages"`
}

func emptyMessages() messagesResponse {
	return messagesResponse{Messages: []core.Event{}}
}

type messagesRequest struct {
	InitData string          `json:"initData"`
	UserID   json.RawMessage `json:"user_id"`
	FilterParams
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req messagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, emptyMessages())
		return
	}
	if req.InitData == "" || !ValidInitData(req.InitData, s.opts.BotToken) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "unauthorized"})
		return
	}
	ownerID, ok := parseUserID(req.UserID)
	if !ok {
		writeJSON(w, http.StatusOK, emptyMessages())
		return
	}
	filters, err := ParseFilters(req.FilterParams)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	events, degraded := s.events.Query(r.Context(), ownerID, filters)
	if degraded {
		w.Header().Set("X-Degraded", "mirror")
	}
	if events == nil {
		events = []core.Event{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: events})
}

// parseUserID accepts a JSON integer or a string holding one.
func parseUserID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		id, err := strconv.ParseInt(n.String(), 10, 64)
		return id, err == nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
	return id, err == nil
}

// authorizeQuery checks the user_id/initData query pair used by the GET
// endpoints and writes the error response itself.
func (s *Server) authorizeQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	q := r.URL.Query()
	rawUser, initData := q.Get("user_id"), q.Get("initData")
	if rawUser == "" || initData == "" {
		w.WriteHeader(http.StatusBadRequest)
		return 0, false
	}
	if !ValidInitData(initData, s.opts.BotToken) {
		w.WriteHeader(http.StatusForbidden)
		return 0, false
	}
	ownerID, err := strconv.ParseInt(rawUser, 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return 0, false
	}
	return ownerID, true
}

func (s *Server) subscribe(w http.ResponseWriter, ownerID int64) (*stream.Subscription, bool) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return nil, false
	}
	sub := s.hub.Subscribe(ownerID)
	if sub == nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return nil, false
	}
	return sub, true
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.authorizeQuery(w, r)
	if !ok {
		return
	}
	events := s.events.Recent(ownerID)
	if events == nil {
		events = []core.Event{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: events})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.authorizeQuery(w, r)
	if !ok {
		return
	}
	filters, err := ParseQueryFilters(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	sub, ok := s.subscribe(w, ownerID)
	if !ok {
		return
	}
	defer s.hub.Unsubscribe(sub)
	s.metrics.IncSSEClients(1)
	defer s.metrics.IncSSEClients(-1)

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ":ok\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeatInterval())
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ":ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
			ticker.Reset(s.heartbeatInterval())
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if !filters.Matches(ev) {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
			s.metrics.IncMessagesSent("sse")
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.authorizeQuery(w, r)
	if !ok {
		return
	}
	filters, err := ParseQueryFilters(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, ok := s.subscribe(w, ownerID)
	if !ok {
		return
	}
	defer s.hub.Unsubscribe(sub)

	patterns, skipVerify := s.cors.wsOriginPatterns()
	conn, err := websocket.Accept(baseWriter(w), r, &websocket.AcceptOptions{
		OriginPatterns:     patterns,
		InsecureSkipVerify: skipVerify,
	})
	if err != nil {
		log.Printf("httpapi: websocket accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	s.metrics.IncWSClients(1)
	defer s.metrics.IncWSClients(-1)

	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(s.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
			ticker.Reset(s.heartbeatInterval())
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if !filters.Matches(ev) {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				return
			}
			s.metrics.IncMessagesSent("ws")
		}
	}
}

func (s *Server) Start() error {
	log.Printf("http api listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

// Shutdown ends every live stream and then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}
