package httpapi

import (
	"compress/gzip"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// statusWriter counts what a handler sends for the access log and metrics. When
// compress is set the body goes out gzipped.
type statusWriter struct {
	http.ResponseWriter
	status   int
	bytes    int64
	compress bool
	gz       *gzip.Writer
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	if w.compress && code != http.StatusNoContent && code != http.StatusNotModified {
		h := w.Header()
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		h.Del("Content-Length")
		w.gz = gzip.NewWriter(w.ResponseWriter)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	var n int
	var err error
	if w.gz != nil {
		n, err = w.gz.Write(b)
	} else {
		n, err = w.ResponseWriter.Write(b)
	}
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Flush pushes SSE frames out, including any buffered gzip block.
func (w *statusWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) close() {
	if w.gz != nil {
		_ = w.gz.Close()
	}
}

// wantsGzip skips websocket upgrades and event streams.
func wantsGzip(r *http.Request) bool {
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		return false
	}
	if r.Header.Get("Upgrade") != "" {
		return false
	}
	return !strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// baseWriter returns the writer the server handed in. The websocket upgrade
// needs its http.Hijacker.
func baseWriter(w http.ResponseWriter) http.ResponseWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw.ResponseWriter
	}
	return w
}

// ipRateLimiter keeps one token bucket per client address. Buckets idle for
// longer than idleTTL are dropped once the table passes maxClients.
type ipRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

type bucket struct {
	*rate.Limiter
	seen time.Time
}

const (
	maxClients = 1024
	idleTTL    = 5 * time.Minute
)

func newIPRateLimiter(rps, burst int) *ipRateLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &ipRateLimiter{buckets: map[string]*bucket{}, limit: rate.Limit(rps), burst: burst}
}

func (l *ipRateLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[ip]
	if b == nil {
		if len(l.buckets) >= maxClients {
			for key, old := range l.buckets {
				if now.Sub(old.seen) > idleTTL {
					delete(l.buckets, key)
				}
			}
		}
		b = &bucket{Limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.AllowN(now, 1)
}

// remoteIP prefers the first X-Forwarded-For hop; the Mini App is usually
// served behind a tunnel or reverse proxy.
func remoteIP(r *http.Request) string {
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if hop = strings.TrimSpace(hop); hop != "" {
			return hop
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// corsPolicy is either a wildcard or an exact list of http(s) origins.
type corsPolicy struct {
	any     bool
	allowed map[string]bool
}

func newCORSPolicy(origins []string) *corsPolicy {
	if len(origins) == 0 {
		return nil
	}
	p := &corsPolicy{allowed: map[string]bool{}}
	for _, o := range origins {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			return &corsPolicy{any: true}
		default:
			p.allowed[o] = true
		}
	}
	return p
}

func (c *corsPolicy) isAllowed(origin string) bool {
	if c == nil || !hasWebScheme(origin) {
		return false
	}
	return c.any || c.allowed[origin]
}

func hasWebScheme(origin string) bool {
	return strings.HasPrefix(origin, "https://") || strings.HasPrefix(origin, "http://")
}

// allowOrigin sets the response origin header. It returns false when the
// request names an origin outside the list.
func (c *corsPolicy) allowOrigin(h http.Header, origin string) bool {
	if c.any {
		h.Set("Access-Control-Allow-Origin", "*")
		return true
	}
	if !c.isAllowed(origin) {
		return false
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")
	return true
}

// handlePreflight answers OPTIONS requests and reports whether it did. With a
// wildcard policy every OPTIONS request is answered, Origin or not.
func (c *corsPolicy) handlePreflight(w http.ResponseWriter, r *http.Request) (bool, int) {
	if c == nil || r.Method != http.MethodOptions {
		return false, 0
	}
	origin := r.Header.Get("Origin")
	if origin == "" && !c.any {
		return false, 0
	}
	h := w.Header()
	if !c.allowOrigin(h, origin) {
		w.WriteHeader(http.StatusForbidden)
		return true, http.StatusForbidden
	}
	h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	if asked := r.Header.Get("Access-Control-Request-Headers"); asked != "" {
		h.Set("Access-Control-Allow-Headers", asked)
	} else {
		h.Set("Access-Control-Allow-Headers", "Content-Type")
	}
	h.Set("Access-Control-Max-Age", "300")
	w.WriteHeader(http.StatusOK)
	return true, http.StatusOK
}

// applyHeaders handles the non-preflight case. Requests without an Origin
// pass untouched.
func (c *corsPolicy) applyHeaders(w http.ResponseWriter, r *http.Request) bool {
	if c == nil {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" && !c.any {
		return true
	}
	return c.allowOrigin(w.Header(), origin)
}

// wsOriginPatterns converts the policy to websocket.AcceptOptions patterns.
func (c *corsPolicy) wsOriginPatterns() (patterns []string, skipVerify bool) {
	if c == nil {
		return nil, false
	}
	if c.any {
		return nil, true
	}
	for origin := range c.allowed {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	sort.Strings(patterns)
	return patterns, false
}
