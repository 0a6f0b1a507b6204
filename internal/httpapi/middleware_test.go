package httpapi

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestGzipBodyDecodes(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEvents{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
	if rec.Header().Get("Vary") != "Accept-Encoding" {
		t.Fatalf("expected Vary header, got %q", rec.Header().Get("Vary"))
	}
}

func TestGzipSkipsUpgrade(t *testing.T) {
	if wantsGzip(&http.Request{Header: http.Header{"Accept-Encoding": {"gzip"}, "Upgrade": {"websocket"}}}) {
		t.Fatalf("upgrade requests must not be compressed")
	}
	if wantsGzip(&http.Request{Header: http.Header{}}) {
		t.Fatalf("compression needs Accept-Encoding")
	}
}

func TestCORSOriginList(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEvents{}, Options{CORSOrigins: []string{"https://app.test", ""}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.test")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.test" {
		t.Fatalf("expected listed origin echoed, got %d %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unlisted origin, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Origin", "https://app.test")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Headers") != "Content-Type" {
		t.Fatalf("unexpected preflight %d %v", rec.Code, rec.Header())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("requests without Origin pass untouched")
	}

	patterns, skip := newCORSPolicy([]string{"https://b.test", "https://a.test:8443"}).wsOriginPatterns()
	if skip || !reflect.DeepEqual(patterns, []string{"a.test:8443", "b.test"}) {
		t.Fatalf("unexpected ws patterns %v skip=%v", patterns, skip)
	}
}

func TestRemoteIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := remoteIP(req); got != "10.0.0.1" {
		t.Fatalf("remote addr: got %q", got)
	}
	req.Header.Set("X-Forwarded-For", " , 203.0.113.7, 10.0.0.1")
	if got := remoteIP(req); got != "203.0.113.7" {
		t.Fatalf("forwarded: got %q", got)
	}
}
