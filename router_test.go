package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kennybix/Shuttle/pkg/config"
	"github.com/kennybix/Shuttle/pkg/models"
)

func newTestServer(t *testing.T, cfg *config.AppConfig) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("HOME", t.TempDir())
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	s := NewServer(cfg)
	t.Cleanup(s.registry.CloseAll)
	return s
}

func doRequest(s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.ginEngine.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode /healthz body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Sessions != 0 {
		t.Errorf("sessions = %d, want 0", body.Sessions)
	}
}

func TestCORS_AllowsLocalhostOrigin(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/healthz", http.Header{"Origin": {"http://localhost:5173"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q, want origin echoed", got)
	}
}

func TestCORS_RejectsUnknownOrigin(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/healthz", http.Header{"Origin": {"http://evil.example"}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestCORS_PreflightReturnsNoContent(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodOptions, "/api/roots", http.Header{"Origin": {"http://127.0.0.1:5173"}})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestRuntimeInfo(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/api/runtime", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var info models.RuntimeInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode runtime info: %v", err)
	}
	if info.Port != config.DefaultPort {
		t.Errorf("Port = %d, want %d", info.Port, config.DefaultPort)
	}
	if !strings.HasPrefix(info.HTTPBaseURL, "http://127.0.0.1:") {
		t.Errorf("HTTPBaseURL = %q, want 127.0.0.1 base", info.HTTPBaseURL)
	}
	if !strings.HasPrefix(info.WSBaseURL, "ws://127.0.0.1:") {
		t.Errorf("WSBaseURL = %q, want ws base", info.WSBaseURL)
	}
}

func TestStatic_ServesWebDirAndSPAFallback(t *testing.T) {
	webDir := filepath.Join(t.TempDir(), "web")
	if err := os.MkdirAll(webDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	writeWebFile(t, webDir, "index.html", "<html><body>shuttle-ui</body></html>")
	writeWebFile(t, webDir, "app.js", "console.log('shuttle')")

	cfg := &config.AppConfig{Paths: config.PathsConfig{WebDir: &webDir}}
	s := newTestServer(t, cfg)

	rec := doRequest(s, http.MethodGet, "/", http.Header{"Accept": {"text/html"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "shuttle-ui") {
		t.Errorf("GET / body = %q, want index content", rec.Body.String())
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("GET / missing ETag header")
	}

	rec = doRequest(s, http.MethodGet, "/app.js", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /app.js status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "console.log") {
		t.Errorf("GET /app.js body = %q, want asset content", rec.Body.String())
	}

	// Client-side routes without a file extension fall back to the SPA index.
	rec = doRequest(s, http.MethodGet, "/sessions/abc", http.Header{"Accept": {"text/html"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /sessions/abc status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "shuttle-ui") {
		t.Errorf("SPA fallback body = %q, want index content", rec.Body.String())
	}

	// API paths are never swallowed by the static middleware.
	rec = doRequest(s, http.MethodGet, "/api/nope", http.Header{"Accept": {"text/html"}})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /api/nope status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestStatic_IndexETagRevalidation(t *testing.T) {
	webDir := filepath.Join(t.TempDir(), "web")
	if err := os.MkdirAll(webDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	writeWebFile(t, webDir, "index.html", "<html><body>etag-check</body></html>")

	cfg := &config.AppConfig{Paths: config.PathsConfig{WebDir: &webDir}}
	s := newTestServer(t, cfg)

	first := doRequest(s, http.MethodGet, "/", http.Header{"Accept": {"text/html"}})
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("first response missing ETag")
	}

	second := doRequest(s, http.MethodGet, "/", http.Header{
		"Accept":        {"text/html"},
		"If-None-Match": {etag},
	})
	if second.Code != http.StatusNotModified {
		t.Fatalf("revalidation status = %d, want %d", second.Code, http.StatusNotModified)
	}
}

func TestStatic_MissingWebDirDisablesMiddleware(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	cfg := &config.AppConfig{Paths: config.PathsConfig{WebDir: &missing}}
	s := newTestServer(t, cfg)

	rec := doRequest(s, http.MethodGet, "/", http.Header{"Accept": {"text/html"}})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET / status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAcceptHTML(t *testing.T) {
	tests := []struct {
		accept string
		want   bool
	}{
		{"", true},
		{"text/html,application/xhtml+xml", true},
		{"application/xhtml+xml", true},
		{"application/json", false},
		{"image/avif,image/webp", false},
	}
	for _, tt := range tests {
		if got := acceptHTML(tt.accept); got != tt.want {
			t.Errorf("acceptHTML(%q) = %v, want %v", tt.accept, got, tt.want)
		}
	}
}

func writeWebFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
}
