package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kennybix/Shuttle/pkg/models"
	"github.com/kennybix/Shuttle/pkg/service"
)

func newTestEngine(t *testing.T, maxUpload int64) (*gin.Engine, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	downloads := filepath.Join(root, "downloads")
	staging := filepath.Join(root, "staging")
	if err := os.MkdirAll(downloads, 0o700); err != nil {
		t.Fatal(err)
	}

	h := NewFileHandler(service.NewFileService(), downloads, staging, maxUpload)
	engine := gin.New()
	engine.GET("/api/download/:name", h.Download)
	engine.POST("/api/upload", h.Upload)
	engine.GET("/api/roots", h.Roots)
	return engine, downloads, staging
}

func TestDownload_ServesAttachment(t *testing.T) {
	engine, downloads, _ := newTestEngine(t, 1<<20)
	if err := os.WriteFile(filepath.Join(downloads, "report.txt"), []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/download/report.txt", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "hello" {
		t.Fatalf("body = %q", got)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "report.txt") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
}

func TestDownload_MissingFile(t *testing.T) {
	engine, _, _ := newTestEngine(t, 1<<20)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/download/nope.txt", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func multipartBody(t *testing.T, fieldFile, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", fieldFile)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return body, mw.FormDataContentType()
}

func TestUpload_StagesFile(t *testing.T) {
	engine, _, staging := newTestEngine(t, 1<<20)

	body, contentType := multipartBody(t, "notes.txt", "stage me")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp models.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("response data = %v", resp.Data)
	}
	if data["name"] != "notes.txt" {
		t.Fatalf("name = %v", data["name"])
	}
	staged, _ := data["stagedPath"].(string)
	if !strings.HasPrefix(staged, staging) {
		t.Fatalf("stagedPath = %q, not under %q", staged, staging)
	}
	back, err := os.ReadFile(staged)
	if err != nil || string(back) != "stage me" {
		t.Fatalf("staged content = %q, err = %v", back, err)
	}
}

func TestUpload_MissingField(t *testing.T) {
	engine, _, _ := newTestEngine(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUpload_OverLimit(t *testing.T) {
	engine, _, _ := newTestEngine(t, 8)

	body, contentType := multipartBody(t, "big.bin", strings.Repeat("x", 1024))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
}

func TestRoots_ReportsPlatform(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	engine, _, _ := newTestEngine(t, 1<<20)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/roots", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok || data["platform"] == "" {
		t.Fatalf("response data = %v", resp.Data)
	}
}
