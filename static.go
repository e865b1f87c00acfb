package main

import (
	"bytes"
	"crypto/sha256"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// attachStatic registers static asset middleware backed by an on-disk web
// directory holding the built UI. When the directory or its index.html is
// missing the middleware is not installed, so API-only deployments need no
// extra switches.
//  1. Intercepts GET/HEAD requests not under /api, /ws or /healthz
//  2. If a static file matches, serve it directly and Abort
//  3. If no match and path has no '.' and Accept includes text/html, treat as SPA and serve index.html
//  4. otherwise pass through
func attachStatic(engine *gin.Engine, webDir string) {
	dir := resolveWebDir(webDir)
	if dir == "" {
		return
	}

	distFS := os.DirFS(dir)
	index := &spaIndex{fsys: distFS}
	fileServer := http.FileServer(http.FS(distFS))

	engine.Use(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			return
		}
		p := c.Request.URL.Path
		// Let API + websocket routes fall through.
		if strings.HasPrefix(p, "/api") || strings.HasPrefix(p, "/ws") || p == "/healthz" {
			return
		}
		if p == "/" {
			index.serve(c)
			return
		}
		trimmed := strings.TrimPrefix(p, "/")
		if trimmed == "" {
			return
		}
		// fs.FS path rules also reject traversal attempts here.
		if f, err := distFS.Open(trimmed); err == nil {
			_ = f.Close()
			if fi, serr := fs.Stat(distFS, trimmed); serr == nil && fi.IsDir() {
				index.serve(c)
				return
			}
			fileServer.ServeHTTP(c.Writer, c.Request)
			c.Abort()
			return
		}

		// SPA fallback: serve index.html for client-side routes.
		if !strings.Contains(trimmed, ".") && acceptHTML(c.Request.Header.Get("Accept")) {
			index.serve(c)
			return
		}
	})
}

// resolveWebDir returns the absolute web directory to serve from, or ""
// when there is nothing usable on disk.
func resolveWebDir(webDir string) string {
	if strings.TrimSpace(webDir) == "" {
		return ""
	}
	if !filepath.IsAbs(webDir) {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		webDir = filepath.Join(wd, webDir)
	}
	if st, err := os.Stat(webDir); err != nil || !st.IsDir() {
		return ""
	}
	if _, err := os.Stat(filepath.Join(webDir, "index.html")); err != nil {
		return ""
	}
	return webDir
}

// spaIndex caches index.html so repeated SPA navigations don't reread disk.
type spaIndex struct {
	fsys fs.FS

	once    sync.Once
	data    []byte
	err     error
	etag    string
	modTime time.Time
}

func (ix *spaIndex) load() {
	ix.data, ix.err = fs.ReadFile(ix.fsys, "index.html")
	if ix.err != nil {
		return
	}
	ix.modTime = time.Now()
	if fi, err := fs.Stat(ix.fsys, "index.html"); err == nil {
		ix.modTime = fi.ModTime()
	}
	h := sha256.Sum256(ix.data)
	ix.etag = `W/"` + hexEncode(h[:8]) + `"`
}

func (ix *spaIndex) serve(c *gin.Context) {
	ix.once.Do(ix.load)
	if ix.err != nil || len(ix.data) == 0 {
		return
	}

	if c.Request.Header.Get("If-None-Match") == ix.etag {
		c.Status(http.StatusNotModified)
		c.Abort()
		return
	}
	c.Header("ETag", ix.etag)
	c.Header("Cache-Control", "no-cache")
	c.Header("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(c.Writer, c.Request, "index.html", ix.modTime, bytes.NewReader(ix.data))
	c.Abort()
}

// acceptHTML determines if the given accept header string indicates
// that the client accepts HTML content.
func acceptHTML(accept string) bool {
	// Treat missing Accept as HTML navigation (common in some embedded/webview cases).
	if accept == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		p := strings.TrimSpace(strings.ToLower(part))
		if strings.HasPrefix(p, "text/html") || strings.HasPrefix(p, "application/xhtml+xml") {
			return true
		}
	}
	return false
}

// hexEncode returns a short lowercase hex string (weak ETag helper)
func hexEncode(b []byte) string {
	const hexdigits = "0123456789abcdef"
	var out strings.Builder
	for _, x := range b {
		out.WriteByte(hexdigits[x>>4])
		out.WriteByte(hexdigits[x&0x0f])
	}
	return out.String()
}
