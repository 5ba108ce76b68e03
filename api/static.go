package api

import (
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

const statusPage = `<!DOCTYPE html><html><body><h1>HN Reader</h1><p>Server is running. Start it with -static-dir to serve a client.</p></body></html>`

// NewStaticHandler serves files from staticFS with caching headers and falls
// back to index.html for client-side routes. Unknown /api/ paths are 404s.
// A nil staticFS serves a plain status page.
func NewStaticHandler(staticFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if staticFS == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(statusPage))
			return
		}

		urlPath := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if urlPath == "" {
			urlPath = "index.html"
		}

		if data, err := fs.ReadFile(staticFS, urlPath); err == nil {
			ct := mime.TypeByExtension(path.Ext(urlPath))
			if ct == "" {
				ct = "application/octet-stream"
			}
			w.Header().Set("Content-Type", ct)

			// Cache hashed assets aggressively, others briefly
			switch {
			case strings.HasPrefix(urlPath, "assets/"):
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			case urlPath == "sw.js":
				w.Header().Set("Cache-Control", "no-cache")
			default:
				w.Header().Set("Cache-Control", "public, max-age=300")
			}

			w.Write(data)
			return
		}

		// Catch-all: serve index.html for client-side routing
		if data, err := fs.ReadFile(staticFS, "index.html"); err == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Write(data)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(statusPage))
	}
}
