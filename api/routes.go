package api

import (
	"io/fs"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielmmetz/hn-reader/sse"
)

// Handlers is everything the server routes to. Static may be nil.
type Handlers struct {
	Stories  *StoriesHandler
	Comments *CommentsHandler
	Articles *ArticlesHandler
	Refresh  *RefreshHandler
	Saved    *SavedHandler
	Health   *HealthHandler
	Broker   *sse.Broker
	Static   fs.FS
}

func NewMux(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/stories", h.Stories.ListStories)
	mux.HandleFunc("GET /api/items/{id}", h.Stories.GetItem)
	mux.HandleFunc("GET /api/items/{id}/comments", h.Comments.GetComments)
	mux.HandleFunc("GET /api/items/{id}/article", h.Articles.GetArticle)
	mux.HandleFunc("POST /api/items/{id}/article/refresh", h.Refresh.Refresh)

	mux.HandleFunc("GET /api/saved", h.Saved.List)
	mux.HandleFunc("DELETE /api/saved", h.Saved.Clear)
	mux.HandleFunc("PUT /api/saved/{id}", h.Saved.Save)
	mux.HandleFunc("DELETE /api/saved/{id}", h.Saved.Unsave)
	mux.HandleFunc("POST /api/saved/{id}/toggle", h.Saved.Toggle)

	mux.Handle("GET /api/events", h.Broker)
	mux.Handle("GET /api/health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("/", NewStaticHandler(h.Static))
	return mux
}
