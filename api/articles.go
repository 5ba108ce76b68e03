package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/danielmmetz/hn-reader/feed"
	"github.com/danielmmetz/hn-reader/readability"
)

type Extractor interface {
	Extract(ctx context.Context, url string) (*readability.Article, error)
}

// ArticleCache stores extractions by story id. Get returns nil on a miss.
type ArticleCache interface {
	Get(ctx context.Context, storyID int) (*readability.Article, error)
	Upsert(ctx context.Context, storyID int, a *readability.Article) error
}

type ArticlesHandler struct {
	repo      *feed.Repository
	extractor Extractor
	cache     ArticleCache
	sf        singleflight.Group
}

func NewArticlesHandler(repo *feed.Repository, extractor Extractor, cache ArticleCache) *ArticlesHandler {
	return &ArticlesHandler{repo: repo, extractor: extractor, cache: cache}
}

// GetArticle handles GET /api/items/{id}/article
func (h *ArticlesHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	url, ok := h.storyURL(w, r, id)
	if !ok {
		return
	}

	article, err := h.cache.Get(ctx, id)
	if err != nil {
		slog.Error("error reading article cache", "story_id", id, "error", err)
	}
	if article == nil || article.URL != url {
		slog.Info("on-demand article extraction", "story_id", id)
		article = h.extract(ctx, id, url)
	}

	writeJSON(w, r, article)
}

func (h *ArticlesHandler) storyURL(w http.ResponseWriter, r *http.Request, id int) (string, bool) {
	item, err := h.repo.Item(r.Context(), id)
	if err != nil {
		upstreamError(w, r, err)
		return "", false
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "story not found")
		return "", false
	}
	if item.URL == "" {
		writeError(w, http.StatusNotFound, "story has no URL")
		return "", false
	}
	return item.URL, true
}

// extract runs the extraction once per story at a time and caches the
// result, recording failures so they are not retried on every view.
func (h *ArticlesHandler) extract(ctx context.Context, storyID int, url string) *readability.Article {
	v, _, _ := h.sf.Do(fmt.Sprintf("article-%d", storyID), func() (interface{}, error) {
		article, err := h.extractor.Extract(ctx, url)
		if err != nil {
			slog.Error("article extraction failed", "story_id", storyID, "error", err)
			article = &readability.Article{URL: url, Failed: true}
		}
		if err := h.cache.Upsert(ctx, storyID, article); err != nil {
			slog.Error("error caching article", "story_id", storyID, "error", err)
		}
		return article, nil
	})
	return v.(*readability.Article)
}
