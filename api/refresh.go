package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielmmetz/hn-reader/sse"
)

const (
	rateLimitWindow   = 30 * time.Second
	rateLimitCapacity = 10000 // max entries before forced sweep
	rateLimitSweepAge = 60 * time.Second
)

// RefreshHandler re-extracts a story's article in the background and
// announces the result over SSE.
type RefreshHandler struct {
	articles *ArticlesHandler
	broker   *sse.Broker
	now      func() time.Time

	mu        sync.Mutex
	lastFetch map[int]time.Time // rate limit tracking (bounded with TTL eviction)
}

func NewRefreshHandler(articles *ArticlesHandler, broker *sse.Broker) *RefreshHandler {
	return &RefreshHandler{
		articles:  articles,
		broker:    broker,
		now:       time.Now,
		lastFetch: make(map[int]time.Time),
	}
}

// Refresh handles POST /api/items/{id}/article/refresh
func (h *RefreshHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// Rate limit: 1 request per story per 30 seconds (with periodic eviction)
	h.mu.Lock()
	now := h.now()

	if len(h.lastFetch) > rateLimitCapacity {
		h.sweepLocked(now)
	}

	if last, ok := h.lastFetch[id]; ok && now.Sub(last) < rateLimitWindow {
		h.mu.Unlock()
		writeError(w, http.StatusTooManyRequests, "rate limited, retry after 30s")
		return
	}
	h.lastFetch[id] = now
	h.mu.Unlock()

	url, ok := h.articles.storyURL(w, r, id)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "accepted",
		"story_id": id,
	})

	// Background work uses a detached context (not tied to the request)
	go h.doRefresh(context.Background(), id, url)
}

// sweepLocked removes entries older than rateLimitSweepAge. Must be called with h.mu held.
func (h *RefreshHandler) sweepLocked(now time.Time) {
	for id, t := range h.lastFetch {
		if now.Sub(t) > rateLimitSweepAge {
			delete(h.lastFetch, id)
		}
	}
}

func (h *RefreshHandler) doRefresh(ctx context.Context, id int, url string) {
	article := h.articles.extract(ctx, id, url)
	if article.Failed {
		slog.Warn("refresh: article extraction failed", "story_id", id)
	}

	h.broker.PublishJSON("article_refreshed", map[string]interface{}{
		"story_id":  id,
		"failed":    article.Failed,
		"timestamp": time.Now().Unix(),
	})
}
