package api

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielmmetz/hn-reader/feed"
	"github.com/danielmmetz/hn-reader/hn"
)

type StoriesHandler struct {
	repo *feed.Repository
}

func NewStoriesHandler(repo *feed.Repository) *StoriesHandler {
	return &StoriesHandler{repo: repo}
}

// ListStories handles GET /api/stories?feed=top|new&limit=N&offset=N
func (h *StoriesHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("feed")
	if name == "" {
		name = string(hn.FeedTop)
	}
	feedType, err := hn.ParseFeedType(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset := pageParams(r)

	page, err := h.repo.Page(r.Context(), feedType, limit, offset)
	if err != nil {
		upstreamError(w, r, err)
		return
	}
	writeJSON(w, r, page)
}

// GetItem handles GET /api/items/{id}
func (h *StoriesHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := h.repo.Item(r.Context(), id)
	if err != nil {
		upstreamError(w, r, err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, r, item)
}

// pageParams reads limit and offset, leaving malformed values at zero so the
// repository applies its defaults.
func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// upstreamError maps a page-level failure to a single error response.
func upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, feed.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// client went away
	default:
		slog.Error("upstream request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, r *http.Request, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	etag := fmt.Sprintf(`"%x"`, md5.Sum(body))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	w.Write(body)
}
