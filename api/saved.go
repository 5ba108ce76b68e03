package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/danielmmetz/hn-reader/feed"
	"github.com/danielmmetz/hn-reader/saved"
	"github.com/danielmmetz/hn-reader/sse"
)

type SavedHandler struct {
	store *saved.Store
	repo  *feed.Repository
}

func NewSavedHandler(store *saved.Store, repo *feed.Repository) *SavedHandler {
	return &SavedHandler{store: store, repo: repo}
}

type savedList struct {
	Items []saved.Item `json:"items"`
	Count int          `json:"count"`
}

type savedState struct {
	ID    int  `json:"id"`
	Saved bool `json:"saved"`
	Count int  `json:"count"`
}

// List handles GET /api/saved
func (h *SavedHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	writeJSON(w, r, savedList{Items: snap.Items(), Count: snap.Len()})
}

// Save handles PUT /api/saved/{id}. The body is an optional saved item; without
// one the story is fetched.
func (h *SavedHandler) Save(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, ok := h.item(w, r, id)
	if !ok {
		return
	}
	h.store.Save(r.Context(), item)
	h.writeState(w, r, id)
}

// Unsave handles DELETE /api/saved/{id}
func (h *SavedHandler) Unsave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.store.Unsave(r.Context(), id)
	h.writeState(w, r, id)
}

// Toggle handles POST /api/saved/{id}/toggle
func (h *SavedHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	// The current bookmark stands in for the body when present, so a toggle
	// racing an unsave still saves a complete item.
	item, found := h.store.Snapshot().Get(id)
	if !found {
		if item, ok = h.item(w, r, id); !ok {
			return
		}
	}
	h.store.Toggle(r.Context(), item)
	h.writeState(w, r, id)
}

// Clear handles DELETE /api/saved
func (h *SavedHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.store.ClearAll(r.Context())
	writeJSON(w, r, savedList{Items: []saved.Item{}, Count: 0})
}

func (h *SavedHandler) writeState(w http.ResponseWriter, r *http.Request, id int) {
	snap := h.store.Snapshot()
	writeJSON(w, r, savedState{ID: id, Saved: snap.Has(id), Count: snap.Len()})
}

// item reads the bookmark from the request body, or builds it from the
// upstream story when the body is empty.
func (h *SavedHandler) item(w http.ResponseWriter, r *http.Request, id int) (saved.Item, bool) {
	var item saved.Item
	err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&item)
	switch {
	case err == nil:
		if item.ID != 0 && item.ID != id {
			writeError(w, http.StatusBadRequest, "body id does not match path")
			return saved.Item{}, false
		}
		item.ID = id
		return item, true
	case !errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "invalid body")
		return saved.Item{}, false
	}

	story, err := h.repo.Item(r.Context(), id)
	if err != nil {
		upstreamError(w, r, err)
		return saved.Item{}, false
	}
	if story == nil || story.Tombstoned() {
		writeError(w, http.StatusNotFound, "not found")
		return saved.Item{}, false
	}
	return saved.FromItem(*story), true
}

// PublishChanges announces every saved-store change as a saved_changed event.
func PublishChanges(store *saved.Store, broker *sse.Broker) (unsubscribe func()) {
	return store.Subscribe(func() {
		broker.PublishJSON("saved_changed", map[string]interface{}{
			"count":     store.Count(),
			"timestamp": time.Now().Unix(),
		})
	})
}
