package api

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/danielmmetz/hn-reader/feed"
	"github.com/danielmmetz/hn-reader/format"
	"github.com/danielmmetz/hn-reader/hn"
)

type CommentsHandler struct {
	repo *feed.Repository
}

func NewCommentsHandler(repo *feed.Repository) *CommentsHandler {
	return &CommentsHandler{repo: repo}
}

// GetComments handles GET /api/items/{id}/comments?limit=N&offset=N
func (h *CommentsHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r)

	page, err := h.repo.CommentPage(r.Context(), id, limit, offset)
	if err != nil {
		upstreamError(w, r, err)
		return
	}

	// Comment bodies are upstream HTML.
	page.Items = lo.Map(page.Items, func(c hn.Comment, _ int) hn.Comment {
		c.Text = format.SanitizeHTML(c.Text)
		return c
	})
	writeJSON(w, r, page)
}
