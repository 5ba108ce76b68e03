package api

import (
	"net/http"

	"github.com/danielmmetz/hn-reader/saved"
	"github.com/danielmmetz/hn-reader/sse"
)

type HealthHandler struct {
	store  *saved.Store
	broker *sse.Broker
}

func NewHealthHandler(store *saved.Store, broker *sse.Broker) *HealthHandler {
	return &HealthHandler{store: store, broker: broker}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":      "ok",
		"saved_count": h.store.Count(),
		"subscribers": h.broker.SubscriberCount(),
	}
	writeJSON(w, r, resp)
}
