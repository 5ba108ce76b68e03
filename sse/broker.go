// Package sse fans server events out to browser EventSource clients, with a
// short replay buffer for reconnects.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/danielmmetz/hn-reader/metrics"
)

const keepaliveInterval = 30 * time.Second

type Event struct {
	ID   uint64
	Type string
	Data string
}

func (e *Event) Format() string {
	return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", e.ID, e.Type, e.Data)
}

type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan *Event]struct{}
	ring        []*Event
	ringSize    int
	nextID      uint64
}

func NewBroker(ringSize int) *Broker {
	return &Broker{
		subscribers: make(map[chan *Event]struct{}),
		ring:        make([]*Event, 0, ringSize),
		ringSize:    ringSize,
		nextID:      1,
	}
}

// PublishJSON marshals v as the event data.
func (b *Broker) PublishJSON(eventType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("sse: error encoding event", "type", eventType, "error", err)
		return
	}
	b.Publish(eventType, string(data))
}

// Publish broadcasts an event to all subscribers and stores in ring buffer.
func (b *Broker) Publish(eventType, data string) {
	b.mu.Lock()
	evt := &Event{
		ID:   b.nextID,
		Type: eventType,
		Data: data,
	}
	b.nextID++

	if len(b.ring) >= b.ringSize {
		b.ring = b.ring[1:]
	}
	b.ring = append(b.ring, evt)

	// Copy subscribers to avoid holding lock during send
	subs := make([]chan *Event, 0, len(b.subscribers))
	for ch := range b.subscribers {
		subs = append(subs, ch)
	}
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			// slow consumer, skip
		}
	}
}

func (b *Broker) subscribe() chan *Event {
	ch := make(chan *Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	metrics.EventSubscribers.Inc()
	return ch
}

func (b *Broker) unsubscribe(ch chan *Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
	metrics.EventSubscribers.Dec()
}

// eventsAfter returns the buffered events after lastID. ok is false when
// lastID has already fallen out of the buffer; latest is the newest id issued.
func (b *Broker) eventsAfter(lastID uint64) (events []*Event, latest uint64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	latest = b.nextID - 1
	if len(b.ring) == 0 {
		return nil, latest, lastID >= latest
	}

	oldest := b.ring[0].ID
	if lastID < oldest-1 {
		return nil, latest, false
	}

	for _, e := range b.ring {
		if e.ID > lastID {
			events = append(events, e)
		}
	}
	return events, latest, true
}

func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe before replaying so nothing published in between is lost.
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	var replayed uint64
	// Handle Last-Event-ID (header for browser reconnects, query param for initial connect)
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = r.URL.Query().Get("lastEventId")
	}
	if lastEventID != "" {
		if id, err := strconv.ParseUint(lastEventID, 10, 64); err == nil {
			events, latest, ok := b.eventsAfter(id)
			if !ok {
				fmt.Fprintf(w, "id: %d\nevent: sync_required\ndata: {}\n\n", latest)
			}
			for _, e := range events {
				fmt.Fprint(w, e.Format())
			}
			replayed = latest
		}
	}

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if evt.ID <= replayed {
				continue
			}
			fmt.Fprint(w, evt.Format())
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// Events returns the still-buffered events with an id greater than after.
func (b *Broker) Events(after uint64) []*Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var events []*Event
	for _, e := range b.ring {
		if e.ID > after {
			events = append(events, e)
		}
	}
	return events
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
