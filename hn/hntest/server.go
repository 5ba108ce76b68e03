// Package hntest provides a fake Hacker News API for tests.
package hntest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Server serves /v0/{feed}stories.json and /v0/item/{id}.json from memory.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	lists   map[string][]int
	items   map[int]any
	failing map[int]int // id -> status code
	delay   time.Duration

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	requests    atomic.Int64
}

// NewServer starts a fake API. Call Close when done.
func NewServer() *Server {
	s := &Server{
		lists:   make(map[string][]int),
		items:   make(map[int]any),
		failing: make(map[int]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// SetList sets the ids returned for a feed ("top", "new").
func (s *Server) SetList(feed string, ids ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[feed] = ids
}

// SetItem registers the JSON value served for id. A nil value serves "null".
func (s *Server) SetItem(id int, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = v
}

// Story registers a plain story with the given id and returns it.
func (s *Server) Story(id int, kids ...int) map[string]any {
	story := map[string]any{
		"id":    id,
		"type":  "story",
		"title": fmt.Sprintf("Story %d", id),
		"by":    "tester",
		"score": 42,
		"time":  time.Now().Add(-time.Hour).Unix(),
		"url":   "https://example.com",
	}
	if len(kids) > 0 {
		story["kids"] = kids
		story["descendants"] = len(kids)
	}
	s.SetItem(id, story)
	return story
}

// Comment registers a comment with the given text under parent.
func (s *Server) Comment(id, parent int, text string) map[string]any {
	comment := map[string]any{
		"id":     id,
		"type":   "comment",
		"by":     "commenter",
		"parent": parent,
		"text":   text,
		"time":   time.Now().Add(-time.Minute).Unix(),
	}
	s.SetItem(id, comment)
	return comment
}

// SetDelay slows every item request down, to make concurrency observable.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Fail makes requests for id answer with status.
func (s *Server) Fail(id, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[id] = status
}

// MaxInFlight returns the highest number of concurrent item requests observed.
func (s *Server) MaxInFlight() int { return int(s.maxInFlight.Load()) }

// Requests returns the number of requests served.
func (s *Server) Requests() int { return int(s.requests.Load()) }

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	path := strings.TrimPrefix(r.URL.Path, "/v0/")

	if feed, ok := strings.CutSuffix(path, "stories.json"); ok {
		s.mu.Lock()
		ids, found := s.lists[feed]
		s.mu.Unlock()
		if !found {
			http.Error(w, "unknown feed", http.StatusNotFound)
			return
		}
		writeJSON(w, ids)
		return
	}

	raw, ok := strings.CutPrefix(path, "item/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.Atoi(strings.TrimSuffix(raw, ".json"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxInFlight.Load()
		if n <= cur || s.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	status, failing := s.failing[id]
	item := s.items[id]
	s.mu.Unlock()

	if failing {
		http.Error(w, "failing", status)
		return
	}
	writeJSON(w, item)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
