package saved

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/danielmmetz/hn-reader/format"
	"github.com/danielmmetz/hn-reader/hn"
)

// Item is a bookmark of a story: a small subset of hn.Item, replaced whole
// and never patched.
type Item struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
	By     string `json:"by,omitempty"`
	Score  int    `json:"score,omitempty"`
	Time   int64  `json:"time,omitempty"`
	Domain string `json:"domain,omitempty"`
	// SavedAt is set by the store (unix milliseconds) and orders the list.
	SavedAt int64 `json:"saved_at,omitempty"`
}

// FromItem builds a bookmark from a story.
func FromItem(it hn.Item) Item {
	return Item{
		ID:     it.ID,
		Title:  it.Title,
		URL:    it.URL,
		By:     it.By,
		Score:  it.Score,
		Time:   it.Time,
		Domain: format.Domain(it.URL),
	}
}

// Snapshot is an immutable view of the saved mapping, most recently saved first.
// A new Snapshot is published on every change.
type Snapshot struct {
	items []Item
	index map[int]int
}

func newSnapshot(items []Item) *Snapshot {
	index := make(map[int]int, len(items))
	for i, it := range items {
		index[it.ID] = i
	}
	return &Snapshot{items: items, index: index}
}

func (s *Snapshot) Len() int { return len(s.items) }

func (s *Snapshot) Has(id int) bool {
	_, ok := s.index[id]
	return ok
}

func (s *Snapshot) Get(id int) (Item, bool) {
	i, ok := s.index[id]
	if !ok {
		return Item{}, false
	}
	return s.items[i], true
}

// Items returns the saved items, most recently saved first.
func (s *Snapshot) Items() []Item {
	return slices.Clone(s.items)
}

// Map returns the mapping keyed by id.
func (s *Snapshot) Map() map[int]Item {
	m := make(map[int]Item, len(s.items))
	for _, it := range s.items {
		m[it.ID] = it
	}
	return m
}

// encode serializes the mapping as a JSON object keyed by id.
func encode(items []Item) ([]byte, error) {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		m[strconv.Itoa(it.ID)] = it
	}
	return json.Marshal(m)
}

// decode accepts the object form {"<id>": item} and the older array form
// [item, ...] (already most recent first). Empty input is an empty mapping.
func decode(raw []byte) ([]Item, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var list []Item
	if err := json.Unmarshal(raw, &list); err == nil {
		return restamp(dedupe(list)), nil
	}

	var m map[string]Item
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode saved items: %w", err)
	}
	items := make([]Item, 0, len(m))
	for key, it := range m {
		if it.ID == 0 {
			id, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			it.ID = id
		}
		items = append(items, it)
	}
	slices.SortFunc(items, func(a, b Item) int {
		if a.SavedAt != b.SavedAt {
			return cmp.Compare(b.SavedAt, a.SavedAt)
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return dedupe(items), nil
}

// restamp makes SavedAt strictly decreasing along an array-ordered list, so
// the order survives re-encoding as an object.
func restamp(items []Item) []Item {
	for i := len(items) - 1; i >= 0; i-- {
		var floor int64
		if i+1 < len(items) {
			floor = items[i+1].SavedAt
		}
		if items[i].SavedAt <= floor {
			items[i].SavedAt = floor + 1
		}
	}
	return items
}

// dedupe keeps the first entry per id and drops entries without an id.
func dedupe(items []Item) []Item {
	seen := make(map[int]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ID == 0 || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
