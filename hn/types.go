package hn

import "fmt"

// FeedType selects one of the story listings.
type FeedType string

const (
	FeedTop FeedType = "top"
	FeedNew FeedType = "new"
)

// ParseFeedType validates a feed name coming from a flag, query or path.
func ParseFeedType(s string) (FeedType, error) {
	switch FeedType(s) {
	case FeedTop, FeedNew:
		return FeedType(s), nil
	default:
		return "", fmt.Errorf("invalid feed type %q: must be top or new", s)
	}
}

// Item represents a Hacker News story.
type Item struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text,omitempty"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants,omitempty"`
	Kids        []int  `json:"kids,omitempty"`
	Dead        bool   `json:"dead,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
}

// Tombstoned reports whether the item was deleted or killed upstream.
func (i *Item) Tombstoned() bool {
	return i.Deleted || i.Dead
}

// Comment represents a Hacker News comment.
type Comment struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	By      string `json:"by"`
	Time    int64  `json:"time"`
	Text    string `json:"text"`
	Parent  int    `json:"parent"`
	Kids    []int  `json:"kids,omitempty"`
	Dead    bool   `json:"dead,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Displayable reports whether the comment can be shown: not tombstoned and with a body.
func (c *Comment) Displayable() bool {
	return !c.Deleted && !c.Dead && c.Text != ""
}
