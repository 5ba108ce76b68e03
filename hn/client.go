package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/danielmmetz/hn-reader/metrics"
)

// DefaultBaseURL is the public Hacker News Firebase API.
const DefaultBaseURL = "https://hacker-news.firebaseio.com"

// FetchError reports a failed request to the API: transport failure,
// non-success status or an undecodable body.
type FetchError struct {
	Op         string // human readable, e.g. "top stories", "item 42"
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options configures a Client. The zero value talks to DefaultBaseURL with
// http.DefaultClient and no rate limit.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// RateLimit caps requests per second; 0 disables limiting.
	RateLimit float64
}

type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	c := &Client{
		http:    opts.HTTPClient,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// ListIDs returns the ordered story ids of a feed (up to 500 for top, 500 for new).
func (c *Client) ListIDs(ctx context.Context, feed FeedType) ([]int, error) {
	if _, err := ParseFeedType(string(feed)); err != nil {
		return nil, err
	}
	var ids []int
	url := fmt.Sprintf("%s/v0/%sstories.json", c.baseURL, feed)
	if err := c.getJSON(ctx, "list", string(feed)+" stories", url, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetItem fetches a single story by id. An unknown id (null body) returns nil, nil.
// Beyond JSON decoding the record is not validated.
func (c *Client) GetItem(ctx context.Context, id int) (*Item, error) {
	var item *Item
	if err := c.getJSON(ctx, "item", fmt.Sprintf("item %d", id), c.itemURL(id), &item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetComment fetches a comment by id. Deleted, dead, empty and unknown
// comments return nil, nil; only request failures are errors.
func (c *Client) GetComment(ctx context.Context, id int) (*Comment, error) {
	var comment *Comment
	if err := c.getJSON(ctx, "comment", fmt.Sprintf("comment %d", id), c.itemURL(id), &comment); err != nil {
		return nil, err
	}
	if comment == nil || !comment.Displayable() {
		return nil, nil
	}
	return comment, nil
}

func (c *Client) itemURL(id int) string {
	return fmt.Sprintf("%s/v0/item/%d.json", c.baseURL, id)
}

func (c *Client) getJSON(ctx context.Context, endpoint, op, url string, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &FetchError{Op: op, URL: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{Op: op, URL: url, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return &FetchError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "bad_status").Inc()
		return &FetchError{Op: op, URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "decode_error").Inc()
		return &FetchError{Op: op, URL: url, Err: fmt.Errorf("decode: %w", err)}
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}
