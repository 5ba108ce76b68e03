// Package readability turns a story's linked page into reader-mode content.
package readability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	goreadability "github.com/go-shiori/go-readability"
)

const (
	fetchTimeout = 30 * time.Second
	maxBodySize  = 1 << 20 // 1 MiB
	userAgent    = "HNReader/1.0"
)

// ErrNoContent is returned when a page parsed but yielded nothing readable.
var ErrNoContent = errors.New("no content extracted")

// defaultClient is a dedicated client for article fetching with transport-level controls.
var defaultClient = &http.Client{
	Timeout: fetchTimeout,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
	},
}

// Article holds extracted reader-mode content. Failed marks a cached
// extraction attempt that produced nothing.
type Article struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Byline      string `json:"byline,omitempty"`
	Content     string `json:"content,omitempty"` // cleaned HTML
	TextContent string `json:"text_content,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
	Failed      bool   `json:"extraction_failed"`
}

type Extractor struct {
	client *http.Client
}

// NewExtractor returns an Extractor using client, or the package's tuned
// client when client is nil.
func NewExtractor(client *http.Client) *Extractor {
	if client == nil {
		client = defaultClient
	}
	return &Extractor{client: client}
}

// Extract fetches a URL and extracts reader-mode content.
// The provided context is used as a parent; a 30-second timeout is applied on top.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Article, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	// Limit response body
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("response exceeds %d bytes", maxBodySize)
	}

	article, err := goreadability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability extract: %w", err)
	}

	if strings.TrimSpace(article.Content) == "" {
		return nil, ErrNoContent
	}

	return &Article{
		URL:         rawURL,
		Title:       article.Title,
		Byline:      article.Byline,
		Content:     article.Content,
		TextContent: strings.TrimSpace(article.TextContent),
		Excerpt:     article.Excerpt,
	}, nil
}
