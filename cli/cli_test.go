package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielmmetz/hn-reader/feed"
	"github.com/danielmmetz/hn-reader/hn/hntest"
	"github.com/danielmmetz/hn-reader/readability"
)

type harness struct {
	upstream *hntest.Server
	dir      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	upstream := hntest.NewServer()
	t.Cleanup(upstream.Close)
	return &harness{upstream: upstream, dir: t.TempDir()}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := New(&out, &errOut)
	full := append([]string{"-base-url", h.upstream.URL, "-storage", "file", "-storage-path", h.dir}, args...)
	err := root.ParseAndRun(context.Background(), full)
	return out.String(), err
}

func (h *harness) config(out *bytes.Buffer) *Config {
	return &Config{
		BaseURL:     h.upstream.URL,
		Concurrency: 4,
		Storage:     "file",
		StoragePath: h.dir,
		LogLevel:    "warn",
		Out:         out,
		ErrOut:      out,
		Now:         time.Now,
	}
}

func TestTop(t *testing.T) {
	h := newHarness(t)
	h.upstream.SetList("top", 1, 2, 3)
	h.upstream.Story(1)
	h.upstream.Story(2)
	h.upstream.Story(3)

	out, err := h.run(t, "top", "-limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Story 1")
	assert.Contains(t, out, "Story 2")
	assert.NotContains(t, out, "Story 3")
	assert.Contains(t, out, "2 of 3 stories, more with -offset 2")

	out, err = h.run(t, "top", "-limit", "2", "-offset", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Story 3")
	assert.NotContains(t, out, "more with")
}

func TestNewUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "new")
	assert.EqualError(t, err, "failed to fetch new stories: status 404")
}

func TestComments(t *testing.T) {
	h := newHarness(t)
	kids := make([]int, 0, 8)
	for id := 100; id < 108; id++ {
		kids = append(kids, id)
		h.upstream.Comment(id, 1, "reply &amp; more <i>text</i>")
	}
	h.upstream.Story(1, kids...)

	out, err := h.run(t, "comments", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Story 1")
	assert.Contains(t, out, "8 replies")
	assert.Equal(t, 5, strings.Count(out, "reply & more text"))
	assert.Contains(t, out, "rerun with -more 1")

	out, err = h.run(t, "comments", "-more", "1", "1")
	require.NoError(t, err)
	assert.Equal(t, 8, strings.Count(out, "reply & more text"))
}

func TestCommentsMissingItem(t *testing.T) {
	h := newHarness(t)
	h.upstream.SetItem(9, nil)
	_, err := h.run(t, "comments", "9")
	assert.True(t, errors.Is(err, feed.ErrNotFound))

	_, err = h.run(t, "comments", "abc")
	assert.EqualError(t, err, `invalid item id "abc"`)
}

type stubExtractor struct {
	article *readability.Article
	err     error
}

func (s stubExtractor) Extract(context.Context, string) (*readability.Article, error) {
	return s.article, s.err
}

func TestRead(t *testing.T) {
	h := newHarness(t)
	h.upstream.Story(1)
	h.upstream.SetItem(2, map[string]any{"id": 2, "type": "story", "title": "Ask HN: why?", "text": "Because<p>it&#x27;s fun"})

	var out bytes.Buffer
	cfg := h.config(&out)
	ex := stubExtractor{article: &readability.Article{Byline: "someone", TextContent: "the article body"}}
	require.NoError(t, runRead(context.Background(), cfg, ex, 1))
	assert.Contains(t, out.String(), "someone")
	assert.Contains(t, out.String(), "the article body")

	out.Reset()
	require.NoError(t, runRead(context.Background(), cfg, ex, 2))
	assert.Contains(t, out.String(), "Because\n\nit's fun")

	out.Reset()
	require.NoError(t, runRead(context.Background(), cfg, stubExtractor{err: readability.ErrNoContent}, 1))
	assert.Contains(t, out.String(), "nothing readable")
}

func TestSavedCommands(t *testing.T) {
	h := newHarness(t)
	h.upstream.Story(1)
	h.upstream.Story(2)
	h.upstream.SetList("top", 1, 2)

	out, err := h.run(t, "saved")
	require.NoError(t, err)
	assert.Contains(t, out, "no saved stories")

	out, err = h.run(t, "saved", "add", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "saved 1: Story 1")

	out, err = h.run(t, "saved", "add", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "already saved")

	out, err = h.run(t, "saved", "toggle", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "saved 2: Story 2")

	out, err = h.run(t, "saved", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2 saved stories")
	assert.Less(t, strings.Index(out, "Story 2"), strings.Index(out, "Story 1"), "most recent first")

	out, err = h.run(t, "top")
	require.NoError(t, err)
	assert.Contains(t, out, "*")

	out, err = h.run(t, "saved", "rm", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1")

	out, err = h.run(t, "saved", "toggle", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 2")
	out, err = h.run(t, "saved", "toggle", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "saved 2: Story 2")

	out, err = h.run(t, "saved", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared 1 story")

	out, err = h.run(t, "saved", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no saved stories")
}

func TestSavedAddMissing(t *testing.T) {
	h := newHarness(t)
	h.upstream.SetItem(5, map[string]any{"id": 5, "type": "story", "deleted": true})
	_, err := h.run(t, "saved", "add", "5")
	assert.True(t, errors.Is(err, feed.ErrNotFound))
}

func TestUnknownStorage(t *testing.T) {
	var out bytes.Buffer
	root := New(&out, &out)
	err := root.ParseAndRun(context.Background(), []string{"-storage", "floppy", "saved"})
	assert.ErrorContains(t, err, `unknown storage backend "floppy"`)
}

func TestInvalidLogLevel(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "-log-level", "loud", "saved")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestSavedWatch(t *testing.T) {
	h := newHarness(t)
	h.upstream.Story(1)
	var out syncBuffer
	cfg := h.config(nil)
	cfg.Out, cfg.ErrOut = &out, &out

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, closeStore, err := cfg.openStore(ctx, true)
	require.NoError(t, err)
	defer closeStore()

	done := make(chan error, 1)
	go func() { done <- runSavedWatch(ctx, cfg, s) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "no saved stories") }, 5*time.Second, 10*time.Millisecond)
	_, err = h.run(t, "saved", "add", "1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Story 1") }, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "saved stories changed")

	cancel()
	assert.NoError(t, <-done)
}
