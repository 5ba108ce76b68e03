package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielmmetz/hn-reader/feed"
	"github.com/danielmmetz/hn-reader/hn"
	"github.com/danielmmetz/hn-reader/hn/hntest"
	"github.com/danielmmetz/hn-reader/readability"
	"github.com/danielmmetz/hn-reader/saved"
	"github.com/danielmmetz/hn-reader/sse"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, url string) (*readability.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &readability.Article{URL: url, Title: "Extracted", Content: "<p>body</p>"}, nil
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memCache struct {
	mu sync.Mutex
	m  map[int]*readability.Article
}

func (c *memCache) Get(_ context.Context, id int) (*readability.Article, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[id], nil
}

func (c *memCache) Upsert(_ context.Context, id int, a *readability.Article) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = a
	return nil
}

type fixture struct {
	upstream  *hntest.Server
	store     *saved.Store
	broker    *sse.Broker
	extractor *fakeExtractor
	mux       *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	upstream := hntest.NewServer()
	t.Cleanup(upstream.Close)
	repo := feed.NewRepository(hn.NewClient(hn.Options{BaseURL: upstream.URL}), 4)

	store, err := saved.New(context.Background(), saved.NewMemoryStorage(), nil)
	require.NoError(t, err)
	broker := sse.NewBroker(16)
	extractor := &fakeExtractor{}
	articles := NewArticlesHandler(repo, extractor, &memCache{m: make(map[int]*readability.Article)})

	f := &fixture{upstream: upstream, store: store, broker: broker, extractor: extractor}
	f.mux = NewMux(Handlers{
		Stories:  NewStoriesHandler(repo),
		Comments: NewCommentsHandler(repo),
		Articles: articles,
		Refresh:  NewRefreshHandler(articles, broker),
		Saved:    NewSavedHandler(store, repo),
		Health:   NewHealthHandler(store, broker),
		Broker:   broker,
		Static: fstest.MapFS{
			"index.html":    {Data: []byte("<html>app</html>")},
			"assets/app.js": {Data: []byte("console.log(1)")},
		},
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestListStories(t *testing.T) {
	f := newFixture(t)
	f.upstream.SetList("top", 1, 2, 3)
	f.upstream.SetList("new", 9)
	f.upstream.Story(1)
	f.upstream.Story(2)
	f.upstream.Story(3)
	f.upstream.Story(9)

	rec := f.do(t, "GET", "/api/stories?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[feed.Page[hn.Item]](t, rec)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.Total)
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	rec = f.do(t, "GET", "/api/stories?feed=new", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[feed.Page[hn.Item]](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 9, page.Items[0].ID)
	assert.False(t, page.HasMore)
}

func TestListStoriesETag(t *testing.T) {
	f := newFixture(t)
	f.upstream.SetList("top", 1)
	f.upstream.Story(1)

	rec := f.do(t, "GET", "/api/stories", "")
	etag := rec.Header().Get("ETag")

	req := httptest.NewRequest("GET", "/api/stories", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestListStoriesErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/stories?feed=best", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// no list registered: upstream answers 404
	rec = f.do(t, "GET", "/api/stories", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "failed to fetch top stories: status 404", body["error"])
}

func TestGetItem(t *testing.T) {
	f := newFixture(t)
	f.upstream.Story(5)
	f.upstream.SetItem(6, nil)

	rec := f.do(t, "GET", "/api/items/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Story 5", decode[hn.Item](t, rec).Title)

	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/items/6", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/api/items/abc", "").Code)
}

func TestGetComments(t *testing.T) {
	f := newFixture(t)
	f.upstream.Story(1, 11, 12, 13)
	f.upstream.Comment(11, 1, `hi <script>alert(1)</script><a href="https://x.example">link</a>`)
	f.upstream.SetItem(12, map[string]any{"id": 12, "type": "comment", "deleted": true})
	f.upstream.Comment(13, 1, "third")

	rec := f.do(t, "GET", "/api/items/1/comments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[feed.Page[hn.Comment]](t, rec)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Total)
	assert.NotContains(t, page.Items[0].Text, "<script")
	assert.Contains(t, page.Items[0].Text, "nofollow")
	assert.Equal(t, 13, page.Items[1].ID)

	f.upstream.SetItem(2, nil)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/items/2/comments", "").Code)
}

func TestGetArticle(t *testing.T) {
	f := newFixture(t)
	f.upstream.Story(1)
	f.upstream.SetItem(2, map[string]any{"id": 2, "type": "story", "title": "Ask HN"})

	rec := f.do(t, "GET", "/api/items/1/article", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Extracted", decode[readability.Article](t, rec).Title)

	f.do(t, "GET", "/api/items/1/article", "")
	assert.Equal(t, 1, f.extractor.Calls(), "second view is served from cache")

	rec = f.do(t, "GET", "/api/items/2/article", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "story has no URL", decode[map[string]string](t, rec)["error"])
}

func TestGetArticleFailureIsCached(t *testing.T) {
	f := newFixture(t)
	f.upstream.Story(1)
	f.extractor.err = errors.New("boom")

	rec := f.do(t, "GET", "/api/items/1/article", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[readability.Article](t, rec).Failed)

	f.do(t, "GET", "/api/items/1/article", "")
	assert.Equal(t, 1, f.extractor.Calls())
}

func TestRefreshRateLimited(t *testing.T) {
	f := newFixture(t)
	f.upstream.Story(1)

	assert.Equal(t, http.StatusAccepted, f.do(t, "POST", "/api/items/1/article/refresh", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, "POST", "/api/items/1/article/refresh", "").Code)

	require.Eventually(t, func() bool {
		return len(f.broker.Events(0)) == 1
	}, 5*time.Second, 10*time.Millisecond)
	events := f.broker.Events(0)
	assert.Equal(t, "article_refreshed", events[0].Type)
}

func TestSavedToggleConcurrent(t *testing.T) {
	f := newFixture(t)
	f.upstream.Story(1)
	f.store.Save(context.Background(), saved.Item{ID: 1, Title: "one"})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest("POST", "/api/saved/1/toggle", nil)
			f.mux.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	it, ok := f.store.Snapshot().Get(1)
	require.True(t, ok, "an even number of toggles leaves the story saved")
	assert.Equal(t, 1, f.store.Count())
	assert.NotEmpty(t, it.Title)
}

func TestSavedLifecycle(t *testing.T) {
	f := newFixture(t)
	f.upstream.Story(1)
	unsubscribe := PublishChanges(f.store, f.broker)
	defer unsubscribe()

	// without a body the story is fetched
	rec := f.do(t, "PUT", "/api/saved/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, savedState{ID: 1, Saved: true, Count: 1}, decode[savedState](t, rec))
	it, ok := f.store.Snapshot().Get(1)
	require.True(t, ok)
	assert.Equal(t, "Story 1", it.Title)
	assert.Equal(t, "example.com", it.Domain)

	rec = f.do(t, "PUT", "/api/saved/2", `{"title":"from body"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[savedState](t, rec).Count)

	rec = f.do(t, "GET", "/api/saved", "")
	list := decode[savedList](t, rec)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, 2, list.Items[0].ID, "most recent first")

	rec = f.do(t, "POST", "/api/saved/2/toggle", "")
	assert.False(t, decode[savedState](t, rec).Saved)
	rec = f.do(t, "POST", "/api/saved/1/toggle", "")
	assert.False(t, decode[savedState](t, rec).Saved)
	rec = f.do(t, "POST", "/api/saved/1/toggle", "")
	assert.True(t, decode[savedState](t, rec).Saved)

	rec = f.do(t, "DELETE", "/api/saved/1", "")
	assert.Equal(t, savedState{ID: 1, Saved: false, Count: 0}, decode[savedState](t, rec))

	f.do(t, "PUT", "/api/saved/1", "")
	rec = f.do(t, "DELETE", "/api/saved", "")
	assert.Equal(t, 0, decode[savedList](t, rec).Count)
	assert.Zero(t, f.store.Count())

	events := f.broker.Events(0)
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.Equal(t, "saved_changed", e.Type)
	}
	assert.Contains(t, events[len(events)-1].Data, `"count":0`)
}

func TestSaveErrors(t *testing.T) {
	f := newFixture(t)
	f.upstream.SetItem(3, nil)
	f.upstream.SetItem(4, map[string]any{"id": 4, "type": "story", "dead": true})

	assert.Equal(t, http.StatusNotFound, f.do(t, "PUT", "/api/saved/3", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "PUT", "/api/saved/4", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "PUT", "/api/saved/5", `{"id":6}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "PUT", "/api/saved/5", `{`).Code)
	assert.Zero(t, f.store.Count())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["saved_count"])
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hnreader_saved_items")
}

func TestStatic(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/assets/app.js", "")
	assert.Equal(t, "console.log(1)", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	rec = f.do(t, "GET", "/saved", "")
	assert.Equal(t, "<html>app</html>", rec.Body.String())

	rec = f.do(t, "GET", "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	NewStaticHandler(nil).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Contains(t, rec.Body.String(), "HN Reader")
}
