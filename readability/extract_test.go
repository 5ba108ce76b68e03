package readability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><head><title>A Long Post</title></head>
<body>
<nav><a href="/">home</a></nav>
<article>
<h1>A Long Post</h1>
<p>The first paragraph talks at length about the subject at hand, with enough words that a reader-mode extractor will consider it the main content of the page.</p>
<p>The second paragraph continues the discussion and adds yet more sentences, so that the article body is comfortably long and clearly distinguishable from navigation.</p>
<p>A third paragraph closes things out with a summary of everything said so far, again with plenty of ordinary prose.</p>
</article>
<footer>copyright</footer>
</body></html>`

func TestExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	a, err := NewExtractor(srv.Client()).Extract(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/post", a.URL)
	assert.Contains(t, a.Content, "first paragraph")
	assert.Contains(t, a.TextContent, "third paragraph")
	assert.False(t, a.Failed)
}

func TestExtractErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/huge":
			w.Write([]byte(strings.Repeat("a", maxBodySize+10)))
		}
	}))
	defer srv.Close()
	e := NewExtractor(srv.Client())
	ctx := context.Background()

	_, err := e.Extract(ctx, srv.URL+"/missing")
	assert.EqualError(t, err, "fetch returned status 404")

	_, err = e.Extract(ctx, srv.URL+"/huge")
	assert.ErrorContains(t, err, "response exceeds")

	_, err = e.Extract(ctx, "ftp://example.com/file")
	assert.ErrorContains(t, err, "unsupported url scheme")
	assert.False(t, errors.Is(err, ErrNoContent))
}
