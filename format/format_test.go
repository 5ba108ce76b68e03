package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeAgo(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
		{65 * 24 * time.Hour, "2mo ago"},
		{800 * 24 * time.Hour, "2y ago"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeAgo(now.Add(-tt.ago).Unix(), now))
		})
	}
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "1 point", Pluralize(1, "point", ""))
	assert.Equal(t, "0 points", Pluralize(0, "point", ""))
	assert.Equal(t, "3 replies", Pluralize(3, "reply", "replies"))
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("https://www.example.com/a?b=c"))
	assert.Equal(t, "blog.example.com", Domain("http://blog.example.com:8080/"))
	assert.Empty(t, Domain(""))
	assert.Empty(t, Domain("::not a url"))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "999", Number(999))
	assert.Equal(t, "1,234,567", Number(1234567))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "hello...", Truncate("hello world", 6))
	assert.Equal(t, "héllo...", Truncate("héllo wörld", 5))
}

func TestCategoryOf(t *testing.T) {
	tests := map[string]Category{
		"":                                  CategoryDiscussion,
		"https://github.com/golang/go":      CategoryCode,
		"https://www.youtube.com/watch?v=x": CategoryVideo,
		"https://x.com/someone":             CategorySocial,
		"https://www.bbc.co.uk/news/1":      CategoryNews,
		"https://arxiv.org/abs/1234":        CategoryAcademic,
		"https://cs.stanford.edu/paper":     CategoryAcademic,
		"https://news.ycombinator.com/":     CategoryStartup,
		"https://someone.substack.com/p/x":  CategoryBlog,
		"https://example.com":               CategoryWeb,
		"https://notgithub.com":             CategoryWeb,
	}
	for in, want := range tests {
		assert.Equal(t, want, CategoryOf(in), in)
	}
}

func TestFaviconURL(t *testing.T) {
	assert.Equal(t, "https://www.google.com/s2/favicons?domain=example.com&sz=32", FaviconURL("example.com"))
	assert.Empty(t, FaviconURL(""))
}

func TestSanitizeHTML(t *testing.T) {
	in := `Look <a href="https://example.com">here</a><script>alert(1)</script><p><i>really</i>`
	out := SanitizeHTML(in)
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, "nofollow")
	assert.Contains(t, out, "<i>really</i>")
}

func TestPlainText(t *testing.T) {
	in := `It&#x27;s <i>fine</i><p>Second &gt; first`
	assert.Equal(t, "It's fine\n\nSecond > first", PlainText(in))
	assert.Empty(t, PlainText(""))
}
