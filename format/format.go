// Package format holds the small text helpers shared by the CLI and the API.
package format

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TimeAgo renders the distance from a unix-seconds timestamp to now.
func TimeAgo(unix int64, now time.Time) string {
	secs := now.Unix() - unix
	switch {
	case secs < 60:
		return "just now"
	case secs < 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%dh ago", secs/3600)
	case secs < 30*86400:
		return fmt.Sprintf("%dd ago", secs/86400)
	case secs < 365*86400:
		return fmt.Sprintf("%dmo ago", secs/(30*86400))
	default:
		return fmt.Sprintf("%dy ago", secs/(365*86400))
	}
}

// Pluralize returns "1 point", "3 points". plural defaults to singular+"s".
func Pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	if plural == "" {
		plural = singular + "s"
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// Domain returns the host of rawURL without a leading "www.", or "" when
// rawURL has no host.
func Domain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

var printer = message.NewPrinter(language.English)

// Number formats n with thousands separators.
func Number(n int) string {
	return printer.Sprintf("%d", n)
}

// Truncate cuts s to at most max runes, appending "..." when anything was cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}

// FaviconURL points at a 32px favicon for domain.
func FaviconURL(domain string) string {
	if domain == "" {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/s2/favicons?domain=%s&sz=32", url.QueryEscape(domain))
}

type Category string

const (
	CategoryCode       Category = "code"
	CategoryVideo      Category = "video"
	CategorySocial     Category = "social"
	CategoryNews       Category = "news"
	CategoryAcademic   Category = "academic"
	CategoryStartup    Category = "startup"
	CategoryBlog       Category = "blog"
	CategoryWeb        Category = "web"
	CategoryDiscussion Category = "discussion"
)

var categories = []struct {
	category Category
	hosts    []string
}{
	{CategoryCode, []string{"github.com", "gitlab.com", "bitbucket.org"}},
	{CategoryVideo, []string{"youtube.com", "youtu.be", "vimeo.com", "twitch.tv"}},
	{CategorySocial, []string{"twitter.com", "x.com", "linkedin.com", "facebook.com"}},
	{CategoryNews, []string{"nytimes.com", "bbc.com", "bbc.co.uk", "reuters.com", "techcrunch.com"}},
	{CategoryAcademic, []string{"arxiv.org", ".edu", "scholar.google.com", "pubmed.ncbi.nlm.nih.gov"}},
	{CategoryStartup, []string{"ycombinator.com", "producthunt.com", "angel.co", "angellist.com"}},
	{CategoryBlog, []string{"medium.com", "dev.to", "hashnode.com", "hashnode.dev", "substack.com"}},
}

// CategoryOf classifies a story by the domain it links to. Stories without a
// URL are discussions.
func CategoryOf(rawURL string) Category {
	domain := Domain(rawURL)
	if domain == "" {
		return CategoryDiscussion
	}
	for _, c := range categories {
		for _, h := range c.hosts {
			if matchHost(domain, h) {
				return c.category
			}
		}
	}
	return CategoryWeb
}

func matchHost(domain, pattern string) bool {
	if strings.HasPrefix(pattern, ".") {
		return strings.HasSuffix(domain, pattern)
	}
	return domain == pattern || strings.HasSuffix(domain, "."+pattern)
}

var (
	ugc    = newUGCPolicy()
	strict = bluemonday.StrictPolicy()
)

func newUGCPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// SanitizeHTML keeps the markup comment text uses (paragraphs, links, code,
// italics) and drops everything else.
func SanitizeHTML(s string) string {
	if s == "" {
		return ""
	}
	return ugc.Sanitize(s)
}

// PlainText strips all markup from comment HTML, keeping paragraph breaks.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "<p>", "\n\n")
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
