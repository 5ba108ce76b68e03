package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/danielmmetz/hn-reader/readability"
)

// ArticleStore caches reader-mode extractions by story id.
type ArticleStore struct {
	db *sql.DB
}

func NewArticleStore(db *sql.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

func (s *ArticleStore) Upsert(ctx context.Context, storyID int, a *readability.Article) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (story_id, url, content, text_content, title, excerpt, byline, extraction_failed, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(story_id) DO UPDATE SET
			url=excluded.url, content=excluded.content, text_content=excluded.text_content,
			title=excluded.title, excerpt=excluded.excerpt, byline=excluded.byline,
			extraction_failed=excluded.extraction_failed, fetched_at=excluded.fetched_at`,
		storyID, a.URL, a.Content, a.TextContent, a.Title, a.Excerpt, a.Byline, a.Failed, time.Now().Unix())
	return err
}

// Get returns the cached article, or nil when there is none.
func (s *ArticleStore) Get(ctx context.Context, storyID int) (*readability.Article, error) {
	a := &readability.Article{}
	var content, text, title, excerpt, byline sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT url, content, text_content, title, excerpt, byline, extraction_failed
		FROM articles WHERE story_id = ?`, storyID).
		Scan(&a.URL, &content, &text, &title, &excerpt, &byline, &a.Failed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Content, a.TextContent, a.Title, a.Excerpt, a.Byline = content.String, text.String, title.String, excerpt.String, byline.String
	return a, nil
}

// Prune drops articles fetched before cutoff and reports how many went.
func (s *ArticleStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE fetched_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
