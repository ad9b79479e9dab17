package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/papyrus-app/papyrus/pkg/domain"
)

// articleSQL represents an article row for SQL operations
type articleSQL struct {
	ID          int64          `db:"id"`
	FeedName    string         `db:"feed_name"`
	FeedURL     string         `db:"feed_url"`
	Title       sql.NullString `db:"title"`
	URL         string         `db:"url"`
	Date        sql.NullString `db:"date"`
	Description sql.NullString `db:"description"`
	IsLiked     bool           `db:"is_liked"`
}

func (a *articleSQL) toDomain() domain.Article {
	return domain.Article{
		ID:          a.ID,
		FeedName:    a.FeedName,
		FeedURL:     a.FeedURL,
		Title:       a.Title.String,
		URL:         a.URL,
		Date:        a.Date.String,
		Description: a.Description.String,
		IsLiked:     a.IsLiked,
	}
}

// UpsertArticles inserts a batch of parsed articles; on url conflict every
// field except id and is_liked is overwritten, so a like survives
// re-ingestion. The batch runs in a single transaction, a partial failure
// rolls everything back.
func (s *Store) UpsertArticles(ctx context.Context, articles []domain.ParsedArticle) error {
	if len(articles) == 0 {
		return nil
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		err := s.inTransaction(ctx, func(tx *sqlx.Tx) error {
			query := `
				INSERT INTO articles (feed_name, feed_url, title, url, date, description, is_liked)
				VALUES (?, ?, ?, ?, ?, ?, 0)
				ON CONFLICT(url) DO UPDATE SET
					feed_name = excluded.feed_name,
					feed_url = excluded.feed_url,
					title = excluded.title,
					date = excluded.date,
					description = excluded.description
			`
			for _, a := range articles {
				if a.URL == "" {
					continue
				}
				_, err := tx.ExecContext(ctx, query,
					a.FeedName, a.FeedURL, nullable(a.Title), a.URL, nullable(a.Date), nullable(a.Description))
				if err != nil {
					return fmt.Errorf("upsert article %s: %w", a.URL, err)
				}
			}
			return nil
		})
		if err != nil {
			if isLockError(err) {
				return err // retry the whole batch
			}
			return &criticalError{err: err}
		}
		return nil
	})
}

// RecentArticles returns up to limit articles from visible feeds, newest
// first. Articles without a date sort last.
func (s *Store) RecentArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	var rows []articleSQL
	query := `
		SELECT a.* FROM articles a
		WHERE EXISTS (SELECT 1 FROM feeds f WHERE f.url = a.feed_url AND f.is_visible = 1)
		ORDER BY a.date IS NULL, a.date DESC, a.id
		LIMIT ?
	`
	if err := s.conn.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("recent articles: %w", err)
	}

	articles := make([]domain.Article, len(rows))
	for i, r := range rows {
		articles[i] = r.toDomain()
	}
	return articles, nil
}

// LikedURLs returns the urls of all liked articles
func (s *Store) LikedURLs(ctx context.Context) ([]string, error) {
	var urls []string
	if err := s.conn.SelectContext(ctx, &urls, `SELECT url FROM articles WHERE is_liked = 1`); err != nil {
		return nil, fmt.Errorf("liked urls: %w", err)
	}
	return urls, nil
}

// LikedArticles returns all liked articles
func (s *Store) LikedArticles(ctx context.Context) ([]domain.Article, error) {
	var rows []articleSQL
	if err := s.conn.SelectContext(ctx, &rows, `SELECT * FROM articles WHERE is_liked = 1`); err != nil {
		return nil, fmt.Errorf("liked articles: %w", err)
	}

	articles := make([]domain.Article, len(rows))
	for i, r := range rows {
		articles[i] = r.toDomain()
	}
	return articles, nil
}

// UnlikedSample returns up to limit unliked articles in random order,
// used to balance classes when building the classifier training set.
func (s *Store) UnlikedSample(ctx context.Context, limit int) ([]domain.Article, error) {
	var rows []articleSQL
	query := `SELECT * FROM articles WHERE is_liked = 0 ORDER BY RANDOM() LIMIT ?`
	if err := s.conn.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("unliked sample: %w", err)
	}

	articles := make([]domain.Article, len(rows))
	for i, r := range rows {
		articles[i] = r.toDomain()
	}
	return articles, nil
}

// ToggleLike flips the is_liked flag of the article with the given URL.
// Returns ErrNotFound when no such article exists.
func (s *Store) ToggleLike(ctx context.Context, articleURL string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		result, err := s.conn.ExecContext(ctx, `UPDATE articles SET is_liked = NOT is_liked WHERE url = ?`, articleURL)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("toggle like: %w", err)}
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get rows affected: %w", err)}
		}
		if affected == 0 {
			return &criticalError{err: fmt.Errorf("article %q: %w", articleURL, ErrNotFound)}
		}
		return nil
	})
}

// CountArticles returns the total number of stored articles
func (s *Store) CountArticles(ctx context.Context) (int64, error) {
	var count int64
	if err := s.conn.GetContext(ctx, &count, `SELECT COUNT(*) FROM articles`); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
