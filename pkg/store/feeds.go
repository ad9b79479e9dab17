package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/papyrus-app/papyrus/pkg/domain"
)

// feedSQL represents a feed row for SQL operations
type feedSQL struct {
	ID              int64      `db:"id"`
	URL             string     `db:"url"`
	Name            string     `db:"name"`
	LastRefreshedAt *time.Time `db:"last_refreshed_at"`
	IsVisible       bool       `db:"is_visible"`
}

func (f *feedSQL) toDomain() domain.Feed {
	return domain.Feed{
		ID:              f.ID,
		URL:             f.URL,
		Name:            f.Name,
		LastRefreshedAt: f.LastRefreshedAt,
		IsVisible:       f.IsVisible,
	}
}

// CreateFeed registers a new feed, visible by default and never refreshed
func (s *Store) CreateFeed(ctx context.Context, feed *domain.Feed) error {
	query := `INSERT INTO feeds (url, name, is_visible) VALUES (?, ?, 1)`
	result, err := s.conn.ExecContext(ctx, query, feed.URL, feed.Name)
	if err != nil {
		return fmt.Errorf("insert feed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	feed.ID = id
	feed.IsVisible = true
	return nil
}

// ListFeeds retrieves all registered feeds
func (s *Store) ListFeeds(ctx context.Context) ([]domain.Feed, error) {
	var rows []feedSQL
	if err := s.conn.SelectContext(ctx, &rows, `SELECT * FROM feeds ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	feeds := make([]domain.Feed, len(rows))
	for i, r := range rows {
		feeds[i] = r.toDomain()
	}
	return feeds, nil
}

// StaleFeeds returns feeds whose last refresh is older than ttl.
// A feed that was never refreshed is always included.
func (s *Store) StaleFeeds(ctx context.Context, now time.Time, ttl time.Duration) ([]domain.Feed, error) {
	cutoff := now.Add(-ttl)
	var rows []feedSQL
	query := `SELECT * FROM feeds WHERE last_refreshed_at IS NULL OR last_refreshed_at < ? ORDER BY id`
	if err := s.conn.SelectContext(ctx, &rows, query, cutoff); err != nil {
		return nil, fmt.Errorf("stale feeds: %w", err)
	}

	feeds := make([]domain.Feed, len(rows))
	for i, r := range rows {
		feeds[i] = r.toDomain()
	}
	return feeds, nil
}

// MarkRefreshed stamps the feed's last refresh time unconditionally, even
// when the preceding parse produced zero articles. Keeping the stamp on
// empty results stops a persistently-empty feed from being refetched every
// cycle.
func (s *Store) MarkRefreshed(ctx context.Context, feedURL string, ts time.Time) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		_, err := s.conn.ExecContext(ctx, `UPDATE feeds SET last_refreshed_at = ? WHERE url = ?`, ts.UTC(), feedURL)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("mark refreshed: %w", err)}
		}
		return nil
	})
}

// ToggleFeedVisibility flips the is_visible flag of the feed with the given URL
func (s *Store) ToggleFeedVisibility(ctx context.Context, feedURL string) error {
	result, err := s.conn.ExecContext(ctx, `UPDATE feeds SET is_visible = NOT is_visible WHERE url = ?`, feedURL)
	if err != nil {
		return fmt.Errorf("toggle feed visibility: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("feed %q: %w", feedURL, ErrNotFound)
	}
	return nil
}

// DeleteFeed removes the feed with the given URL and cascades to its
// articles via the feed_url back-reference. Atomic: either both the feed
// and its articles go, or neither does.
func (s *Store) DeleteFeed(ctx context.Context, feedURL string) error {
	return s.inTransaction(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE url = ?`, feedURL)
		if err != nil {
			return fmt.Errorf("delete feed: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("feed %q: %w", feedURL, ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE feed_url = ?`, feedURL); err != nil {
			return fmt.Errorf("delete feed articles: %w", err)
		}
		return nil
	})
}
