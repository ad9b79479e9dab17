package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/papyrus-app/papyrus/pkg/domain"
)

// Scheduler decides which feeds are stale and drives concurrent re-fetch.
// It runs in two modes: request-triggered (RefreshStale, called before a
// ranking request) and background periodic (Start, unconditionally
// refreshing everything and retraining on a fixed interval).
type Scheduler struct {
	store     Store
	parser    Parser
	retrainer Retrainer

	feedTTL        time.Duration
	updateInterval time.Duration
	fetchTimeout   time.Duration
	maxWorkers     int

	refreshMu sync.Mutex // serializes refresh-and-retrain cycles across both modes
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

// Store interface for scheduler operations
type Store interface {
	ListFeeds(ctx context.Context) ([]domain.Feed, error)
	StaleFeeds(ctx context.Context, now time.Time, ttl time.Duration) ([]domain.Feed, error)
	UpsertArticles(ctx context.Context, articles []domain.ParsedArticle) error
	MarkRefreshed(ctx context.Context, feedURL string, ts time.Time) error
}

// Parser interface for feed parsing, fail-soft by contract
type Parser interface {
	Parse(ctx context.Context, feedURL, feedName string) []domain.ParsedArticle
}

// Retrainer is invoked by the background loop after a full refresh
type Retrainer interface {
	Retrain(ctx context.Context) error
}

// Config holds scheduler configuration
type Config struct {
	FeedTTL        time.Duration
	UpdateInterval time.Duration
	FetchTimeout   time.Duration
	MaxWorkers     int
}

// NewScheduler creates a new scheduler instance
func NewScheduler(store Store, parser Parser, cfg Config) *Scheduler {
	if cfg.FeedTTL == 0 {
		cfg.FeedTTL = 5 * time.Minute
	}
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = 30 * time.Minute
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 5
	}

	return &Scheduler{
		store:          store,
		parser:         parser,
		feedTTL:        cfg.FeedTTL,
		updateInterval: cfg.UpdateInterval,
		fetchTimeout:   cfg.FetchTimeout,
		maxWorkers:     cfg.MaxWorkers,
	}
}

// SetRetrainer wires the component retrained after background refreshes.
// Called once during startup wiring, before Start.
func (s *Scheduler) SetRetrainer(r Retrainer) {
	s.retrainer = r
}

// Start begins the background periodic mode
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.backgroundWorker(ctx)

	lgr.Printf("[INFO] scheduler started, update interval %v, feed ttl %v", s.updateInterval, s.feedTTL)
}

// Stop gracefully stops the background loop
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// backgroundWorker refreshes everything and retrains on a fixed wall-clock
// interval, independent of request traffic
func (s *Scheduler) backgroundWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	// run immediately on start
	s.refreshAndRetrain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAndRetrain(ctx)
		}
	}
}

func (s *Scheduler) refreshAndRetrain(ctx context.Context) {
	if err := s.RefreshAll(ctx); err != nil {
		lgr.Printf("[ERROR] background refresh failed: %v", err)
		return
	}
	if s.retrainer == nil {
		return
	}
	if err := s.retrainer.Retrain(ctx); err != nil {
		lgr.Printf("[WARN] background retrain skipped: %v", err)
	}
}

// RefreshStale re-fetches only the feeds whose last refresh exceeded the
// ttl. Used by the request-triggered mode.
func (s *Scheduler) RefreshStale(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	feeds, err := s.store.StaleFeeds(ctx, time.Now(), s.feedTTL)
	if err != nil {
		return fmt.Errorf("get stale feeds: %w", err)
	}
	s.refreshFeeds(ctx, feeds)
	return nil
}

// RefreshAll re-fetches every registered feed regardless of staleness
func (s *Scheduler) RefreshAll(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	feeds, err := s.store.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("get feeds: %w", err)
	}
	s.refreshFeeds(ctx, feeds)
	return nil
}

// refreshFeeds fans out over feeds with a bounded worker pool and waits for
// all of them. A single feed's failure never aborts the batch: fetch and
// parse problems degrade that feed to zero articles for this cycle.
func (s *Scheduler) refreshFeeds(ctx context.Context, feeds []domain.Feed) {
	if len(feeds) == 0 {
		return
	}
	lgr.Printf("[INFO] refreshing %d feeds", len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	for _, f := range feeds {
		g.Go(func() error {
			s.refreshFeed(ctx, f)
			return nil // per-feed errors are absorbed
		})
	}
	_ = g.Wait()

	lgr.Printf("[INFO] feed refresh completed")
}

// refreshFeed fetches one feed, upserts its articles and stamps the
// refresh time. The timestamp is written even when the fetch produced
// nothing, so a persistently-empty feed isn't retried every cycle. A store
// failure on the upsert skips the stamp: the feed stays stale and the whole
// batch is retried on the next cycle.
func (s *Scheduler) refreshFeed(ctx context.Context, f domain.Feed) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	articles := s.parser.Parse(fetchCtx, f.URL, f.Name)

	if len(articles) > 0 {
		if err := s.store.UpsertArticles(ctx, articles); err != nil {
			lgr.Printf("[ERROR] failed to store %d articles from %s: %v", len(articles), f.URL, err)
			return
		}
		lgr.Printf("[DEBUG] stored %d articles from %s", len(articles), f.URL)
	}

	if err := s.store.MarkRefreshed(ctx, f.URL, time.Now()); err != nil {
		lgr.Printf("[ERROR] failed to mark feed %s refreshed: %v", f.URL, err)
	}
}
