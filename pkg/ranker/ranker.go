package ranker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/go-pkgz/lgr"

	"github.com/papyrus-app/papyrus/pkg/classify"
	"github.com/papyrus-app/papyrus/pkg/domain"
)

// Ranker merges classifier scores with article metadata, applies the
// combined sort key and paginates. It owns the TTL caches for the article
// list, the liked set and the trained-model marker; invalidation at write
// sites is an explicit contract, not an eventual-consistency window.
type Ranker struct {
	store     Store
	model     Model
	refresher Refresher

	maxArticles int
	datasetSize int
	cacheTTL    time.Duration

	articleCache cache.Cache[string, []domain.Article]
	likedCache   cache.Cache[string, map[string]struct{}]
	modelCache   cache.Cache[string, bool] // presence of the key means the model is current

	trainMu sync.Mutex // serializes the training phase across requests
}

// Store interface for ranking reads
type Store interface {
	RecentArticles(ctx context.Context, limit int) ([]domain.Article, error)
	LikedURLs(ctx context.Context) ([]string, error)
	LikedArticles(ctx context.Context) ([]domain.Article, error)
	UnlikedSample(ctx context.Context, limit int) ([]domain.Article, error)
}

// Model is the owning component for embedding and classifier state
type Model interface {
	TrainEmbeddings(corpus []string) bool
	TrainClassifier(texts []string, labels []int) error
	Predict(text string) float64
	ClassifierTrained() bool
	Reset()
}

// Refresher triggers a staleness-driven refresh before ranking
type Refresher interface {
	RefreshStale(ctx context.Context) error
}

// Config holds ranker configuration
type Config struct {
	MaxArticles int           // bound on the ranked article set
	DatasetSize int           // bound on the embedding training corpus
	CacheTTL    time.Duration // expiry for all three caches
}

// Page is one page of the ranked article listing. TotalPages uses floor
// division, a trailing partial page is not counted; the original API
// behaves this way and callers depend on it.
type Page struct {
	Items      []domain.RankedArticle `json:"items"`
	TotalPages int                    `json:"total_pages"`
	TotalItems int                    `json:"total_items"`
}

const (
	articlesKey = "articles"
	likedKey    = "liked"
	modelKey    = "model"
)

// New creates a ranker with empty caches
func New(store Store, model Model, refresher Refresher, cfg Config) *Ranker {
	if cfg.MaxArticles == 0 {
		cfg.MaxArticles = 500
	}
	if cfg.DatasetSize == 0 {
		cfg.DatasetSize = 500
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	return &Ranker{
		store:        store,
		model:        model,
		refresher:    refresher,
		maxArticles:  cfg.MaxArticles,
		datasetSize:  cfg.DatasetSize,
		cacheTTL:     cfg.CacheTTL,
		articleCache: cache.NewCache[string, []domain.Article]().WithTTL(cfg.CacheTTL),
		likedCache:   cache.NewCache[string, map[string]struct{}]().WithTTL(cfg.CacheTTL),
		modelCache:   cache.NewCache[string, bool]().WithTTL(cfg.CacheTTL),
	}
}

// Ranked returns one zero-indexed page of articles ordered by descending
// liked probability, ties broken by descending date with unknown dates
// sorting last. With refresh set, stale feeds are re-fetched first and the
// caches are cleared.
func (r *Ranker) Ranked(ctx context.Context, pageNum, itemsPerPage int, refresh bool) (*Page, error) {
	if itemsPerPage < 1 {
		return nil, fmt.Errorf("items_per_page must be positive, got %d", itemsPerPage)
	}
	if pageNum < 0 {
		return nil, fmt.Errorf("page_num must be non-negative, got %d", pageNum)
	}

	if refresh {
		if err := r.refresher.RefreshStale(ctx); err != nil {
			return nil, fmt.Errorf("refresh feeds: %w", err)
		}
		r.Invalidate()
	}

	if err := r.ensureTrained(ctx); err != nil {
		return nil, err
	}

	articles, err := r.articles(ctx)
	if err != nil {
		return nil, err
	}
	liked, err := r.likedSet(ctx)
	if err != nil {
		return nil, err
	}

	ranked := make([]domain.RankedArticle, len(articles))
	for i, a := range articles {
		// the liked set is authoritative, a concurrent toggle wins over
		// a stale article row
		_, a.IsLiked = liked[a.URL]

		prob := classify.AmbivalentProb
		if a.Description != "" || a.Title != "" {
			prob = r.model.Predict(a.Text())
		}
		ranked[i] = domain.RankedArticle{Article: a, SVMProb: prob}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].SVMProb != ranked[j].SVMProb {
			return ranked[i].SVMProb > ranked[j].SVMProb
		}
		return ranked[i].Date > ranked[j].Date // empty date sorts as oldest
	})

	total := len(ranked)
	start := pageNum * itemsPerPage
	if start > total {
		start = total
	}
	end := start + itemsPerPage
	if end > total {
		end = total
	}

	return &Page{
		Items:      ranked[start:end],
		TotalPages: total / itemsPerPage,
		TotalItems: total,
	}, nil
}

// Retrain drops all model and cache state and trains from the current
// store content. Used by the background refresh cycle. The reset and the
// retrain happen under the same lock as request-triggered training, a
// concurrent request can never observe the half-reset state.
func (r *Ranker) Retrain(ctx context.Context) error {
	r.trainMu.Lock()
	defer r.trainMu.Unlock()

	r.purgeCaches()
	r.model.Reset()
	return r.ensureTrainedLocked(ctx)
}

// Invalidate synchronously clears all caches and resets the model to
// untrained. Called on feed create/delete and forced refresh.
func (r *Ranker) Invalidate() {
	r.purgeCaches()
	r.model.Reset()
}

// InvalidateLikes clears the caches affected by a like toggle. The
// classifier is retrained on the next ranking run; the embedding space
// stays frozen, labels changed but the corpus did not.
func (r *Ranker) InvalidateLikes() {
	r.purgeCaches()
}

func (r *Ranker) purgeCaches() {
	r.articleCache.Purge()
	r.likedCache.Purge()
	r.modelCache.Purge()
}

// ensureTrained brings the model up to date when the trained-model cache
// has expired or was invalidated. Insufficient data is a recognized state,
// not an error: the model stays untrained and every article scores 0.5.
func (r *Ranker) ensureTrained(ctx context.Context) error {
	r.trainMu.Lock()
	defer r.trainMu.Unlock()
	return r.ensureTrainedLocked(ctx)
}

func (r *Ranker) ensureTrainedLocked(ctx context.Context) error {
	if _, ok := r.modelCache.Get(modelKey); ok {
		return nil
	}

	articles, err := r.articles(ctx)
	if err != nil {
		return err
	}

	// embedding corpus: the most recent articles carrying both description
	// and title, capped at the configured dataset size
	corpus := make([]string, 0, len(articles))
	for _, a := range articles {
		if len(corpus) >= r.datasetSize {
			break
		}
		if a.Description != "" && a.Title != "" {
			corpus = append(corpus, a.Text())
		}
	}

	// no-op when already fit, the embedding space is frozen until an
	// explicit invalidation
	if !r.model.TrainEmbeddings(corpus) {
		lgr.Printf("[DEBUG] embedding corpus too small (%d documents), scoring stays ambivalent", len(corpus))
		return nil // retried on the next run, the corpus may have grown
	}

	liked, err := r.store.LikedArticles(ctx)
	if err != nil {
		return fmt.Errorf("get liked articles: %w", err)
	}
	if len(liked) == 0 {
		// no labels to learn from yet, predictions fall back to 0.5
		r.modelCache.Set(modelKey, true, 0)
		return nil
	}

	unliked, err := r.store.UnlikedSample(ctx, len(liked))
	if err != nil {
		return fmt.Errorf("sample unliked articles: %w", err)
	}

	texts, labels := classify.BuildTrainingSet(liked, unliked)
	if err := r.model.TrainClassifier(texts, labels); err != nil {
		// leave the marker unset so the next run retries instead of
		// serving ambivalent scores for a full cache period
		lgr.Printf("[WARN] classifier training skipped: %v", err)
		return nil
	}

	r.modelCache.Set(modelKey, true, 0)
	return nil
}

// articles returns the bounded recent article set, cached
func (r *Ranker) articles(ctx context.Context) ([]domain.Article, error) {
	if v, ok := r.articleCache.Get(articlesKey); ok {
		return v, nil
	}

	articles, err := r.store.RecentArticles(ctx, r.maxArticles)
	if err != nil {
		return nil, fmt.Errorf("get articles: %w", err)
	}
	r.articleCache.Set(articlesKey, articles, 0)
	return articles, nil
}

// likedSet returns the authoritative liked-url set, cached
func (r *Ranker) likedSet(ctx context.Context) (map[string]struct{}, error) {
	if v, ok := r.likedCache.Get(likedKey); ok {
		return v, nil
	}

	urls, err := r.store.LikedURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("get liked urls: %w", err)
	}

	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	r.likedCache.Set(likedKey, set, 0)
	return set, nil
}
