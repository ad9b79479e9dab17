package domain

// DateLayout is the calendar-date form articles carry, no time component.
// The lexicographic order of this layout matches chronological order which
// the ranking sort relies on.
const DateLayout = "2006-01-02"

// Article is the canonical stored record for a single feed entry,
// deduplicated by URL.
type Article struct {
	ID          int64  `json:"id"`
	FeedName    string `json:"feed_name"`
	FeedURL     string `json:"feed_url"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Date        string `json:"date,omitempty"` // YYYY-MM-DD, empty means unknown
	Description string `json:"description,omitempty"`
	IsLiked     bool   `json:"is_liked"`
}

// Text returns the concatenation of description and title used as
// classifier input. The same join is applied to training and inference.
func (a *Article) Text() string {
	return a.Description + " " + a.Title
}

// ParsedArticle is a normalized entry produced by the feed parser before
// it is persisted.
type ParsedArticle struct {
	FeedName    string
	FeedURL     string
	Title       string
	URL         string
	Date        string // YYYY-MM-DD, empty means unknown
	Description string
}

// RankedArticle is an article annotated with the classifier's liked
// probability. Not persisted.
type RankedArticle struct {
	Article
	SVMProb float64 `json:"svm_prob"`
}
