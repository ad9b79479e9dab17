package domain

import "time"

// Feed represents a registered RSS/Atom feed source
type Feed struct {
	ID              int64      `json:"id"`
	URL             string     `json:"url"`
	Name            string     `json:"name"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
	IsVisible       bool       `json:"is_visible"`
}

// Stale reports whether the feed needs a refresh at the given moment.
// A feed that was never refreshed is always stale.
func (f *Feed) Stale(now time.Time, ttl time.Duration) bool {
	if f.LastRefreshedAt == nil {
		return true
	}
	return now.Sub(*f.LastRefreshedAt) > ttl
}
