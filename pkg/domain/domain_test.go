package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeed_Stale(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	never := Feed{URL: "http://a/rss"}
	assert.True(t, never.Stale(now, ttl), "never refreshed is always stale")

	fresh := now.Add(-time.Minute)
	assert.False(t, (&Feed{LastRefreshedAt: &fresh}).Stale(now, ttl))

	old := now.Add(-10 * time.Minute)
	assert.True(t, (&Feed{LastRefreshedAt: &old}).Stale(now, ttl))

	exact := now.Add(-ttl)
	assert.False(t, (&Feed{LastRefreshedAt: &exact}).Stale(now, ttl), "exactly at ttl is still fresh")
}

func TestArticle_Text(t *testing.T) {
	a := Article{Title: "title", Description: "description"}
	assert.Equal(t, "description title", a.Text())

	onlyTitle := Article{Title: "title"}
	assert.Equal(t, " title", onlyTitle.Text())

	onlyDesc := Article{Description: "description"}
	assert.Equal(t, "description ", onlyDesc.Text())
}
