package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(day int) *time.Time {
	t := time.Date(2025, time.November, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSortArticles(t *testing.T) {
	articles := []Article{
		{Title: "old", PublishedAt: at(1)},
		{Title: "b undated"},
		{Title: "new", PublishedAt: at(20)},
		{Title: "A undated"},
		{Title: "beta same day", PublishedAt: at(10)},
		{Title: "Alpha same day", PublishedAt: at(10)},
	}
	SortArticles(articles)

	var titles []string
	for _, a := range articles {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"new", "Alpha same day", "beta same day", "old", "A undated", "b undated"}, titles)
}

func TestEnrich(t *testing.T) {
	src := Source{Title: "Blog", URL: "https://blog.example.com/rss"}

	e := Enrich(Entry{RawEntry: RawEntry{Link: "https://blog.example.com/1"}}, src)
	assert.Equal(t, "Blog", e.SourceTitle)
	assert.Equal(t, src.URL, e.FeedURL)

	own := Enrich(Entry{SourceTitle: "Syndicated", FeedURL: "https://other.example.com/rss"}, src)
	assert.Equal(t, "Syndicated", own.SourceTitle)
	assert.Equal(t, "https://other.example.com/rss", own.FeedURL)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(Entry{RawEntry: RawEntry{Link: "https://x.example/1"}}))
	assert.False(t, Valid(Entry{RawEntry: RawEntry{Link: "   "}}))
	assert.False(t, Valid(Entry{}))
}

func TestPublishedAt(t *testing.T) {
	e := Entry{RawEntry: RawEntry{PubDateString: "Tue, 25 Nov 2025 12:34:56 GMT"}}
	got := PublishedAt(e)
	if assert.NotNil(t, got) {
		assert.Equal(t, 2025, got.Year())
	}
	assert.Nil(t, PublishedAt(Entry{RawEntry: RawEntry{PubDateString: "soon"}}))
}
