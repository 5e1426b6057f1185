package feed

import (
	"sort"
	"strings"
	"time"

	"notifeeder/internal/datenorm"
)

// Published returns the article's instant, or the sentinel when it has none.
func (a Article) Published() time.Time {
	if a.PublishedAt == nil {
		return datenorm.Sentinel
	}
	return *a.PublishedAt
}

// Less orders newest first. Ties, including two unparseable dates, fall back
// to case-insensitive title order.
func Less(a, b Article) bool {
	ta, tb := a.Published(), b.Published()
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return strings.ToLower(a.Title) < strings.ToLower(b.Title)
}

// SortArticles sorts in place by Less.
func SortArticles(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return Less(articles[i], articles[j])
	})
}

// PublishedAt normalizes the entry's raw date. Unparseable dates yield nil.
func PublishedAt(e Entry) *time.Time {
	t := datenorm.Parse(e.PubDateString)
	if datenorm.IsSentinel(t) {
		return nil
	}
	return &t
}
