// Package list prints cached articles for the terminal.
package list

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"notifeeder/internal/feed"
	"notifeeder/internal/htmltext"
	"notifeeder/internal/store"
)

const previewLimit = 200

// Options filter the listing. Zero values mean no filter.
type Options struct {
	Feed       string        // feed url
	Unread     bool          // only unread articles
	Bookmarked bool          // only bookmarked articles
	Since      time.Duration // published within this window; undated articles are excluded
	Limit      int
}

// Item is an article with its read marker.
type Item struct {
	feed.Article
	FeedURL    string `json:"feedUrl"`
	Read       bool   `json:"read"`
	Bookmarked bool   `json:"bookmarked"`
}

// Select returns cached articles matching opts, newest first.
func Select(st *store.State, opts Options, now time.Time) []Item {
	var items []Item
	for _, url := range st.Articles.FeedURLs() {
		if opts.Feed != "" && url != opts.Feed {
			continue
		}
		for _, a := range st.Articles.Articles(url) {
			items = append(items, Item{
				Article:    a,
				FeedURL:    url,
				Read:       st.ReadState.IsRead(a.Link),
				Bookmarked: st.Bookmarks.IsBookmarked(a.Link),
			})
		}
	}
	cutoff := now.Add(-opts.Since)
	items = lo.Filter(items, func(it Item, _ int) bool {
		if opts.Unread && it.Read {
			return false
		}
		if opts.Bookmarked && !it.Bookmarked {
			return false
		}
		return opts.Since <= 0 || !it.Published().Before(cutoff)
	})
	sort.SliceStable(items, func(i, j int) bool { return feed.Less(items[i].Article, items[j].Article) })
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}

// Print writes items in a human readable block format.
func Print(w io.Writer, items []Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return
	}
	unread := lo.CountBy(items, func(it Item) bool { return !it.Read })
	fmt.Fprintf(w, "Found %d articles (%d unread):\n\n", len(items), unread)
	for _, it := range items {
		marker := "●"
		if it.Read {
			marker = " "
		}
		title := it.Title
		if title == "" {
			title = "No title"
		}
		if it.Bookmarked {
			title += " ★"
		}
		fmt.Fprintf(w, "%s %s\n", marker, title)
		if it.FeedTitle != "" {
			fmt.Fprintf(w, "  Feed: %s\n", it.FeedTitle)
		}
		if it.PublishedAt != nil {
			fmt.Fprintf(w, "  Date: %s\n", it.PublishedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(w, "  Link: %s\n", it.Link)
		if it.Summary != "" {
			fmt.Fprintf(w, "  %s\n", htmltext.Truncate(it.Summary, previewLimit))
		}
		fmt.Fprintln(w, strings.Repeat("-", 80))
	}
}
