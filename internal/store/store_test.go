package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifeeder/internal/feed"
)

func entry(feedURL, link, title, date string) feed.Entry {
	return feed.Entry{
		RawEntry: feed.RawEntry{
			Title:         title,
			Link:          link,
			Content:       "<p>Summary of " + title + "</p>",
			PubDateString: date,
		},
		SourceTitle: "Feed",
		FeedURL:     feedURL,
	}
}

func TestSQLiteBlobs(t *testing.T) {
	ctx := t.Context()
	blobs, err := Open(filepath.Join(t.TempDir(), "nested", "notifeeder.db"))
	require.NoError(t, err)
	defer blobs.Close()

	_, err = blobs.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, blobs.Put(ctx, "a", []byte(`["x"]`)))
	require.NoError(t, blobs.Put(ctx, "a", []byte(`["y"]`)))
	require.NoError(t, blobs.Put(ctx, "b", []byte(`{}`)))

	got, err := blobs.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `["y"]`, string(got))

	keys, err := blobs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, blobs.Delete(ctx, "a"))
	_, err = blobs.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergeIdempotent(t *testing.T) {
	ctx := t.Context()
	blobs := NewMemoryBlobs()
	cache, err := LoadArticleCache(ctx, blobs, 0, nil)
	require.NoError(t, err)

	const url = "https://a.example/rss"
	entries := []feed.Entry{
		entry(url, "https://a.example/1", "One", "Tue, 25 Nov 2025 10:00:00 GMT"),
		entry(url, "https://a.example/2", "Two", "2025-11-25T11:00:00Z"),
		entry(url, "https://a.example/3", "Three", "garbage"),
	}
	assert.Equal(t, 3, cache.Merge(ctx, url, entries))
	once := cache.Articles(url)
	writes := blobs.Writes()

	assert.Equal(t, 0, cache.Merge(ctx, url, entries))
	assert.Equal(t, once, cache.Articles(url))
	assert.Equal(t, writes, blobs.Writes(), "update-only merge does not write")

	require.Len(t, once, 3)
	assert.Equal(t, "Two", once[0].Title)
	assert.Equal(t, "One", once[1].Title)
	assert.Equal(t, "Three", once[2].Title)
	assert.Nil(t, once[2].PublishedAt)
	assert.Equal(t, "Summary of Two", once[0].Summary, "summaries are plain text")
}

func TestMergeUpdatesInPlace(t *testing.T) {
	ctx := t.Context()
	cache, err := LoadArticleCache(ctx, NewMemoryBlobs(), 0, nil)
	require.NoError(t, err)

	const url = "https://a.example/rss"
	cache.Merge(ctx, url, []feed.Entry{entry(url, "https://a.example/1", "Draft", "2025-11-25T10:00:00Z")})
	edited := entry(url, "https://a.example/1", "Final", "2030-01-01T00:00:00Z")
	edited.Content = "Edited body"
	assert.Equal(t, 0, cache.Merge(ctx, url, []feed.Entry{edited}))

	got := cache.Articles(url)
	require.Len(t, got, 1)
	assert.Equal(t, "Final", got[0].Title)
	assert.Equal(t, "Edited body", got[0].Summary)
	assert.Equal(t, 2025, got[0].PublishedAt.Year(), "published date is not mutable")
}

func TestMergeCap(t *testing.T) {
	ctx := t.Context()
	cache, err := LoadArticleCache(ctx, NewMemoryBlobs(), 100, nil)
	require.NoError(t, err)

	const url = "https://a.example/rss"
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	var entries []feed.Entry
	for i := 0; i < 150; i++ {
		ts := base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		entries = append(entries, entry(url, fmt.Sprintf("https://a.example/%d", i), fmt.Sprintf("Post %d", i), ts))
	}
	cache.Merge(ctx, url, entries)

	got := cache.Articles(url)
	require.Len(t, got, 100)
	assert.Equal(t, "https://a.example/149", got[0].Link)
	assert.Equal(t, "https://a.example/50", got[99].Link)
}

func TestMergeSkipsInvalidAndDuplicates(t *testing.T) {
	ctx := t.Context()
	cache, err := LoadArticleCache(ctx, NewMemoryBlobs(), 0, nil)
	require.NoError(t, err)

	const url = "https://a.example/rss"
	added := cache.Merge(ctx, url, []feed.Entry{
		entry(url, "", "No link", ""),
		entry(url, "https://a.example/1", "First", ""),
		entry(url, "https://a.example/1", "Second copy", ""),
	})
	assert.Equal(t, 1, added)
	got := cache.Articles(url)
	require.Len(t, got, 1)
	assert.Equal(t, "First", got[0].Title, "first occurrence in a batch wins")
}

func TestMergeCapDoesNotCountEvictedEntries(t *testing.T) {
	ctx := t.Context()
	blobs := NewMemoryBlobs()
	cache, err := LoadArticleCache(ctx, blobs, 3, nil)
	require.NoError(t, err)

	const url = "https://a.example/rss"
	var entries []feed.Entry
	for i := 5; i >= 1; i-- {
		entries = append(entries, entry(url, fmt.Sprintf("https://a.example/%d", i), fmt.Sprintf("Post %d", i), fmt.Sprintf("2025-01-0%dT00:00:00Z", i)))
	}
	assert.Equal(t, 3, cache.Merge(ctx, url, entries))

	// the feed keeps serving the two posts older than the capped bucket
	writes := blobs.Writes()
	assert.Equal(t, 0, cache.Merge(ctx, url, entries))
	assert.Equal(t, writes, blobs.Writes())

	got := cache.Articles(url)
	require.Len(t, got, 3)
	assert.Equal(t, "https://a.example/5", got[0].Link)
	assert.Equal(t, "https://a.example/3", got[2].Link)

	newer := entry(url, "https://a.example/6", "Post 6", "2025-01-06T00:00:00Z")
	assert.Equal(t, 1, cache.Merge(ctx, url, append([]feed.Entry{newer}, entries...)))
	assert.Equal(t, "https://a.example/6", cache.Articles(url)[0].Link)
}

func TestMergePersistFailureKeepsMemory(t *testing.T) {
	ctx := t.Context()
	blobs := NewMemoryBlobs()
	blobs.FailWrites = errors.New("disk full")
	cache, err := LoadArticleCache(ctx, blobs, 0, nil)
	require.NoError(t, err)

	const url = "https://a.example/rss"
	assert.Equal(t, 1, cache.Merge(ctx, url, []feed.Entry{entry(url, "https://a.example/1", "One", "")}))
	assert.Len(t, cache.Articles(url), 1)
}

func TestArticleCacheReload(t *testing.T) {
	ctx := t.Context()
	blobs := NewMemoryBlobs()
	cache, err := LoadArticleCache(ctx, blobs, 0, nil)
	require.NoError(t, err)
	const url = "https://a.example/rss"
	cache.Merge(ctx, url, []feed.Entry{entry(url, "https://a.example/1", "One", "2025-11-25T12:34:56Z")})

	reloaded, err := LoadArticleCache(ctx, blobs, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, cache.Articles(url), reloaded.Articles(url))
}

func TestArticleCacheCorruptBlob(t *testing.T) {
	ctx := t.Context()
	blobs := NewMemoryBlobs()
	require.NoError(t, blobs.Put(ctx, KeyArticles, []byte("{not json")))
	cache, err := LoadArticleCache(ctx, blobs, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, cache.FeedURLs())
}

func TestPrune(t *testing.T) {
	ctx := t.Context()
	cache, err := LoadArticleCache(ctx, NewMemoryBlobs(), 0, nil)
	require.NoError(t, err)
	cache.Merge(ctx, "https://a.example/rss", []feed.Entry{entry("https://a.example/rss", "https://a.example/1", "A", "")})
	cache.Merge(ctx, "https://b.example/rss", []feed.Entry{entry("https://b.example/rss", "https://b.example/1", "B", "")})

	assert.Equal(t, 1, cache.Prune(ctx, []string{"https://a.example/rss"}))
	assert.Equal(t, []string{"https://a.example/rss"}, cache.FeedURLs())
	assert.Equal(t, 0, cache.Prune(ctx, []string{"https://a.example/rss"}))
}

func TestTrackerDedup(t *testing.T) {
	ctx := t.Context()
	blobs := NewMemoryBlobs()
	tracker, err := LoadTracker(ctx, blobs, nil)
	require.NoError(t, err)
	assert.False(t, tracker.HasTracked())

	batch := []feed.Entry{
		entry("f", "https://x.example/1", "One", ""),
		entry("f", "https://x.example/2", "Two", ""),
		entry("g", "https://x.example/1", "One again", ""),
		entry("f", "", "Broken", ""),
	}
	fresh := tracker.MarkAndReturnNew(ctx, batch)
	require.Len(t, fresh, 2)
	assert.Equal(t, "One", fresh[0].Title)
	assert.True(t, tracker.HasTracked())

	writes := blobs.Writes()
	assert.Empty(t, tracker.MarkAndReturnNew(ctx, batch))
	assert.Equal(t, writes, blobs.Writes(), "nothing new means no write")

	reloaded, err := LoadTracker(ctx, blobs, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
	assert.Empty(t, reloaded.MarkAndReturnNew(ctx, batch[:1]))
}

func TestReadState(t *testing.T) {
	ctx := t.Context()
	blobs := NewMemoryBlobs()
	rs, err := LoadReadState(ctx, blobs, nil)
	require.NoError(t, err)

	require.NoError(t, rs.SetRead(ctx, "https://x.example/1", true))
	require.NoError(t, rs.MarkAllRead(ctx, []string{"https://x.example/2", "https://x.example/3"}))
	require.NoError(t, rs.SetRead(ctx, "https://x.example/3", false))
	assert.True(t, rs.IsRead("https://x.example/1"))
	assert.False(t, rs.IsRead("https://x.example/3"))

	reloaded, err := LoadReadState(ctx, blobs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.example/1", "https://x.example/2"}, reloaded.Snapshot())
}

func TestBookmarks(t *testing.T) {
	ctx := t.Context()
	blobs := NewMemoryBlobs()
	bm, err := LoadBookmarks(ctx, blobs, nil)
	require.NoError(t, err)

	on, err := bm.Toggle(ctx, "https://x.example/1")
	require.NoError(t, err)
	assert.True(t, on)
	require.NoError(t, bm.Set(ctx, "https://x.example/2", true))
	on, err = bm.Toggle(ctx, "https://x.example/2")
	require.NoError(t, err)
	assert.False(t, on)
	assert.Error(t, bm.Set(ctx, "", true))

	assert.True(t, bm.IsBookmarked("https://x.example/1"))
	assert.False(t, bm.IsBookmarked("https://x.example/2"))

	reloaded, err := LoadBookmarks(ctx, blobs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.example/1"}, reloaded.Snapshot())

	raw, err := blobs.Get(ctx, KeyBookmarks)
	require.NoError(t, err)
	assert.JSONEq(t, `["https://x.example/1"]`, string(raw))
}

func TestReadStateReportsPersistError(t *testing.T) {
	ctx := t.Context()
	blobs := NewMemoryBlobs()
	rs, err := LoadReadState(ctx, blobs, nil)
	require.NoError(t, err)
	blobs.FailWrites = errors.New("read only")
	assert.Error(t, rs.SetRead(ctx, "https://x.example/1", true))
	assert.True(t, rs.IsRead("https://x.example/1"), "memory stays authoritative")
}

func TestPreferencesMigration(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantOn      bool
		wantEnabled []string
		wantKnown   []string
	}{
		{
			name:        "legacy bare set",
			raw:         `["https://a.example/rss","https://b.example/rss"]`,
			wantOn:      true,
			wantEnabled: []string{"https://a.example/rss", "https://b.example/rss"},
			wantKnown:   []string{"https://a.example/rss", "https://b.example/rss"},
		},
		{
			name:        "unversioned payload",
			raw:         `{"enabledFeeds":["https://a.example/rss"],"knownFeeds":["https://a.example/rss","https://b.example/rss"]}`,
			wantOn:      true,
			wantEnabled: []string{"https://a.example/rss"},
			wantKnown:   []string{"https://a.example/rss", "https://b.example/rss"},
		},
		{
			name:        "current version",
			raw:         `{"version":2,"enabled":false,"enabledFeeds":[],"knownFeeds":["https://a.example/rss"]}`,
			wantOn:      false,
			wantEnabled: []string{},
			wantKnown:   []string{"https://a.example/rss"},
		},
		{
			name:        "enabled outside known is dropped",
			raw:         `{"version":2,"enabledFeeds":["https://z.example/rss"],"knownFeeds":[]}`,
			wantOn:      true,
			wantEnabled: []string{},
			wantKnown:   []string{},
		},
		{
			name:        "garbage",
			raw:         `"???"`,
			wantOn:      true,
			wantEnabled: []string{},
			wantKnown:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			blobs := NewMemoryBlobs()
			require.NoError(t, blobs.Put(ctx, KeyPreferences, []byte(tt.raw)))

			p, err := LoadPreferences(ctx, blobs, nil)
			require.NoError(t, err)
			enabled, known := p.Snapshot()
			assert.Equal(t, tt.wantOn, p.Enabled())
			assert.ElementsMatch(t, tt.wantEnabled, enabled)
			assert.ElementsMatch(t, tt.wantKnown, known)

			// the migrated form reloads identically
			again, err := LoadPreferences(ctx, blobs, nil)
			require.NoError(t, err)
			e2, k2 := again.Snapshot()
			assert.Equal(t, enabled, e2)
			assert.Equal(t, known, k2)
		})
	}
}

func TestPreferencesReconcile(t *testing.T) {
	ctx := t.Context()
	p, err := LoadPreferences(ctx, NewMemoryBlobs(), nil)
	require.NoError(t, err)

	enabled := p.Reconcile(ctx, []string{"https://a.example/rss", "https://b.example/rss"})
	assert.Len(t, enabled, 2)

	require.NoError(t, p.SetFeedEnabled(ctx, "https://b.example/rss", false))
	enabled = p.Reconcile(ctx, []string{"https://a.example/rss", "https://b.example/rss", "https://c.example/rss"})
	assert.Contains(t, enabled, "https://a.example/rss")
	assert.NotContains(t, enabled, "https://b.example/rss", "a disabled feed is not re-enabled")
	assert.Contains(t, enabled, "https://c.example/rss")

	require.NoError(t, p.Prune(ctx, []string{"https://a.example/rss"}))
	e, k := p.Snapshot()
	assert.Equal(t, []string{"https://a.example/rss"}, e)
	assert.Equal(t, []string{"https://a.example/rss"}, k)

	require.NoError(t, p.SetEnabled(ctx, false))
	assert.False(t, p.Enabled())
}

func TestSources(t *testing.T) {
	ctx := t.Context()
	blobs := NewMemoryBlobs()
	seed := []feed.Source{
		{Title: " A ", URL: " https://a.example/rss "},
		{Title: "dup", URL: "https://a.example/rss"},
		{Title: "", URL: "https://b.example/rss"},
		{Title: "empty", URL: ""},
	}
	s, err := LoadSources(ctx, blobs, seed, nil)
	require.NoError(t, err)
	assert.Equal(t, []feed.Source{
		{Title: "A", URL: "https://a.example/rss"},
		{Title: "https://b.example/rss", URL: "https://b.example/rss"},
	}, s.List())

	assert.ErrorIs(t, s.Add(ctx, feed.Source{URL: "https://a.example/rss"}), ErrDuplicateSource)
	require.NoError(t, s.Add(ctx, feed.Source{Title: "C", URL: "https://c.example/rss"}))
	require.NoError(t, s.Rename(ctx, "https://b.example/rss", "B"))
	require.NoError(t, s.Remove(ctx, "https://a.example/rss"))
	assert.ErrorIs(t, s.Remove(ctx, "https://a.example/rss"), ErrUnknownSource)

	// a stored list wins over the seed
	reloaded, err := LoadSources(ctx, blobs, seed, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://b.example/rss", "https://c.example/rss"}, reloaded.URLs())
	src, ok := reloaded.Get("https://b.example/rss")
	assert.True(t, ok)
	assert.Equal(t, "B", src.Title)
}

func TestStateRemoveFeedPrunes(t *testing.T) {
	ctx := context.Background()
	seed := []feed.Source{{Title: "A", URL: "https://a.example/rss"}, {Title: "B", URL: "https://b.example/rss"}}
	st, err := LoadState(ctx, NewMemoryBlobs(), seed, 0, nil)
	require.NoError(t, err)
	st.Articles.Merge(ctx, "https://a.example/rss", []feed.Entry{entry("https://a.example/rss", "https://a.example/1", "A1", "")})
	st.Preferences.Reconcile(ctx, st.Sources.URLs())

	require.NoError(t, st.RemoveFeed(ctx, "https://a.example/rss"))
	assert.Empty(t, st.Articles.FeedURLs())
	_, known := st.Preferences.Snapshot()
	assert.Equal(t, []string{"https://b.example/rss"}, known)
}
