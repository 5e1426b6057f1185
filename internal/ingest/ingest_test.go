package ingest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifeeder/internal/config"
	"notifeeder/internal/feed"
	"notifeeder/internal/feedtest"
	"notifeeder/internal/notify"
	"notifeeder/internal/store"
)

func item(link, title string) feedtest.Item {
	return feedtest.Item{Title: title, Link: link, Description: "<p>About " + title + ".</p>", PubDate: "Tue, 25 Nov 2025 12:34:56 GMT"}
}

func links(entries []feed.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Link)
	}
	return out
}

func newService(t *testing.T, srv *feedtest.Server, rec notify.Notifier, mutate func(*config.Config)) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Feeds = []config.Feed{
		{Title: "Feed A", URL: srv.URL("/a")},
		{Title: "Feed B", URL: srv.URL("/b")},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := New(t.Context(), cfg, store.NewMemoryBlobs(), rec, nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

// Two feeds; the second cycle adds one link to feed A and only that link is
// new and notified.
func TestEndToEnd(t *testing.T) {
	srv := feedtest.NewServer()
	defer srv.Close()
	srv.Set("/a", "Feed A", item("https://a.example/L1", "L1"), item("https://a.example/L2", "L2"))
	srv.Set("/b", "Feed B", item("https://b.example/L3", "L3"))

	rec := &notify.Recorder{}
	svc := newService(t, srv, rec, nil)

	first, err := svc.Runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/L1", "https://a.example/L2", "https://b.example/L3"}, links(first.New))
	assert.Equal(t, links(first.New), links(first.Notified))
	assert.Equal(t, 3, first.Added)
	assert.Equal(t, map[string]int{srv.URL("/a"): 2, srv.URL("/b"): 1}, first.Fetched)

	srv.Set("/a", "Feed A", item("https://a.example/L1", "L1"), item("https://a.example/L2", "L2"), item("https://a.example/L4", "L4"))
	rec.Reset()

	second, err := svc.Runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/L4"}, links(second.New))
	assert.Equal(t, []string{"https://a.example/L4"}, links(second.Notified))

	presented := rec.Presented()
	require.Len(t, presented, 1)
	assert.Equal(t, notify.Notification{
		ID:       "https://a.example/L4",
		Title:    "L4",
		Subtitle: "Feed A",
		Body:     "About L4.",
	}, presented[0])

	assert.Len(t, svc.State.Articles.Articles(srv.URL("/a")), 3)
	assert.Len(t, svc.State.Articles.Articles(srv.URL("/b")), 1)
}

func TestCycleIsolatesFailingFeed(t *testing.T) {
	srv := feedtest.NewServer()
	defer srv.Close()
	srv.Set("/a", "Feed A", item("https://a.example/1", "One"))
	srv.Set("/b", "Feed B")
	srv.Fail("/b", http.StatusInternalServerError)

	svc := newService(t, srv, &notify.Recorder{}, nil)
	res, err := svc.Runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched[srv.URL("/a")])
	assert.Equal(t, 0, res.Fetched[srv.URL("/b")])
	assert.Len(t, res.New, 1)
}

func TestCycleNotificationCapAndOptOut(t *testing.T) {
	srv := feedtest.NewServer()
	defer srv.Close()
	var items []feedtest.Item
	for _, l := range []string{"1", "2", "3", "4", "5"} {
		items = append(items, item("https://a.example/"+l, "A"+l))
	}
	srv.Set("/a", "Feed A", items...)
	srv.Set("/b", "Feed B", item("https://b.example/1", "B1"))

	rec := &notify.Recorder{}
	svc := newService(t, srv, rec, nil)
	svc.State.Preferences.Reconcile(t.Context(), svc.State.Sources.URLs())
	require.NoError(t, svc.State.Preferences.SetFeedEnabled(t.Context(), srv.URL("/a"), false))

	res, err := svc.Runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Len(t, res.New, 6)
	assert.Equal(t, []string{"https://b.example/1"}, links(res.Notified))
}

func TestCycleQuietFirstRun(t *testing.T) {
	srv := feedtest.NewServer()
	defer srv.Close()
	srv.Set("/a", "Feed A", item("https://a.example/1", "One"))
	srv.Set("/b", "Feed B")

	rec := &notify.Recorder{}
	svc := newService(t, srv, rec, func(c *config.Config) { c.Notifications.QuietFirstRun = true })

	res, err := svc.Runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Len(t, res.New, 1)
	assert.Empty(t, res.Notified)

	srv.Set("/a", "Feed A", item("https://a.example/1", "One"), item("https://a.example/2", "Two"))
	res, err = svc.Runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/2"}, links(res.Notified))
}

func TestCycleGlobalToggle(t *testing.T) {
	srv := feedtest.NewServer()
	defer srv.Close()
	srv.Set("/a", "Feed A", item("https://a.example/1", "One"))
	srv.Set("/b", "Feed B")

	rec := &notify.Recorder{}
	svc := newService(t, srv, rec, nil)
	require.NoError(t, svc.State.Preferences.SetEnabled(t.Context(), false))

	res, err := svc.Runner.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Len(t, res.New, 1)
	assert.Empty(t, rec.Presented())
}

func TestFetchAll(t *testing.T) {
	srv := feedtest.NewServer()
	defer srv.Close()
	srv.Set("/ok", "OK", item("https://ok.example/1", "One"), feedtest.Item{Title: "no link"})
	srv.Set("/slow", "Slow", item("https://slow.example/1", "One"))
	srv.Delay("/slow", 5*time.Second)
	srv.SetRaw("/broken", []byte("<rss><channel><item><title>Fish & Chips</title><link>https://broken.example/1</link></item><item><title>cut"))

	f := NewFetcher(300*time.Millisecond, nil)
	sources := []feed.Source{
		{Title: "OK", URL: srv.URL("/ok")},
		{Title: "Slow", URL: srv.URL("/slow")},
		{Title: "Broken", URL: srv.URL("/broken")},
		{Title: "Missing", URL: srv.URL("/missing")},
	}
	got := f.FetchAll(t.Context(), sources)

	require.Len(t, got, 4)
	require.Len(t, got[srv.URL("/ok")], 2, "invalid entries are filtered later, not by the fetcher")
	assert.Equal(t, "OK", got[srv.URL("/ok")][0].SourceTitle)
	assert.Equal(t, srv.URL("/ok"), got[srv.URL("/ok")][0].FeedURL)
	assert.Empty(t, got[srv.URL("/slow")])
	assert.Empty(t, got[srv.URL("/missing")])
	require.Len(t, got[srv.URL("/broken")], 1)
	assert.Equal(t, "Fish & Chips", got[srv.URL("/broken")][0].Title)
}

func TestDiscover(t *testing.T) {
	srv := feedtest.NewServer()
	defer srv.Close()
	srv.Set("/rss", "Channel Title", item("https://x.example/1", "One"))
	srv.SetRaw("/html", []byte("<html><body>not a feed</body></html>"))

	d, err := Discover(t.Context(), nil, srv.URL("/rss"), "")
	require.NoError(t, err)
	assert.Equal(t, feed.Source{Title: "Channel Title", URL: srv.URL("/rss")}, d.Source)
	assert.Equal(t, 1, d.Items)
	assert.Equal(t, "rss", d.Type)

	d, err = Discover(t.Context(), nil, srv.URL("/rss"), "Mine")
	require.NoError(t, err)
	assert.Equal(t, "Mine", d.Source.Title)

	_, err = Discover(t.Context(), nil, srv.URL("/html"), "")
	assert.Error(t, err)
	_, err = Discover(t.Context(), nil, "", "")
	assert.Error(t, err)
}

// cancellingNotifier cancels the cycle context on its first presentation.
type cancellingNotifier struct {
	notify.Recorder
	cancel context.CancelFunc
}

func (c *cancellingNotifier) Present(ctx context.Context, n notify.Notification) error {
	c.cancel()
	return c.Recorder.Present(ctx, n)
}

func TestCycleCancelledDuringNotifyStillPresentsAll(t *testing.T) {
	srv := feedtest.NewServer()
	defer srv.Close()
	srv.Set("/a", "Feed A", item("https://a.example/1", "One"), item("https://a.example/2", "Two"))
	srv.Set("/b", "Feed B", item("https://b.example/1", "Three"))

	rec := &cancellingNotifier{}
	svc := newService(t, srv, rec, nil)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	rec.cancel = cancel

	res, err := svc.Pipeline.Cycle(ctx, "first")
	require.NoError(t, err)
	assert.Len(t, res.New, 3)
	assert.Len(t, res.Notified, 3)
	assert.Len(t, rec.Presented(), 3)
	assert.Equal(t, 3, svc.State.Tracker.Len())
	assert.Len(t, svc.State.Articles.Articles(srv.URL("/a")), 2)

	again, err := svc.Pipeline.Cycle(t.Context(), "second")
	require.NoError(t, err)
	assert.Empty(t, again.New)
	assert.Len(t, rec.Presented(), 3)
}

func TestCycleCancelledBeforeJoinDiscards(t *testing.T) {
	srv := feedtest.NewServer()
	defer srv.Close()
	srv.Set("/a", "Feed A", item("https://a.example/1", "One"))
	srv.Set("/b", "Feed B")

	rec := &notify.Recorder{}
	svc := newService(t, srv, rec, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := svc.Pipeline.Cycle(ctx, "cancelled")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, svc.State.Tracker.Len())
	assert.Empty(t, rec.Presented())
}
