package ingest

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"notifeeder/internal/feed"
	"notifeeder/internal/httpclient"
	"notifeeder/internal/metrics"
	"notifeeder/internal/parser"
)

// Fetcher downloads and parses feeds.
type Fetcher struct {
	Client *httpclient.Client
	Parser *parser.Parser
	Logger *log.Entry
}

// NewFetcher constructs a fetcher whose requests are bounded by timeout.
func NewFetcher(timeout time.Duration, logger *log.Entry) *Fetcher {
	if logger == nil {
		logger = log.WithField("component", "fetcher")
	}
	return &Fetcher{
		Client: httpclient.New(timeout),
		Parser: parser.New(nil, logger),
		Logger: logger,
	}
}

// FetchAll fetches every source concurrently. Each source gets a key in the
// result; a failed or timed-out source maps to an empty list and never
// affects the others.
func (f *Fetcher) FetchAll(ctx context.Context, sources []feed.Source) map[string][]feed.Entry {
	type feedResult struct {
		url     string
		entries []feed.Entry
	}
	var wg sync.WaitGroup
	resCh := make(chan feedResult, len(sources))
	for _, src := range sources {
		wg.Add(1)
		go func(src feed.Source) {
			defer wg.Done()
			entries, err := f.fetchOne(ctx, src)
			if err != nil {
				f.Logger.WithError(err).WithField("feed_url", src.URL).Warn("feed fetch failed")
			}
			resCh <- feedResult{url: src.URL, entries: entries}
		}(src)
	}
	go func() { wg.Wait(); close(resCh) }()

	out := make(map[string][]feed.Entry, len(sources))
	for r := range resCh {
		out[r.url] = r.entries
	}
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, src feed.Source) ([]feed.Entry, error) {
	start := time.Now()
	data, err := f.Client.Fetch(ctx, src.URL)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Fetches.WithLabelValues("error").Inc()
		return []feed.Entry{}, err
	}
	metrics.Fetches.WithLabelValues("ok").Inc()

	raw := f.Parser.Parse(data)
	entries := make([]feed.Entry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, feed.Enrich(feed.Entry{RawEntry: r}, src))
	}
	f.Logger.WithFields(log.Fields{"feed_url": src.URL, "entries": len(entries)}).Debug("feed parsed")
	return entries, nil
}
