package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"notifeeder/internal/feed"
	"notifeeder/internal/htmltext"
	"notifeeder/internal/metrics"
)

// DefaultCap is the per-feed article limit.
const DefaultCap = 100

// ArticleCache is the per-feed article history.
type ArticleCache struct {
	mu     sync.Mutex
	blobs  Blobs
	limit  int
	byFeed map[string][]feed.Article
	logger *log.Entry
}

// LoadArticleCache reads the cache from blobs. An undecodable blob starts empty.
func LoadArticleCache(ctx context.Context, blobs Blobs, limit int, logger *log.Entry) (*ArticleCache, error) {
	if limit <= 0 {
		limit = DefaultCap
	}
	c := &ArticleCache{
		blobs:  blobs,
		limit:  limit,
		byFeed: make(map[string][]feed.Article),
		logger: loggerOr(logger, "articles"),
	}
	if _, err := load(ctx, blobs, KeyArticles, &c.byFeed); err != nil {
		if !errors.Is(err, errCorrupt) {
			return nil, err
		}
		c.logger.WithError(err).Warn("article cache unreadable, starting empty")
		c.byFeed = make(map[string][]feed.Article)
	}
	if c.byFeed == nil {
		c.byFeed = make(map[string][]feed.Article)
	}
	return c, nil
}

// Merge reconciles entries into the feedURL bucket and returns how many new
// links it kept. Known links only refresh title and summary, and a link
// repeated within entries keeps its first occurrence. The bucket is then
// sorted newest first and capped; new links the cap evicts at once are not
// counted. It is persisted only when something was added.
func (c *ArticleCache) Merge(ctx context.Context, feedURL string, entries []feed.Entry) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.byFeed[feedURL]
	index := make(map[string]int, len(bucket))
	for i, a := range bucket {
		index[a.Link] = i
	}

	batch := make(map[string]struct{}, len(entries))
	fresh := make(map[string]struct{})
	for _, e := range entries {
		if !feed.Valid(e) {
			continue
		}
		if _, dup := batch[e.Link]; dup {
			continue
		}
		batch[e.Link] = struct{}{}
		summary := htmltext.Strip(e.Content)
		if i, ok := index[e.Link]; ok {
			bucket[i].Title = e.Title
			bucket[i].Summary = summary
			continue
		}
		index[e.Link] = len(bucket)
		bucket = append(bucket, feed.Article{
			Title:       e.Title,
			Link:        e.Link,
			PublishedAt: feed.PublishedAt(e),
			Summary:     summary,
			FeedTitle:   e.SourceTitle,
		})
		fresh[e.Link] = struct{}{}
	}

	feed.SortArticles(bucket)
	if len(bucket) > c.limit {
		bucket = bucket[:c.limit:c.limit]
	}
	c.byFeed[feedURL] = bucket

	added := lo.CountBy(bucket, func(a feed.Article) bool {
		_, ok := fresh[a.Link]
		return ok
	})
	if added > 0 {
		metrics.ArticlesAdded.Add(float64(added))
		_ = persist(ctx, c.blobs, KeyArticles, c.byFeed, c.logger)
	}
	return added
}

// Articles returns a copy of the feedURL bucket, newest first.
func (c *ArticleCache) Articles(feedURL string) []feed.Article {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]feed.Article(nil), c.byFeed[feedURL]...)
}

// All returns every cached article across feeds, newest first.
func (c *ArticleCache) All() []feed.Article {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []feed.Article
	for _, bucket := range c.byFeed {
		out = append(out, bucket...)
	}
	feed.SortArticles(out)
	return out
}

// FeedURLs lists the buckets present in the cache.
func (c *ArticleCache) FeedURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	urls := lo.Keys(c.byFeed)
	sort.Strings(urls)
	return urls
}

// Prune drops buckets whose feed url is not in live and returns how many went.
func (c *ArticleCache) Prune(ctx context.Context, live []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	keep := lo.SliceToMap(live, func(u string) (string, struct{}) { return u, struct{}{} })
	stale := lo.Filter(lo.Keys(c.byFeed), func(u string, _ int) bool {
		_, ok := keep[u]
		return !ok
	})
	for _, u := range stale {
		delete(c.byFeed, u)
	}
	if len(stale) > 0 {
		c.logger.WithField("feeds", len(stale)).Info("pruned cached feeds")
		_ = persist(ctx, c.blobs, KeyArticles, c.byFeed, c.logger)
	}
	return len(stale)
}
