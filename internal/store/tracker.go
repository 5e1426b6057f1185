package store

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"notifeeder/internal/feed"
	"notifeeder/internal/metrics"
)

// Tracker remembers every link ever observed during ingestion. The set only
// grows, so a link republished with edited content is never new again.
type Tracker struct {
	mu     sync.Mutex
	blobs  Blobs
	seen   map[string]struct{}
	logger *log.Entry
}

func LoadTracker(ctx context.Context, blobs Blobs, logger *log.Entry) (*Tracker, error) {
	t := &Tracker{blobs: blobs, logger: loggerOr(logger, "tracker")}
	seen, err := loadSet(ctx, blobs, KeySeenLinks)
	if err != nil {
		if !errors.Is(err, errCorrupt) {
			return nil, err
		}
		t.logger.WithError(err).Warn("seen links unreadable, starting empty")
	}
	t.seen = seen
	return t, nil
}

// MarkAndReturnNew records unseen links and returns their entries in input
// order. The set is persisted only when something new was found.
func (t *Tracker) MarkAndReturnNew(ctx context.Context, entries []feed.Entry) []feed.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var fresh []feed.Entry
	for _, e := range entries {
		if !feed.Valid(e) {
			continue
		}
		if _, ok := t.seen[e.Link]; ok {
			continue
		}
		t.seen[e.Link] = struct{}{}
		fresh = append(fresh, e)
	}
	if len(fresh) > 0 {
		metrics.NewEntries.Add(float64(len(fresh)))
		_ = persist(ctx, t.blobs, KeySeenLinks, sortedKeys(t.seen), t.logger)
	}
	return fresh
}

// HasTracked reports whether any link has ever been recorded.
func (t *Tracker) HasTracked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen) > 0
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
