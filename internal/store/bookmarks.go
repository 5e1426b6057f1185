package store

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Bookmarks is the set of article links the user saved for later.
type Bookmarks struct {
	mu     sync.Mutex
	blobs  Blobs
	links  map[string]struct{}
	logger *log.Entry
}

func LoadBookmarks(ctx context.Context, blobs Blobs, logger *log.Entry) (*Bookmarks, error) {
	b := &Bookmarks{blobs: blobs, logger: loggerOr(logger, "bookmarks")}
	links, err := loadSet(ctx, blobs, KeyBookmarks)
	if err != nil {
		if !errors.Is(err, errCorrupt) {
			return nil, err
		}
		b.logger.WithError(err).Warn("bookmarks unreadable, starting empty")
	}
	b.links = links
	return b, nil
}

func (b *Bookmarks) IsBookmarked(link string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.links[link]
	return ok
}

// Toggle flips link and returns whether it is now bookmarked.
func (b *Bookmarks) Toggle(ctx context.Context, link string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, was := b.links[link]
	return !was, b.set(ctx, link, !was)
}

// Set bookmarks or unbookmarks link and persists immediately.
func (b *Bookmarks) Set(ctx context.Context, link string, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.set(ctx, link, on)
}

func (b *Bookmarks) set(ctx context.Context, link string, on bool) error {
	if link == "" {
		return errors.New("bookmark needs a link")
	}
	if _, was := b.links[link]; was == on {
		return nil
	}
	if on {
		b.links[link] = struct{}{}
	} else {
		delete(b.links, link)
	}
	return persist(ctx, b.blobs, KeyBookmarks, sortedKeys(b.links), b.logger)
}

// Snapshot returns the bookmarked links in sorted order.
func (b *Bookmarks) Snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedKeys(b.links)
}
