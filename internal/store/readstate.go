package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// ReadState is the set of article links the user marked read. Ingestion never touches it.
type ReadState struct {
	mu     sync.Mutex
	blobs  Blobs
	links  map[string]struct{}
	logger *log.Entry
}

func LoadReadState(ctx context.Context, blobs Blobs, logger *log.Entry) (*ReadState, error) {
	r := &ReadState{blobs: blobs, logger: loggerOr(logger, "readstate")}
	links, err := loadSet(ctx, blobs, KeyReadState)
	if err != nil {
		if !errors.Is(err, errCorrupt) {
			return nil, err
		}
		r.logger.WithError(err).Warn("read state unreadable, starting empty")
	}
	r.links = links
	return r, nil
}

func (r *ReadState) IsRead(link string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.links[link]
	return ok
}

// SetRead marks or unmarks link and persists immediately.
func (r *ReadState) SetRead(ctx context.Context, link string, read bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, was := r.links[link]
	if was == read {
		return nil
	}
	if read {
		r.links[link] = struct{}{}
	} else {
		delete(r.links, link)
	}
	return persist(ctx, r.blobs, KeyReadState, sortedKeys(r.links), r.logger)
}

// MarkAllRead marks every link in links read with a single write.
func (r *ReadState) MarkAllRead(ctx context.Context, links []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := false
	for _, l := range links {
		if _, ok := r.links[l]; !ok && l != "" {
			r.links[l] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return persist(ctx, r.blobs, KeyReadState, sortedKeys(r.links), r.logger)
}

// Snapshot returns the read links in sorted order.
func (r *ReadState) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.links)
}

// loadSet reads a JSON array of strings. The returned set is never nil.
func loadSet(ctx context.Context, blobs Blobs, key string) (map[string]struct{}, error) {
	var list []string
	_, err := load(ctx, blobs, key, &list)
	if err != nil {
		list = nil
	}
	return toSet(list), err
}

func toSet(list []string) map[string]struct{} {
	return lo.SliceToMap(list, func(s string) (string, struct{}) { return s, struct{}{} })
}

func sortedKeys(set map[string]struct{}) []string {
	keys := lo.Keys(set)
	sort.Strings(keys)
	return keys
}
