package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"notifeeder/internal/feed"
)

var (
	ErrDuplicateSource = errors.New("feed already configured")
	ErrUnknownSource   = errors.New("feed not configured")
)

// Sources is the ordered list of configured feeds.
type Sources struct {
	mu      sync.Mutex
	blobs   Blobs
	sources []feed.Source
	logger  *log.Entry
}

// LoadSources reads the feed list. When nothing was ever stored, seed is
// normalized and written as the initial list.
func LoadSources(ctx context.Context, blobs Blobs, seed []feed.Source, logger *log.Entry) (*Sources, error) {
	s := &Sources{blobs: blobs, logger: loggerOr(logger, "sources")}
	found, err := load(ctx, blobs, KeySources, &s.sources)
	if err != nil {
		if !errors.Is(err, errCorrupt) {
			return nil, err
		}
		s.logger.WithError(err).Warn("feed sources unreadable, reseeding")
		found = false
	}
	if !found {
		s.sources = nil
		for _, src := range seed {
			src, err := normalize(src)
			if err != nil || s.indexOf(src.URL) >= 0 {
				continue
			}
			s.sources = append(s.sources, src)
		}
		if len(s.sources) > 0 {
			_ = persist(ctx, blobs, KeySources, s.sources, s.logger)
		}
	}
	return s, nil
}

func normalize(src feed.Source) (feed.Source, error) {
	src.Title = strings.TrimSpace(src.Title)
	src.URL = strings.TrimSpace(src.URL)
	if src.URL == "" {
		return src, errors.New("feed url is empty")
	}
	if src.Title == "" {
		src.Title = src.URL
	}
	return src, nil
}

func (s *Sources) indexOf(url string) int {
	for i, src := range s.sources {
		if src.URL == url {
			return i
		}
	}
	return -1
}

// List returns a copy of the configured feeds in order.
func (s *Sources) List() []feed.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]feed.Source(nil), s.sources...)
}

// URLs returns the configured feed urls in order.
func (s *Sources) URLs() []string {
	return lo.Map(s.List(), func(src feed.Source, _ int) string { return src.URL })
}

func (s *Sources) Get(url string) (feed.Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(url); i >= 0 {
		return s.sources[i], true
	}
	return feed.Source{}, false
}

func (s *Sources) Add(ctx context.Context, src feed.Source) error {
	src, err := normalize(src)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(src.URL) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src.URL)
	}
	s.sources = append(s.sources, src)
	return persist(ctx, s.blobs, KeySources, s.sources, s.logger)
}

func (s *Sources) Remove(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(strings.TrimSpace(url))
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSource, url)
	}
	s.sources = append(s.sources[:i:i], s.sources[i+1:]...)
	return persist(ctx, s.blobs, KeySources, s.sources, s.logger)
}

func (s *Sources) Rename(ctx context.Context, url, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("feed title is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(strings.TrimSpace(url))
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSource, url)
	}
	s.sources[i].Title = title
	return persist(ctx, s.blobs, KeySources, s.sources, s.logger)
}

// Replace swaps the whole list. Invalid and duplicate entries are dropped.
func (s *Sources) Replace(ctx context.Context, list []feed.Source) error {
	var next []feed.Source
	for _, src := range list {
		src, err := normalize(src)
		if err != nil {
			continue
		}
		if lo.ContainsBy(next, func(o feed.Source) bool { return o.URL == src.URL }) {
			continue
		}
		next = append(next, src)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = next
	return persist(ctx, s.blobs, KeySources, s.sources, s.logger)
}
