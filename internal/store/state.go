package store

import (
	"context"

	log "github.com/sirupsen/logrus"

	"notifeeder/internal/feed"
)

// State bundles the stores built on one Blobs backend.
type State struct {
	Blobs       Blobs
	Sources     *Sources
	Articles    *ArticleCache
	ReadState   *ReadState
	Bookmarks   *Bookmarks
	Tracker     *Tracker
	Preferences *Preferences
}

// LoadState loads every store from blobs. seed initializes the feed list on first run.
func LoadState(ctx context.Context, blobs Blobs, seed []feed.Source, cacheCap int, logger *log.Entry) (*State, error) {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	st := &State{Blobs: blobs}
	var err error
	if st.Sources, err = LoadSources(ctx, blobs, seed, logger.WithField("component", "sources")); err != nil {
		return nil, err
	}
	if st.Articles, err = LoadArticleCache(ctx, blobs, cacheCap, logger.WithField("component", "articles")); err != nil {
		return nil, err
	}
	if st.ReadState, err = LoadReadState(ctx, blobs, logger.WithField("component", "readstate")); err != nil {
		return nil, err
	}
	if st.Bookmarks, err = LoadBookmarks(ctx, blobs, logger.WithField("component", "bookmarks")); err != nil {
		return nil, err
	}
	if st.Tracker, err = LoadTracker(ctx, blobs, logger.WithField("component", "tracker")); err != nil {
		return nil, err
	}
	if st.Preferences, err = LoadPreferences(ctx, blobs, logger.WithField("component", "preferences")); err != nil {
		return nil, err
	}
	return st, nil
}

// RemoveFeed drops a source and prunes its cached articles and preferences.
func (s *State) RemoveFeed(ctx context.Context, url string) error {
	if err := s.Sources.Remove(ctx, url); err != nil {
		return err
	}
	live := s.Sources.URLs()
	s.Articles.Prune(ctx, live)
	return s.Preferences.Prune(ctx, live)
}
