// Package ingest fetches configured feeds, merges them into the article cache
// and notifies about entries never seen before.
package ingest

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"notifeeder/internal/config"
	"notifeeder/internal/notify"
	"notifeeder/internal/store"
)

// Service is the wired pipeline for one configuration.
type Service struct {
	Config   config.Config
	State    *store.State
	Pipeline *Pipeline
	Runner   *Runner
	Events   *Broadcaster

	close func() error
}

// Open opens the database named by cfg and wires the pipeline. Notifier may
// be nil to use the backend configured in cfg.
func Open(ctx context.Context, cfg config.Config, notifier notify.Notifier, logger *log.Entry) (*Service, error) {
	blobs, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	svc, err := New(ctx, cfg, blobs, notifier, logger)
	if err != nil {
		blobs.Close()
		return nil, err
	}
	svc.close = blobs.Close
	return svc, nil
}

// New wires the pipeline over an already open Blobs.
func New(ctx context.Context, cfg config.Config, blobs store.Blobs, notifier notify.Notifier, logger *log.Entry) (*Service, error) {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	state, err := store.LoadState(ctx, blobs, cfg.Sources(), cfg.Ingest.CacheCap, logger)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if notifier == nil {
		n := cfg.Notifications
		notifier, err = notify.New(n.Backend, n.Ntfy.Topic, n.Ntfy.Token, logger.WithField("component", "notifier"))
		if err != nil {
			return nil, err
		}
	}
	pipeline := &Pipeline{
		State:         state,
		Fetcher:       NewFetcher(cfg.Ingest.Timeout(), logger.WithField("component", "fetcher")),
		Notifier:      notifier,
		NotifyCap:     cfg.Notifications.MaxPerCycle,
		Disabled:      !cfg.Notifications.Enabled,
		QuietFirstRun: cfg.Notifications.QuietFirstRun,
		Logger:        logger.WithField("component", "pipeline"),
	}
	events := NewBroadcaster(logger.WithField("component", "events"))
	return &Service{
		Config:   cfg,
		State:    state,
		Pipeline: pipeline,
		Runner:   NewRunner(pipeline, cfg.Ingest.Debounce(), events, logger.WithField("component", "runner")),
		Events:   events,
		close:    func() error { return nil },
	}, nil
}

// Close stops any cycle in flight and closes the database.
func (s *Service) Close() error {
	s.Runner.Stop()
	return s.close()
}
