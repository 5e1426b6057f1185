// Package daemon runs ingestion cycles on a schedule and whenever the config
// file changes.
package daemon

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"notifeeder/internal/config"
	"notifeeder/internal/ingest"
	"notifeeder/internal/logging"
	"notifeeder/internal/metrics"
	"notifeeder/internal/store"
)

// Options allow overriding config values from CLI flags.
type Options struct {
	Once          bool
	LogFile       string
	MetricsListen string
}

// Run starts the daemon. With Once it runs a single cycle and returns, which
// is how launchd invokes it.
func Run(ctx context.Context, opts Options, load config.ConfigLoad) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(opts.LogFile) != "" {
		cfg.Log.File = config.ExpandPath(opts.LogFile)
	}
	if strings.TrimSpace(opts.MetricsListen) != "" {
		cfg.Metrics.Listen = opts.MetricsListen
	}

	closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		log.WithError(err).Warn("log file unavailable, logging to stdout")
	}
	defer closeLog()
	logger := logging.Component("daemon")

	svc, err := ingest.Open(ctx, cfg, nil, log.NewEntry(log.StandardLogger()))
	if err != nil {
		return err
	}
	defer svc.Close()

	if cfg.Metrics.Listen != "" {
		stop := serveMetrics(cfg.Metrics.Listen, logger)
		defer stop()
	}

	if opts.Once {
		_, err := svc.Runner.RunOnce(ctx)
		return err
	}
	return Loop(ctx, svc, load, logger)
}

// Loop triggers a cycle at start, every configured interval, and after the
// config file changes. It returns when ctx is done.
func Loop(ctx context.Context, svc *ingest.Service, load config.ConfigLoad, logger *log.Entry) error {
	interval := svc.Config.Ingest.Interval()
	logger.WithFields(log.Fields{"interval": interval.String(), "feeds": len(svc.State.Sources.List())}).Info("daemon starting")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	changes := make(chan struct{}, 1)
	if path := svc.Config.Path; path != "" {
		w, err := watch(path, changes, logger)
		if err != nil {
			logger.WithError(err).Warn("config watch disabled")
		} else {
			defer w.Close()
		}
	}

	trigger := func(reason string) {
		if err := svc.Runner.Trigger(ctx); err != nil && !errors.Is(err, ingest.ErrDebounced) {
			logger.WithError(err).Warn("cycle trigger failed")
			return
		}
		logger.WithField("reason", reason).Debug("cycle triggered")
	}

	trigger("startup")
	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping: context cancelled")
			svc.Runner.Stop()
			return nil
		case <-ticker.C:
			trigger("interval")
		case <-changes:
			cfg, err := load()
			if err != nil {
				logger.WithError(err).Warn("config reload failed")
				continue
			}
			if added := syncSeedFeeds(ctx, svc.State.Sources, cfg); added > 0 {
				logger.WithField("feeds", added).Info("feeds added from config")
			}
			trigger("config")
		}
	}
}

// syncSeedFeeds adds config feeds that are not yet in the feed list. Feeds
// removed from the file stay configured; removal goes through the CLI.
func syncSeedFeeds(ctx context.Context, sources *store.Sources, cfg config.Config) int {
	added := 0
	for _, src := range cfg.Sources() {
		if _, ok := sources.Get(strings.TrimSpace(src.URL)); ok {
			continue
		}
		if err := sources.Add(ctx, src); err == nil {
			added++
		}
	}
	return added
}

// watch signals on changes when the config file is written, created or
// renamed into place. The directory is watched so editors that replace the
// file are covered.
func watch(path string, changes chan<- struct{}, logger *log.Entry) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	name := filepath.Clean(path)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != name || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("config watch error")
			}
		}
	}()
	return w, nil
}

func serveMetrics(addr string, logger *log.Entry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", addr).Info("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
