package ingest

import (
	"context"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"notifeeder/internal/feed"
	"notifeeder/internal/notify"
	"notifeeder/internal/store"
)

// Pipeline runs one ingestion cycle: fetch, merge, track, notify.
type Pipeline struct {
	State    *store.State
	Fetcher  *Fetcher
	Notifier notify.Notifier

	// NotifyCap limits notifications per cycle.
	NotifyCap int
	// Disabled turns notifications off regardless of the stored toggle.
	Disabled bool
	// QuietFirstRun marks entries seen without notifying while the tracker is empty.
	QuietFirstRun bool

	Logger *log.Entry
}

// Cycle runs the pipeline once. If ctx is cancelled before fetch results are
// joined, nothing is merged or notified and ctx.Err() is returned. Once they
// are joined the cycle runs to completion: links recorded as seen are always
// offered to the notifier.
func (p *Pipeline) Cycle(ctx context.Context, id string) (CycleResult, error) {
	logger := p.logger().WithField("cycle_id", id)
	res := CycleResult{ID: id, StartedAt: time.Now(), Fetched: map[string]int{}}

	sources := p.State.Sources.List()
	fetched := p.Fetcher.FetchAll(ctx, sources)
	if err := ctx.Err(); err != nil {
		logger.Debug("cycle cancelled, results discarded")
		return res, err
	}
	ctx = context.WithoutCancel(ctx)

	var flat []feed.Entry
	for _, src := range sources {
		entries := lo.Filter(fetched[src.URL], func(e feed.Entry, _ int) bool { return feed.Valid(e) })
		res.Fetched[src.URL] = len(entries)
		res.Added += p.State.Articles.Merge(ctx, src.URL, entries)
		flat = append(flat, entries...)
	}

	quiet := p.QuietFirstRun && !p.State.Tracker.HasTracked()
	res.New = p.State.Tracker.MarkAndReturnNew(ctx, flat)

	enabled := p.State.Preferences.Reconcile(ctx, lo.Map(sources, func(s feed.Source, _ int) string { return s.URL }))
	on := !p.Disabled && !quiet && p.State.Preferences.Enabled()
	candidates := notify.Decide(res.New, on, enabled, sources, p.NotifyCap)
	if p.Notifier != nil {
		res.Notified = notify.Dispatch(ctx, p.Notifier, candidates, logger)
	}

	res.FinishedAt = time.Now()
	logger.WithFields(log.Fields{
		"feeds":    len(sources),
		"added":    res.Added,
		"new":      len(res.New),
		"notified": len(res.Notified),
		"quiet":    quiet,
		"took":     res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String(),
	}).Info("cycle complete")
	return res, nil
}

func (p *Pipeline) logger() *log.Entry {
	if p.Logger != nil {
		return p.Logger
	}
	return log.WithField("component", "pipeline")
}
