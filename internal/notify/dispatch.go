package notify

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"notifeeder/internal/feed"
	"notifeeder/internal/metrics"
)

// Backend names accepted by New.
const (
	BackendLog  = "log"
	BackendNtfy = "ntfy"
)

// New builds the notifier for backend. An empty backend selects the log notifier.
func New(backend, topic, token string, logger *log.Entry) (Notifier, error) {
	switch backend {
	case "", BackendLog:
		return LogNotifier{Logger: logger}, nil
	case BackendNtfy:
		if topic == "" {
			return nil, fmt.Errorf("ntfy backend needs a topic")
		}
		return NewNtfy(topic, token, nil), nil
	}
	return nil, fmt.Errorf("unknown notification backend %q", backend)
}

// Dispatch presents every candidate and returns the entries that were handed
// over. A failing presentation is logged and does not stop the rest. Every
// candidate is attempted: the tracker has already recorded them as seen.
func Dispatch(ctx context.Context, n Notifier, candidates []Candidate, logger *log.Entry) []feed.Entry {
	if logger == nil {
		logger = log.WithField("component", "notify")
	}
	var presented []feed.Entry
	for _, c := range candidates {
		note := Build(c)
		if err := n.Present(ctx, note); err != nil {
			logger.WithError(err).WithField("link", note.ID).Warn("notification failed")
			continue
		}
		metrics.Notifications.Inc()
		presented = append(presented, c.Entry)
	}
	return presented
}
