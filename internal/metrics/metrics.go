package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every notifeeder metric. It is separate from the default
// registry so tests and embedders do not collide with other collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	Cycles = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "notifeeder_cycles_total",
		Help: "Ingestion cycles by outcome",
	}, []string{"result"})

	Fetches = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "notifeeder_fetch_total",
		Help: "Feed fetches by outcome",
	}, []string{"result"})

	FetchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "notifeeder_fetch_duration_seconds",
		Help:    "Duration of a single feed fetch including parsing",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms .. ~12.8s
	})

	EntriesParsed = factory.NewCounter(prometheus.CounterOpts{
		Name: "notifeeder_entries_parsed_total",
		Help: "Entries produced by the feed parser",
	})

	ArticlesAdded = factory.NewCounter(prometheus.CounterOpts{
		Name: "notifeeder_articles_added_total",
		Help: "Articles newly added to the cache",
	})

	NewEntries = factory.NewCounter(prometheus.CounterOpts{
		Name: "notifeeder_new_entries_total",
		Help: "Entries seen for the first time by the delivery tracker",
	})

	Notifications = factory.NewCounter(prometheus.CounterOpts{
		Name: "notifeeder_notifications_total",
		Help: "Notifications handed to the notifier",
	})

	PersistErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "notifeeder_persist_errors_total",
		Help: "Failed blob writes by store",
	}, []string{"store"})

	DatesUnparsed = factory.NewCounter(prometheus.CounterOpts{
		Name: "notifeeder_dates_unparsed_total",
		Help: "Date strings no rule could parse",
	})
)

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
