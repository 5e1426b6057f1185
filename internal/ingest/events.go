package ingest

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"notifeeder/internal/feed"
)

// CycleResult summarizes one completed ingestion cycle.
type CycleResult struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    map[string]int // entries parsed per feed url
	Added      int            // articles new to the cache
	New        []feed.Entry   // links never seen before
	Notified   []feed.Entry
}

// Broadcaster fans completed cycles out to subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan CycleResult
	next   int
	logger *log.Entry
}

func NewBroadcaster(logger *log.Entry) *Broadcaster {
	if logger == nil {
		logger = log.WithField("component", "events")
	}
	return &Broadcaster{subs: make(map[int]chan CycleResult), logger: logger}
}

// Subscribe returns a channel of results and a func that unsubscribes and
// closes it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan CycleResult, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan CycleResult, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Publish(r CycleResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- r:
		default:
			b.logger.WithFields(log.Fields{"subscriber": id, "cycle_id": r.ID}).Debug("subscriber slow, event dropped")
		}
	}
}
