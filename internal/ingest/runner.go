package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"notifeeder/internal/metrics"
)

// DefaultDebounce is the minimum spacing between triggered cycle starts.
const DefaultDebounce = 400 * time.Millisecond

// ErrDebounced is returned by Trigger when a cycle started too recently.
var ErrDebounced = errors.New("cycle debounced")

// Runner schedules pipeline cycles. At most one cycle is in flight: starting a
// new one cancels the previous, whose results are discarded.
type Runner struct {
	pipeline *Pipeline
	limiter  *rate.Limiter
	events   *Broadcaster
	logger   *log.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a runner. events may be nil.
func NewRunner(p *Pipeline, debounce time.Duration, events *Broadcaster, logger *log.Entry) *Runner {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.WithField("component", "runner")
	}
	return &Runner{
		pipeline: p,
		limiter:  rate.NewLimiter(rate.Every(debounce), 1),
		events:   events,
		logger:   logger,
	}
}

// Trigger starts a cycle in the background and returns immediately. Within
// the debounce window of the previous start it returns ErrDebounced instead.
func (r *Runner) Trigger(ctx context.Context) error {
	if !r.limiter.Allow() {
		metrics.Cycles.WithLabelValues("debounced").Inc()
		r.logger.Debug("cycle trigger debounced")
		return ErrDebounced
	}
	r.start(ctx, nil)
	return nil
}

// RunOnce runs a cycle synchronously, cancelling any cycle in flight. It is
// not subject to debouncing.
func (r *Runner) RunOnce(ctx context.Context) (CycleResult, error) {
	var (
		res CycleResult
		err error
	)
	done := r.start(ctx, func(cr CycleResult, cerr error) { res, err = cr, cerr })
	<-done
	return res, err
}

// Wait blocks until no cycle is in flight.
func (r *Runner) Wait() {
	for {
		r.mu.Lock()
		done := r.done
		r.mu.Unlock()
		if done == nil {
			return
		}
		<-done
		r.mu.Lock()
		same := r.done == done
		r.mu.Unlock()
		if same {
			return
		}
	}
}

// Stop cancels the cycle in flight and waits for it to unwind.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.Wait()
}

func (r *Runner) start(parent context.Context, report func(CycleResult, error)) chan struct{} {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	prev := r.done
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	r.mu.Unlock()

	id := uuid.NewString()
	go func() {
		defer close(done)
		defer cancel()
		// the cancelled predecessor unwinds before this cycle merges anything
		if prev != nil {
			<-prev
		}
		res, err := r.pipeline.Cycle(ctx, id)
		switch {
		case err != nil:
			metrics.Cycles.WithLabelValues("cancelled").Inc()
			r.logger.WithField("cycle_id", id).WithError(err).Info("cycle cancelled")
		default:
			metrics.Cycles.WithLabelValues("completed").Inc()
			if r.events != nil {
				r.events.Publish(res)
			}
		}
		if report != nil {
			report(res, err)
		}
		r.mu.Lock()
		if r.done == done {
			r.cancel, r.done = nil, nil
		}
		r.mu.Unlock()
	}()
	return done
}
