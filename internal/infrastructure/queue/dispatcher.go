package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssoserver/user-directory/internal/api/metrics"
	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// ErrQueueFull is returned by Publish when the target worker's buffer is full.
var ErrQueueFull = errors.New("event queue full")

// Dispatcher fans lifecycle events out to every registered sink. Events are
// sharded by user id so each user's events reach the sinks in order.
type Dispatcher struct {
	workers []chan domain.UserEvent
	sinks   []ports.EventSink
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger, sinks ...ports.EventSink) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.UserEvent, numWorkers),
		sinks:   sinks,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.UserEvent, channelBuffer)
	}
	return d
}

var _ ports.EventPublisher = (*Dispatcher)(nil)

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Publish hands the event to the worker responsible for its user. It never
// blocks the caller; a full buffer yields ErrQueueFull. A cancelled caller
// context does not drop the event.
func (d *Dispatcher) Publish(_ context.Context, event domain.UserEvent) error {
	idx := d.shardIndex(event.UserID)
	select {
	case d.workers[idx] <- event:
		metrics.EventsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	default:
		return ErrQueueFull
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.UserEvent) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			metrics.EventsQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.deliver(ctx, id, event)
		}
	}
}

// deliver runs every sink for one event. A failing sink does not stop the others.
func (d *Dispatcher) deliver(ctx context.Context, workerID int, event domain.UserEvent) {
	for _, sink := range d.sinks {
		start := time.Now()
		err := sink.Handle(ctx, event)
		metrics.EventDeliveryDuration.WithLabelValues(sink.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.EventsErrorsTotal.WithLabelValues(sink.Name()).Inc()
			d.log.Error().Err(err).
				Str("sink", sink.Name()).
				Str("event", string(event.Type)).
				Str("user_id", event.UserID).
				Int("worker_id", workerID).
				Msg("event delivery failed")
			continue
		}
		metrics.EventsDeliveredTotal.WithLabelValues(string(event.Type), sink.Name()).Inc()
	}
}
