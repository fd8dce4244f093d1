package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/modernapi/identity-system/internal/api/metrics"
	"github.com/modernapi/identity-system/internal/core/domain"
	"github.com/modernapi/identity-system/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// ErrClosed is returned by Send once the dispatcher has been closed.
var ErrClosed = errors.New("email dispatcher is closed")

// Dispatcher routes outbound emails to a fixed set of workers using consistent
// hashing on the recipient, so one user's emails are delivered in the order
// they were produced. It satisfies ports.Notifier: Send only enqueues.
type Dispatcher struct {
	workers  []chan domain.EmailMessage
	delivery ports.Notifier
	log      zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers that hand
// messages to delivery. If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, delivery ports.Notifier, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan domain.EmailMessage, numWorkers),
		delivery: delivery,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.EmailMessage, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Deliveries run under ctx; cancelling it
// aborts in-flight retries.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Send enqueues msg on the worker responsible for its recipient. It blocks only
// while that worker's buffer is full or until ctx is done.
func (d *Dispatcher) Send(ctx context.Context, msg domain.EmailMessage) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	idx := d.shardIndex(msg.To)
	select {
	case d.workers[idx] <- msg:
		metrics.EmailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits until the queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// shardIndex maps a recipient deterministically to a worker index.
// Addresses differing only in case share a worker.
func (d *Dispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(recipient)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.EmailMessage) {
	defer d.wg.Done()
	depth := metrics.EmailQueueDepth.WithLabelValues(strconv.Itoa(id))
	for msg := range ch {
		depth.Dec()
		if err := d.delivery.Send(ctx, msg); err != nil {
			d.log.Error().Err(err).
				Str("to", msg.To).
				Str("subject", msg.Subject).
				Int("worker_id", id).
				Msg("email delivery failed")
		}
	}
}
