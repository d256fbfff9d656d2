package queuesvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
)

var (
	ErrClosed = errors.New("queue closed")

	nowFunc = time.Now // mockable
)

// Handler executes deliveries; implemented by *notification.Deliverer.
type Handler interface {
	Deliver(ctx context.Context, d notification.Delivery) error
}

// Memory is an in-process queue: a pool of workers executing deliveries, deferred ones
// being parked on a timer until their RunAt. Parked deliveries are dropped on Close.
type Memory struct {
	handler Handler
	logger  core.Logger
	jobs    chan notification.Delivery
	ctx     context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	closed   bool
	parked   map[*time.Timer]notification.Delivery
	inflight sync.WaitGroup // pushes not yet handed to workers
	workers  sync.WaitGroup
}

var _ notification.Queue = (*Memory)(nil)

func NewMemory(handler Handler, logger core.Logger, workers int) *Memory {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Memory{
		handler: handler,
		logger:  logger,
		jobs:    make(chan notification.Delivery, 64*workers),
		ctx:     ctx,
		cancel:  cancel,
		parked:  make(map[*time.Timer]notification.Delivery),
	}
	q.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

// Enqueue hands d over to the workers, or parks it until d.RunAt.
func (q *Memory) Enqueue(ctx context.Context, d notification.Delivery) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.inflight.Add(1)

	if d.RunAt != nil {
		if wait := d.RunAt.Sub(nowFunc()); wait > 0 {
			var t *time.Timer
			t = time.AfterFunc(wait, func() {
				defer q.inflight.Done()
				q.mu.Lock()
				delete(q.parked, t)
				q.mu.Unlock()
				_ = q.push(context.Background(), d)
			})
			q.parked[t] = d
			q.mu.Unlock()
			return nil
		}
	}
	q.mu.Unlock()

	defer q.inflight.Done()
	return q.push(ctx, d)
}

func (q *Memory) push(ctx context.Context, d notification.Delivery) error {
	select {
	case q.jobs <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Parked returns the number of deliveries waiting for their RunAt.
func (q *Memory) Parked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.parked)
}

func (q *Memory) work() {
	defer q.workers.Done()
	for d := range q.jobs {
		q.deliver(d)
	}
}

func (q *Memory) deliver(d notification.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			q.fail(d, &notification.DeliveryError{Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	if err := q.handler.Deliver(q.ctx, d); err != nil {
		q.fail(d, err)
	}
}

func (q *Memory) fail(d notification.Delivery, err error) {
	q.logger.Error("delivering notification failed", err, map[string]interface{}{
		"id":           d.Notification.ID,
		"kind":         string(d.Notification.Type),
		"recipient_id": d.Notification.RecipientID,
		"error":        err.Error(),
	})
}

// Close stops accepting deliveries and waits for the queued ones to be executed.
// In-flight deliveries are cancelled when ctx is done first.
func (q *Memory) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	parked := q.parked
	q.parked = make(map[*time.Timer]notification.Delivery)
	q.mu.Unlock()

	for t, d := range parked {
		if t.Stop() {
			q.inflight.Done()
			q.logger.Warn("deferred notification dropped on shutdown", map[string]interface{}{
				"id":           d.Notification.ID,
				"kind":         string(d.Notification.Type),
				"recipient_id": d.Notification.RecipientID,
			})
		}
	}
	q.inflight.Wait()
	close(q.jobs)

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return errors.Wrap(ctx.Err(), "closing queue")
	}
}
