package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"auctionhouse/internal/models"
	"auctionhouse/internal/repository"
)

// Sink receives user-facing notifications. Implementations must never
// block the caller and must never fail it: delivery is advisory, the
// transaction that produced the event is already committed.
type Sink interface {
	Notify(userID uint64, kind models.NotificationKind, message, link string)
}

// Dispatcher is the production sink: an in-process queue drained by worker
// goroutines that persist notification rows and log them. A full queue
// drops the event and counts the drop rather than blocking a placement or
// a settlement.
type Dispatcher struct {
	store  repository.Store
	logger *zap.Logger
	queue  chan models.Notification

	workers int
	dropped uint64

	startOnce sync.Once
	wg        sync.WaitGroup
}

func NewDispatcher(store repository.Store, logger *zap.Logger, queueSize, workers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if workers <= 0 {
		workers = 2
	}
	return &Dispatcher{
		store:   store,
		logger:  logger,
		queue:   make(chan models.Notification, queueSize),
		workers: workers,
	}
}

var _ Sink = (*Dispatcher)(nil)

func (d *Dispatcher) Notify(userID uint64, kind models.NotificationKind, message, link string) {
	n := models.Notification{
		UserID:  userID,
		Kind:    kind,
		Message: message,
		Link:    link,
	}
	select {
	case d.queue <- n:
	default:
		atomic.AddUint64(&d.dropped, 1)
		if d.logger != nil {
			d.logger.Warn("notification queue full, dropping",
				zap.Uint64("user_id", userID),
				zap.String("kind", string(kind)),
			)
		}
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker(ctx)
		}
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case n := <-d.queue:
					d.deliver(context.Background(), n)
				default:
					return
				}
			}
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n models.Notification) {
	if err := d.store.InsertNotification(ctx, &n); err != nil {
		if d.logger != nil {
			d.logger.Warn("notification insert failed",
				zap.Uint64("user_id", n.UserID),
				zap.String("kind", string(n.Kind)),
				zap.Error(err),
			)
		}
		return
	}
	if d.logger != nil {
		d.logger.Info("notification delivered",
			zap.Uint64("user_id", n.UserID),
			zap.String("kind", string(n.Kind)),
		)
	}
}

// Dropped reports how many notifications were discarded on a full queue.
func (d *Dispatcher) Dropped() uint64 {
	return atomic.LoadUint64(&d.dropped)
}

// NopSink discards everything. Useful in tests and tooling.
type NopSink struct{}

func (NopSink) Notify(uint64, models.NotificationKind, string, string) {}
