package services

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/realtime"
)

const (
	DefaultNotifyTimeout   = 3 * time.Second
	DefaultNotifyQueueSize = 256

	flushPollInterval = 10 * time.Millisecond
)

// Notifier publishes events after a commit. Notify only enqueues; Run
// delivers in order on its own goroutine. Failures and drops are logged and
// counted, they never reach the caller.
type Notifier struct {
	publisher realtime.Publisher
	metrics   *metrics.Recorder
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	queue   chan realtime.Event
	pending atomic.Int64
	done    chan struct{}
}

func NewNotifier(publisher realtime.Publisher, rec *metrics.Recorder, logger *slog.Logger) *Notifier {
	return newNotifier(publisher, rec, logger, DefaultNotifyQueueSize)
}

func newNotifier(publisher realtime.Publisher, rec *metrics.Recorder, logger *slog.Logger, queueSize int) *Notifier {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultNotifyQueueSize
	}
	return &Notifier{
		publisher: publisher,
		metrics:   rec,
		logger:    logger,
		timeout:   DefaultNotifyTimeout,
		now:       time.Now,
		queue:     make(chan realtime.Event, queueSize),
		done:      make(chan struct{}),
	}
}

// Notify queues events without blocking. When the queue is full the event is
// dropped.
func (n *Notifier) Notify(ctx context.Context, events ...realtime.Event) {
	if n == nil {
		return
	}
	for _, ev := range events {
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = n.now().UTC()
		}
		n.pending.Add(1)
		select {
		case n.queue <- ev:
		default:
			n.pending.Add(-1)
			n.metrics.NotificationDropped(string(ev.Type))
			n.logger.WarnContext(ctx, "notification queue is full, event dropped",
				slog.String("event", string(ev.Type)),
				slog.String("tournament_id", ev.TournamentID.String()))
		}
	}
}

// Run delivers queued events until ctx is cancelled. Events still queued at
// that point are discarded; call Flush first to deliver them.
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case ev := <-n.queue:
			n.publish(ctx, ev)
			n.pending.Add(-1)
		case <-ctx.Done():
			n.logger.Info("notifier stopped", slog.Int64("discarded", n.pending.Load()))
			return
		}
	}
}

// Done is closed when Run has returned.
func (n *Notifier) Done() <-chan struct{} {
	return n.done
}

// Flush waits until every queued event has been handled or ctx expires.
func (n *Notifier) Flush(ctx context.Context) error {
	ticker := time.NewTicker(flushPollInterval)
	defer ticker.Stop()
	for n.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (n *Notifier) publish(ctx context.Context, ev realtime.Event) {
	pubCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.publisher.Publish(pubCtx, ev); err != nil {
		n.metrics.NotificationFailed(string(ev.Type))
		n.logger.Warn("failed to publish event",
			slog.String("event", string(ev.Type)),
			slog.String("tournament_id", ev.TournamentID.String()),
			slog.Any("error", err))
	}
}
