package events

import (
	"context"
	"time"

	"pfm/internal/log"
)

// Emitter accepts events after the ledger transaction that produced them has
// committed. Emit never blocks the caller and never fails the operation.
type Emitter interface {
	Emit(ctx context.Context, e LedgerEvent)
}

const DefaultBuffer = 256

// Dispatcher queues events in memory and publishes them from Run.
type Dispatcher struct {
	pub    Publisher
	queue  chan LedgerEvent
	logger *log.Logger
}

var _ Emitter = (*Dispatcher)(nil)

func NewDispatcher(pub Publisher, buffer int, logger *log.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		pub:    pub,
		queue:  make(chan LedgerEvent, buffer),
		logger: logger.WithComponent(log.ComponentEvents),
	}
}

// Emit enqueues e, dropping it with a warning when the buffer is full.
func (d *Dispatcher) Emit(ctx context.Context, e LedgerEvent) {
	select {
	case d.queue <- e:
	default:
		d.logger.WarnContext(ctx, "Event buffer full, dropping ledger event",
			"event_id", e.ID.String(), "kind", string(e.Kind), log.FieldUserID, int64(e.UserID))
	}
}

// Run publishes queued events until ctx is done, then drains what is left
// within drainTimeout.
func (d *Dispatcher) Run(ctx context.Context, drainTimeout time.Duration) error {
	for {
		select {
		case e := <-d.queue:
			d.publish(ctx, e)
		case <-ctx.Done():
			d.drain(drainTimeout)
			return nil
		}
	}
}

func (d *Dispatcher) drain(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		select {
		case e := <-d.queue:
			d.publish(ctx, e)
		default:
			return
		}
		if ctx.Err() != nil {
			d.logger.Warn("Shutdown drain timed out", "pending", len(d.queue))
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, e LedgerEvent) {
	if err := d.pub.Publish(ctx, e); err != nil {
		d.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldError, err, "event_id", e.ID.String(), "kind", string(e.Kind))
		return
	}
	d.logger.DebugContext(ctx, "Published ledger event",
		"event_id", e.ID.String(), "kind", string(e.Kind), log.FieldUserID, int64(e.UserID))
}
