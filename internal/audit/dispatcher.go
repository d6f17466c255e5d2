package audit

import (
	"sync"

	"github.com/rs/zerolog"
)

type Event struct {
	// ActorID is nil for transitions applied by the scheduler.
	ActorID  *string
	Action   string
	Entity   string
	EntityID string
	Metadata any
}

// Sink persists one audit event.
type Sink interface {
	Log(ev Event) error
}

type Dispatcher struct {
	mu     sync.RWMutex
	closed bool

	sink   Sink
	queue  chan Event
	done   chan struct{}
	logger zerolog.Logger
}

func NewDispatcher(sink Sink, buffer int, logger zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 100
	}
	d := &Dispatcher{
		sink:   sink,
		queue:  make(chan Event, buffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "audit").Logger(),
	}

	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for ev := range d.queue {
		if err := d.sink.Log(ev); err != nil {
			d.logger.Error().Err(err).Str("action", ev.Action).Str("entity_id", ev.EntityID).Msg("audit write failed")
		}
	}
}

// Dispatch queues ev without blocking. When the queue is full, or the
// dispatcher is closed, the event is dropped; auditing never breaks the
// caller.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn().Str("action", ev.Action).Str("entity_id", ev.EntityID).Msg("audit dispatcher closed, dropping event")
		return
	}

	select {
	case d.queue <- ev:
	default:
		d.logger.Warn().Str("action", ev.Action).Str("entity_id", ev.EntityID).Msg("audit queue full, dropping event")
	}
}

// Close drains the queue and stops the worker. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	<-d.done
}
