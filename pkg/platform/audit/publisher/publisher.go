// Package publisher emits audit events: a synchronous append to the
// authoritative store, then fan-out to any configured sinks. Append and
// fan-out are separate steps. The append happens inside the caller's
// transaction context, so a failed operation leaves the trail untouched;
// sinks see an event only after the caller's transaction committed, and they
// see it with the sequence number the store assigned.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	id "medledger/pkg/domain"
	audit "medledger/pkg/platform/audit"
	"medledger/pkg/requestcontext"
)

// Sink receives accepted events for external fan-out (Kafka, Redis Streams).
// Sink failures are logged, never surfaced to the operation that emitted.
type Sink interface {
	Publish(ctx context.Context, event audit.Event) error
	Close() error
}

type Publisher struct {
	store  audit.Store
	sinks  []Sink
	logger *slog.Logger

	inbox  chan audit.Event
	wg     sync.WaitGroup
	closed sync.Once
}

type Option func(*Publisher)

// WithSink adds an external fan-out sink.
func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithAsyncFanout buffers sink delivery on a channel of the given size.
// When the buffer is full the event is delivered to sinks synchronously
// rather than dropped; the store has already accepted it either way.
func WithAsyncFanout(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.fanoutLoop()
	}
	return p
}

// Emit appends the event to the store and returns the accepted event with
// its assigned sequence number. It does not touch the sinks: callers run it
// inside their transaction and hand the returned event to Fanout once the
// transaction committed.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) (audit.Event, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	return p.store.Append(ctx, event)
}

// Fanout schedules sink delivery of a committed event. Events an operation
// never committed must not reach here.
func (p *Publisher) Fanout(event audit.Event) {
	if p.inbox != nil {
		select {
		case p.inbox <- event:
			return
		default:
			// Buffer full; fall through to synchronous delivery.
		}
	}
	p.deliver(event)
}

// List returns the trail for one patient in acceptance order.
func (p *Publisher) List(ctx context.Context, patient id.Principal) ([]audit.Event, error) {
	return p.store.ListByPatient(ctx, patient)
}

// Close drains pending fan-out and closes the sinks.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
		for _, sink := range p.sinks {
			if err := sink.Close(); err != nil {
				p.logger.Warn("audit sink close failed", "error", err)
			}
		}
	})
}

func (p *Publisher) fanoutLoop() {
	defer p.wg.Done()
	for event := range p.inbox {
		p.deliver(event)
	}
}

func (p *Publisher) deliver(event audit.Event) {
	// Sinks get a fresh context: the originating request may be gone by the
	// time delivery runs.
	ctx := context.Background()
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			p.logger.Warn("audit sink publish failed",
				"kind", string(event.Kind),
				"seq", event.Seq,
				"error", err,
			)
		}
	}
}
