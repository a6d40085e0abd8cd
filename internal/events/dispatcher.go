package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authkit/internal/observability/logger"
)

// Sink receives every dispatched event.
type Sink interface {
	Name() string
	Handle(ctx context.Context, env Envelope) error
}

// Observer is told the outcome of each delivery ("delivered", "failed",
// "dropped"). metrics.Metrics implements it.
type Observer interface {
	ObserveEvent(kind, result string)
}

// DispatcherConfig tunes the queue.
type DispatcherConfig struct {
	Buffer int
	// DropIfFull drops instead of waiting when the buffer is full.
	DropIfFull bool
	// SinkTimeout bounds each Handle call.
	SinkTimeout time.Duration
}

// Dispatcher fans events out to sinks from one background goroutine.
type Dispatcher struct {
	cfg      DispatcherConfig
	sinks    []Sink
	observer Observer
	log      *zap.Logger
	now      func() time.Time

	ch   chan Envelope
	quit chan struct{} // unblocks pending Emits once Close starts
	done chan struct{} // tells the worker to drain and exit
	wg   sync.WaitGroup

	// mu orders sends against close(done): every send that wins the RLock
	// lands before the worker starts its final drain.
	mu        sync.RWMutex
	closed    bool
	dropped   atomic.Uint64
	closeOnce sync.Once
}

var _ Emitter = (*Dispatcher)(nil)

// NewDispatcher starts the worker. Call Close to drain it.
func NewDispatcher(cfg DispatcherConfig, obs Observer, sinks ...Sink) *Dispatcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}
	d := &Dispatcher{
		cfg:      cfg,
		sinks:    sinks,
		observer: obs,
		log:      logger.Named("events"),
		now:      time.Now,
		ch:       make(chan Envelope, cfg.Buffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case env := <-d.ch:
			d.deliver(env)
		case <-d.done:
			for {
				select {
				case env := <-d.ch:
					d.deliver(env)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(env Envelope) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SinkTimeout)
		err := s.Handle(logger.ToContext(ctx, d.log), env)
		cancel()
		if err != nil {
			d.log.Warn("event sink failed",
				logger.String("sink", s.Name()), logger.EventKind(string(env.Kind)), logger.Err(err))
			d.observe(env.Kind, "failed")
			continue
		}
		d.observe(env.Kind, "delivered")
	}
}

func (d *Dispatcher) observe(k Kind, result string) {
	if d.observer != nil {
		d.observer.ObserveEvent(string(k), result)
	}
}

// Emit enqueues e. Events that cannot be queued (full buffer with
// DropIfFull, dispatcher closing or closed) are counted as dropped.
func (d *Dispatcher) Emit(ctx context.Context, e Event) {
	if d == nil || e == nil {
		return
	}
	env := Envelope{Kind: e.Kind(), OccurredAt: d.now().UTC(), Payload: e}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ctx, env, "dispatcher closed")
		return
	}
	if d.cfg.DropIfFull {
		select {
		case d.ch <- env:
		default:
			d.drop(ctx, env, "buffer full")
		}
		return
	}
	select {
	case d.ch <- env:
	case <-ctx.Done():
		d.drop(ctx, env, "context done")
	case <-d.quit:
		d.drop(ctx, env, "dispatcher closing")
	}
}

func (d *Dispatcher) drop(ctx context.Context, env Envelope, reason string) {
	d.dropped.Add(1)
	d.observe(env.Kind, "dropped")
	logger.From(ctx).Warn("event dropped", logger.EventKind(string(env.Kind)), logger.String("reason", reason))
}

// Close stops accepting events and waits for the queue to drain.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.quit)
		d.mu.Lock()
		d.closed = true
		close(d.done)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// Dropped counts events that never reached the queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
