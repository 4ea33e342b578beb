package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultSinkTimeout = 2 * time.Second

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds each Sink.Emit call. Zero means two seconds.
	SinkTimeout time.Duration
}

// queued pairs an event with the values of the request that produced it.
type queued struct {
	ctx   context.Context
	event Event
}

// Dispatcher forwards audit events to a sink from a single goroutine, off
// the request path. A nil *Dispatcher is a valid no-op.
//
// Every event handed to Emit is either delivered to the sink or counted in
// Dropped, including events that race Close.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan queued

	// done wakes senders blocked on a full buffer; stop tells run to drain
	// once no sender can reach ch any more.
	done chan struct{}
	stop chan struct{}

	// mu is held shared by senders and exclusively by Close.
	mu     sync.RWMutex
	closed bool

	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan queued, cfg.BufferSize),
		done: make(chan struct{}),
		stop: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case q := <-d.ch:
			d.deliver(q)
		case <-d.stop:
			for {
				select {
				case q := <-d.ch:
					d.deliver(q)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(q queued) {
	ctx, cancel := context.WithTimeout(q.ctx, d.cfg.SinkTimeout)
	defer cancel()
	d.sink.Emit(ctx, q.event)
}

// Emit queues event. With DropIfFull a full buffer drops and counts the
// event; otherwise Emit waits for space, ctx or Close. Events emitted after
// Close are counted as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	q := queued{ctx: context.WithoutCancel(ctx), event: event}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- q:
		case <-d.done:
			d.dropped.Add(1)
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- q:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
		d.dropped.Add(1)
	}
}

// Close stops accepting events and drains the buffer into the sink. It
// returns once the sink has seen every queued event.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.done)
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped returns how many events never reached the sink: buffer overflow,
// a sender giving up on its context, or an emit racing or following Close.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
