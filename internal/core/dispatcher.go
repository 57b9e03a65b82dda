package core

import (
	"GDALedger/internal/event"
	"GDALedger/internal/observability"
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrDispatcherStopped is returned for commands submitted after Run exits.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

type submission struct {
	ctx   context.Context
	evt   event.Event
	reply chan reply
}

type reply struct {
	res *Result
	err error
}

// Dispatcher serializes commands from every transport onto the single
// goroutine that owns the Engine.
type Dispatcher struct {
	engine  *Engine
	queue   chan submission
	done    chan struct{}
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewDispatcher(engine *Engine, capacity int, metrics *observability.Metrics, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		engine:  engine,
		queue:   make(chan submission, capacity),
		done:    make(chan struct{}),
		metrics: metrics,
		log:     log,
	}
}

// Run executes queued commands until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	d.log.Info().Int("capacity", cap(d.queue)).Msg("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("dispatcher stopped")
			return nil
		case s := <-d.queue:
			if d.metrics != nil {
				d.metrics.SetChannelMetrics("commands", len(d.queue), cap(d.queue))
			}
			if err := s.ctx.Err(); err != nil {
				s.reply <- reply{err: err}
				continue
			}
			res, err := d.engine.Execute(s.ctx, s.evt)
			s.reply <- reply{res: res, err: err}
		}
	}
}

// Submit queues evt and waits for its result.
func (d *Dispatcher) Submit(ctx context.Context, evt event.Event) (*Result, error) {
	s := submission{ctx: ctx, evt: evt, reply: make(chan reply, 1)}
	select {
	case d.queue <- s:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		return nil, ErrDispatcherStopped
	}
	select {
	case r := <-s.reply:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		select {
		case r := <-s.reply:
			return r.res, r.err
		default:
			return nil, ErrDispatcherStopped
		}
	}
}

// Engine returns the engine. Quotes are served by it directly, off the
// command goroutine.
func (d *Dispatcher) Engine() *Engine {
	return d.engine
}
