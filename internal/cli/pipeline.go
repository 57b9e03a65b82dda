package cli

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// pipeline stops in two phases. The front stages (transports and the
// dispatcher) run until ctx is cancelled or one of them fails. Only then
// are the sink inputs closed, and the sinks exit once they have drained
// what was committed. A failing sink stops the front as well.
type pipeline struct {
	front        []func(context.Context) error
	sinks        []func(context.Context) error
	closeSinks   func()
	drainTimeout time.Duration
}

func (p *pipeline) addFront(run func(context.Context) error) { p.front = append(p.front, run) }
func (p *pipeline) addSink(run func(context.Context) error)  { p.sinks = append(p.sinks, run) }

// run blocks until every stage has returned. Cancellation is a clean stop.
func (p *pipeline) run(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	// Sinks are not tied to ctx: they stop when their input closes, or at
	// the drain deadline.
	drainCtx, cancelDrain := context.WithCancel(context.Background())
	defer cancelDrain()

	sinks, sinkCtx := errgroup.WithContext(drainCtx)
	for _, stage := range p.sinks {
		sinks.Go(func() error {
			err := stage(sinkCtx)
			if err != nil {
				stop()
			}
			return err
		})
	}

	front, frontCtx := errgroup.WithContext(runCtx)
	for _, stage := range p.front {
		front.Go(func() error { return stage(frontCtx) })
	}
	frontErr := front.Wait()

	if p.closeSinks != nil {
		p.closeSinks()
	}
	if p.drainTimeout > 0 {
		timer := time.AfterFunc(p.drainTimeout, cancelDrain)
		defer timer.Stop()
	}
	sinkErr := sinks.Wait()

	return errors.Join(cleanStop(frontErr), cleanStop(sinkErr))
}

func cleanStop(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
