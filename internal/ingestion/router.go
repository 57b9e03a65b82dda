package ingestion

import (
	"GDALedger/internal/core"
	"GDALedger/internal/event"
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Submitter runs a command to completion. core.Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, evt event.Event) (*core.Result, error)
}

// Router feeds raw messages to the engine and settles each message with
// the broker: ack when the command committed or was a duplicate, term
// when it can never succeed, nak when it should be retried.
type Router struct {
	submitter Submitter
	input     <-chan RawEvent
	log       zerolog.Logger
}

func NewRouter(submitter Submitter, input <-chan RawEvent, log zerolog.Logger) *Router {
	return &Router{submitter: submitter, input: input, log: log}
}

// Run routes messages until ctx is cancelled or input is closed.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-r.input:
			if !ok {
				return nil
			}
			r.route(ctx, raw)
		}
	}
}

// Outcome is how a message was settled.
type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeNak
	OutcomeTerm
)

// Classify decides how to settle a message whose command returned err.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAck
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, core.ErrDispatcherStopped):
		return OutcomeNak
	default:
		// Malformed input and rejected commands fail the same way on
		// every delivery.
		return OutcomeTerm
	}
}

func (r *Router) route(ctx context.Context, raw RawEvent) {
	evt, err := ParseRawEvent(raw)
	if err != nil {
		r.log.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping malformed message")
		settle(raw, OutcomeTerm)
		return
	}

	res, err := r.submitter.Submit(ctx, evt)
	outcome := Classify(err)
	switch outcome {
	case OutcomeAck:
		r.log.Debug().
			Str("command", evt.EventType().String()).
			Str("key", evt.IdempotencyKey()).
			Int64("sequence", res.Sequence).
			Bool("duplicate", res.Duplicate).
			Msg("command applied")
	case OutcomeNak:
		r.log.Warn().Err(err).Str("key", evt.IdempotencyKey()).Msg("command deferred")
	case OutcomeTerm:
		r.log.Info().Err(err).
			Str("command", evt.EventType().String()).
			Str("key", evt.IdempotencyKey()).
			Msg("command rejected")
	}
	settle(raw, outcome)
}

func settle(raw RawEvent, outcome Outcome) {
	var f func()
	switch outcome {
	case OutcomeAck:
		f = raw.AckFunc
	case OutcomeNak:
		f = raw.NakFunc
	case OutcomeTerm:
		f = raw.TermFunc
	}
	if f != nil {
		f()
	}
}
