package ingestion

import (
	"GDALedger/internal/core"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// OutboundSubjectPrefix is followed by the command type.
	OutboundSubjectPrefix = "gda.ledger.events"
	OutboundStreamName    = "GDA_LEDGER_EVENTS"
)

// OutboundPublisher publishes committed commands to NATS for downstream
// consumers once the event log holds them.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.CoreOutput
	log       zerolog.Logger
}

// PublishableEvent is the outbound wire form of a committed command.
type PublishableEvent struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Listing        *string         `json:"listing,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      string          `json:"state_hash"`
	Timestamp      time.Time       `json:"timestamp"`
	Price          uint64          `json:"price,omitempty,string"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan core.CoreOutput, log zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		log:       log,
	}
}

// Run publishes until ctx is cancelled or the channel is closed. Publish
// failures are logged; consumers can fall back to the event log.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			if err := op.publish(ctx, out); err != nil {
				op.log.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
			}
		}
	}
}

// ToPublishable converts a committed output to its outbound form.
func ToPublishable(out core.CoreOutput) PublishableEvent {
	env := out.Envelope
	evt := PublishableEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Payload:        json.RawMessage(env.Payload),
		StateHash:      hex.EncodeToString(env.StateHash[:]),
		Timestamp:      time.Unix(env.Timestamp, 0).UTC(),
	}
	if env.Listing != nil {
		s := env.Listing.String()
		evt.Listing = &s
	}
	if out.Result != nil {
		evt.Price = out.Result.Price
	}
	return evt
}

// OutboundSubject is gda.ledger.events.<type>.
func OutboundSubject(evt PublishableEvent) string {
	return fmt.Sprintf("%s.%s", OutboundSubjectPrefix, evt.EventType)
}

func (op *OutboundPublisher) publish(ctx context.Context, out core.CoreOutput) error {
	evt := ToPublishable(out)
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msgID := fmt.Sprintf("%d", evt.Sequence)
	_, err = op.js.Publish(ctx, OutboundSubject(evt), data, jetstream.WithMsgID(msgID))
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      OutboundStreamName,
		Subjects:  []string{OutboundSubjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
