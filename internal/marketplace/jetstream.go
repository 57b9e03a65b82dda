package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// SellSubjectPrefix is followed by the house address.
	SellSubjectPrefix = "gda.marketplace.sell"
	// SalesSubjects carries sale notifications back to the engine.
	SalesSubjects = "gda.marketplace.sales.>"

	StreamName = "GDA_MARKETPLACE"
)

// JetStreamMarketplace publishes sell orders to the marketplace stream.
// The request id is the message id, so a retried command is deduplicated
// by the stream.
type JetStreamMarketplace struct {
	js      jetstream.JetStream
	timeout time.Duration
	log     zerolog.Logger
}

func NewJetStreamMarketplace(js jetstream.JetStream, timeout time.Duration, log zerolog.Logger) *JetStreamMarketplace {
	return &JetStreamMarketplace{js: js, timeout: timeout, log: log}
}

// SellSubject returns the subject a house's sell orders are published on.
func SellSubject(order SellOrder) string {
	return fmt.Sprintf("%s.%s", SellSubjectPrefix, order.House)
}

func (m *JetStreamMarketplace) OpenSellOrder(ctx context.Context, order SellOrder) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal sell order: %w", err)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	ack, err := m.js.Publish(ctx, SellSubject(order), data, jetstream.WithMsgID(order.RequestID))
	if err != nil {
		return fmt.Errorf("publish sell order: %w", err)
	}
	m.log.Info().
		Str("listing", order.Listing.String()).
		Uint64("stream_seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("sell order delegated")
	return nil
}

// EnsureStream creates the marketplace stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SellSubjectPrefix + ".>", SalesSubjects},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     72 * time.Hour,
		Duplicates: 10 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamName, err)
	}
	return nil
}
