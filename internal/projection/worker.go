package projection

import (
	"GDALedger/internal/core"
	"GDALedger/internal/observability"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const watermarkName = "main"

// ProjectionWorker updates the projection tables from committed commands.
// The projection channel is fed with a non-blocking send; projections that
// fall behind or miss an output are rebuilt from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan core.CoreOutput
	lastSeq   int64
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan core.CoreOutput, metrics *observability.Metrics, log zerolog.Logger) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// Run applies outputs until ctx is cancelled or the channel is closed.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	if err := pw.loadWatermark(ctx); err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}
	pw.log.Info().Int64("watermark", pw.lastSeq).Msg("projection worker started")

	for {
		select {
		case <-ctx.Done():
			return nil

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}
			if output.Envelope.Sequence <= pw.lastSeq {
				continue
			}

			start := time.Now()
			if err := pw.processOutput(ctx, output); err != nil {
				pw.log.Warn().Err(err).Int64("sequence", output.Envelope.Sequence).Msg("projection update failed")
				continue
			}
			pw.lastSeq = output.Envelope.Sequence
			if pw.metrics != nil {
				pw.metrics.ProjectionUpdateDur.WithLabelValues(watermarkName).Observe(time.Since(start).Seconds())
				pw.metrics.ProjectionWatermark.WithLabelValues(watermarkName).Set(float64(pw.lastSeq))
			}
		}
	}
}

// LastSequence returns the last applied sequence.
func (pw *ProjectionWorker) LastSequence() int64 {
	return pw.lastSeq
}

func (pw *ProjectionWorker) loadWatermark(ctx context.Context) error {
	err := pw.db.QueryRowContext(ctx,
		`SELECT last_sequence FROM projections.watermark WHERE projection_name = $1`, watermarkName,
	).Scan(&pw.lastSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output core.CoreOutput) error {
	u, err := Plan(output)
	if err != nil {
		return err
	}

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, b := range u.Balances {
		if err := applyBalance(ctx, tx, b, u.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}
	if u.Listing != nil {
		if err := applyListing(ctx, tx, u.Listing, u.Sequence); err != nil {
			return fmt.Errorf("listing projection: %w", err)
		}
	}
	if u.Order != nil {
		if err := applyOrder(ctx, tx, u.Order, u.Sequence); err != nil {
			return fmt.Errorf("order projection: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (projection_name, last_sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (projection_name) DO UPDATE SET last_sequence = $2, updated_at = NOW()
	`, watermarkName, u.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func applyBalance(ctx context.Context, tx *sql.Tx, b BalanceDelta, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account, holder, denomination, balance, last_sequence)
		VALUES ($1, $2, $3, $4::NUMERIC, $5)
		ON CONFLICT (account)
		DO UPDATE SET balance = projections.balances.balance + $4::NUMERIC,
		              last_sequence = $5, updated_at = NOW()
	`, b.Account, b.Holder, b.Denomination, b.Delta, seq)
	return err
}

func applyListing(ctx context.Context, tx *sql.Tx, l *ListingRow, seq int64) error {
	if l.TokenSize == "" {
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.listings
			SET closed = $2, last_sequence = $3, updated_at = NOW()
			WHERE listing = $1
		`, l.Listing, l.Closed, seq)
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.listings
			(listing, seller, house, token_size, items_sold, start_price, decay_const,
			 scale_factor, first_init_timestamp, end_timestamp, closed, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (listing) DO UPDATE SET
			seller = COALESCE(EXCLUDED.seller, projections.listings.seller),
			house = COALESCE(EXCLUDED.house, projections.listings.house),
			items_sold = EXCLUDED.items_sold,
			closed = EXCLUDED.closed,
			last_sequence = EXCLUDED.last_sequence,
			updated_at = NOW()
	`, l.Listing, l.Seller, l.House, l.TokenSize, l.ItemsSold, l.StartPrice, l.DecayConst,
		l.ScaleFactor, l.FirstInitTimestamp, l.EndTimestamp, l.Closed, seq)
	return err
}

func applyOrder(ctx context.Context, tx *sql.Tx, o *OrderRow, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.orders
			(order_record, listing, buyer, escrow, fee_payer, size, price, top_up, rent_paid, sequence, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_record) DO UPDATE SET
			price = EXCLUDED.price,
			top_up = EXCLUDED.top_up,
			sequence = EXCLUDED.sequence,
			placed_at = EXCLUDED.placed_at
	`, o.OrderRecord, o.Listing, o.Buyer, o.Escrow, o.FeePayer, o.Size, o.Price, o.TopUp, o.RentPaid, seq, o.PlacedAt)
	return err
}

// RebuildProjections rebuilds the balance projection from the journal and
// moves the watermark to the end of the event log. Listing and order rows
// are left as they are.
func RebuildProjections(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `TRUNCATE projections.balances`); err != nil {
		return fmt.Errorf("truncate failed: %w", err)
	}

	// Debits raise a balance, credits lower it.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account, holder, denomination, balance, last_sequence)
		SELECT account,
		       NULLIF(split_part(account, ':', 2), denomination) AS holder,
		       denomination,
		       SUM(delta),
		       MAX(sequence)
		FROM (
			SELECT debit_account AS account, denomination, amount AS delta, sequence FROM event_log.journal
			UNION ALL
			SELECT credit_account AS account, denomination, -amount AS delta, sequence FROM event_log.journal
		) flows
		GROUP BY account, denomination
	`)
	if err != nil {
		return fmt.Errorf("rebuild balances: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (projection_name, last_sequence, updated_at)
		SELECT $1, COALESCE(MAX(sequence), 0), NOW() FROM event_log.events
		ON CONFLICT (projection_name) DO UPDATE SET last_sequence = EXCLUDED.last_sequence, updated_at = NOW()
	`, watermarkName); err != nil {
		return fmt.Errorf("reset watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info().Msg("projection rebuild complete")
	return nil
}
