package persistence

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrChainMismatch means the event log holds a different state hash for a
// sequence than the local store.
var ErrChainMismatch = errors.New("event log and local chain disagree")

// EventLogReader reads the durable event log for recovery checks, LRU
// warming and history queries.
type EventLogReader struct {
	db *sql.DB
}

func NewEventLogReader(db *sql.DB) *EventLogReader {
	return &EventLogReader{db: db}
}

// LoadEventsFrom loads up to limit events starting at fromSequence.
func (r *EventLogReader) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, listing, payload,
		       state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var listing sql.NullString
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &listing,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		if listing.Valid {
			e.Listing = &listing.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log, 0 when
// it is empty.
func (r *EventLogReader) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// RecentIdempotencyKeys returns the composite "type:key" strings of the
// last limit commands, oldest first, for warming the engine's LRU.
func (r *EventLogReader) RecentIdempotencyKeys(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_type, idempotency_key FROM (
			SELECT sequence, event_type, idempotency_key
			FROM event_log.events
			ORDER BY sequence DESC
			LIMIT $1
		) recent
		ORDER BY sequence ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var typ, key string
		if err := rows.Scan(&typ, &key); err != nil {
			return nil, err
		}
		keys = append(keys, typ+":"+key)
	}
	return keys, rows.Err()
}

// CheckHead compares the local chain head with the event log. A log that
// is behind is fine: the persist channel drains after the local commit.
// A log that is ahead, or that holds a different hash at seq, is not.
func (r *EventLogReader) CheckHead(ctx context.Context, seq int64, hash [32]byte) error {
	latest, err := r.GetLatestSequence(ctx)
	if err != nil {
		return fmt.Errorf("latest sequence: %w", err)
	}
	if latest > seq {
		return fmt.Errorf("%w: log at %d, local head at %d", ErrChainMismatch, latest, seq)
	}
	if latest < seq || seq == 0 {
		return nil
	}

	var stored []byte
	err = r.db.QueryRowContext(ctx,
		`SELECT state_hash FROM event_log.events WHERE sequence = $1`, seq,
	).Scan(&stored)
	if err != nil {
		return fmt.Errorf("load head %d: %w", seq, err)
	}
	if !bytes.Equal(stored, hash[:]) {
		return fmt.Errorf("%w: state hash differs at %d", ErrChainMismatch, seq)
	}
	return nil
}
