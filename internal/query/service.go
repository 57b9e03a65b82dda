package query

import (
	"GDALedger/internal/ledger"
	"GDALedger/internal/observability"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a projection has no row for the request.
var ErrNotFound = errors.New("not found")

const (
	defaultLimit = 50
	maxLimit     = 500
)

// QueryService provides read-only access to the projection tables and the
// event log. Responses carry as_of_sequence: the projection watermark they
// were read at.
type QueryService struct {
	db      *sql.DB
	metrics *observability.Metrics
}

func NewQueryService(db *sql.DB, metrics *observability.Metrics) *QueryService {
	return &QueryService{db: db, metrics: metrics}
}

// GetListing returns the projected state of a listing.
func (qs *QueryService) GetListing(ctx context.Context, listing ledger.Pubkey) (resp *ListingResponse, err error) {
	defer qs.observe("GetListing", time.Now(), &err)

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var r ListingResponse
	var seller, house sql.NullString
	err = qs.db.QueryRowContext(ctx, `
		SELECT listing, seller, house, token_size, items_sold, start_price, decay_const,
		       scale_factor, first_init_timestamp, end_timestamp, closed, last_sequence
		FROM projections.listings
		WHERE listing = $1
	`, listing.String()).Scan(
		&r.Listing, &seller, &house, &r.TokenSize, &r.ItemsSold, &r.StartPrice, &r.DecayConst,
		&r.ScaleFactor, &r.FirstInitTimestamp, &r.EndTimestamp, &r.Closed, &r.LastSequence,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", listing, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	r.Seller, r.House = seller.String, house.String
	r.AsOfSequence = asOfSeq
	return &r, nil
}

// GetOrdersByBuyer returns a buyer's orders, newest first. beforeSequence
// is the pagination cursor.
func (qs *QueryService) GetOrdersByBuyer(
	ctx context.Context,
	buyer ledger.Pubkey,
	limit int,
	beforeSequence *int64,
) (out []OrderResponse, err error) {
	defer qs.observe("GetOrdersByBuyer", time.Now(), &err)

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT order_record, listing, buyer, escrow, fee_payer, size, price,
		       top_up, rent_paid, sequence, placed_at
		FROM projections.orders
		WHERE buyer = $1
	`
	args := []interface{}{buyer.String()}
	query, args = paginate(query, args, "sequence", beforeSequence, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o OrderResponse
		if err := rows.Scan(
			&o.OrderRecord, &o.Listing, &o.Buyer, &o.Escrow, &o.FeePayer, &o.Size, &o.Price,
			&o.TopUp, &o.RentPaid, &o.Sequence, &o.PlacedAt,
		); err != nil {
			return nil, err
		}
		o.AsOfSequence = asOfSeq
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetBalance returns the projected balance of one account. A missing row
// is a zero balance.
func (qs *QueryService) GetBalance(ctx context.Context, key ledger.AccountKey) (resp *BalanceResponse, err error) {
	defer qs.observe("GetBalance", time.Now(), &err)

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	r := &BalanceResponse{
		Account:      key.AccountPath(),
		Holder:       key.Holder.String(),
		Denomination: key.Denomination.String(),
		AsOfSequence: asOfSeq,
	}
	err = qs.db.QueryRowContext(ctx, `
		SELECT balance FROM projections.balances WHERE account = $1
	`, r.Account).Scan(&r.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetJournalHistory returns the journals touching any balance of holder,
// newest first.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	holder ledger.Pubkey,
	limit int,
	beforeSequence *int64,
) (entries []JournalHistoryEntry, err error) {
	defer qs.observe("GetJournalHistory", time.Now(), &err)

	native := ledger.NativeAccountKey(holder).AccountPath()
	tokens := "token:" + holder.String() + ":%"

	query := `
		SELECT journal_id, batch_id, event_ref, sequence, debit_account, credit_account,
		       denomination, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account = $1 OR credit_account = $1
		       OR debit_account LIKE $2 OR credit_account LIKE $2)
	`
	args := []interface{}{native, tokens}
	query, args = paginate(query, args, "sequence", beforeSequence, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence, &e.DebitAccount, &e.CreditAccount,
			&e.Denomination, &e.Amount, &e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetEventHistory returns the commands that touched a listing, newest first.
func (qs *QueryService) GetEventHistory(
	ctx context.Context,
	listing ledger.Pubkey,
	limit int,
	beforeSequence *int64,
) (entries []EventHistoryEntry, err error) {
	defer qs.observe("GetEventHistory", time.Now(), &err)

	query := `
		SELECT sequence, event_type, idempotency_key, timestamp, state_hash, payload
		FROM event_log.events
		WHERE listing = $1
	`
	args := []interface{}{listing.String()}
	query, args = paginate(query, args, "sequence", beforeSequence, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e EventHistoryEntry
		var ts time.Time
		var hash, payload []byte
		if err := rows.Scan(&e.Sequence, &e.EventType, &e.IdempotencyKey, &ts, &hash, &payload); err != nil {
			return nil, err
		}
		e.Timestamp = ts.Unix()
		e.StateHash = hex.EncodeToString(hash)
		e.Payload = payload
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the event log and that
// every denomination's projected balances sum to zero.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (report *IntegrityReport, err error) {
	defer qs.observe("VerifyIntegrity", time.Now(), &err)
	report = &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT denomination, SUM(balance) AS total
		FROM projections.balances
		GROUP BY denomination
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var u UnbalancedDenomination
		if err := balanceRows.Scan(&u.Denomination, &u.Imbalance); err != nil {
			return nil, err
		}
		report.UnbalancedDenominations = append(report.UnbalancedDenominations, u)
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedDenominations) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE projection_name = 'main'
	`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return seq, err
}

func (qs *QueryService) observe(method string, start time.Time, err *error) {
	if qs.metrics == nil {
		return
	}
	qs.metrics.QueryRequests.WithLabelValues(method).Inc()
	qs.metrics.QueryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if *err != nil {
		code := "internal"
		if errors.Is(*err, ErrNotFound) {
			code = "not_found"
		}
		qs.metrics.QueryErrors.WithLabelValues(method, code).Inc()
	}
}

// ClampLimit bounds a page size to (0, maxLimit], defaulting to defaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

// paginate appends a descending cursor condition and a LIMIT to query.
func paginate(query string, args []interface{}, column string, before *int64, limit int) (string, []interface{}) {
	if before != nil {
		args = append(args, *before)
		query += fmt.Sprintf(" AND %s < $%d", column, len(args))
	}
	args = append(args, ClampLimit(limit))
	query += fmt.Sprintf(" ORDER BY %s DESC LIMIT $%d", column, len(args))
	return query, args
}
