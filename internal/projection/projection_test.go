package projection_test

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/core"
	"GDALedger/internal/event"
	"GDALedger/internal/intake"
	"GDALedger/internal/ledger"
	"GDALedger/internal/projection"
	"GDALedger/internal/testutil"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) ledger.Pubkey {
	var p ledger.Pubkey
	for i := range p {
		p[i] = b
	}
	return p
}

var (
	listing = key(9)
	seller  = key(7)
	house   = key(8)
	buyer   = key(3)
)

func cfg(sold uint64) *auction.ListingConfig {
	return &auction.ListingConfig{
		TokenSize:          10,
		ItemsSold:          sold,
		StartPrice:         1_000,
		DecayConst:         1,
		ScaleFactor:        2,
		FirstInitTimestamp: 1_700_000_000,
		EndTimestamp:       1_700_003_600,
	}
}

func envelope(t *testing.T, seq int64, evt event.Event) *event.EventEnvelope {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return &event.EventEnvelope{
		Sequence:       seq,
		IdempotencyKey: evt.IdempotencyKey(),
		EventType:      evt.EventType(),
		Listing:        evt.ListingID(),
		Timestamp:      1_700_000_000 + seq,
		Payload:        payload,
	}
}

func createOutput(t *testing.T, seq int64) core.CoreOutput {
	return core.CoreOutput{
		Envelope: envelope(t, seq, &event.CreateListing{RequestID: "list-1", Wallet: seller, House: house, Listing: listing, TokenSize: 10}),
		Result:   &core.Result{Sequence: seq, Listing: cfg(0)},
	}
}

func orderOutput(t *testing.T, seq int64) core.CoreOutput {
	escrow, record := key(20), key(21)
	batch := ledger.NewBatch("order-1", seq, 1_700_000_000+seq)
	batch.Add(ledger.NativeAccountKey(escrow), ledger.NativeAccountKey(buyer), 368, ledger.JournalTypeEscrowTopUp)
	return core.CoreOutput{
		Envelope: envelope(t, seq, &event.PlaceOrder{RequestID: "order-1", Listing: listing, Wallet: buyer, Escrow: escrow, OrderRecord: record, Size: 1}),
		Batch:    batch,
		Result: &core.Result{
			Sequence: seq,
			Price:    368,
			Order:    &intake.Outcome{FeePayer: key(2), TopUp: 368, OrderRecordCreated: true, RentPaid: 897_840},
		},
	}
}

func TestPlan_CreateListing(t *testing.T) {
	u, err := projection.Plan(createOutput(t, 5))
	require.NoError(t, err)
	require.NotNil(t, u.Listing)
	assert.Equal(t, listing.String(), u.Listing.Listing)
	require.NotNil(t, u.Listing.Seller)
	assert.Equal(t, seller.String(), *u.Listing.Seller)
	assert.Equal(t, house.String(), *u.Listing.House)
	assert.Equal(t, "10", u.Listing.TokenSize)
	assert.Equal(t, "0", u.Listing.ItemsSold)
	assert.Nil(t, u.Order)
	assert.Empty(t, u.Balances)
}

func TestPlan_PlaceOrder(t *testing.T) {
	u, err := projection.Plan(orderOutput(t, 6))
	require.NoError(t, err)
	require.NotNil(t, u.Order)
	assert.Equal(t, buyer.String(), u.Order.Buyer)
	assert.Equal(t, "368", u.Order.Price)
	assert.Equal(t, "897840", u.Order.RentPaid)
	assert.Equal(t, int64(1_700_000_006), u.Order.PlacedAt)

	require.Len(t, u.Balances, 2)
	assert.Equal(t, "368", u.Balances[0].Delta)
	assert.Equal(t, "-368", u.Balances[1].Delta)
	require.NotNil(t, u.Balances[1].Holder)
	assert.Equal(t, buyer.String(), *u.Balances[1].Holder)
}

func TestPlan_ExternalAccountHasNoHolder(t *testing.T) {
	batch := ledger.NewBatch("dep-1", 2, 0)
	batch.Add(ledger.NativeAccountKey(buyer), ledger.ExternalAccountKey(ledger.NativeMint), 50, ledger.JournalTypeDeposit)
	u, err := projection.Plan(core.CoreOutput{
		Envelope: envelope(t, 2, &event.Deposit{RequestID: "dep-1", Account: buyer, Mint: ledger.NativeMint, Amount: 50}),
		Batch:    batch,
		Result:   &core.Result{Sequence: 2},
	})
	require.NoError(t, err)
	require.Len(t, u.Balances, 2)
	assert.NotNil(t, u.Balances[0].Holder)
	assert.Nil(t, u.Balances[1].Holder)
}

func TestPlan_SaleAndClose(t *testing.T) {
	sale, err := projection.Plan(core.CoreOutput{
		Envelope: envelope(t, 7, &event.RecordSale{SaleID: "sale-1", Listing: listing, Quantity: 2}),
		Result:   &core.Result{Sequence: 7, Listing: cfg(2)},
	})
	require.NoError(t, err)
	require.NotNil(t, sale.Listing)
	assert.Equal(t, "2", sale.Listing.ItemsSold)
	assert.Nil(t, sale.Listing.Seller)

	closed, err := projection.Plan(core.CoreOutput{
		Envelope: envelope(t, 8, &event.CloseListing{RequestID: "close-1", Listing: listing}),
		Result:   &core.Result{Sequence: 8, ListingClosed: true},
	})
	require.NoError(t, err)
	require.NotNil(t, closed.Listing)
	assert.True(t, closed.Listing.Closed)
	assert.Empty(t, closed.Listing.TokenSize)
}

func TestPlan_RejectsCorruptPayload(t *testing.T) {
	out := createOutput(t, 5)
	out.Envelope.Payload = []byte("{")
	_, err := projection.Plan(out)
	assert.Error(t, err)
}

// ============================================================================
// Integration: Postgres
// ============================================================================

func TestProjectionWorker_AppliesOutputs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	in := make(chan core.CoreOutput, 4)
	in <- createOutput(t, 1)
	in <- orderOutput(t, 2)
	in <- orderOutput(t, 2) // replay below the watermark is skipped
	close(in)

	w := projection.NewProjectionWorker(db, in, nil, zerolog.Nop())
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, int64(2), w.LastSequence())

	var seller string
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT seller FROM projections.listings WHERE listing = $1`, listing.String()).Scan(&seller))
	assert.Equal(t, key(7).String(), seller)

	var balance string
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT balance::TEXT FROM projections.balances WHERE account = $1`,
		ledger.NativeAccountKey(buyer).AccountPath()).Scan(&balance))
	assert.Equal(t, "-368", balance)

	var orders int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projections.orders`).Scan(&orders))
	assert.Equal(t, 1, orders)
}
