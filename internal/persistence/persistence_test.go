package persistence_test

import (
	"GDALedger/internal/core"
	"GDALedger/internal/event"
	"GDALedger/internal/ledger"
	"GDALedger/internal/persistence"
	"GDALedger/internal/testutil"
	"GDALedger/migrations"
	"context"
	"crypto/sha256"
	"fmt"
	"testing"
	"testing/fstest"
	"time"

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

func output(seq int64, typ event.EventType, idem string, listing *ledger.Pubkey) core.CoreOutput {
	batch := ledger.NewBatch(idem, seq, 1_700_000_000+seq)
	batch.Add(ledger.NativeAccountKey(key(1)), ledger.ExternalAccountKey(ledger.NativeMint), 5_000, ledger.JournalTypeDeposit)
	return core.CoreOutput{
		Envelope: &event.EventEnvelope{
			Sequence:       seq,
			IdempotencyKey: idem,
			EventType:      typ,
			Listing:        listing,
			Timestamp:      1_700_000_000 + seq,
			Payload:        []byte(`{}`),
			StateHash:      sha256.Sum256([]byte(fmt.Sprint("state", seq))),
			PrevHash:       sha256.Sum256([]byte(fmt.Sprint("state", seq-1))),
		},
		Batch: batch,
	}
}

func TestRows_ConvertsEnvelopeAndJournals(t *testing.T) {
	listing := key(9)
	out := output(7, event.EventTypePlaceOrder, "order-7", &listing)

	row, journals := persistence.Rows(out)
	assert.Equal(t, int64(7), row.Sequence)
	assert.Equal(t, "PlaceOrder", row.EventType)
	assert.Equal(t, "order-7", row.IdempotencyKey)
	require.NotNil(t, row.Listing)
	assert.Equal(t, listing.String(), *row.Listing)
	assert.Equal(t, out.Envelope.StateHash[:], row.StateHash)
	assert.Equal(t, time.Unix(1_700_000_007, 0).UTC(), row.Timestamp)

	require.Len(t, journals, 1)
	j := journals[0]
	assert.Equal(t, "5000", j.Amount)
	assert.Equal(t, "deposit", j.JournalType)
	assert.Equal(t, int64(7), j.Sequence)
	assert.Equal(t, ledger.NativeAccountKey(key(1)).AccountPath(), j.DebitAccount)
	assert.Equal(t, ledger.ExternalAccountKey(ledger.NativeMint).AccountPath(), j.CreditAccount)
	assert.Equal(t, ledger.NativeMint.String(), j.Denomination)
}

func TestRows_GlobalCommandWithoutBatch(t *testing.T) {
	out := output(1, event.EventTypeRegisterHouse, "house-1", nil)
	out.Batch = nil

	row, journals := persistence.Rows(out)
	assert.Nil(t, row.Listing)
	assert.Empty(t, journals)
}

func TestMigrator_PendingInVersionOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_projections.up.sql":   {Data: []byte("SELECT 2")},
		"000001_event_log.up.sql":     {Data: []byte("SELECT 1")},
		"000001_event_log.down.sql":   {Data: []byte("SELECT 0")},
		"000003_extra.up.sql":         {Data: []byte("SELECT 3")},
		"notes.txt":                   {Data: []byte("ignored")},
		"000002_projections.down.sql": {Data: []byte("SELECT 0")},
	}
	m := persistence.NewMigrator(nil, fsys, zerolog.Nop())

	all, err := m.Pending(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_event_log.up.sql", "000002_projections.up.sql", "000003_extra.up.sql"}, all)

	rest, err := m.Pending(map[string]bool{"000001": true, "000002": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"000003_extra.up.sql"}, rest)
}

func TestMigrator_EmbeddedMigrationsArePaired(t *testing.T) {
	m := persistence.NewMigrator(nil, migrations.FS, zerolog.Nop())
	ups, err := m.Pending(nil)
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	for _, up := range ups {
		down := up[:len(up)-len(".up.sql")] + ".down.sql"
		_, err := migrations.FS.Open(down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestPersistenceWorker_CancelIsCleanStop(t *testing.T) {
	in := make(chan core.CoreOutput)
	w := persistence.NewPersistenceWorker(nil, in, 10, time.Hour, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}

// ============================================================================
// Integration: Postgres
// ============================================================================

func TestPersistenceWorker_WritesAndReadsBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	in := make(chan core.CoreOutput, 8)
	listing := key(9)
	outs := []core.CoreOutput{
		output(1, event.EventTypeRegisterHouse, "house-1", nil),
		output(2, event.EventTypeDeposit, "dep-2", nil),
		output(3, event.EventTypePlaceOrder, "order-3", &listing),
	}
	for _, o := range outs {
		in <- o
	}
	close(in)

	w := persistence.NewPersistenceWorker(db, in, 2, 50*time.Millisecond, nil, zerolog.Nop())
	require.NoError(t, w.Run(ctx))

	reader := persistence.NewEventLogReader(db)
	latest, err := reader.GetLatestSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest)

	rows, err := reader.LoadEventsFrom(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Deposit", rows[0].EventType)
	require.NotNil(t, rows[1].Listing)
	assert.Equal(t, listing.String(), *rows[1].Listing)

	keys, err := reader.RecentIdempotencyKeys(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Deposit:dep-2", "PlaceOrder:order-3"}, keys)

	require.NoError(t, reader.CheckHead(ctx, 3, outs[2].Envelope.StateHash))
	require.NoError(t, reader.CheckHead(ctx, 4, [32]byte{}))
	assert.ErrorIs(t, reader.CheckHead(ctx, 3, [32]byte{1}), persistence.ErrChainMismatch)
	assert.ErrorIs(t, reader.CheckHead(ctx, 2, outs[1].Envelope.StateHash), persistence.ErrChainMismatch)

	checker := persistence.NewPostgresIdempotencyChecker(db)
	dup, err := checker.IsDuplicate("PlaceOrder", "order-3")
	require.NoError(t, err)
	assert.True(t, dup)
	dup, err = checker.IsDuplicate("PlaceOrder", "order-4")
	require.NoError(t, err)
	assert.False(t, dup)
}
