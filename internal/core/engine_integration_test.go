package core_test

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/core"
	"GDALedger/internal/event"
	"GDALedger/internal/ledger"
	"GDALedger/internal/marketplace"
	"GDALedger/internal/state"
	"GDALedger/internal/store"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

const start int64 = 1_700_000_000

func key(b byte) ledger.Pubkey {
	var p ledger.Pubkey
	for i := range p {
		p[i] = b
	}
	return p
}

var (
	creator    = key(1)
	authority  = key(2)
	buyer      = key(3)
	auctioneer = key(4)
	assetMint  = key(5)
	assetAcct  = key(6)
	seller     = key(7)
)

// --- Test helpers ---

type harness struct {
	t       *testing.T
	kv      store.KV
	engine  *core.Engine
	clock   *core.ManualClock
	market  *marketplace.Recorder
	persist chan core.CoreOutput
	book    ledger.AddressBook
	house   ledger.Pubkey
	listing ledger.Pubkey
	n       int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	kv, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	h := &harness{
		t:      t,
		kv:     kv,
		clock:  core.NewManualClock(start),
		market: marketplace.NewRecorder(),
		book:   ledger.DefaultAddressBook(),
	}
	h.open()
	return h
}

// open (re)creates the engine over the harness store.
func (h *harness) open() {
	h.t.Helper()
	cache, err := state.NewListingCache(64)
	if err != nil {
		h.t.Fatalf("listing cache: %v", err)
	}
	h.persist = make(chan core.CoreOutput, 1024)
	h.engine, err = core.NewEngine(core.Config{
		KV:          h.kv,
		Cache:       cache,
		Book:        h.book,
		Rent:        ledger.DefaultRent,
		Marketplace: h.market,
		Clock:       h.clock,
		Logger:      zerolog.Nop(),
		PersistChan: h.persist,
	})
	if err != nil {
		h.t.Fatalf("NewEngine: %v", err)
	}
}

func (h *harness) id(prefix string) string {
	h.n++
	return fmt.Sprintf("%s-%d", prefix, h.n)
}

func (h *harness) exec(evt event.Event) (*core.Result, error) {
	return h.engine.Execute(context.Background(), evt)
}

func (h *harness) mustExec(evt event.Event) *core.Result {
	h.t.Helper()
	res, err := h.exec(evt)
	if err != nil {
		h.t.Fatalf("%s failed: %v", evt.EventType(), err)
	}
	return res
}

func (h *harness) derive(d ledger.Derived, err error) ledger.Derived {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("derive: %v", err)
	}
	return d
}

func (h *harness) balance(k ledger.AccountKey) uint64 {
	h.t.Helper()
	v, err := state.NewReadTxn(h.kv, nil).GetBalance(k)
	if err != nil {
		h.t.Fatalf("balance: %v", err)
	}
	return v
}

// setup registers a native house with a delegate, a seller holding 10
// units of an asset, funded buyer and authority, and one listing of all
// 10 units.
func (h *harness) setup() {
	h.t.Helper()
	res := h.mustExec(&event.RegisterHouse{RequestID: h.id("house"), Creator: creator, Authority: authority, TreasuryMint: ledger.NativeMint})
	h.house = res.House.Address
	h.mustExec(&event.RegisterAuctioneer{RequestID: h.id("auct"), House: h.house, Authority: authority, AuctioneerAuthority: auctioneer})
	h.mustExec(&event.RegisterAsset{RequestID: h.id("asset"), TokenAccount: assetAcct, Owner: seller, Mint: assetMint, Name: "ticket"})
	h.mustExec(&event.Deposit{RequestID: h.id("dep"), Account: assetAcct, Mint: assetMint, Amount: 10})
	h.mustExec(&event.Deposit{RequestID: h.id("dep"), Account: buyer, Mint: ledger.NativeMint, Amount: 100_000_000})
	h.mustExec(&event.Deposit{RequestID: h.id("dep"), Account: authority, Mint: ledger.NativeMint, Amount: 10_000_000})
	res = h.mustExec(h.createListing(10))
	if res.Listing == nil {
		h.t.Fatal("CreateListing returned no listing")
	}
}

func (h *harness) createListing(size uint64) *event.CreateListing {
	h.t.Helper()
	listing := h.derive(h.book.Listing(seller, h.house, assetAcct, ledger.NativeMint, assetMint, size))
	ts := h.derive(h.book.SellerTradeState(seller, h.house, assetAcct, ledger.NativeMint, assetMint, math.MaxUint64, size))
	free := h.derive(h.book.SellerTradeState(seller, h.house, assetAcct, ledger.NativeMint, assetMint, 0, size))
	signer := h.derive(h.book.ProgramAsSigner())
	rec := h.derive(h.book.AuctioneerRecord(h.house, auctioneer))
	h.listing = listing.Address
	return &event.CreateListing{
		RequestID:           h.id("list"),
		Wallet:              seller,
		TokenAccount:        assetAcct,
		House:               h.house,
		TreasuryMint:        ledger.NativeMint,
		AuctioneerAuthority: auctioneer,
		AuctioneerRecord:    rec.Address,
		Listing:             listing.Address,
		TokenSize:           size,
		StartPrice:          1_000,
		DecayConst:          1,
		ScaleFactor:         2,
		EndTimestamp:        start + 3600,
		ListingBump:         listing.Bump,
		TradeStateBump:      ts.Bump,
		FreeTradeStateBump:  free.Bump,
		ProgramAsSignerBump: signer.Bump,
	}
}

func (h *harness) placeOrder(size uint64) *event.PlaceOrder {
	h.t.Helper()
	escrow := h.derive(h.book.Escrow(h.house, buyer))
	ts := h.derive(h.book.BuyerTradeState(buyer, h.house, assetAcct, ledger.NativeMint, assetMint, size, true))
	md := h.derive(h.book.Metadata(assetMint))
	rec := h.derive(h.book.AuctioneerRecord(h.house, auctioneer))
	fee := h.derive(h.book.HouseFeeAccount(h.house))
	return &event.PlaceOrder{
		RequestID:           h.id("order"),
		Listing:             h.listing,
		Seller:              seller,
		Wallet:              buyer,
		PaymentAccount:      buyer,
		TransferAuthority:   buyer,
		TreasuryMint:        ledger.NativeMint,
		TokenAccount:        assetAcct,
		Metadata:            md.Address,
		Escrow:              escrow.Address,
		House:               h.house,
		FeeAccount:          fee.Address,
		OrderRecord:         ts.Address,
		AuctioneerAuthority: auctioneer,
		AuctioneerRecord:    rec.Address,
		Size:                size,
		Public:              true,
		EscrowBump:          escrow.Bump,
		TradeStateBump:      ts.Bump,
	}
}

// sale reports a marketplace sale matching a public buyer order of size.
func (h *harness) sale(id string, size uint64) *event.RecordSale {
	h.t.Helper()
	rec := h.derive(h.book.AuctioneerRecord(h.house, auctioneer))
	return &event.RecordSale{
		SaleID:              id,
		Listing:             h.listing,
		Seller:              seller,
		Buyer:               buyer,
		House:               h.house,
		TokenAccount:        assetAcct,
		TreasuryMint:        ledger.NativeMint,
		AuctioneerAuthority: auctioneer,
		AuctioneerRecord:    rec.Address,
		Quantity:            size,
		Public:              true,
	}
}

func drainOutputs(ch chan core.CoreOutput) []core.CoreOutput {
	var outputs []core.CoreOutput
	for {
		select {
		case o := <-ch:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

// ============================================================================
// Test: Listing creation
// ============================================================================

func TestCreateListing_DelegatesSellOrder(t *testing.T) {
	h := newHarness(t)
	h.setup()

	orders := h.market.Orders()
	if len(orders) != 1 {
		t.Fatalf("expected 1 sell order, got %d", len(orders))
	}
	o := orders[0]
	if o.Price != math.MaxUint64 {
		t.Errorf("sell order price = %d, want MaxUint64", o.Price)
	}
	if o.TokenSize != 10 || o.Listing != h.listing || o.Mint != assetMint {
		t.Errorf("unexpected sell order: %+v", o)
	}

	price, cfg, err := h.engine.Quote(h.listing, 1)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if cfg.FirstInitTimestamp != start || cfg.ItemsSold != 0 {
		t.Errorf("unexpected listing: %+v", cfg)
	}
	if price != 1_000 {
		t.Errorf("price at open = %d, want 1000", price)
	}
}

func TestCreateListing_Rejections(t *testing.T) {
	h := newHarness(t)
	h.setup()

	again := h.createListing(10)
	if _, err := h.exec(again); !errors.Is(err, auction.ErrListingExists) {
		t.Errorf("expected ErrListingExists, got %v", err)
	}

	tooMany := h.createListing(11)
	if _, err := h.exec(tooMany); !errors.Is(err, auction.ErrInvalidTokenAmount) {
		t.Errorf("expected ErrInvalidTokenAmount, got %v", err)
	}

	badBump := h.createListing(5)
	badBump.TradeStateBump--
	if _, err := h.exec(badBump); !errors.Is(err, auction.ErrBumpSeedMismatch) {
		t.Errorf("expected ErrBumpSeedMismatch, got %v", err)
	}

	notOwner := h.createListing(5)
	notOwner.Wallet = buyer
	if _, err := h.exec(notOwner); !errors.Is(err, auction.ErrPublicKeyMismatch) {
		t.Errorf("expected ErrPublicKeyMismatch, got %v", err)
	}

	wrongDelegate := h.createListing(5)
	wrongDelegate.AuctioneerAuthority = buyer
	if _, err := h.exec(wrongDelegate); !errors.Is(err, auction.ErrInvalidAuctioneer) {
		t.Errorf("expected ErrInvalidAuctioneer, got %v", err)
	}

	if n := len(h.market.Orders()); n != 1 {
		t.Errorf("rejected listings reached the marketplace: %d orders", n)
	}
}

func TestCreateListing_MarketplaceFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.setup()
	seq := h.engine.GetSequence()
	drainOutputs(h.persist)

	h.market.Err = errors.New("marketplace unavailable")
	evt := h.createListing(5)
	if _, err := h.exec(evt); err == nil {
		t.Fatal("expected marketplace failure")
	}

	if _, _, err := h.engine.Quote(evt.Listing, 1); !errors.Is(err, auction.ErrListingNotFound) {
		t.Errorf("listing survived a failed command: %v", err)
	}
	if h.engine.GetSequence() != seq {
		t.Errorf("sequence advanced on failure: %d -> %d", seq, h.engine.GetSequence())
	}
	if outputs := drainOutputs(h.persist); len(outputs) != 0 {
		t.Errorf("failed command emitted %d outputs", len(outputs))
	}

	// The same request succeeds once the marketplace is back.
	h.market.Err = nil
	if _, err := h.exec(evt); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

// ============================================================================
// Test: Order placement
// ============================================================================

func TestPlaceOrder_PricesAndEscrows(t *testing.T) {
	h := newHarness(t)
	h.setup()
	drainOutputs(h.persist)
	h.clock.Advance(1)

	evt := h.placeOrder(1)
	res := h.mustExec(evt)

	if res.Price != 368 {
		t.Errorf("price one second in = %d, want 368", res.Price)
	}
	if res.Order.TopUp != 368+890_880 {
		t.Errorf("top-up = %d, want %d", res.Order.TopUp, 368+890_880)
	}
	if !res.Order.OrderRecordCreated || res.Order.FeePayer != authority {
		t.Errorf("unexpected outcome: %+v", res.Order)
	}
	if got := h.balance(ledger.NativeAccountKey(evt.Escrow)); got != 368+890_880 {
		t.Errorf("escrow balance = %d", got)
	}

	outputs := drainOutputs(h.persist)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if len(outputs[0].Batch.Journals) != 2 {
		t.Errorf("expected 2 journals, got %d", len(outputs[0].Batch.Journals))
	}
	if outputs[0].Envelope.Timestamp != start+1 {
		t.Errorf("envelope timestamp = %d, want %d", outputs[0].Envelope.Timestamp, start+1)
	}

	// Placing an order does not sell anything.
	_, cfg, err := h.engine.Quote(h.listing, 1)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if cfg.ItemsSold != 0 {
		t.Errorf("items sold = %d after order intake", cfg.ItemsSold)
	}
}

func TestPlaceOrder_DuplicateIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.setup()
	evt := h.placeOrder(2)
	h.mustExec(evt)
	seq := h.engine.GetSequence()
	drainOutputs(h.persist)

	res := h.mustExec(evt)
	if !res.Duplicate {
		t.Fatal("expected duplicate")
	}
	if h.engine.GetSequence() != seq {
		t.Errorf("duplicate advanced the sequence")
	}
	if outputs := drainOutputs(h.persist); len(outputs) != 0 {
		t.Errorf("duplicate emitted %d outputs", len(outputs))
	}
}

func TestPlaceOrder_FreshRequestSameOrderIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.setup()
	h.mustExec(h.placeOrder(2))
	before := h.balance(ledger.NativeAccountKey(buyer))

	// A new request id gets past command dedup; the order record makes the
	// intake itself a no-op.
	again := h.placeOrder(2)
	res := h.mustExec(again)
	if res.Duplicate {
		t.Fatal("fresh request id reported as a duplicate command")
	}
	if res.Order == nil {
		t.Fatal("no order outcome")
	}
	if res.Order.TopUp != 0 {
		t.Errorf("top-up = %d, want 0", res.Order.TopUp)
	}
	if res.Order.OrderRecordCreated {
		t.Error("order record created twice")
	}
	if got := h.balance(ledger.NativeAccountKey(buyer)); got != before {
		t.Errorf("buyer balance = %d, want %d", got, before)
	}
}

func TestPlaceOrder_ResumesAfterRestart(t *testing.T) {
	h := newHarness(t)
	h.setup()
	evt := h.placeOrder(1)
	h.mustExec(evt)
	seq := h.engine.GetSequence()
	tip := h.engine.GetStateHash()

	h.open()
	if h.engine.GetSequence() != seq {
		t.Errorf("sequence after restart = %d, want %d", h.engine.GetSequence(), seq)
	}
	if h.engine.GetStateHash() != tip {
		t.Errorf("hash chain did not resume")
	}

	res := h.mustExec(evt)
	if !res.Duplicate {
		t.Error("command replayed after restart was not deduplicated")
	}
}

func TestPlaceOrder_LifecycleWindow(t *testing.T) {
	h := newHarness(t)
	h.setup()

	h.clock.Set(start + 3601)
	if _, err := h.exec(h.placeOrder(1)); !errors.Is(err, auction.ErrAuctionEnded) {
		t.Errorf("expected ErrAuctionEnded, got %v", err)
	}

	h.clock.Set(start - 1)
	if _, err := h.exec(h.placeOrder(1)); !errors.Is(err, auction.ErrAuctionNotStarted) {
		t.Errorf("expected ErrAuctionNotStarted, got %v", err)
	}
}

func TestPlaceOrder_Rejections(t *testing.T) {
	h := newHarness(t)
	h.setup()

	wrongSeller := h.placeOrder(1)
	wrongSeller.Seller = buyer
	if _, err := h.exec(wrongSeller); !errors.Is(err, auction.ErrPublicKeyMismatch) {
		t.Errorf("expected ErrPublicKeyMismatch, got %v", err)
	}

	tooLarge := h.placeOrder(11)
	if _, err := h.exec(tooLarge); !errors.Is(err, auction.ErrInvalidTokenAmount) {
		t.Errorf("expected ErrInvalidTokenAmount, got %v", err)
	}

	unknown := h.placeOrder(1)
	unknown.Listing = key(99)
	if _, err := h.exec(unknown); !errors.Is(err, auction.ErrListingNotFound) {
		t.Errorf("expected ErrListingNotFound, got %v", err)
	}
}

func TestPlaceOrder_InsufficientFundsLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	h.setup()
	seq := h.engine.GetSequence()
	tip := h.engine.GetStateHash()
	drainOutputs(h.persist)

	// A buyer with no funds cannot cover 1000 * (2^10 - 1).
	poor := key(30)
	evt := h.placeOrder(10)
	evt.Wallet, evt.PaymentAccount, evt.TransferAuthority = poor, poor, poor
	escrow := h.derive(h.book.Escrow(h.house, poor))
	ts := h.derive(h.book.BuyerTradeState(poor, h.house, assetAcct, ledger.NativeMint, assetMint, 10, true))
	evt.Escrow, evt.EscrowBump = escrow.Address, escrow.Bump
	evt.OrderRecord, evt.TradeStateBump = ts.Address, ts.Bump

	if _, err := h.exec(evt); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if h.engine.GetSequence() != seq || h.engine.GetStateHash() != tip {
		t.Error("failed command moved the chain")
	}
	if outputs := drainOutputs(h.persist); len(outputs) != 0 {
		t.Errorf("failed command emitted %d outputs", len(outputs))
	}
	ok, err := state.NewReadTxn(h.kv, nil).HasEscrow(escrow.Address)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("escrow created by a failed command")
	}
}

func TestMissingIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	_, err := h.exec(&event.Deposit{Account: buyer, Mint: ledger.NativeMint, Amount: 1})
	if !errors.Is(err, core.ErrMissingIdempotencyKey) {
		t.Errorf("expected ErrMissingIdempotencyKey, got %v", err)
	}
}

// ============================================================================
// Test: Sales and closing
// ============================================================================

func TestRecordSale_RaisesPrice(t *testing.T) {
	h := newHarness(t)
	h.setup()

	h.mustExec(h.placeOrder(2))
	res := h.mustExec(h.sale("sale-1", 2))
	if res.Listing.ItemsSold != 2 {
		t.Fatalf("items sold = %d, want 2", res.Listing.ItemsSold)
	}

	price, _, err := h.engine.Quote(h.listing, 1)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if price != 4_000 {
		t.Errorf("price after 2 sold = %d, want 4000", price)
	}

	h.mustExec(h.placeOrder(8))
	h.mustExec(h.sale("sale-2", 8))
	if _, _, err := h.engine.Quote(h.listing, 1); !errors.Is(err, auction.ErrAuctionEnded) {
		t.Errorf("sold-out listing still quotes: %v", err)
	}
}

func TestRecordSale_SettlesOrderRecord(t *testing.T) {
	h := newHarness(t)
	h.setup()
	h.mustExec(h.placeOrder(3))
	ts := h.derive(h.book.BuyerTradeState(buyer, h.house, assetAcct, ledger.NativeMint, assetMint, 3, true))

	h.mustExec(h.sale("sale-1", 3))
	ok, err := state.NewReadTxn(h.kv, nil).HasOrderRecord(ts.Address)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("order record survived its sale")
	}

	// The same order cannot be settled twice under a new sale id.
	if _, err := h.exec(h.sale("sale-2", 3)); !errors.Is(err, auction.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestRecordSale_Rejections(t *testing.T) {
	h := newHarness(t)
	h.setup()
	h.mustExec(h.placeOrder(2))
	seq := h.engine.GetSequence()
	drainOutputs(h.persist)

	forged := &event.RecordSale{SaleID: "forged", Listing: h.listing, Buyer: key(99), Quantity: 10}
	if _, err := h.exec(forged); err == nil {
		t.Error("sale without house or auctioneer accepted")
	}

	noOrder := h.sale("no-order", 10)
	noOrder.Buyer = key(99)
	if _, err := h.exec(noOrder); !errors.Is(err, auction.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}

	wrongSize := h.sale("wrong-size", 3)
	if _, err := h.exec(wrongSize); !errors.Is(err, auction.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound for a size with no order, got %v", err)
	}

	impostor := h.sale("impostor", 2)
	impostor.AuctioneerAuthority = key(98)
	if _, err := h.exec(impostor); !errors.Is(err, auction.ErrInvalidAuctioneer) {
		t.Errorf("expected ErrInvalidAuctioneer, got %v", err)
	}

	wrongSeller := h.sale("wrong-seller", 2)
	wrongSeller.Seller = buyer
	if _, err := h.exec(wrongSeller); !errors.Is(err, auction.ErrPublicKeyMismatch) {
		t.Errorf("expected ErrPublicKeyMismatch, got %v", err)
	}

	if h.engine.GetSequence() != seq {
		t.Error("rejected sales moved the chain")
	}
	if outputs := drainOutputs(h.persist); len(outputs) != 0 {
		t.Errorf("rejected sales emitted %d outputs", len(outputs))
	}
	_, cfg, err := h.engine.Quote(h.listing, 1)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if cfg.ItemsSold != 0 {
		t.Errorf("items sold = %d after rejected sales", cfg.ItemsSold)
	}
}

func TestCloseListing(t *testing.T) {
	h := newHarness(t)
	h.setup()
	closeEvt := func(wallet ledger.Pubkey) *event.CloseListing {
		return &event.CloseListing{
			RequestID:    h.id("close"),
			Listing:      h.listing,
			Wallet:       wallet,
			House:        h.house,
			TokenAccount: assetAcct,
			TreasuryMint: ledger.NativeMint,
		}
	}

	if _, err := h.exec(closeEvt(seller)); !errors.Is(err, auction.ErrAuctionActive) {
		t.Errorf("expected ErrAuctionActive, got %v", err)
	}

	h.clock.Set(start + 3600)
	if _, err := h.exec(closeEvt(buyer)); !errors.Is(err, auction.ErrPublicKeyMismatch) {
		t.Errorf("expected ErrPublicKeyMismatch, got %v", err)
	}

	res := h.mustExec(closeEvt(seller))
	if !res.ListingClosed {
		t.Error("listing not reported closed")
	}
	if _, _, err := h.engine.Quote(h.listing, 1); !errors.Is(err, auction.ErrListingNotFound) {
		t.Errorf("closed listing still quotes: %v", err)
	}
}

// ============================================================================
// Test: Hash chain
// ============================================================================

func TestHashChain_LinksEveryCommand(t *testing.T) {
	h := newHarness(t)
	h.setup()
	h.mustExec(h.placeOrder(1))

	outputs := drainOutputs(h.persist)
	if len(outputs) != 8 {
		t.Fatalf("expected 8 outputs, got %d", len(outputs))
	}

	prev := core.GenesisHash()
	for i, o := range outputs {
		env := o.Envelope
		if env.Sequence != int64(i+1) {
			t.Errorf("output %d: sequence %d", i, env.Sequence)
		}
		if env.PrevHash != prev {
			t.Errorf("output %d: prev hash does not link", i)
		}
		if want := core.ChainHash(prev, env.Sequence, o.StateDelta); env.StateHash != want {
			t.Errorf("output %d: state hash does not recompute", i)
		}
		prev = env.StateHash
	}
	if prev != h.engine.GetStateHash() {
		t.Error("engine tip differs from last envelope")
	}
}

func TestDeposit_Rejections(t *testing.T) {
	h := newHarness(t)
	h.setup()

	if _, err := h.exec(&event.Deposit{RequestID: "d-0", Account: buyer, Mint: ledger.NativeMint}); !errors.Is(err, auction.ErrInvalidTokenAmount) {
		t.Errorf("expected ErrInvalidTokenAmount, got %v", err)
	}
	if _, err := h.exec(&event.Deposit{RequestID: "d-1", Account: assetAcct, Mint: key(77), Amount: 1}); !errors.Is(err, auction.ErrPublicKeyMismatch) {
		t.Errorf("expected ErrPublicKeyMismatch, got %v", err)
	}
	if _, err := h.exec(&event.RegisterAsset{RequestID: "a-1", TokenAccount: assetAcct, Owner: buyer, Mint: assetMint}); !errors.Is(err, auction.ErrAccountExists) {
		t.Errorf("expected ErrAccountExists, got %v", err)
	}
	if _, err := h.exec(&event.RegisterAuctioneer{RequestID: "r-1", House: h.house, Authority: buyer, AuctioneerAuthority: buyer}); !errors.Is(err, auction.ErrPublicKeyMismatch) {
		t.Errorf("expected ErrPublicKeyMismatch, got %v", err)
	}
}
