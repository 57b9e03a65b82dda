package core

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/event"
	"GDALedger/internal/intake"
	"GDALedger/internal/ledger"
	"GDALedger/internal/marketplace"
	"GDALedger/internal/state"
	"errors"
	"fmt"
	"strconv"
)

// --- Houses and accounts ---

func (e *Engine) handleRegisterHouse(cmd *command, evt *event.RegisterHouse) (*Result, error) {
	addr, err := e.book.House(evt.Creator, evt.TreasuryMint)
	if err != nil {
		return nil, err
	}
	if _, err := cmd.txn.GetHouse(addr.Address); err == nil {
		return nil, fmt.Errorf("%w: house %s", auction.ErrAccountExists, addr.Address)
	} else if !errors.Is(err, state.ErrAccountNotFound) {
		return nil, err
	}
	fee, err := e.book.HouseFeeAccount(addr.Address)
	if err != nil {
		return nil, err
	}

	house := &auction.House{
		Address:         addr.Address,
		Creator:         evt.Creator,
		Authority:       evt.Authority,
		TreasuryMint:    evt.TreasuryMint,
		FeeAccount:      fee.Address,
		Bump:            addr.Bump,
		FeePayerBump:    fee.Bump,
		RequiresSignOff: evt.RequiresSignOff,
	}
	if err := cmd.txn.PutHouse(house); err != nil {
		return nil, err
	}
	return &Result{House: house}, nil
}

func (e *Engine) handleRegisterAuctioneer(cmd *command, evt *event.RegisterAuctioneer) (*Result, error) {
	house, err := cmd.txn.GetHouse(evt.House)
	if err != nil {
		return nil, err
	}
	if err := auction.AssertKeysEqual(house.Authority, evt.Authority); err != nil {
		return nil, fmt.Errorf("house authority: %w", err)
	}
	rec, err := e.book.AuctioneerRecord(house.Address, evt.AuctioneerAuthority)
	if err != nil {
		return nil, err
	}
	if err := cmd.txn.PutAuctioneerRecord(&auction.AuctioneerRecord{
		Address:             rec.Address,
		AuctionHouse:        house.Address,
		AuctioneerAuthority: evt.AuctioneerAuthority,
		Bump:                rec.Bump,
	}); err != nil {
		return nil, err
	}
	house.HasAuctioneer = true
	house.AuctioneerAddress = rec.Address
	if err := cmd.txn.PutHouse(house); err != nil {
		return nil, err
	}
	return &Result{House: house}, nil
}

func (e *Engine) handleRegisterAsset(cmd *command, evt *event.RegisterAsset) (*Result, error) {
	if _, err := cmd.txn.GetTokenAccount(evt.TokenAccount); err == nil {
		return nil, fmt.Errorf("%w: token account %s", auction.ErrAccountExists, evt.TokenAccount)
	} else if !errors.Is(err, state.ErrAccountNotFound) {
		return nil, err
	}
	if err := cmd.txn.PutTokenAccount(&state.TokenAccount{
		Address:         evt.TokenAccount,
		Owner:           evt.Owner,
		Mint:            evt.Mint,
		Delegate:        evt.Delegate,
		DelegatedAmount: evt.DelegatedAmount,
	}); err != nil {
		return nil, err
	}
	if evt.Name == "" {
		return &Result{}, nil
	}

	md, err := e.book.Metadata(evt.Mint)
	if err != nil {
		return nil, err
	}
	if _, err := cmd.txn.GetMetadata(md.Address); err == nil {
		return &Result{}, nil
	} else if !errors.Is(err, state.ErrAccountNotFound) {
		return nil, err
	}
	if err := cmd.txn.PutMetadata(&state.Metadata{
		Address:         md.Address,
		Mint:            evt.Mint,
		UpdateAuthority: evt.Owner,
		Name:            evt.Name,
		URI:             evt.URI,
	}); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Engine) handleDeposit(cmd *command, evt *event.Deposit) (*Result, error) {
	if evt.Amount == 0 {
		return nil, fmt.Errorf("%w: zero deposit", auction.ErrInvalidTokenAmount)
	}
	to := ledger.NativeAccountKey(evt.Account)
	if evt.Mint != ledger.NativeMint {
		acct, err := cmd.txn.GetTokenAccount(evt.Account)
		if err != nil {
			return nil, err
		}
		if err := auction.AssertKeysEqual(acct.Mint, evt.Mint); err != nil {
			return nil, fmt.Errorf("deposit mint: %w", err)
		}
		to = ledger.TokenAccountKey(acct.Address, acct.Mint)
	}
	if err := cmd.tracker.Transfer(cmd.batch, to, ledger.ExternalAccountKey(evt.Mint), evt.Amount, ledger.JournalTypeDeposit); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// --- Listings ---

func (e *Engine) loadDelegatedHouse(txn *state.Txn, houseAddr, authority, record ledger.Pubkey) (*auction.House, error) {
	house, err := txn.GetHouse(houseAddr)
	if err != nil {
		return nil, err
	}
	if !house.HasAuctioneer {
		return nil, auction.ErrNoAuctioneerProgramSet
	}
	delegate, err := txn.GetAuctioneerRecord(record)
	if errors.Is(err, state.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %v", auction.ErrInvalidAuctioneer, err)
	}
	if err != nil {
		return nil, err
	}
	if err := auction.AssertValidDelegate(house, authority, delegate); err != nil {
		return nil, err
	}
	return house, nil
}

func (e *Engine) handleCreateListing(cmd *command, evt *event.CreateListing) (*Result, error) {
	house, err := e.loadDelegatedHouse(cmd.txn, evt.House, evt.AuctioneerAuthority, evt.AuctioneerRecord)
	if err != nil {
		return nil, err
	}
	if err := auction.AssertKeysEqual(house.TreasuryMint, evt.TreasuryMint); err != nil {
		return nil, fmt.Errorf("treasury mint: %w", err)
	}

	token, err := cmd.txn.GetTokenAccount(evt.TokenAccount)
	if err != nil {
		return nil, err
	}
	if err := auction.AssertKeysEqual(token.Owner, evt.Wallet); err != nil {
		return nil, fmt.Errorf("token account owner: %w", err)
	}
	held, err := cmd.tracker.GetBalance(ledger.TokenAccountKey(token.Address, token.Mint))
	if err != nil {
		return nil, err
	}
	if evt.TokenSize == 0 || held < evt.TokenSize {
		return nil, fmt.Errorf("%w: listing %d, account holds %d", auction.ErrInvalidTokenAmount, evt.TokenSize, held)
	}

	derived, err := e.book.Listing(evt.Wallet, house.Address, token.Address, house.TreasuryMint, token.Mint, evt.TokenSize)
	if err != nil {
		return nil, err
	}
	if err := auction.AssertDerived(derived, evt.Listing, evt.ListingBump); err != nil {
		return nil, fmt.Errorf("listing: %w", err)
	}
	exists, err := cmd.txn.HasListing(derived.Address)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", auction.ErrListingExists, derived.Address)
	}

	cfg, err := auction.NewListingConfig(auction.ListingParams{
		TokenSize:    evt.TokenSize,
		StartPrice:   evt.StartPrice,
		DecayConst:   evt.DecayConst,
		ScaleFactor:  evt.ScaleFactor,
		EndTimestamp: evt.EndTimestamp,
	}, cmd.now, derived.Bump)
	if err != nil {
		return nil, err
	}
	if err := cmd.txn.PutListing(derived.Address, cfg); err != nil {
		return nil, err
	}

	order, err := e.sellOrder(evt, house, token, derived)
	if err != nil {
		return nil, err
	}
	if err := e.market.OpenSellOrder(cmd.ctx, order); err != nil {
		if e.metrics != nil {
			e.metrics.MarketplaceErrors.Inc()
		}
		return nil, fmt.Errorf("delegate sell order: %w", err)
	}

	if e.metrics != nil {
		e.metrics.ListingsOpened.Inc()
	}
	return &Result{Listing: cfg}, nil
}

// sellOrder builds the marketplace order for a new listing, checking the
// presented trade-state bumps against their canonical values.
func (e *Engine) sellOrder(evt *event.CreateListing, house *auction.House, token *state.TokenAccount, listing ledger.Derived) (marketplace.SellOrder, error) {
	ts, err := e.book.SellerTradeState(evt.Wallet, house.Address, token.Address, house.TreasuryMint, token.Mint,
		auction.AuctioneerBuyerPrice, evt.TokenSize)
	if err != nil {
		return marketplace.SellOrder{}, err
	}
	free, err := e.book.SellerTradeState(evt.Wallet, house.Address, token.Address, house.TreasuryMint, token.Mint,
		0, evt.TokenSize)
	if err != nil {
		return marketplace.SellOrder{}, err
	}
	signer, err := e.book.ProgramAsSigner()
	if err != nil {
		return marketplace.SellOrder{}, err
	}
	for _, b := range []struct {
		what      string
		presented uint8
		canonical uint8
	}{
		{"trade state", evt.TradeStateBump, ts.Bump},
		{"free trade state", evt.FreeTradeStateBump, free.Bump},
		{"program as signer", evt.ProgramAsSignerBump, signer.Bump},
	} {
		if b.presented != b.canonical {
			return marketplace.SellOrder{}, fmt.Errorf("%s: %w: got %d, want %d",
				b.what, auction.ErrBumpSeedMismatch, b.presented, b.canonical)
		}
	}

	return marketplace.SellOrder{
		RequestID:           evt.RequestID,
		Listing:             listing.Address,
		House:               house.Address,
		Wallet:              evt.Wallet,
		TokenAccount:        token.Address,
		Mint:                token.Mint,
		TreasuryMint:        house.TreasuryMint,
		AuctioneerAuthority: evt.AuctioneerAuthority,
		Price:               auction.AuctioneerBuyerPrice,
		TokenSize:           evt.TokenSize,
		TradeState:          ts.Address,
		TradeStateBump:      ts.Bump,
		FreeTradeState:      free.Address,
		FreeTradeStateBump:  free.Bump,
		ProgramAsSignerBump: signer.Bump,
	}, nil
}

// loadListing loads a listing and proves it is the canonical listing of
// (seller, house, token account, treasury mint) at its stored size.
func (e *Engine) loadListing(txn *state.Txn, addr, seller, house, tokenAccount, treasuryMint ledger.Pubkey) (*auction.ListingConfig, *state.TokenAccount, error) {
	cfg, err := txn.GetListing(addr)
	if err != nil {
		return nil, nil, err
	}
	token, err := txn.GetTokenAccount(tokenAccount)
	if err != nil {
		return nil, nil, err
	}
	derived, err := e.book.Listing(seller, house, tokenAccount, treasuryMint, token.Mint, cfg.TokenSize)
	if err != nil {
		return nil, nil, err
	}
	// Address first: a different seller derives a different address, and
	// its bump says nothing about the stored one.
	if err := auction.AssertKeysEqual(derived.Address, addr); err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", addr, err)
	}
	if derived.Bump != cfg.Bump {
		return nil, nil, fmt.Errorf("listing %s: %w: stored %d, canonical %d", addr, auction.ErrBumpSeedMismatch, cfg.Bump, derived.Bump)
	}
	return cfg, token, nil
}

func (e *Engine) handlePlaceOrder(cmd *command, evt *event.PlaceOrder) (*Result, error) {
	cfg, _, err := e.loadListing(cmd.txn, evt.Listing, evt.Seller, evt.House, evt.TokenAccount, evt.TreasuryMint)
	if err != nil {
		return nil, err
	}
	if err := auction.AssertActive(cfg, cmd.now); err != nil {
		return nil, err
	}
	if evt.Size == 0 || evt.Size > cfg.Remaining() {
		return nil, fmt.Errorf("%w: order of %d, %d remaining", auction.ErrInvalidTokenAmount, evt.Size, cfg.Remaining())
	}

	price, err := cfg.CalculatePrice(evt.Size, cmd.now)
	if err != nil {
		return nil, err
	}

	out, err := e.intake.PlaceOrder(cmd.txn, cmd.batch, intake.Request{
		Wallet:              evt.Wallet,
		PaymentAccount:      evt.PaymentAccount,
		TransferAuthority:   evt.TransferAuthority,
		TreasuryMint:        evt.TreasuryMint,
		TokenAccount:        evt.TokenAccount,
		Metadata:            evt.Metadata,
		Escrow:              evt.Escrow,
		House:               evt.House,
		FeeAccount:          evt.FeeAccount,
		OrderRecord:         evt.OrderRecord,
		AuctioneerAuthority: evt.AuctioneerAuthority,
		AuctioneerRecord:    evt.AuctioneerRecord,
		Price:               price,
		Size:                evt.Size,
		Public:              evt.Public,
		EscrowBump:          evt.EscrowBump,
		TradeStateBump:      evt.TradeStateBump,
		AuthorityApproved:   evt.AuthorityApproved,
	})
	if err != nil {
		return nil, err
	}

	required := price
	if evt.TreasuryMint == ledger.NativeMint {
		floor, err := e.intake.RentFloor()
		if err != nil {
			return nil, err
		}
		required += floor
	}
	if err := cmd.validator.ValidateCovers(ledger.TokenAccountKey(evt.Escrow, evt.TreasuryMint), required); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		denom := "token"
		if evt.TreasuryMint == ledger.NativeMint {
			denom = "native"
		}
		e.metrics.QuotedPrice.Observe(float64(price))
		if out.TopUp > 0 {
			e.metrics.EscrowTopUps.WithLabelValues(denom).Inc()
			e.metrics.EscrowTopUpAmount.WithLabelValues(denom).Add(float64(out.TopUp))
		}
		if out.OrderRecordCreated {
			e.metrics.OrderRecordsOpened.WithLabelValues(strconv.FormatBool(evt.Public)).Inc()
		}
	}
	return &Result{Listing: cfg, Price: price, Order: out}, nil
}

func (e *Engine) handleRecordSale(cmd *command, evt *event.RecordSale) (*Result, error) {
	if _, err := e.loadDelegatedHouse(cmd.txn, evt.House, evt.AuctioneerAuthority, evt.AuctioneerRecord); err != nil {
		return nil, err
	}
	cfg, token, err := e.loadListing(cmd.txn, evt.Listing, evt.Seller, evt.House, evt.TokenAccount, evt.TreasuryMint)
	if err != nil {
		return nil, err
	}

	// A sale settles exactly one open buyer order of the same size.
	order, err := e.book.BuyerTradeState(evt.Buyer, evt.House, evt.TokenAccount, evt.TreasuryMint, token.Mint, evt.Quantity, evt.Public)
	if err != nil {
		return nil, err
	}
	ok, err := cmd.txn.HasOrderRecord(order.Address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s for %d units", auction.ErrOrderNotFound, order.Address, evt.Quantity)
	}

	if err := cfg.RecordSale(evt.Quantity); err != nil {
		return nil, err
	}
	if err := cmd.txn.PutListing(evt.Listing, cfg); err != nil {
		return nil, err
	}
	cmd.txn.DeleteOrderRecord(order.Address)
	if e.metrics != nil {
		e.metrics.ItemsSold.Add(float64(evt.Quantity))
	}
	return &Result{Listing: cfg}, nil
}

func (e *Engine) handleCloseListing(cmd *command, evt *event.CloseListing) (*Result, error) {
	cfg, _, err := e.loadListing(cmd.txn, evt.Listing, evt.Wallet, evt.House, evt.TokenAccount, evt.TreasuryMint)
	if err != nil {
		return nil, err
	}
	if err := auction.AssertOver(cfg, cmd.now); err != nil {
		return nil, err
	}
	cmd.txn.DeleteListing(evt.Listing)
	if e.metrics != nil {
		e.metrics.ListingsClosed.Inc()
	}
	return &Result{Listing: cfg, ListingClosed: true}, nil
}
