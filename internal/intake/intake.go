// Package intake turns a priced order into escrowed funds and a durable
// order record.
package intake

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/ledger"
	"GDALedger/internal/state"
	"errors"
	"fmt"
	"math/bits"
)

// Request is one order against a listing, already priced.
type Request struct {
	Wallet              ledger.Pubkey
	PaymentAccount      ledger.Pubkey
	TransferAuthority   ledger.Pubkey
	TreasuryMint        ledger.Pubkey
	TokenAccount        ledger.Pubkey
	Metadata            ledger.Pubkey
	Escrow              ledger.Pubkey
	House               ledger.Pubkey
	FeeAccount          ledger.Pubkey
	OrderRecord         ledger.Pubkey
	AuctioneerAuthority ledger.Pubkey
	AuctioneerRecord    ledger.Pubkey

	Price  uint64
	Size   uint64
	Public bool

	EscrowBump     uint8
	TradeStateBump uint8

	// AuthorityApproved is the house authority's sign-off on this order.
	AuthorityApproved bool
}

// Outcome describes what an accepted order changed.
type Outcome struct {
	FeePayer           ledger.Pubkey
	Mint               ledger.Pubkey
	EscrowCreated      bool
	TopUp              uint64
	OrderRecordCreated bool
	RentPaid           uint64
}

// Orchestrator validates the authority chain, tops up escrow and opens
// order records. It holds no state of its own.
type Orchestrator struct {
	book ledger.AddressBook
	rent ledger.Rent
}

func NewOrchestrator(book ledger.AddressBook, rent ledger.Rent) *Orchestrator {
	return &Orchestrator{book: book, rent: rent}
}

// RentFloor is the balance an account with no data must keep.
func (o *Orchestrator) RentFloor() (uint64, error) {
	return o.rent.MinimumBalance(0)
}

// ChooseFeePayer decides which principal pays allocation rent. A house that
// requires sign-off makes the buyer pay, and only with the authority's
// approval; otherwise the house authority pays.
func ChooseFeePayer(house *auction.House, buyer ledger.Pubkey, authorityApproved bool) (ledger.Pubkey, error) {
	if house.RequiresSignOff {
		if !authorityApproved {
			return ledger.Pubkey{}, auction.ErrNoValidSignerPresent
		}
		return buyer, nil
	}
	return house.Authority, nil
}

// PlaceOrder runs the intake steps against txn, recording every transfer in
// batch. On error the caller must discard txn: balances may already have
// moved inside it.
func (o *Orchestrator) PlaceOrder(txn *state.Txn, batch *ledger.Batch, req Request) (*Outcome, error) {
	house, err := txn.GetHouse(req.House)
	if err != nil {
		return nil, err
	}
	if !house.HasAuctioneer {
		return nil, auction.ErrNoAuctioneerProgramSet
	}

	delegate, err := txn.GetAuctioneerRecord(req.AuctioneerRecord)
	if errors.Is(err, state.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %v", auction.ErrInvalidAuctioneer, err)
	}
	if err != nil {
		return nil, err
	}
	if err := auction.AssertValidDelegate(house, req.AuctioneerAuthority, delegate); err != nil {
		return nil, err
	}

	if err := auction.AssertKeysEqual(house.TreasuryMint, req.TreasuryMint); err != nil {
		return nil, fmt.Errorf("treasury mint: %w", err)
	}
	if err := auction.AssertKeysEqual(house.FeeAccount, req.FeeAccount); err != nil {
		return nil, fmt.Errorf("fee account: %w", err)
	}

	token, err := txn.GetTokenAccount(req.TokenAccount)
	if err != nil {
		return nil, err
	}

	escrowAddr, err := o.book.Escrow(house.Address, req.Wallet)
	if err != nil {
		return nil, err
	}
	tradeState, err := o.book.BuyerTradeState(req.Wallet, house.Address, req.TokenAccount,
		house.TreasuryMint, token.Mint, req.Size, req.Public)
	if err != nil {
		return nil, err
	}
	if err := auction.AssertDerived(escrowAddr, req.Escrow, req.EscrowBump); err != nil {
		return nil, fmt.Errorf("escrow: %w", err)
	}
	if err := auction.AssertDerived(tradeState, req.OrderRecord, req.TradeStateBump); err != nil {
		return nil, fmt.Errorf("order record: %w", err)
	}

	feePayer, err := ChooseFeePayer(house, req.Wallet, req.AuthorityApproved)
	if err != nil {
		return nil, err
	}

	out := &Outcome{FeePayer: feePayer, Mint: token.Mint}
	bt := ledger.NewBalanceTracker(txn)
	payerKey := ledger.NativeAccountKey(feePayer)

	escrow, created, err := o.materializeEscrow(txn, house, req.Wallet, escrowAddr)
	if err != nil {
		return nil, err
	}
	out.EscrowCreated = created
	if created && !house.IsNative() {
		rent, err := o.rent.MinimumBalance(ledger.TokenAccountSize)
		if err != nil {
			return nil, err
		}
		if err := bt.Transfer(batch, ledger.NativeAccountKey(escrow.Address), payerKey, rent, ledger.JournalTypeRent); err != nil {
			return nil, fmt.Errorf("escrow rent: %w", err)
		}
		out.RentPaid += rent
	}

	if house.IsNative() {
		out.TopUp, err = o.topUpNative(bt, batch, escrow, req)
	} else {
		out.TopUp, err = o.topUpToken(txn, bt, batch, escrow, req)
	}
	if err != nil {
		return nil, err
	}

	if err := o.checkMetadata(txn, req.Metadata, token); err != nil {
		return nil, err
	}

	exists, err := txn.HasOrderRecord(tradeState.Address)
	if err != nil {
		return nil, err
	}
	if exists {
		return out, nil
	}

	rent, err := o.rent.MinimumBalance(ledger.TradeStateSize)
	if err != nil {
		return nil, err
	}
	if err := bt.Transfer(batch, ledger.NativeAccountKey(tradeState.Address), payerKey, rent, ledger.JournalTypeRent); err != nil {
		return nil, fmt.Errorf("order record rent: %w", err)
	}
	record := make([]byte, ledger.TradeStateSize)
	for i := range record {
		record[i] = tradeState.Bump
	}
	txn.PutOrderRecord(tradeState.Address, record)
	out.OrderRecordCreated = true
	out.RentPaid += rent
	return out, nil
}

func (o *Orchestrator) materializeEscrow(txn *state.Txn, house *auction.House, wallet ledger.Pubkey, addr ledger.Derived) (*state.EscrowAccount, bool, error) {
	exists, err := txn.HasEscrow(addr.Address)
	if err != nil {
		return nil, false, err
	}
	if exists {
		escrow, err := txn.GetEscrow(addr.Address)
		return escrow, false, err
	}
	escrow := &state.EscrowAccount{
		Address: addr.Address,
		House:   house.Address,
		Wallet:  wallet,
		Mint:    house.TreasuryMint,
		Bump:    addr.Bump,
	}
	if err := txn.PutEscrow(escrow); err != nil {
		return nil, false, err
	}
	return escrow, true, nil
}

// topUpNative brings the escrow to price plus the rent-exempt floor.
func (o *Orchestrator) topUpNative(bt *ledger.BalanceTracker, batch *ledger.Batch, escrow *state.EscrowAccount, req Request) (uint64, error) {
	if err := auction.AssertKeysEqual(req.PaymentAccount, req.Wallet); err != nil {
		return 0, fmt.Errorf("native payment account: %w", err)
	}
	floor, err := o.RentFloor()
	if err != nil {
		return 0, err
	}
	required, carry := bits.Add64(req.Price, floor, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: price %d plus rent floor", auction.ErrNumericalOverflow, req.Price)
	}

	have, err := bt.GetBalance(escrow.BalanceKey())
	if err != nil {
		return 0, err
	}
	if have >= required {
		return 0, nil
	}
	diff := required - have
	if err := bt.Transfer(batch, escrow.BalanceKey(), ledger.NativeAccountKey(req.PaymentAccount), diff, ledger.JournalTypeEscrowTopUp); err != nil {
		return 0, fmt.Errorf("escrow top-up: %w", err)
	}
	return diff, nil
}

// topUpToken brings the escrow's token balance to price, moving funds
// with the transfer authority.
func (o *Orchestrator) topUpToken(txn *state.Txn, bt *ledger.BalanceTracker, batch *ledger.Batch, escrow *state.EscrowAccount, req Request) (uint64, error) {
	have, err := bt.GetBalance(escrow.BalanceKey())
	if err != nil {
		return 0, err
	}
	if have >= req.Price {
		return 0, nil
	}
	diff := req.Price - have

	payment, err := txn.GetTokenAccount(req.PaymentAccount)
	if err != nil {
		return 0, err
	}
	if err := auction.AssertKeysEqual(payment.Mint, escrow.Mint); err != nil {
		return 0, fmt.Errorf("payment account mint: %w", err)
	}
	if !payment.CanTransfer(req.TransferAuthority, diff) {
		return 0, fmt.Errorf("%w: %s may not move %d from %s",
			auction.ErrPublicKeyMismatch, req.TransferAuthority, diff, payment.Address)
	}

	from := ledger.TokenAccountKey(payment.Address, payment.Mint)
	if err := bt.Transfer(batch, escrow.BalanceKey(), from, diff, ledger.JournalTypeTokenTransfer); err != nil {
		return 0, fmt.Errorf("escrow top-up: %w", err)
	}
	if !req.TransferAuthority.Equal(payment.Owner) {
		payment.DelegatedAmount -= diff
		if err := txn.PutTokenAccount(payment); err != nil {
			return 0, err
		}
	}
	return diff, nil
}

// checkMetadata requires the presented metadata to sit at the mint's
// canonical metadata address and to describe that mint.
func (o *Orchestrator) checkMetadata(txn *state.Txn, presented ledger.Pubkey, token *state.TokenAccount) error {
	canonical, err := o.book.Metadata(token.Mint)
	if err != nil {
		return err
	}
	if !canonical.Address.Equal(presented) {
		return fmt.Errorf("%w: %s is not the metadata of mint %s", auction.ErrMetadataMismatch, presented, token.Mint)
	}
	md, err := txn.GetMetadata(presented)
	if errors.Is(err, state.ErrAccountNotFound) {
		return fmt.Errorf("%w: %v", auction.ErrMetadataMismatch, err)
	}
	if err != nil {
		return err
	}
	if !md.Mint.Equal(token.Mint) {
		return fmt.Errorf("%w: metadata describes %s, token account holds %s", auction.ErrMetadataMismatch, md.Mint, token.Mint)
	}
	return nil
}
