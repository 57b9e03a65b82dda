// Package marketplace talks to the external escrow/marketplace service that
// holds delegated sell orders and executes trades.
package marketplace

import (
	"GDALedger/internal/ledger"
	"context"
	"sync"
)

// SellOrder delegates a listing's asset to the marketplace at a price no
// buyer can match directly. Only this engine's computed price settles it.
type SellOrder struct {
	RequestID           string        `json:"request_id"`
	Listing             ledger.Pubkey `json:"listing"`
	House               ledger.Pubkey `json:"house"`
	Wallet              ledger.Pubkey `json:"wallet"`
	TokenAccount        ledger.Pubkey `json:"token_account"`
	Mint                ledger.Pubkey `json:"mint"`
	TreasuryMint        ledger.Pubkey `json:"treasury_mint"`
	AuctioneerAuthority ledger.Pubkey `json:"auctioneer_authority"`
	Price               uint64        `json:"price,string"`
	TokenSize           uint64        `json:"token_size"`
	TradeState          ledger.Pubkey `json:"trade_state"`
	TradeStateBump      uint8         `json:"trade_state_bump"`
	FreeTradeState      ledger.Pubkey `json:"free_trade_state"`
	FreeTradeStateBump  uint8         `json:"free_trade_state_bump"`
	ProgramAsSignerBump uint8         `json:"program_as_signer_bump"`
}

// SaleNotification reports units of a listing the marketplace settled
// against one buyer order. It names the accounts of the sell order it
// matched and the auctioneer that executed it.
type SaleNotification struct {
	SaleID              string        `json:"sale_id"`
	Listing             ledger.Pubkey `json:"listing"`
	Seller              ledger.Pubkey `json:"seller"`
	Buyer               ledger.Pubkey `json:"buyer"`
	House               ledger.Pubkey `json:"house"`
	TokenAccount        ledger.Pubkey `json:"token_account"`
	TreasuryMint        ledger.Pubkey `json:"treasury_mint"`
	AuctioneerAuthority ledger.Pubkey `json:"auctioneer_authority"`
	AuctioneerRecord    ledger.Pubkey `json:"auctioneer_record"`
	Quantity            uint64        `json:"quantity"`
	Public              bool          `json:"public"`
}

// Marketplace is the sell-order surface of the external service.
type Marketplace interface {
	OpenSellOrder(ctx context.Context, order SellOrder) error
}

// Recorder is an in-memory Marketplace. It keeps every accepted order and
// fails with Err when set.
type Recorder struct {
	mu     sync.Mutex
	orders []SellOrder
	Err    error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OpenSellOrder(_ context.Context, order SellOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.orders = append(r.orders, order)
	return nil
}

// Orders returns a copy of the accepted orders.
func (r *Recorder) Orders() []SellOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SellOrder(nil), r.orders...)
}
