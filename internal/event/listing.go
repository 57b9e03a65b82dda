package event

import "GDALedger/internal/ledger"

// CreateListing opens a gradual Dutch auction for TokenSize units held in
// TokenAccount and delegates the sell order to the marketplace.
type CreateListing struct {
	RequestID           string        `json:"request_id"`
	Wallet              ledger.Pubkey `json:"wallet"`
	TokenAccount        ledger.Pubkey `json:"token_account"`
	House               ledger.Pubkey `json:"house"`
	TreasuryMint        ledger.Pubkey `json:"treasury_mint"`
	AuctioneerAuthority ledger.Pubkey `json:"auctioneer_authority"`
	AuctioneerRecord    ledger.Pubkey `json:"auctioneer_record"`
	Listing             ledger.Pubkey `json:"listing"`

	TokenSize    uint64 `json:"token_size"`
	StartPrice   uint64 `json:"start_price,string"`
	DecayConst   uint8  `json:"decay_const"`
	ScaleFactor  uint64 `json:"scale_factor"`
	EndTimestamp int64  `json:"end_timestamp"`

	ListingBump         uint8 `json:"listing_bump"`
	TradeStateBump      uint8 `json:"trade_state_bump"`
	FreeTradeStateBump  uint8 `json:"free_trade_state_bump"`
	ProgramAsSignerBump uint8 `json:"program_as_signer_bump"`
}

func (c *CreateListing) IdempotencyKey() string { return c.RequestID }
func (c *CreateListing) EventType() EventType   { return EventTypeCreateListing }
func (c *CreateListing) ListingID() *ledger.Pubkey {
	l := c.Listing
	return &l
}

// PlaceOrder buys Size units of a listing at the price the engine computes
// when the command executes.
type PlaceOrder struct {
	RequestID           string        `json:"request_id"`
	Listing             ledger.Pubkey `json:"listing"`
	Seller              ledger.Pubkey `json:"seller"`
	Wallet              ledger.Pubkey `json:"wallet"`
	PaymentAccount      ledger.Pubkey `json:"payment_account"`
	TransferAuthority   ledger.Pubkey `json:"transfer_authority"`
	TreasuryMint        ledger.Pubkey `json:"treasury_mint"`
	TokenAccount        ledger.Pubkey `json:"token_account"`
	Metadata            ledger.Pubkey `json:"metadata"`
	Escrow              ledger.Pubkey `json:"escrow"`
	House               ledger.Pubkey `json:"house"`
	FeeAccount          ledger.Pubkey `json:"fee_account"`
	OrderRecord         ledger.Pubkey `json:"order_record"`
	AuctioneerAuthority ledger.Pubkey `json:"auctioneer_authority"`
	AuctioneerRecord    ledger.Pubkey `json:"auctioneer_record"`

	Size   uint64 `json:"size"`
	Public bool   `json:"public"`

	EscrowBump     uint8 `json:"escrow_bump"`
	TradeStateBump uint8 `json:"trade_state_bump"`

	AuthorityApproved bool `json:"authority_approved"`
}

func (p *PlaceOrder) IdempotencyKey() string { return p.RequestID }
func (p *PlaceOrder) EventType() EventType   { return EventTypePlaceOrder }
func (p *PlaceOrder) ListingID() *ledger.Pubkey {
	l := p.Listing
	return &l
}

// RecordSale reports units the marketplace settled against a listing.
// SaleID is the marketplace's id for the sale. The sale must match an open
// buyer order of exactly Quantity units and carry the house's registered
// auctioneer; settling it frees that order record.
type RecordSale struct {
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

func (r *RecordSale) IdempotencyKey() string { return r.SaleID }
func (r *RecordSale) EventType() EventType   { return EventTypeRecordSale }
func (r *RecordSale) ListingID() *ledger.Pubkey {
	l := r.Listing
	return &l
}

// CloseListing removes a listing after its end time. Only the seller wallet
// that created it may close it.
type CloseListing struct {
	RequestID    string        `json:"request_id"`
	Listing      ledger.Pubkey `json:"listing"`
	Wallet       ledger.Pubkey `json:"wallet"`
	House        ledger.Pubkey `json:"house"`
	TokenAccount ledger.Pubkey `json:"token_account"`
	TreasuryMint ledger.Pubkey `json:"treasury_mint"`
}

func (c *CloseListing) IdempotencyKey() string { return c.RequestID }
func (c *CloseListing) EventType() EventType   { return EventTypeCloseListing }
func (c *CloseListing) ListingID() *ledger.Pubkey {
	l := c.Listing
	return &l
}
