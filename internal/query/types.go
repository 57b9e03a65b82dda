package query

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListingResponse is a projected listing. Amounts are decimal strings in JSON.
type ListingResponse struct {
	Listing            string          `json:"listing"`
	Seller             string          `json:"seller,omitempty"`
	House              string          `json:"house,omitempty"`
	TokenSize          decimal.Decimal `json:"token_size"`
	ItemsSold          decimal.Decimal `json:"items_sold"`
	StartPrice         decimal.Decimal `json:"start_price"`
	DecayConst         decimal.Decimal `json:"decay_const"`
	ScaleFactor        decimal.Decimal `json:"scale_factor"`
	FirstInitTimestamp int64           `json:"first_init_timestamp"`
	EndTimestamp       int64           `json:"end_timestamp"`
	Closed             bool            `json:"closed"`
	LastSequence       int64           `json:"last_sequence"`
	AsOfSequence       int64           `json:"as_of_sequence"`
}

// OrderResponse is a projected placed order.
type OrderResponse struct {
	OrderRecord  string          `json:"order_record"`
	Listing      string          `json:"listing"`
	Buyer        string          `json:"buyer"`
	Escrow       string          `json:"escrow"`
	FeePayer     string          `json:"fee_payer"`
	Size         decimal.Decimal `json:"size"`
	Price        decimal.Decimal `json:"price"`
	TopUp        decimal.Decimal `json:"top_up"`
	RentPaid     decimal.Decimal `json:"rent_paid"`
	Sequence     int64           `json:"sequence"`
	PlacedAt     int64           `json:"placed_at"`
	AsOfSequence int64           `json:"as_of_sequence"`
}

// BalanceResponse is one projected balance.
type BalanceResponse struct {
	Account      string          `json:"account"`
	Holder       string          `json:"holder"`
	Denomination string          `json:"denomination"`
	Balance      decimal.Decimal `json:"balance"`
	AsOfSequence int64           `json:"as_of_sequence"`
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     uuid.UUID       `json:"journal_id"`
	BatchID       uuid.UUID       `json:"batch_id"`
	EventRef      string          `json:"event_ref"`
	Sequence      int64           `json:"sequence"`
	DebitAccount  string          `json:"debit_account"`
	CreditAccount string          `json:"credit_account"`
	Denomination  string          `json:"denomination"`
	Amount        decimal.Decimal `json:"amount"`
	JournalType   string          `json:"journal_type"`
	Timestamp     int64           `json:"timestamp"`
}

// EventHistoryEntry is one command from the event log.
type EventHistoryEntry struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Timestamp      int64           `json:"timestamp"`
	StateHash      string          `json:"state_hash"`
	Payload        json.RawMessage `json:"payload"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy               bool                     `json:"is_healthy"`
	HashChainBreaks         []int64                  `json:"hash_chain_breaks,omitempty"`
	UnbalancedDenominations []UnbalancedDenomination `json:"unbalanced_denominations,omitempty"`
}

// UnbalancedDenomination is a denomination whose projected balances do not
// sum to zero.
type UnbalancedDenomination struct {
	Denomination string          `json:"denomination"`
	Imbalance    decimal.Decimal `json:"imbalance"`
}
