package server

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/core"
	"GDALedger/internal/event"
	"GDALedger/internal/ingestion"
	"GDALedger/internal/ledger"
	"GDALedger/internal/query"
	"context"
	"encoding/hex"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ListingView is the wire form of a listing.
type ListingView struct {
	Listing            string          `json:"listing"`
	TokenSize          uint64          `json:"token_size"`
	ItemsSold          uint64          `json:"items_sold"`
	StartPrice         decimal.Decimal `json:"start_price"`
	DecayConst         uint8           `json:"decay_const"`
	ScaleFactor        uint64          `json:"scale_factor"`
	FirstInitTimestamp int64           `json:"first_init_timestamp"`
	EndTimestamp       int64           `json:"end_timestamp"`
}

func listingView(addr ledger.Pubkey, cfg *auction.ListingConfig) *ListingView {
	if cfg == nil {
		return nil
	}
	return &ListingView{
		Listing:            addr.String(),
		TokenSize:          cfg.TokenSize,
		ItemsSold:          cfg.ItemsSold,
		StartPrice:         decimal.NewFromUint64(cfg.StartPrice),
		DecayConst:         cfg.DecayConst,
		ScaleFactor:        cfg.ScaleFactor,
		FirstInitTimestamp: cfg.FirstInitTimestamp,
		EndTimestamp:       cfg.EndTimestamp,
	}
}

// CommandResponse reports a committed (or duplicate) command.
type CommandResponse struct {
	Sequence      int64           `json:"sequence"`
	StateHash     string          `json:"state_hash,omitempty"`
	Duplicate     bool            `json:"duplicate"`
	House         string          `json:"house,omitempty"`
	Listing       *ListingView    `json:"listing,omitempty"`
	ListingClosed bool            `json:"listing_closed,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Order         *OrderView      `json:"order,omitempty"`
}

// OrderView describes the escrow side effects of a placed order.
type OrderView struct {
	FeePayer           string          `json:"fee_payer"`
	EscrowCreated      bool            `json:"escrow_created"`
	TopUp              decimal.Decimal `json:"top_up"`
	OrderRecordCreated bool            `json:"order_record_created"`
	RentPaid           decimal.Decimal `json:"rent_paid"`
}

// QuoteRequest prices Size units of Listing. At is a unix time; zero
// means now.
type QuoteRequest struct {
	Listing ledger.Pubkey `json:"listing"`
	Size    uint64        `json:"size"`
	At      int64         `json:"at,omitempty"`
}

// QuoteResponse is a read-only price.
type QuoteResponse struct {
	Listing string          `json:"listing"`
	Size    uint64          `json:"size"`
	At      int64           `json:"at"`
	Price   decimal.Decimal `json:"price"`
	Remain  uint64          `json:"remaining"`
}

// ListingRequest names a listing.
type ListingRequest struct {
	Listing ledger.Pubkey `json:"listing"`
}

// OrdersRequest pages a buyer's orders.
type OrdersRequest struct {
	Buyer  ledger.Pubkey `json:"buyer"`
	Limit  int           `json:"limit,omitempty"`
	Before *int64        `json:"before,omitempty"`
}

// OrdersResponse wraps a page of orders.
type OrdersResponse struct {
	Orders []query.OrderResponse `json:"orders"`
}

// BalanceRequest names one balance.
type BalanceRequest struct {
	Holder ledger.Pubkey `json:"holder"`
	Mint   ledger.Pubkey `json:"mint"`
}

// HistoryRequest pages a listing's event history.
type HistoryRequest struct {
	Listing ledger.Pubkey `json:"listing"`
	Limit   int           `json:"limit,omitempty"`
	Before  *int64        `json:"before,omitempty"`
}

// HistoryResponse wraps a page of events.
type HistoryResponse struct {
	Events []query.EventHistoryEntry `json:"events"`
}

// Empty is the request of parameterless methods.
type Empty struct{}

// Service implements every method of gda.v1.AuctionService. Commands go
// through the submitter; quotes and listing reads go to the engine
// directly; projection reads need a QueryService.
type Service struct {
	submitter ingestion.Submitter
	engine    *core.Engine
	queries   *query.QueryService
	log       zerolog.Logger
}

func NewService(submitter ingestion.Submitter, engine *core.Engine, queries *query.QueryService, log zerolog.Logger) *Service {
	return &Service{submitter: submitter, engine: engine, queries: queries, log: log}
}

// Execute submits a command and renders its result.
func (s *Service) Execute(ctx context.Context, evt event.Event) (*CommandResponse, error) {
	res, err := s.submitter.Submit(ctx, evt)
	if err != nil {
		s.log.Debug().Err(err).Str("command", evt.EventType().String()).Str("key", evt.IdempotencyKey()).Msg("command failed")
		return nil, ToStatus(err)
	}
	return commandResponse(evt, res), nil
}

func commandResponse(evt event.Event, res *core.Result) *CommandResponse {
	resp := &CommandResponse{
		Sequence:      res.Sequence,
		Duplicate:     res.Duplicate,
		ListingClosed: res.ListingClosed,
		Price:         decimal.NewFromUint64(res.Price),
	}
	if !res.Duplicate {
		resp.StateHash = hex.EncodeToString(res.StateHash[:])
	}
	if res.House != nil {
		resp.House = res.House.Address.String()
	}
	if l := evt.ListingID(); l != nil {
		resp.Listing = listingView(*l, res.Listing)
	}
	if o := res.Order; o != nil {
		resp.Order = &OrderView{
			FeePayer:           o.FeePayer.String(),
			EscrowCreated:      o.EscrowCreated,
			TopUp:              decimal.NewFromUint64(o.TopUp),
			OrderRecordCreated: o.OrderRecordCreated,
			RentPaid:           decimal.NewFromUint64(o.RentPaid),
		}
	}
	return resp
}

// QuotePrice prices an order without placing it.
func (s *Service) QuotePrice(_ context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	if req.Size == 0 {
		return nil, status.Error(codes.InvalidArgument, "size is required")
	}
	at := req.At
	if at == 0 {
		at = s.engine.Now()
	}
	price, cfg, err := s.engine.QuoteAt(req.Listing, req.Size, at)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &QuoteResponse{
		Listing: req.Listing.String(),
		Size:    req.Size,
		At:      at,
		Price:   decimal.NewFromUint64(price),
		Remain:  cfg.TokenSize - cfg.ItemsSold,
	}, nil
}

// GetListing reads the committed listing from the engine's store.
func (s *Service) GetListing(_ context.Context, req *ListingRequest) (*ListingView, error) {
	cfg, err := s.engine.Listing(req.Listing)
	if err != nil {
		return nil, ToStatus(err)
	}
	return listingView(req.Listing, cfg), nil
}

func (s *Service) requireQueries() error {
	if s.queries == nil {
		return status.Error(codes.Unimplemented, "projections are not configured")
	}
	return nil
}

// ListOrders pages a buyer's projected orders.
func (s *Service) ListOrders(ctx context.Context, req *OrdersRequest) (*OrdersResponse, error) {
	if err := s.requireQueries(); err != nil {
		return nil, err
	}
	orders, err := s.queries.GetOrdersByBuyer(ctx, req.Buyer, req.Limit, req.Before)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &OrdersResponse{Orders: orders}, nil
}

// GetBalance reads one projected balance.
func (s *Service) GetBalance(ctx context.Context, req *BalanceRequest) (*query.BalanceResponse, error) {
	if err := s.requireQueries(); err != nil {
		return nil, err
	}
	mint := req.Mint
	if mint.IsZero() {
		mint = ledger.NativeMint
	}
	bal, err := s.queries.GetBalance(ctx, ledger.TokenAccountKey(req.Holder, mint))
	if err != nil {
		return nil, ToStatus(err)
	}
	return bal, nil
}

// ListEvents pages the event history of a listing.
func (s *Service) ListEvents(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	if err := s.requireQueries(); err != nil {
		return nil, err
	}
	events, err := s.queries.GetEventHistory(ctx, req.Listing, req.Limit, req.Before)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &HistoryResponse{Events: events}, nil
}

// VerifyIntegrity runs the event log and projection consistency checks.
func (s *Service) VerifyIntegrity(ctx context.Context, _ *Empty) (*query.IntegrityReport, error) {
	if err := s.requireQueries(); err != nil {
		return nil, err
	}
	report, err := s.queries.VerifyIntegrity(ctx)
	if err != nil {
		return nil, ToStatus(err)
	}
	return report, nil
}
