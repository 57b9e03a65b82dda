package projection

import (
	"GDALedger/internal/core"
	"GDALedger/internal/event"
	"encoding/json"
	"fmt"
	"strconv"
)

// ListingRow is one row of projections.listings.
type ListingRow struct {
	Listing            string
	Seller             *string
	House              *string
	TokenSize          string
	ItemsSold          string
	StartPrice         string
	DecayConst         string
	ScaleFactor        string
	FirstInitTimestamp int64
	EndTimestamp       int64
	Closed             bool
}

// OrderRow is one row of projections.orders.
type OrderRow struct {
	OrderRecord string
	Listing     string
	Buyer       string
	Escrow      string
	FeePayer    string
	Size        string
	Price       string
	TopUp       string
	RentPaid    string
	PlacedAt    int64
}

// BalanceDelta moves one projected balance by a signed amount.
type BalanceDelta struct {
	Account      string
	Holder       *string
	Denomination string
	Delta        string
}

// Update is everything one committed command changes in the projections.
type Update struct {
	Sequence int64
	Listing  *ListingRow
	Order    *OrderRow
	Balances []BalanceDelta
}

// Plan derives the projection update for a committed command.
func Plan(out core.CoreOutput) (*Update, error) {
	env := out.Envelope
	u := &Update{Sequence: env.Sequence}

	if out.Batch != nil {
		for _, j := range out.Batch.Journals {
			amount := strconv.FormatUint(j.Amount, 10)
			u.Balances = append(u.Balances,
				balanceDelta(j.DebitAccount.AccountPath(), j.DebitAccount.Holder.IsZero(), j.DebitAccount.Holder.String(), j.DebitAccount.Denomination.String(), amount),
				balanceDelta(j.CreditAccount.AccountPath(), j.CreditAccount.Holder.IsZero(), j.CreditAccount.Holder.String(), j.CreditAccount.Denomination.String(), "-"+amount),
			)
		}
	}

	res := out.Result
	if res == nil || env.Listing == nil {
		return u, nil
	}
	listing := env.Listing.String()

	switch env.EventType {
	case event.EventTypeCreateListing:
		var cmd event.CreateListing
		if err := json.Unmarshal(env.Payload, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		row := listingRow(listing, res)
		seller, house := cmd.Wallet.String(), cmd.House.String()
		row.Seller, row.House = &seller, &house
		u.Listing = row

	case event.EventTypePlaceOrder:
		var cmd event.PlaceOrder
		if err := json.Unmarshal(env.Payload, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		if res.Order == nil {
			return u, nil
		}
		u.Order = &OrderRow{
			OrderRecord: cmd.OrderRecord.String(),
			Listing:     listing,
			Buyer:       cmd.Wallet.String(),
			Escrow:      cmd.Escrow.String(),
			FeePayer:    res.Order.FeePayer.String(),
			Size:        strconv.FormatUint(cmd.Size, 10),
			Price:       strconv.FormatUint(res.Price, 10),
			TopUp:       strconv.FormatUint(res.Order.TopUp, 10),
			RentPaid:    strconv.FormatUint(res.Order.RentPaid, 10),
			PlacedAt:    env.Timestamp,
		}

	case event.EventTypeRecordSale:
		if res.Listing != nil {
			u.Listing = listingRow(listing, res)
		}

	case event.EventTypeCloseListing:
		u.Listing = &ListingRow{Listing: listing, Closed: true}
	}
	return u, nil
}

func listingRow(listing string, res *core.Result) *ListingRow {
	cfg := res.Listing
	return &ListingRow{
		Listing:            listing,
		TokenSize:          strconv.FormatUint(cfg.TokenSize, 10),
		ItemsSold:          strconv.FormatUint(cfg.ItemsSold, 10),
		StartPrice:         strconv.FormatUint(cfg.StartPrice, 10),
		DecayConst:         strconv.FormatUint(uint64(cfg.DecayConst), 10),
		ScaleFactor:        strconv.FormatUint(cfg.ScaleFactor, 10),
		FirstInitTimestamp: cfg.FirstInitTimestamp,
		EndTimestamp:       cfg.EndTimestamp,
		Closed:             res.ListingClosed,
	}
}

func balanceDelta(account string, external bool, holder, denomination, delta string) BalanceDelta {
	d := BalanceDelta{Account: account, Denomination: denomination, Delta: delta}
	if !external {
		d.Holder = &holder
	}
	return d
}
