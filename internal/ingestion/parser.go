package ingestion

import (
	"GDALedger/internal/event"
	"GDALedger/internal/marketplace"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CommandSubjectPrefix is followed by the command type name, e.g.
// gda.commands.PlaceOrder. Producers may append further tokens.
const CommandSubjectPrefix = "gda.commands"

// ErrMalformed marks input that can never be processed. Messages carrying
// it are terminated rather than redelivered.
var ErrMalformed = errors.New("malformed command")

// ParseCommand decodes a JSON command of the named type. Unknown fields
// are rejected, and so is a command without an idempotency key.
func ParseCommand(eventType string, data []byte) (event.Event, error) {
	t, err := event.ParseEventType(eventType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if t == event.EventTypeRecordSale {
		return nil, fmt.Errorf("%w: sales are accepted only from the marketplace stream", ErrMalformed)
	}
	evt, err := event.New(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(evt); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrMalformed, eventType, err)
	}
	if evt.IdempotencyKey() == "" {
		return nil, fmt.Errorf("%w: %s has no idempotency key", ErrMalformed, eventType)
	}
	return evt, nil
}

// ParseRawEvent converts a RawEvent into a typed command. The type comes
// from the raw event when set, else from its subject.
func ParseRawEvent(raw RawEvent) (event.Event, error) {
	if raw.EventType == event.EventTypeRecordSale.String() {
		return ParseSale(raw.Data)
	}
	eventType := raw.EventType
	if eventType == "" {
		var err error
		if eventType, err = EventTypeFromSubject(raw.Subject); err != nil {
			return nil, err
		}
	}
	return ParseCommand(eventType, raw.Data)
}

// EventTypeFromSubject extracts the command type from a command subject.
func EventTypeFromSubject(subject string) (string, error) {
	rest, ok := strings.CutPrefix(subject, CommandSubjectPrefix+".")
	if !ok || rest == "" {
		return "", fmt.Errorf("%w: subject %q is not a command subject", ErrMalformed, subject)
	}
	name, _, _ := strings.Cut(rest, ".")
	return name, nil
}

// ParseSale decodes a marketplace sale notification into a RecordSale.
func ParseSale(data []byte) (*event.RecordSale, error) {
	var n marketplace.SaleNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: parse sale: %v", ErrMalformed, err)
	}
	if n.SaleID == "" {
		return nil, fmt.Errorf("%w: sale has no sale_id", ErrMalformed)
	}
	if n.Quantity == 0 {
		return nil, fmt.Errorf("%w: sale %s has zero quantity", ErrMalformed, n.SaleID)
	}
	return &event.RecordSale{
		SaleID:              n.SaleID,
		Listing:             n.Listing,
		Seller:              n.Seller,
		Buyer:               n.Buyer,
		House:               n.House,
		TokenAccount:        n.TokenAccount,
		TreasuryMint:        n.TreasuryMint,
		AuctioneerAuthority: n.AuctioneerAuthority,
		AuctioneerRecord:    n.AuctioneerRecord,
		Quantity:            n.Quantity,
		Public:              n.Public,
	}, nil
}
