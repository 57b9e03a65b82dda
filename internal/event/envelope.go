package event

import (
	"GDALedger/internal/ledger"
	"fmt"
)

// EventType discriminator for command payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeRegisterHouse
	EventTypeRegisterAuctioneer
	EventTypeRegisterAsset
	EventTypeDeposit
	EventTypeCreateListing
	EventTypePlaceOrder
	EventTypeRecordSale
	EventTypeCloseListing
)

var eventTypeNames = map[EventType]string{
	EventTypeRegisterHouse:      "RegisterHouse",
	EventTypeRegisterAuctioneer: "RegisterAuctioneer",
	EventTypeRegisterAsset:      "RegisterAsset",
	EventTypeDeposit:            "Deposit",
	EventTypeCreateListing:      "CreateListing",
	EventTypePlaceOrder:         "PlaceOrder",
	EventTypeRecordSale:         "RecordSale",
	EventTypeCloseListing:       "CloseListing",
}

// EventEnvelope wraps every committed command in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	EventType EventType

	// Listing the command touched (nil for house and account commands)
	Listing *ledger.Pubkey

	// Unix seconds read once from the core's clock. Replays use this value.
	Timestamp int64

	// JSON-encoded command
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all command payloads implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	EventType() EventType

	// ListingID returns the listing context (nil for global commands)
	ListingID() *ledger.Pubkey
}

func (et EventType) String() string {
	if name, ok := eventTypeNames[et]; ok {
		return name
	}
	return "Unknown"
}

// ParseEventType is the inverse of EventType.String.
func ParseEventType(name string) (EventType, error) {
	for t, n := range eventTypeNames {
		if n == name {
			return t, nil
		}
	}
	return EventTypeUnknown, fmt.Errorf("unknown event type: %s", name)
}

// New returns an empty command of the given type, ready to be decoded into.
func New(t EventType) (Event, error) {
	switch t {
	case EventTypeRegisterHouse:
		return &RegisterHouse{}, nil
	case EventTypeRegisterAuctioneer:
		return &RegisterAuctioneer{}, nil
	case EventTypeRegisterAsset:
		return &RegisterAsset{}, nil
	case EventTypeDeposit:
		return &Deposit{}, nil
	case EventTypeCreateListing:
		return &CreateListing{}, nil
	case EventTypePlaceOrder:
		return &PlaceOrder{}, nil
	case EventTypeRecordSale:
		return &RecordSale{}, nil
	case EventTypeCloseListing:
		return &CloseListing{}, nil
	default:
		return nil, fmt.Errorf("unknown event type: %d", t)
	}
}
