package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeDeposit JournalType = iota
	JournalTypeEscrowTopUp
	JournalTypeRent
	JournalTypeTokenTransfer
)

func (t JournalType) String() string {
	switch t {
	case JournalTypeDeposit:
		return "deposit"
	case JournalTypeEscrowTopUp:
		return "escrow_top_up"
	case JournalTypeRent:
		return "rent"
	case JournalTypeTokenTransfer:
		return "token_transfer"
	default:
		return "unknown"
	}
}

// Journal is a single transfer: Amount moves from CreditAccount (balance
// decreases) to DebitAccount (balance increases).
type Journal struct {
	JournalID     uuid.UUID
	BatchID       uuid.UUID
	EventRef      string // Idempotency key of source command
	Sequence      int64
	DebitAccount  AccountKey
	CreditAccount AccountKey
	Amount        uint64
	JournalType   JournalType
	Timestamp     int64 // Command timestamp, unix seconds
}

// Batch groups the transfers of one command. It is applied whole or not at all.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// NewBatch starts an empty batch for a command.
func NewBatch(eventRef string, sequence, timestamp int64) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  sequence,
		Timestamp: timestamp,
	}
}

// Add appends a transfer. Zero amounts are skipped.
func (b *Batch) Add(debit, credit AccountKey, amount uint64, typ JournalType) {
	if amount == 0 {
		return
	}
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		EventRef:      b.EventRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        amount,
		JournalType:   typ,
		Timestamp:     b.Timestamp,
	})
}

// Len returns the number of journals.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Journals)
}

// Validate ensures the batch is well-formed. An empty batch is valid: most
// commands move no funds.
func (b *Batch) Validate() error {
	for _, j := range b.Journals {
		if j.Amount == 0 {
			return fmt.Errorf("journal %s has zero amount", j.JournalID)
		}

		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}

		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}

		if j.DebitAccount.Denomination != j.CreditAccount.Denomination {
			return fmt.Errorf("journal %s moves between denominations %s and %s",
				j.JournalID, j.CreditAccount.Denomination, j.DebitAccount.Denomination)
		}

		if j.DebitAccount.IsExternal() {
			return fmt.Errorf("journal %s pays into the external boundary", j.JournalID)
		}
	}

	return nil
}
