package core

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/event"
	"GDALedger/internal/intake"
	"GDALedger/internal/ledger"
	"GDALedger/internal/marketplace"
	"GDALedger/internal/observability"
	"GDALedger/internal/state"
	"GDALedger/internal/store"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrMissingIdempotencyKey rejects a command that cannot be deduplicated.
var ErrMissingIdempotencyKey = errors.New("missing idempotency key")

// Config wires an Engine. KV, Marketplace and Clock are required.
type Config struct {
	KV          store.KV
	Cache       *state.ListingCache
	Book        ledger.AddressBook
	Rent        ledger.Rent
	Marketplace marketplace.Marketplace
	Clock       Clock

	// DBChecker is the optional Postgres idempotency tier.
	DBChecker           DBIdempotencyChecker
	IdempotencyCapacity int

	Metrics *observability.Metrics
	Logger  zerolog.Logger

	// PersistChan receives every committed command and is sent to with a
	// blocking send. ProjectionChan is sent to without blocking. Both may
	// be nil.
	PersistChan    chan<- CoreOutput
	ProjectionChan chan<- CoreOutput

	// PersistDone is closed once the PersistChan consumer has exited. The
	// blocking send gives up when it is closed; the command stays
	// committed in the store and the event log lags the head.
	PersistDone <-chan struct{}
}

// Engine executes commands one at a time. Each command runs in its own
// state.Txn and is committed whole, together with the chain head and its
// idempotency marker, or not at all.
//
// Execute is not safe for concurrent use; the Dispatcher serializes it.
// Quote may be called from any goroutine.
type Engine struct {
	kv     store.KV
	cache  *state.ListingCache
	book   ledger.AddressBook
	intake *intake.Orchestrator
	market marketplace.Marketplace
	clock  Clock

	sequence    int64
	hasher      *StateHasher
	idempotency *IdempotencyChecker
	metrics     *observability.Metrics
	log         zerolog.Logger

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
	persistDone    <-chan struct{}
}

// CoreOutput is what the core hands to persistence and projections after
// a commit.
type CoreOutput struct {
	Envelope   *event.EventEnvelope
	Batch      *ledger.Batch
	StateDelta []byte
	Result     *Result
}

// Result describes a committed command.
type Result struct {
	Sequence  int64
	StateHash [32]byte
	Duplicate bool

	House *auction.House

	// Listing is the listing after the command. ListingClosed is set when
	// the command removed it.
	Listing       *auction.ListingConfig
	ListingClosed bool

	Price uint64
	Order *intake.Outcome
}

// NewEngine opens an engine over cfg.KV, resuming the hash chain from the
// stored head.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.KV == nil || cfg.Marketplace == nil || cfg.Clock == nil {
		return nil, errors.New("engine requires a store, a marketplace and a clock")
	}
	if cfg.IdempotencyCapacity <= 0 {
		cfg.IdempotencyCapacity = 100_000
	}
	idem, err := NewIdempotencyChecker(cfg.IdempotencyCapacity, NewStoreIdempotencyChecker(cfg.KV), cfg.DBChecker, cfg.Metrics, cfg.Logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		kv:             cfg.KV,
		cache:          cfg.Cache,
		book:           cfg.Book,
		intake:         intake.NewOrchestrator(cfg.Book, cfg.Rent),
		market:         cfg.Marketplace,
		clock:          cfg.Clock,
		sequence:       1,
		hasher:         NewStateHasher(),
		idempotency:    idem,
		metrics:        cfg.Metrics,
		log:            cfg.Logger,
		persistChan:    cfg.PersistChan,
		projectionChan: cfg.ProjectionChan,
		persistDone:    cfg.PersistDone,
	}

	seq, hash, found, err := state.NewReadTxn(cfg.KV, nil).Head()
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}
	if found {
		e.sequence = seq + 1
		e.hasher.SetPrevHash(hash)
	}
	e.log.Info().Int64("next_sequence", e.sequence).Bool("resumed", found).Msg("engine opened")
	return e, nil
}

// command carries the per-command context through the handlers.
type command struct {
	ctx       context.Context
	txn       *state.Txn
	batch     *ledger.Batch
	tracker   *ledger.BalanceTracker
	validator *ledger.InvariantValidator
	now       int64
}

// Execute is the main processing pipeline.
func (e *Engine) Execute(ctx context.Context, evt event.Event) (*Result, error) {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()
	if idempotencyKey == "" {
		e.reject(eventType, "invalid")
		return nil, fmt.Errorf("%s: %w", eventType, ErrMissingIdempotencyKey)
	}

	// Step 1: Idempotency check
	isDuplicate, err := e.idempotency.IsDuplicate(eventType, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if isDuplicate {
		e.reject(eventType, "duplicate")
		return &Result{Duplicate: true}, nil
	}

	// Step 2: Dispatch inside a fresh transaction. "Now" is read once.
	seq := e.sequence
	now := e.clock.Now()
	txn := state.NewTxn(e.kv, e.cache)
	tracker := ledger.NewBalanceTracker(txn)
	cmd := &command{
		ctx:       ctx,
		txn:       txn,
		batch:     ledger.NewBatch(idempotencyKey, seq, now),
		tracker:   tracker,
		validator: ledger.NewInvariantValidator(tracker),
		now:       now,
	}

	res, err := e.dispatch(cmd, evt)
	if err != nil {
		txn.Discard()
		e.reject(eventType, auction.Kind(err))
		return nil, fmt.Errorf("%s %s: %w", eventType, idempotencyKey, err)
	}

	// Step 3: Post-checks
	if err := cmd.validator.ValidateBatchBalance(cmd.batch); err != nil {
		panic(fmt.Sprintf("FATAL: malformed batch: %v", err))
	}
	if err := postCheckFlows(evt, cmd.batch); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 4: State digest and hash chain
	stateDigest := txn.Digest()
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(seq, stateDigest)

	payload, err := json.Marshal(evt)
	if err != nil {
		txn.Discard()
		e.hasher.SetPrevHash(prevHash)
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	envelope := &event.EventEnvelope{
		Sequence:       seq,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		Listing:        evt.ListingID(),
		Timestamp:      now,
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	// Step 5: Commit effects, head and idempotency marker in one batch
	txn.MarkCommand(eventType, idempotencyKey, seq)
	txn.SetHead(seq, stateHash)
	if err := txn.Commit(); err != nil {
		e.hasher.SetPrevHash(prevHash)
		e.reject(eventType, "store")
		return nil, fmt.Errorf("%s %s: %w", eventType, idempotencyKey, err)
	}
	e.sequence++

	res.Sequence = seq
	res.StateHash = stateHash

	// Step 6: Emit. Persistence is a blocking send so no committed command
	// is lost; projections drop on full and catch up from the event log.
	output := CoreOutput{Envelope: envelope, Batch: cmd.batch, StateDelta: stateDigest, Result: res}
	if e.persistChan != nil {
		select {
		case e.persistChan <- output:
		case <-e.persistDone:
			e.log.Error().Str("command", eventType).Int64("sequence", seq).
				Msg("persistence stopped; committed command not handed to the event log")
		}
	}
	if e.projectionChan != nil {
		select {
		case e.projectionChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.ProjectionDrops.WithLabelValues("core").Inc()
			}
		}
	}

	// Step 7: Mark as processed
	e.idempotency.MarkProcessed(eventType, idempotencyKey)

	if e.metrics != nil {
		e.metrics.CoreCommandsApplied.WithLabelValues(eventType).Inc()
		e.metrics.CoreCommandDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		e.metrics.CoreSequence.Set(float64(seq))
		for _, j := range cmd.batch.Journals {
			e.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
		}
	}
	e.log.Debug().
		Str("command", eventType).
		Str("idempotency_key", idempotencyKey).
		Int64("sequence", seq).
		Int("journals", cmd.batch.Len()).
		Msg("command committed")

	return res, nil
}

func (e *Engine) reject(eventType, reason string) {
	if e.metrics != nil {
		e.metrics.CoreCommandsRejected.WithLabelValues(eventType, reason).Inc()
	}
}

// postCheckFlows verifies that only deposits bring funds in from outside,
// and exactly the deposited amount.
func postCheckFlows(evt event.Event, batch *ledger.Batch) error {
	flows := ledger.NetFlows(batch)
	if d, ok := evt.(*event.Deposit); ok {
		for denom, total := range flows {
			if denom != d.Mint && total != 0 {
				return fmt.Errorf("deposit moved %d of %s", total, denom)
			}
		}
		if flows[d.Mint] != int64(d.Amount) {
			return fmt.Errorf("deposit of %d netted %d", d.Amount, flows[d.Mint])
		}
		return nil
	}
	for denom, total := range flows {
		if total != 0 {
			return fmt.Errorf("%s created %d of %s", evt.EventType(), total, denom)
		}
	}
	return nil
}

func (e *Engine) dispatch(cmd *command, evt event.Event) (*Result, error) {
	switch c := evt.(type) {
	case *event.RegisterHouse:
		return e.handleRegisterHouse(cmd, c)
	case *event.RegisterAuctioneer:
		return e.handleRegisterAuctioneer(cmd, c)
	case *event.RegisterAsset:
		return e.handleRegisterAsset(cmd, c)
	case *event.Deposit:
		return e.handleDeposit(cmd, c)
	case *event.CreateListing:
		return e.handleCreateListing(cmd, c)
	case *event.PlaceOrder:
		return e.handlePlaceOrder(cmd, c)
	case *event.RecordSale:
		return e.handleRecordSale(cmd, c)
	case *event.CloseListing:
		return e.handleCloseListing(cmd, c)
	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

// WarmIdempotency loads recent composite keys into the LRU.
func (e *Engine) WarmIdempotency(keys []string) {
	e.idempotency.Warm(keys)
}

// GetSequence returns the next sequence to assign.
func (e *Engine) GetSequence() int64 {
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (e *Engine) GetStateHash() [32]byte {
	return e.hasher.GetPrevHash()
}

// Book returns the address book the engine derives with.
func (e *Engine) Book() ledger.AddressBook {
	return e.book
}
