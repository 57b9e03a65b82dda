package core

import (
	"GDALedger/internal/observability"
	"GDALedger/internal/state"
	"GDALedger/internal/store"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// IdempotencyChecker deduplicates commands in three tiers: an in-memory
// LRU, the local store (written atomically with each command's effects),
// and optionally the Postgres event log.
type IdempotencyChecker struct {
	lru       *lru.Cache[string, struct{}]
	local     DBIdempotencyChecker
	dbChecker DBIdempotencyChecker
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// DBIdempotencyChecker looks a command up in durable storage.
type DBIdempotencyChecker interface {
	IsDuplicate(eventType string, idempotencyKey string) (bool, error)
}

// NewIdempotencyChecker builds the checker. local and dbChecker may be nil.
func NewIdempotencyChecker(capacity int, local, dbChecker DBIdempotencyChecker, metrics *observability.Metrics, log zerolog.Logger) (*IdempotencyChecker, error) {
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("idempotency lru: %w", err)
	}
	return &IdempotencyChecker{
		lru:       cache,
		local:     local,
		dbChecker: dbChecker,
		metrics:   metrics,
		log:       log,
	}, nil
}

func compositeKey(eventType, idempotencyKey string) string {
	return eventType + ":" + idempotencyKey
}

// IsDuplicate checks if a command has been processed. A store error is
// returned: the local tier is authoritative. A Postgres error is logged
// and treated as not-duplicate.
func (ic *IdempotencyChecker) IsDuplicate(eventType string, idempotencyKey string) (bool, error) {
	key := compositeKey(eventType, idempotencyKey)

	if ic.lru.Contains(key) {
		ic.recordDuplicate(eventType, "lru")
		return true, nil
	}

	if ic.local != nil {
		isDup, err := ic.local.IsDuplicate(eventType, idempotencyKey)
		if err != nil {
			return false, fmt.Errorf("local idempotency lookup: %w", err)
		}
		if isDup {
			ic.recordDuplicate(eventType, "store")
			ic.lru.Add(key, struct{}{})
			return true, nil
		}
	}

	if ic.dbChecker != nil {
		isDup, err := ic.dbChecker.IsDuplicate(eventType, idempotencyKey)
		if err != nil {
			ic.log.Warn().Err(err).Str("command", eventType).Msg("tier-2 idempotency lookup failed")
			if ic.metrics != nil {
				ic.metrics.DedupTier2Errors.Inc()
			}
			return false, nil
		}
		if isDup {
			ic.recordDuplicate(eventType, "postgres")
			ic.lru.Add(key, struct{}{})
			return true, nil
		}
	}

	return false, nil
}

func (ic *IdempotencyChecker) recordDuplicate(eventType, tier string) {
	if ic.metrics != nil {
		ic.metrics.IdempotencyDuplicates.WithLabelValues(eventType, tier).Inc()
	}
}

// MarkProcessed adds key to LRU after successful processing
func (ic *IdempotencyChecker) MarkProcessed(eventType string, idempotencyKey string) {
	ic.lru.Add(compositeKey(eventType, idempotencyKey), struct{}{})
}

// Warm loads composite keys ("type:key") into the LRU on restart.
func (ic *IdempotencyChecker) Warm(keys []string) {
	for _, k := range keys {
		ic.lru.Add(k, struct{}{})
	}
}

// Size returns the number of cached keys.
func (ic *IdempotencyChecker) Size() int {
	return ic.lru.Len()
}

// StoreIdempotencyChecker answers from the command markers in the local
// store.
type StoreIdempotencyChecker struct {
	kv store.KV
}

func NewStoreIdempotencyChecker(kv store.KV) *StoreIdempotencyChecker {
	return &StoreIdempotencyChecker{kv: kv}
}

func (s *StoreIdempotencyChecker) IsDuplicate(eventType string, idempotencyKey string) (bool, error) {
	return state.NewReadTxn(s.kv, nil).HasCommand(eventType, idempotencyKey)
}
