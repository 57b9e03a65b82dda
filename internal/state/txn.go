package state

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/ledger"
	"GDALedger/internal/store"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// ErrAccountNotFound is returned when a record does not exist.
var ErrAccountNotFound = errors.New("account not found")

type write struct {
	value   []byte
	deleted bool
}

// Txn buffers the reads and writes of one command over a store.KV. Reads
// see the buffered writes. Nothing reaches the store until Commit, which
// writes the whole buffer as one batch.
//
// Not thread-safe. One Txn is owned by one command.
type Txn struct {
	kv       store.KV
	cache    *ListingCache
	writes   map[string]write
	listings map[ledger.Pubkey]*auction.ListingConfig
	readOnly bool
}

// NewTxn opens a transaction. cache may be nil.
func NewTxn(kv store.KV, cache *ListingCache) *Txn {
	return &Txn{
		kv:       kv,
		cache:    cache,
		writes:   make(map[string]write),
		listings: make(map[ledger.Pubkey]*auction.ListingConfig),
	}
}

func (t *Txn) get(key []byte) ([]byte, error) {
	if w, ok := t.writes[string(key)]; ok {
		if w.deleted {
			return nil, store.ErrKeyNotFound
		}
		return w.value, nil
	}
	return t.kv.Get(key)
}

func (t *Txn) has(key []byte) (bool, error) {
	if w, ok := t.writes[string(key)]; ok {
		return !w.deleted, nil
	}
	return t.kv.Has(key)
}

func (t *Txn) put(key, value []byte) {
	t.writes[string(key)] = write{value: value}
}

func (t *Txn) del(key []byte) {
	t.writes[string(key)] = write{deleted: true}
}

func (t *Txn) getRecord(key []byte, v interface{}) error {
	raw, err := t.get(key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	return decode(raw, v)
}

func (t *Txn) putRecord(key []byte, v interface{}) error {
	raw, err := encode(v)
	if err != nil {
		return err
	}
	t.put(key, raw)
	return nil
}

// --- Listings ---

// GetListing loads the listing at addr. The returned value is a copy.
func (t *Txn) GetListing(addr ledger.Pubkey) (*auction.ListingConfig, error) {
	if c, ok := t.listings[addr]; ok {
		if c == nil {
			return nil, fmt.Errorf("%w: %s", auction.ErrListingNotFound, addr)
		}
		cp := *c
		return &cp, nil
	}
	if t.cache != nil {
		if c, ok := t.cache.Get(addr); ok {
			return &c, nil
		}
	}

	raw, err := t.kv.Get(recordKey(prefixListing, addr))
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", auction.ErrListingNotFound, addr)
	}
	if err != nil {
		return nil, err
	}
	var c auction.ListingConfig
	if err := c.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	if t.cache != nil && !t.readOnly {
		t.cache.Add(addr, c)
	}
	return &c, nil
}

// NewReadTxn opens a transaction for queries. It reads through the cache
// but never fills it, so a query racing a commit cannot cache a stale
// listing.
func NewReadTxn(kv store.KV, cache *ListingCache) *Txn {
	t := NewTxn(kv, cache)
	t.readOnly = true
	return t
}

// HasListing reports whether a listing exists at addr.
func (t *Txn) HasListing(addr ledger.Pubkey) (bool, error) {
	if c, ok := t.listings[addr]; ok {
		return c != nil, nil
	}
	return t.kv.Has(recordKey(prefixListing, addr))
}

func (t *Txn) PutListing(addr ledger.Pubkey, c *auction.ListingConfig) error {
	raw, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	cp := *c
	t.listings[addr] = &cp
	t.put(recordKey(prefixListing, addr), raw)
	return nil
}

func (t *Txn) DeleteListing(addr ledger.Pubkey) {
	t.listings[addr] = nil
	t.del(recordKey(prefixListing, addr))
}

// --- Houses and delegates ---

func (t *Txn) GetHouse(addr ledger.Pubkey) (*auction.House, error) {
	var h auction.House
	if err := t.getRecord(recordKey(prefixHouse, addr), &h); err != nil {
		return nil, fmt.Errorf("house %s: %w", addr, err)
	}
	return &h, nil
}

func (t *Txn) PutHouse(h *auction.House) error {
	return t.putRecord(recordKey(prefixHouse, h.Address), h)
}

func (t *Txn) GetAuctioneerRecord(addr ledger.Pubkey) (*auction.AuctioneerRecord, error) {
	var r auction.AuctioneerRecord
	if err := t.getRecord(recordKey(prefixAuctioneer, addr), &r); err != nil {
		return nil, fmt.Errorf("auctioneer %s: %w", addr, err)
	}
	return &r, nil
}

func (t *Txn) PutAuctioneerRecord(r *auction.AuctioneerRecord) error {
	return t.putRecord(recordKey(prefixAuctioneer, r.Address), r)
}

// --- Assets ---

func (t *Txn) GetTokenAccount(addr ledger.Pubkey) (*TokenAccount, error) {
	var a TokenAccount
	if err := t.getRecord(recordKey(prefixToken, addr), &a); err != nil {
		return nil, fmt.Errorf("token account %s: %w", addr, err)
	}
	return &a, nil
}

func (t *Txn) PutTokenAccount(a *TokenAccount) error {
	return t.putRecord(recordKey(prefixToken, a.Address), a)
}

func (t *Txn) GetMetadata(addr ledger.Pubkey) (*Metadata, error) {
	var m Metadata
	if err := t.getRecord(recordKey(prefixMetadata, addr), &m); err != nil {
		return nil, fmt.Errorf("metadata %s: %w", addr, err)
	}
	return &m, nil
}

func (t *Txn) PutMetadata(m *Metadata) error {
	return t.putRecord(recordKey(prefixMetadata, m.Address), m)
}

// --- Escrow and order records ---

func (t *Txn) GetEscrow(addr ledger.Pubkey) (*EscrowAccount, error) {
	var e EscrowAccount
	if err := t.getRecord(recordKey(prefixEscrow, addr), &e); err != nil {
		return nil, fmt.Errorf("escrow %s: %w", addr, err)
	}
	return &e, nil
}

func (t *Txn) HasEscrow(addr ledger.Pubkey) (bool, error) {
	return t.has(recordKey(prefixEscrow, addr))
}

func (t *Txn) PutEscrow(e *EscrowAccount) error {
	return t.putRecord(recordKey(prefixEscrow, e.Address), e)
}

// GetOrderRecord returns the raw storage of an order record.
func (t *Txn) GetOrderRecord(addr ledger.Pubkey) ([]byte, error) {
	raw, err := t.get(recordKey(prefixOrder, addr))
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("order record %s: %w", addr, ErrAccountNotFound)
	}
	return raw, err
}

// HasOrderRecord reports whether storage is allocated at addr.
func (t *Txn) HasOrderRecord(addr ledger.Pubkey) (bool, error) {
	return t.has(recordKey(prefixOrder, addr))
}

func (t *Txn) PutOrderRecord(addr ledger.Pubkey, data []byte) {
	t.put(recordKey(prefixOrder, addr), append([]byte(nil), data...))
}

// DeleteOrderRecord frees the storage at addr. Rent already paid stays on
// the record's native account.
func (t *Txn) DeleteOrderRecord(addr ledger.Pubkey) {
	t.del(recordKey(prefixOrder, addr))
}

// --- Balances (ledger.Balances) ---

func (t *Txn) GetBalance(key ledger.AccountKey) (uint64, error) {
	raw, err := t.get(balanceKey(key))
	if errors.Is(err, store.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt balance for %s: %d bytes", key.AccountPath(), len(raw))
	}
	return binary.LittleEndian.Uint64(raw), nil
}

func (t *Txn) SetBalance(key ledger.AccountKey, amount uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], amount)
	t.put(balanceKey(key), buf[:])
	return nil
}

// --- Engine head ---

// Head returns the last committed sequence and state hash. found is false
// on an empty store.
func (t *Txn) Head() (seq int64, hash [32]byte, found bool, err error) {
	raw, err := t.get(metaKey("head"))
	if errors.Is(err, store.ErrKeyNotFound) {
		return 0, hash, false, nil
	}
	if err != nil {
		return 0, hash, false, err
	}
	if len(raw) != 40 {
		return 0, hash, false, fmt.Errorf("corrupt head record: %d bytes", len(raw))
	}
	seq = int64(binary.LittleEndian.Uint64(raw))
	copy(hash[:], raw[8:])
	return seq, hash, true, nil
}

// SetHead records the sequence and state hash of the command being committed.
func (t *Txn) SetHead(seq int64, hash [32]byte) {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint64(buf, uint64(seq))
	copy(buf[8:], hash[:])
	t.put(metaKey("head"), buf)
}

// --- Processed commands ---

func commandKey(eventType, idempotencyKey string) []byte {
	return metaKey("cmd/" + eventType + "/" + idempotencyKey)
}

// HasCommand reports whether a command was committed under this key.
func (t *Txn) HasCommand(eventType, idempotencyKey string) (bool, error) {
	return t.has(commandKey(eventType, idempotencyKey))
}

// MarkCommand records the command in the same batch as its effects.
func (t *Txn) MarkCommand(eventType, idempotencyKey string, seq int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seq))
	t.put(commandKey(eventType, idempotencyKey), buf[:])
}

// --- Commit ---

func (t *Txn) sortedKeys() []string {
	keys := make([]string, 0, len(t.writes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Digest returns a canonical encoding of the buffered writes, ignoring
// engine metadata. Two commands that change the same records the same
// way produce the same digest.
func (t *Txn) Digest() []byte {
	digest := make([]byte, 0, len(t.writes)*64)
	for _, k := range t.sortedKeys() {
		if k[0] == prefixMeta {
			continue
		}
		w := t.writes[k]
		digest = append(digest, byte(len(k)))
		digest = append(digest, k...)
		if w.deleted {
			digest = append(digest, 0)
			continue
		}
		digest = append(digest, 1)
		digest = binary.LittleEndian.AppendUint32(digest, uint32(len(w.value)))
		digest = append(digest, w.value...)
	}
	return digest
}

// Len returns the number of buffered writes.
func (t *Txn) Len() int { return len(t.writes) }

// Commit writes the buffer in one atomic batch and refreshes the listing
// cache. The Txn must not be used afterwards.
func (t *Txn) Commit() error {
	if t.readOnly {
		return errors.New("commit on read-only transaction")
	}
	if len(t.writes) == 0 {
		return nil
	}
	ops := make([]store.Op, 0, len(t.writes))
	for _, k := range t.sortedKeys() {
		w := t.writes[k]
		if w.deleted {
			ops = append(ops, store.Op{Type: store.OpDelete, Key: []byte(k)})
		} else {
			ops = append(ops, store.Op{Type: store.OpPut, Key: []byte(k), Value: w.value})
		}
	}
	if err := t.kv.Apply(ops); err != nil {
		if t.cache != nil {
			for addr := range t.listings {
				t.cache.Remove(addr)
			}
		}
		return fmt.Errorf("commit %d writes: %w", len(ops), err)
	}

	if t.cache != nil {
		for addr, c := range t.listings {
			if c == nil {
				t.cache.Remove(addr)
			} else {
				t.cache.Add(addr, *c)
			}
		}
	}
	t.writes = nil
	t.listings = nil
	return nil
}

// Discard drops every buffered write.
func (t *Txn) Discard() {
	t.writes = nil
	t.listings = nil
}
