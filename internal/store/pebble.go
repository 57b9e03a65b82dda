package store

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleKV stores state in a pebble database.
type PebbleKV struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble database in dir.
func OpenPebble(dir string) (*PebbleKV, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", dir, err)
	}
	return &PebbleKV{db: db}, nil
}

// OpenInMemory opens a pebble database on an in-memory filesystem.
// Contents are lost on Close.
func OpenInMemory() (*PebbleKV, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("open in-memory pebble: %w", err)
	}
	return &PebbleKV{db: db}, nil
}

func (p *PebbleKV) Get(key []byte) ([]byte, error) {
	if p.db == nil {
		return nil, ErrClosed
	}

	val, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()

	// Copy the value out
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (p *PebbleKV) Has(key []byte) (bool, error) {
	_, err := p.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *PebbleKV) Apply(ops []Op) error {
	if p.db == nil {
		return ErrClosed
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Type {
		case OpPut:
			if err := batch.Set(op.Key, op.Value, nil); err != nil {
				return err
			}
		case OpDelete:
			if err := batch.Delete(op.Key, nil); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
	}

	return batch.Commit(pebble.Sync)
}

func (p *PebbleKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if p.db == nil {
		return ErrClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: PrefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		val := append([]byte(nil), iter.Value()...)
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (p *PebbleKV) Close() error {
	if p.db == nil {
		return ErrClosed
	}
	err := p.db.Close()
	p.db = nil
	return err
}
