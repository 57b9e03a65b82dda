package store_test

import (
	"GDALedger/internal/store"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *store.PebbleKV {
	t.Helper()
	kv, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestPebbleKV_GetMissing(t *testing.T) {
	kv := openMem(t)

	_, err := kv.Get([]byte("nope"))
	assert.ErrorIs(t, err, store.ErrKeyNotFound)

	ok, err := kv.Has([]byte("nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPebbleKV_ApplyPutDelete(t *testing.T) {
	kv := openMem(t)

	require.NoError(t, kv.Apply([]store.Op{
		{Type: store.OpPut, Key: []byte("a"), Value: []byte("1")},
		{Type: store.OpPut, Key: []byte("b"), Value: []byte("2")},
	}))
	got, err := kv.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, kv.Apply([]store.Op{{Type: store.OpDelete, Key: []byte("a")}}))
	ok, err := kv.Has([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPebbleKV_ApplyRejectsUnknownOp(t *testing.T) {
	kv := openMem(t)

	err := kv.Apply([]store.Op{
		{Type: store.OpPut, Key: []byte("a"), Value: []byte("1")},
		{Type: store.OpType(9), Key: []byte("b")},
	})
	require.Error(t, err)

	ok, _ := kv.Has([]byte("a"))
	assert.False(t, ok, "partial batch was committed")
}

func TestPebbleKV_IteratePrefix(t *testing.T) {
	kv := openMem(t)
	require.NoError(t, kv.Apply([]store.Op{
		{Type: store.OpPut, Key: []byte("l/2"), Value: []byte("y")},
		{Type: store.OpPut, Key: []byte("l/1"), Value: []byte("x")},
		{Type: store.OpPut, Key: []byte("m/1"), Value: []byte("z")},
	}))

	var keys []string
	err := kv.Iterate([]byte("l/"), func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"l/1", "l/2"}, keys)

	stop := errors.New("stop")
	err = kv.Iterate([]byte("l/"), func(_, _ []byte) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestPebbleKV_Closed(t *testing.T) {
	kv, err := store.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	_, err = kv.Get([]byte("a"))
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, kv.Close(), store.ErrClosed)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("b"), store.PrefixEnd([]byte("a")))
	assert.Equal(t, []byte{0x02}, store.PrefixEnd([]byte{0x01, 0xff}))
	assert.Nil(t, store.PrefixEnd([]byte{0xff, 0xff}))
}
