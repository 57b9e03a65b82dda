package cli

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/config"
	"GDALedger/internal/ledger"
	"GDALedger/internal/store"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"rebuild-projections"},
		{"quote"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestOpenStore_InMemory(t *testing.T) {
	kv, err := openStore(config.StoreConfig{})
	require.NoError(t, err)
	require.NoError(t, kv.Close())
}

func TestQuote_RequiresPersistentStore(t *testing.T) {
	t.Setenv("GDA_STORE_DIR", "")
	_, err := run(t, "quote", ledger.NativeMint.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.dir")
}

func TestQuote_UnknownListing(t *testing.T) {
	dir := t.TempDir()
	kv, err := store.OpenPebble(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	t.Setenv("GDA_STORE_DIR", dir)
	_, err = run(t, "quote", ledger.NativeMint.String(), "--size", "1", "--at", "1700000000")
	assert.ErrorIs(t, err, auction.ErrListingNotFound)
}

func TestQuote_BadListingKey(t *testing.T) {
	t.Setenv("GDA_STORE_DIR", t.TempDir())
	_, err := run(t, "quote", "not-a-key")
	assert.ErrorIs(t, err, ledger.ErrInvalidPubkey)
}

func runPipeline(t *testing.T, ctx context.Context, p *pipeline) error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- p.run(ctx) }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
		return nil
	}
}

func TestPipeline_CancelIsCleanStop(t *testing.T) {
	committed := make(chan int, 8)
	drained := 0
	p := &pipeline{closeSinks: func() { close(committed) }, drainTimeout: time.Second}
	p.addFront(func(ctx context.Context) error {
		for i := 0; i < 3; i++ {
			committed <- i
		}
		<-ctx.Done()
		return ctx.Err()
	})
	p.addSink(func(ctx context.Context) error {
		for range committed {
			drained++
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, runPipeline(t, ctx, p), "a signal stop must exit 0")
	assert.Equal(t, 3, drained, "sinks drain what the front committed")
}

func TestPipeline_SinkFailureStopsFront(t *testing.T) {
	p := &pipeline{drainTimeout: time.Second}
	p.addFront(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	p.addSink(func(context.Context) error { return errors.New("projection down") })

	err := runPipeline(t, context.Background(), p)
	assert.EqualError(t, err, "projection down")
}

func TestPipeline_DrainTimeoutStopsStuckSink(t *testing.T) {
	never := make(chan struct{})
	p := &pipeline{drainTimeout: 10 * time.Millisecond}
	p.addFront(func(context.Context) error { return errors.New("listen: address in use") })
	p.addSink(func(ctx context.Context) error {
		select {
		case <-never:
		case <-ctx.Done():
		}
		return ctx.Err()
	})

	err := runPipeline(t, context.Background(), p)
	assert.EqualError(t, err, "listen: address in use")
}
