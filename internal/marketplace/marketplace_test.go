package marketplace_test

import (
	"GDALedger/internal/ledger"
	"GDALedger/internal/marketplace"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := marketplace.NewRecorder()
	require.NoError(t, r.OpenSellOrder(context.Background(), marketplace.SellOrder{RequestID: "a"}))

	r.Err = errors.New("unavailable")
	assert.Error(t, r.OpenSellOrder(context.Background(), marketplace.SellOrder{RequestID: "b"}))

	orders := r.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "a", orders[0].RequestID)
}

func TestSellOrder_JSON(t *testing.T) {
	order := marketplace.SellOrder{
		House: ledger.NativeMint,
		Price: math.MaxUint64,
	}
	data, err := json.Marshal(order)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price":"18446744073709551615"`)
	assert.Contains(t, string(data), `"house":"So11111111111111111111111111111111111111112"`)

	var back marketplace.SellOrder
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, order, back)
}

func TestSellSubject(t *testing.T) {
	order := marketplace.SellOrder{House: ledger.NativeMint}
	assert.Equal(t, "gda.marketplace.sell.So11111111111111111111111111111111111111112", marketplace.SellSubject(order))
}
