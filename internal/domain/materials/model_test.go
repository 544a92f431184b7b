package materials

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/makerspace/internal/docstore"
)

func TestFromDocument(t *testing.T) {
	m, err := FromDocument(docstore.Document{ID: "m1", Fields: docstore.Fields{
		"name":                "PLA filament",
		"unit":                "g",
		"stock":               json.Number("10"),
		"low_stock_threshold": 2.5,
		"member_price":        "5",
		"drop_in_price":       8,
	}})
	require.NoError(t, err)
	assert.Equal(t, "PLA filament", m.Name)
	assert.True(t, m.Stock.Equal(decimal.NewFromInt(10)))
	assert.True(t, m.LowStockThreshold.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, m.DropInPrice.Equal(decimal.NewFromInt(8)))
	assert.False(t, m.IsLow())
}

func TestFromDocumentMalformed(t *testing.T) {
	_, err := FromDocument(docstore.Document{ID: "m1", Fields: docstore.Fields{"stock": 1.0}})
	require.ErrorIs(t, err, ErrMalformed)

	_, err = FromDocument(docstore.Document{ID: "m2", Fields: docstore.Fields{"name": "MDF", "stock": "lots"}})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestIsLowAtThreshold(t *testing.T) {
	m := Material{Stock: decimal.NewFromInt(2), LowStockThreshold: decimal.NewFromInt(2)}
	assert.True(t, m.IsLow())
	m.Stock = decimal.RequireFromString("2.01")
	assert.False(t, m.IsLow())
}

func TestRepoListSkipsMalformed(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory(docstore.RetryConfig{})
	repo := NewRepo(store)

	require.NoError(t, repo.Save(ctx, Material{
		ID: "m1", Name: "Plywood 3mm", Unit: "sheet",
		Stock: decimal.NewFromInt(12), LowStockThreshold: decimal.NewFromInt(3),
		MemberPrice: decimal.RequireFromString("4.50"), DropInPrice: decimal.NewFromInt(6),
	}))
	require.NoError(t, store.Put(ctx, Ref("broken"), docstore.Fields{"name": "??", "stock": true}))

	list, skipped, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m1", list[0].ID)
	assert.True(t, list[0].MemberPrice.Equal(decimal.RequireFromString("4.5")))
	assert.Len(t, skipped, 1)
}
