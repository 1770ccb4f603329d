package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/restfab/internal/core"
	"github.com/JonMunkholm/restfab/internal/schema"
)

func TestRegistered(t *testing.T) {
	for _, name := range []string{"items", "stock_levels", "customers"} {
		_, ok := core.Get(name)
		assert.True(t, ok, "resource %s registered", name)
	}

	stock, _ := core.Get("stock_levels")
	assert.False(t, stock.Allows(core.OpReplace))
	assert.Equal(t, []string{"warehouse", "sku"}, StockLevelModel.UniqueKey())
}

func TestModels(t *testing.T) {
	assert.Equal(t, "items", ItemModel.Table)
	assert.Equal(t, []string{"id"}, ItemModel.PrimaryKey())

	note, ok := ItemModel.Column("note")
	require.True(t, ok)
	assert.True(t, note.Nullable)

	id, ok := CustomerModel.Column("id")
	require.True(t, ok)
	assert.Equal(t, schema.KindUUID, id.Kind)
	assert.True(t, id.HasDefault)

	for _, table := range []string{ItemModel.Table, StockLevelModel.Table, CustomerModel.Table} {
		assert.Contains(t, DDL(), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}

func TestNormalizeUSState(t *testing.T) {
	tests := map[string]string{
		"California":    "CA",
		"  new   york ": "NY",
		"tx":            "TX",
		"WA":            "WA",
		"Ontario":       "Ontario",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeUSState(in), "NormalizeUSState(%q)", in)
	}
}

func TestPrepareCustomers(t *testing.T) {
	rows := []schema.Values{
		{"email": " Ada@Example.COM ", "name": "Ada", "state": "texas"},
		{"email": "bob@example.com", "name": "Bob", "state": nil},
	}
	out, err := PrepareCustomers(t.Context(), nil, rows, nil)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", out[0]["email"])
	assert.Equal(t, "TX", out[0]["state"])
	assert.Nil(t, out[1]["state"])
}
