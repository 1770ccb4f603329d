package models

import (
	"time"

	"github.com/JonMunkholm/restfab/internal/core"
	"github.com/JonMunkholm/restfab/internal/schema"
)

// StockLevel is the counted quantity of one SKU in one warehouse.
// (warehouse, sku) is unique, so CSV merges match on both columns.
type StockLevel struct {
	ID        int64     `db:"id" crud:"pk,default"`
	Warehouse string    `db:"warehouse" crud:"unique"`
	SKU       string    `db:"sku" crud:"unique"`
	Qty       int64     `db:"qty" crud:"default"`
	CountedAt time.Time `db:"counted_at" crud:"default"`
}

// StockLevelModel is the reflected StockLevel mapping.
var StockLevelModel = schema.MustReflect(StockLevel{})

func init() {
	core.Register(core.Definition{
		Label:   "Stock levels",
		Model:   StockLevelModel,
		Exclude: []core.Operation{core.OpReplace},
	})
}
