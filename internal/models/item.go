package models

import (
	"github.com/JonMunkholm/restfab/internal/core"
	"github.com/JonMunkholm/restfab/internal/schema"
)

// Item is a catalog entry identified by its SKU.
type Item struct {
	ID   int64   `db:"id" crud:"pk,default"`
	SKU  string  `db:"sku" crud:"unique"`
	Name string  `db:"name"`
	Qty  int64   `db:"qty"`
	Note *string `db:"note"`
}

// ItemModel is the reflected Item mapping.
var ItemModel = schema.MustReflect(Item{})

func init() {
	core.Register(core.Definition{
		Label:          "Items",
		Model:          ItemModel,
		UniqueIdentity: true,
	})
}
