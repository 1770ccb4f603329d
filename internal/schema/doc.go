// Package schema derives validation and serialization schemas from mapped
// model structs.
//
// A mapped model is a plain Go struct whose fields are table columns:
//
//	type Item struct {
//	    ID   int64   `db:"id"   crud:"pk,default"`
//	    SKU  string  `db:"sku"  crud:"unique"`
//	    Name string  `db:"name"`
//	    Qty  int64   `db:"qty"`
//	    Note *string `db:"note"`
//	}
//
// [Reflect] inspects the struct once at startup and returns a [Model]. From a
// Model, [Model.Derive] produces a [Schema] for one purpose:
//
//   - ModeFull: every selected column; non-nullable columns without a default
//     are required. Used for responses and request bodies.
//   - ModePatch: every selected column is optional and absent by default. An
//     empty object is a valid, all-absent instance.
//   - ModeIdentity: only primary-key columns (plus unique columns in unique
//     mode). At least one field must be present.
//
// Column tag options (`crud:"..."`):
//
//	pk       column is (part of) the primary key
//	unique   column is a member of the table's uniqueness constraint
//	null     column accepts NULL (pointer fields are nullable implicitly)
//	default  column has a server-side default and may be omitted on insert
//	-        field is not a column
//
// Field types map onto a small set of primitive kinds (see [Kind]). A field
// whose type has no primitive mapping makes Reflect fail; this is a startup
// error, never a per-request one.
package schema
