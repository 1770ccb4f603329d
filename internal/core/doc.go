// Package core provides the data access and import logic behind the REST
// endpoints.
//
// It has no HTTP dependencies and can be used by web handlers, CLI tools, or
// tests without modification.
//
// # Architecture
//
//   - Accessor: generic create/read/update/delete over one reflected model,
//     plus the bulk insert-or-merge upsert.
//   - Faults: the closed set of store failures that map onto HTTP statuses,
//     and [Translate], which converts pgx errors into them.
//   - Import: CSV parsing and validation feeding [Accessor.BulkUpsert].
//   - Registry: resources registered at init time, listed by the index page.
//
// # Units of Work
//
// Every Accessor method takes a [DBTX]. Callers pass a pgx.Tx to group several
// statements into one transaction; the Accessor never begins or commits one
// itself.
//
//	tx, err := pool.Begin(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback(ctx)
//
//	row, err := items.Create(ctx, tx, schema.Values{"sku": "A1", "name": "Widget", "qty": int64(5)})
//	if err != nil {
//	    return err
//	}
//	return tx.Commit(ctx)
//
// # Bulk Upsert
//
// [Accessor.BulkUpsert] picks a strategy from the model's unique columns:
//
//  1. No unique columns, or nothing left to update: plain multi-row insert
//  2. One unique column: INSERT ... ON CONFLICT (col) DO UPDATE
//  3. Composite uniqueness: select existing rows by key tuple, update them in
//     one batch, insert the remainder
//
// Rows sharing a unique key are collapsed first; the last one in input order
// wins.
package core
