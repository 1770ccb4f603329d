package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/restfab/internal/schema"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// NoLimit disables the row limit of List.
const NoLimit = -1

// DefaultLimit is the page size used when a caller does not pick one.
const DefaultLimit = 100

var (
	// ErrMultipleRows is returned by GetOne when the filter matches more
	// than one row. It is never translated into a client fault.
	ErrMultipleRows = errors.New("multiple rows were found when exactly one was required")

	// ErrEmptyFilter is wrapped by the fault returned when an update or
	// delete has no filter and would touch every row.
	ErrEmptyFilter = errors.New("refusing to modify every row: empty filter")
)

// UpdateOptions configures Accessor.Update.
type UpdateOptions struct {
	// Patch writes only the changes that are present and non-null.
	// Otherwise every column in Columns is written; absent nullable columns
	// become NULL and absent columns with a server default become DEFAULT.
	Patch bool

	// Columns limits a full replace. Empty means every non-primary-key column.
	Columns []string

	// AllowNoMatch suppresses the not-found fault when no row matched.
	AllowNoMatch bool
}

// DeleteOptions configures Accessor.Delete.
type DeleteOptions struct {
	AllowNoMatch bool
}

// UpsertOptions configures Accessor.BulkUpsert.
type UpsertOptions struct {
	// SimpleInsert skips conflict handling; duplicates fail with an
	// integrity fault.
	SimpleInsert bool
}

// Overrides replaces the Accessor calls behind a resource's routes. A nil
// field keeps the Accessor method. Replace and patch both go through Update;
// opts.Patch tells them apart.
type Overrides struct {
	List   func(ctx context.Context, db DBTX, filter schema.Values, offset, limit int) ([]schema.Values, error)
	Get    func(ctx context.Context, db DBTX, filter schema.Values) (schema.Values, error)
	Create func(ctx context.Context, db DBTX, data schema.Values) (schema.Values, error)
	Update func(ctx context.Context, db DBTX, filter, changes schema.Values, opts UpdateOptions) ([]schema.Values, error)
	Delete func(ctx context.Context, db DBTX, filter schema.Values, opts DeleteOptions) (int64, error)
}

// Bind fills the nil fields of o with the methods of a.
func (o Overrides) Bind(a *Accessor) Overrides {
	if o.List == nil {
		o.List = a.List
	}
	if o.Get == nil {
		o.Get = a.GetOne
	}
	if o.Create == nil {
		o.Create = a.Create
	}
	if o.Update == nil {
		o.Update = a.Update
	}
	if o.Delete == nil {
		o.Delete = a.Delete
	}
	return o
}

// UpsertResult reports what a bulk upsert did.
type UpsertResult struct {
	Total    int `json:"total_count"`
	Inserted int `json:"inserted_count"`
	Updated  int `json:"updated_count"`
}
