package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/restfab/internal/schema"
)

// Accessor performs create/read/update/delete operations on one model's table.
// It holds no connection; every method runs on the DBTX it is given.
type Accessor struct {
	model   *schema.Model
	table   string
	columns string
	orderBy string
}

// NewAccessor creates an accessor for m.
func NewAccessor(m *schema.Model) *Accessor {
	a := &Accessor{
		model:   m,
		table:   quoteIdentifier(m.Table),
		columns: quoteAll(m.ColumnNames()),
	}
	if pk := m.PrimaryKey(); len(pk) > 0 {
		a.orderBy = " ORDER BY " + quoteAll(pk)
	}
	return a
}

// Model returns the model the accessor operates on.
func (a *Accessor) Model() *schema.Model { return a.model }

// List returns rows matching filter, ordered by primary key.
// A negative limit returns every row after offset.
func (a *Accessor) List(ctx context.Context, db DBTX, filter schema.Values, offset, limit int) ([]schema.Values, error) {
	if err := a.checkColumns(filter); err != nil {
		return nil, err
	}

	var args argList
	q := "SELECT " + a.columns + " FROM " + a.table
	if where := whereClause(a.model, filter, &args); where != "" {
		q += " WHERE " + where
	}
	q += a.orderBy
	if offset > 0 {
		q += " OFFSET " + args.add(int64(offset))
	}
	if limit >= 0 {
		q += " LIMIT " + args.add(int64(limit))
	}

	rows, err := a.query(ctx, db, q, args)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", a.model.Table, err)
	}
	return rows, nil
}

// GetOne returns the single row matching filter.
// Zero rows wrap pgx.ErrNoRows; more than one returns ErrMultipleRows.
func (a *Accessor) GetOne(ctx context.Context, db DBTX, filter schema.Values) (schema.Values, error) {
	if err := a.checkColumns(filter); err != nil {
		return nil, err
	}

	var args argList
	q := "SELECT " + a.columns + " FROM " + a.table
	if where := whereClause(a.model, filter, &args); where != "" {
		q += " WHERE " + where
	}
	q += " LIMIT 2"

	rows, err := a.query(ctx, db, q, args)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", a.model.Table, err)
	}
	switch len(rows) {
	case 0:
		return nil, fmt.Errorf("get %s: %w", a.model.Table, pgx.ErrNoRows)
	case 1:
		return rows[0], nil
	}
	return nil, fmt.Errorf("get %s: %w", a.model.Table, ErrMultipleRows)
}

// Create inserts one row and returns it as stored.
// Columns absent from data take their server default.
func (a *Accessor) Create(ctx context.Context, db DBTX, data schema.Values) (schema.Values, error) {
	if err := a.checkColumns(data); err != nil {
		return nil, err
	}

	var args argList
	q := insertSQL(a.model.Table, a.model.Order(data), []schema.Values{data}, &args)
	q += " RETURNING " + a.columns

	rows, err := a.query(ctx, db, q, args)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", a.model.Table, err)
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("create %s: insert returned %d rows", a.model.Table, len(rows))
	}
	return rows[0], nil
}

// Update applies changes to the rows matching filter and returns them.
//
// An empty filter or an empty effective change set is rejected with an
// integrity fault. When no row matches, a not-found fault is returned unless
// opts.AllowNoMatch is set.
func (a *Accessor) Update(ctx context.Context, db DBTX, filter, changes schema.Values, opts UpdateOptions) ([]schema.Values, error) {
	if err := a.checkColumns(filter); err != nil {
		return nil, err
	}
	if err := a.checkColumns(changes); err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return nil, NewFault(FaultIntegrity, ErrEmptyFilter.Error()).withErr(ErrEmptyFilter)
	}

	var args argList
	set, err := a.setClause(changes, opts, &args)
	if err != nil {
		return nil, err
	}
	q := "UPDATE " + a.table + " SET " + set +
		" WHERE " + whereClause(a.model, filter, &args) +
		" RETURNING " + a.columns

	rows, err := a.query(ctx, db, q, args)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", a.model.Table, err)
	}
	if len(rows) == 0 && !opts.AllowNoMatch {
		return nil, NewFault(FaultNotFound, "")
	}
	return rows, nil
}

func (a *Accessor) setClause(changes schema.Values, opts UpdateOptions, args *argList) (string, error) {
	var sets []string

	if opts.Patch {
		for _, c := range a.model.Order(changes) {
			v := changes[c]
			if v == nil {
				continue
			}
			sets = append(sets, quoteIdentifier(c)+" = "+args.add(v))
		}
	} else {
		cols := opts.Columns
		if len(cols) == 0 {
			for _, c := range a.model.Columns {
				if !c.PrimaryKey {
					cols = append(cols, c.Name)
				}
			}
		}
		for _, name := range cols {
			col, ok := a.model.Column(name)
			if !ok {
				return "", fmt.Errorf("update %s: unknown column %q", a.model.Table, name)
			}
			v, present := changes[name]
			switch {
			case present:
				sets = append(sets, quoteIdentifier(name)+" = "+args.add(v))
			case col.HasDefault:
				sets = append(sets, quoteIdentifier(name)+" = DEFAULT")
			default:
				sets = append(sets, quoteIdentifier(name)+" = NULL")
			}
		}
	}

	if len(sets) == 0 {
		return "", NewFault(FaultIntegrity, "There are no info in the input data")
	}
	return strings.Join(sets, ", "), nil
}

// Delete removes the rows matching filter and returns how many were removed.
// Same empty-filter and no-match rules as Update.
func (a *Accessor) Delete(ctx context.Context, db DBTX, filter schema.Values, opts DeleteOptions) (int64, error) {
	if err := a.checkColumns(filter); err != nil {
		return 0, err
	}
	if len(filter) == 0 {
		return 0, NewFault(FaultIntegrity, ErrEmptyFilter.Error()).withErr(ErrEmptyFilter)
	}

	var args argList
	q := "DELETE FROM " + a.table + " WHERE " + whereClause(a.model, filter, &args)

	tag, err := db.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", a.model.Table, err)
	}
	if tag.RowsAffected() == 0 && !opts.AllowNoMatch {
		return 0, NewFault(FaultNotFound, "")
	}
	return tag.RowsAffected(), nil
}

func (a *Accessor) checkColumns(v schema.Values) error {
	if unknown := unknownColumns(a.model, v); len(unknown) > 0 {
		return fmt.Errorf("%s: unknown columns %s", a.model.Table, strings.Join(unknown, ", "))
	}
	return nil
}

// query runs q and converts every row into canonical values.
func (a *Accessor) query(ctx context.Context, db DBTX, q string, args argList) ([]schema.Values, error) {
	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	out := make([]schema.Values, len(maps))
	for i, m := range maps {
		v, err := a.normalize(m)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (a *Accessor) normalize(raw map[string]any) (schema.Values, error) {
	out := make(schema.Values, len(raw))
	for name, v := range raw {
		col, ok := a.model.Column(name)
		if !ok {
			out[name] = v
			continue
		}
		nv, err := col.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		out[name] = nv
	}
	return out, nil
}
