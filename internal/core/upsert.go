package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/restfab/internal/schema"
)

// BulkUpsert inserts rows, updating rows that already exist by unique key.
//
// Rows are collapsed by unique key first (last wins, first position kept).
// Every statement runs on db, so passing a transaction makes the whole batch
// atomic. An empty batch is a no-op.
func (a *Accessor) BulkUpsert(ctx context.Context, db DBTX, rows []schema.Values, opts UpsertOptions) (UpsertResult, error) {
	result := UpsertResult{Total: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}
	for _, r := range rows {
		if err := a.checkColumns(r); err != nil {
			return result, err
		}
	}

	unique := a.model.UniqueKey()
	if opts.SimpleInsert || len(unique) == 0 || len(a.updatableColumns(unique)) == 0 {
		n, err := a.insertRows(ctx, db, rows)
		if err != nil {
			return result, fmt.Errorf("bulk insert %s: %w", a.model.Table, err)
		}
		result.Inserted = n
		return result, nil
	}

	rows = dedupByKey(rows, unique)

	var err error
	if len(unique) == 1 {
		result.Inserted, result.Updated, err = a.upsertOnConflict(ctx, db, rows, unique[0])
	} else {
		result.Inserted, result.Updated, err = a.upsertComposite(ctx, db, rows, unique)
	}
	if err != nil {
		return result, fmt.Errorf("bulk upsert %s: %w", a.model.Table, err)
	}
	return result, nil
}

// updatableColumns returns the columns that are neither primary key nor in
// the unique key.
func (a *Accessor) updatableColumns(unique []string) []string {
	var out []string
	for _, c := range a.model.Columns {
		if c.PrimaryKey || contains(unique, c.Name) {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

// insertRows inserts rows in batches. Rows without any column each become
// one DEFAULT VALUES insert.
func (a *Accessor) insertRows(ctx context.Context, db DBTX, rows []schema.Values) (int, error) {
	cols := unionColumns(a.model, rows)
	total := 0
	if len(cols) == 0 {
		q := insertSQL(a.model.Table, nil, nil, nil)
		for range rows {
			tag, err := db.Exec(ctx, q)
			if err != nil {
				return total, err
			}
			total += int(tag.RowsAffected())
		}
		return total, nil
	}

	for _, chunk := range chunkRows(rows, len(cols)) {
		var args argList
		q := insertSQL(a.model.Table, cols, chunk, &args)
		tag, err := db.Exec(ctx, q, args...)
		if err != nil {
			return total, err
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

// upsertOnConflict handles a single unique column with one statement per
// batch. xmax is zero only for freshly inserted tuples, which separates
// inserts from updates in the RETURNING set.
func (a *Accessor) upsertOnConflict(ctx context.Context, db DBTX, rows []schema.Values, key string) (inserted, updated int, err error) {
	cols := unionColumns(a.model, rows)

	var sets []string
	for _, c := range cols {
		if c == key {
			continue
		}
		if col, _ := a.model.Column(c); col.PrimaryKey {
			continue
		}
		sets = append(sets, quoteIdentifier(c)+" = EXCLUDED."+quoteIdentifier(c))
	}

	conflict := " ON CONFLICT (" + quoteIdentifier(key) + ")"
	if len(sets) == 0 {
		// Nothing to write on conflict; the existing row counts as updated.
		conflict += " DO NOTHING RETURNING true"
	} else {
		conflict += " DO UPDATE SET " + strings.Join(sets, ", ") + " RETURNING (xmax = 0)"
	}

	for _, chunk := range chunkRows(rows, len(cols)) {
		var args argList
		q := insertSQL(a.model.Table, cols, chunk, &args) + conflict

		res, err := db.Query(ctx, q, args...)
		if err != nil {
			return 0, 0, err
		}
		flags, err := pgx.CollectRows(res, pgx.RowTo[bool])
		if err != nil {
			return 0, 0, err
		}
		if len(sets) == 0 {
			inserted += len(flags)
			updated += len(chunk) - len(flags)
			continue
		}
		for _, fresh := range flags {
			if fresh {
				inserted++
			} else {
				updated++
			}
		}
	}
	return inserted, updated, nil
}

// upsertComposite handles a multi-column unique key: look up which keys
// already exist, update those rows in one batch, insert the rest.
func (a *Accessor) upsertComposite(ctx context.Context, db DBTX, rows []schema.Values, unique []string) (inserted, updated int, err error) {
	pending := make(map[string]int, len(rows))
	for i, r := range rows {
		pending[rowKey(r, unique)] = i
	}

	existing, err := a.selectByKeys(ctx, db, rows, unique)
	if err != nil {
		return 0, 0, err
	}

	batch := &pgx.Batch{}
	matched := make(map[int]bool)
	for _, ex := range existing {
		i, ok := pending[rowKey(ex, unique)]
		if !ok || matched[i] {
			continue
		}
		matched[i] = true
		delete(pending, rowKey(ex, unique))

		if q, args, ok := a.updateByKey(rows[i], unique); ok {
			batch.Queue(q, args...)
		}
		updated++
	}

	if batch.Len() > 0 {
		br := db.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, 0, err
			}
		}
		if err := br.Close(); err != nil {
			return 0, 0, err
		}
	}

	var remainder []schema.Values
	for i, r := range rows {
		if !matched[i] {
			remainder = append(remainder, r)
		}
	}
	inserted, err = a.insertRows(ctx, db, remainder)
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

// selectByKeys fetches stored rows whose unique key matches any of rows,
// looking keys up in batches.
func (a *Accessor) selectByKeys(ctx context.Context, db DBTX, rows []schema.Values, unique []string) ([]schema.Values, error) {
	var out []schema.Values
	for _, chunk := range chunkRows(rows, len(unique)) {
		var args argList
		conds := make([]string, len(chunk))
		for i, r := range chunk {
			filter := make(schema.Values, len(unique))
			for _, c := range unique {
				filter[c] = r[c]
			}
			conds[i] = "(" + whereClause(a.model, filter, &args) + ")"
		}
		q := "SELECT " + a.columns + " FROM " + a.table + " WHERE " + strings.Join(conds, " OR ")
		found, err := a.query(ctx, db, q, args)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// updateByKey builds the UPDATE for one existing row. ok is false when the
// row carries nothing besides its key.
func (a *Accessor) updateByKey(row schema.Values, unique []string) (string, []any, bool) {
	var args argList
	var sets []string
	for _, c := range a.model.Order(row) {
		if contains(unique, c) {
			continue
		}
		sets = append(sets, quoteIdentifier(c)+" = "+args.add(row[c]))
	}
	if len(sets) == 0 {
		return "", nil, false
	}

	key := make(schema.Values, len(unique))
	for _, c := range unique {
		key[c] = row[c]
	}
	q := "UPDATE " + a.table + " SET " + strings.Join(sets, ", ") +
		" WHERE " + whereClause(a.model, key, &args)
	return q, args, true
}

// dedupByKey collapses rows sharing a unique key. The last row wins and
// takes the position of the first occurrence.
func dedupByKey(rows []schema.Values, unique []string) []schema.Values {
	index := make(map[string]int, len(rows))
	out := make([]schema.Values, 0, len(rows))
	for _, r := range rows {
		k := rowKey(r, unique)
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

// rowKey renders the unique-key tuple of r as a map key.
func rowKey(r schema.Values, unique []string) string {
	var b strings.Builder
	for i, c := range unique {
		if i > 0 {
			b.WriteByte(0)
		}
		switch v := r[c].(type) {
		case nil:
			b.WriteString("\x01null")
		case time.Time:
			b.WriteString(v.UTC().Format(time.RFC3339Nano))
		default:
			fmt.Fprintf(&b, "%T:%v", v, v)
		}
	}
	return b.String()
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
