package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/restfab/internal/schema"
)

// quoteIdentifier safely quotes a PostgreSQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

const (
	// maxBindParams is the most parameters PostgreSQL accepts in one statement.
	maxBindParams = 65535

	// batchSize caps the rows sent in one bulk statement.
	batchSize = 5000
)

// chunkRows splits rows into batches that bind at most maxBindParams values
// at perRow parameters per row.
func chunkRows(rows []schema.Values, perRow int) [][]schema.Values {
	size := batchSize
	if perRow > 0 && maxBindParams/perRow < size {
		size = maxBindParams / perRow
	}
	if size < 1 {
		size = 1
	}

	chunks := make([][]schema.Values, 0, (len(rows)+size-1)/size)
	for len(rows) > size {
		chunks = append(chunks, rows[:size:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		chunks = append(chunks, rows)
	}
	return chunks
}

// argList accumulates positional query arguments.
type argList []any

// add appends v and returns its placeholder.
func (a *argList) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// whereClause renders filter as "col = $n AND ..." in column order.
// A nil value renders as IS NULL. Returns "" for an empty filter.
func whereClause(m *schema.Model, filter schema.Values, args *argList) string {
	cols := m.Order(filter)
	if len(cols) == 0 {
		return ""
	}
	conds := make([]string, len(cols))
	for i, c := range cols {
		v := filter[c]
		if v == nil {
			conds[i] = quoteIdentifier(c) + " IS NULL"
			continue
		}
		conds[i] = quoteIdentifier(c) + " = " + args.add(v)
	}
	return strings.Join(conds, " AND ")
}

// unknownColumns returns keys of v that are not columns of m.
func unknownColumns(m *schema.Model, v schema.Values) []string {
	var out []string
	for _, k := range v.Keys() {
		if _, ok := m.Column(k); !ok {
			out = append(out, k)
		}
	}
	return out
}

// insertSQL renders a multi-row insert over cols. Rows missing a column get
// DEFAULT in that position.
func insertSQL(table string, cols []string, rows []schema.Values, args *argList) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdentifier(table))
	if len(cols) == 0 {
		b.WriteString(" DEFAULT VALUES")
		return b.String()
	}
	b.WriteString(" (")
	b.WriteString(quoteAll(cols))
	b.WriteString(") VALUES ")
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, c := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			v, ok := row[c]
			if !ok {
				b.WriteString("DEFAULT")
				continue
			}
			b.WriteString(args.add(v))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// unionColumns returns the columns present in any row, in model order.
func unionColumns(m *schema.Model, rows []schema.Values) []string {
	seen := make(schema.Values)
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	return m.Order(seen)
}
