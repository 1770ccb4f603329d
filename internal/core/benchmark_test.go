package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/JonMunkholm/restfab/internal/schema"
)

// ============================================================================
// CSV Import Benchmarks
// ============================================================================

// BenchmarkParseCSV measures decoding and validating rows of the items table.
func BenchmarkParseCSV(b *testing.B) {
	data := generateItemCSV(100)
	s := itemModel.Request()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseCSV(WrapUpload(bytes.NewReader(data)), s); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParseCSV_Large is BenchmarkParseCSV on a file larger than the
// validator buffer.
func BenchmarkParseCSV_Large(b *testing.B) {
	data := generateItemCSV(5000)
	s := itemModel.Request()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseCSV(WrapUpload(bytes.NewReader(data)), s); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWrapUpload isolates the BOM and UTF-8 checks from CSV decoding.
func BenchmarkWrapUpload(b *testing.B) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, bytes.Repeat([]byte("Ünïcödé line 12345\n"), 5000)...)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		io.Copy(io.Discard, WrapUpload(bytes.NewReader(data)))
	}
}

// ============================================================================
// Upsert Planning Benchmarks
// ============================================================================

// BenchmarkDedupByKey measures collapsing a batch where half the keys repeat.
func BenchmarkDedupByKey(b *testing.B) {
	rows := make([]schema.Values, 2000)
	for i := range rows {
		rows[i] = schema.Values{
			"warehouse": "w" + strconv.Itoa(i%3),
			"sku":       "S" + strconv.Itoa(i%1000),
			"qty":       int64(i),
		}
	}
	unique := stockModel.UniqueKey()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		dedupByKey(rows, unique)
	}
}

// BenchmarkInsertSQL measures building one multi-row INSERT.
func BenchmarkInsertSQL(b *testing.B) {
	rows := make([]schema.Values, 500)
	for i := range rows {
		rows[i] = schema.Values{"sku": fmt.Sprintf("S%d", i), "name": "n", "qty": int64(i)}
	}
	cols := unionColumns(itemModel, rows)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var args argList
		insertSQL(itemModel.Table, cols, rows, &args)
	}
}

// BenchmarkWhereClause measures filter rendering, including a NULL test.
func BenchmarkWhereClause(b *testing.B) {
	filter := schema.Values{"sku": "A1", "qty": int64(3), "note": nil}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var args argList
		whereClause(itemModel, filter, &args)
	}
}

// BenchmarkQuoteIdentifier measures identifier quoting.
func BenchmarkQuoteIdentifier(b *testing.B) {
	names := []string{"id", "counted_at", `we"ird`, "Mixed Case"}

	for i := 0; i < b.N; i++ {
		for _, n := range names {
			quoteIdentifier(n)
		}
	}
}

// BenchmarkTranslate measures fault matching on a driver error chain.
func BenchmarkTranslate(b *testing.B) {
	err := fmt.Errorf("create items: %w", uniqueViolation())

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Translate(err, FaultNotFound, FaultIntegrity)
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// generateItemCSV returns an items upload with the given number of rows.
func generateItemCSV(rows int) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"sku", "name", "qty", "note"})
	for i := 0; i < rows; i++ {
		note := ""
		if i%2 == 0 {
			note = "fragile"
		}
		w.Write([]string{"SKU-" + strconv.Itoa(i), "Widget", "1,200", note})
	}
	w.Flush()

	return buf.Bytes()
}
