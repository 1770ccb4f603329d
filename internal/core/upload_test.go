package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/restfab/internal/schema"
)

func TestParseCSV(t *testing.T) {
	s := itemModel.Request()

	input := "\xEF\xBB\xBFsku,name,qty,note,unknown\n" +
		"A1,Widget,5,,x\n" +
		"\n" +
		"B2,Gadget,\"1,200\",fragile,y\n"

	rows, err := ParseCSV(WrapUpload(strings.NewReader(input)), s)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, schema.Values{"sku": "A1", "name": "Widget", "qty": int64(5), "note": ""}, rows[0])
	assert.Equal(t, schema.Values{"sku": "B2", "name": "Gadget", "qty": int64(1200), "note": "fragile"}, rows[1])
}

func TestParseCSV_InvalidRow(t *testing.T) {
	s := itemModel.Request()
	input := "sku,name,qty\nA1,Widget,5\nB2,Gadget,lots\n"

	_, err := ParseCSV(strings.NewReader(input), s)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Line)
	assert.Equal(t, map[string]string{"sku": "B2", "name": "Gadget", "qty": "lots"}, rowErr.Row)
	require.Len(t, rowErr.Errors, 1)
	assert.Equal(t, []string{"qty"}, rowErr.Errors[0].Loc)
}

func TestParseCSV_MissingRequiredColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("sku,qty\nA1,1\n"), itemModel.Request())

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "field required", rowErr.Errors[0].Msg)
	assert.Equal(t, []string{"name"}, rowErr.Errors[0].Loc)
}

func TestParseCSV_Errors(t *testing.T) {
	s := itemModel.Request()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty file", "", ErrEmptyFile},
		{"only BOM", "\xEF\xBB\xBF", ErrEmptyFile},
		{"bad encoding in body", "sku,name,qty\nA1,caf\xe9,1\n", ErrInvalidEncoding},
		{"bad encoding in header", "sk\xffu\n", ErrInvalidEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(WrapUpload(strings.NewReader(tt.input)), s)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseCSV error = %v, want %v", err, tt.want)
			}
		})
	}

	_, err := ParseCSV(strings.NewReader("sku,name\n\"A1,Widget\n"), s)
	if err == nil || !strings.Contains(err.Error(), "invalid csv") {
		t.Errorf("unterminated quote error = %v, want invalid csv", err)
	}
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("sku,name,qty\n"), itemModel.Request())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseImportMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ImportMode
		wantErr bool
	}{
		{"", ImportMerge, false},
		{"merge", ImportMerge, false},
		{"INSERT", ImportInsert, false},
		{"replace", "", true},
	}
	for _, tt := range tests {
		got, err := ParseImportMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseImportMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseImportMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestImport_EmptyBatch(t *testing.T) {
	a := NewAccessor(itemModel)
	called := false
	prep := func(ctx context.Context, db DBTX, rows []schema.Values, acc *Accessor) ([]schema.Values, error) {
		called = true
		return rows, nil
	}

	res, err := Import(t.Context(), nil, a, nil, ImportMerge, prep)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, UpsertResult{}, res)
}

func TestImport_PreparerError(t *testing.T) {
	a := NewAccessor(itemModel)
	prep := func(context.Context, DBTX, []schema.Values, *Accessor) ([]schema.Values, error) {
		return nil, errors.New("lookup failed")
	}

	_, err := Import(t.Context(), nil, a, []schema.Values{{"sku": "A1"}}, ImportMerge, prep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prepare import: lookup failed")
}
