package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniqueViolation() error {
	return &pgconn.PgError{
		Severity: "ERROR",
		Code:     "23505",
		Message:  `duplicate key value violates unique constraint "items_sku_key"`,
		Detail:   "Key (sku)=(A1) already exists.",
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expected   []FaultKind
		wantOK     bool
		wantKind   FaultKind
		wantStatus int
		wantDetail string
	}{
		{
			name:       "no rows when expected",
			err:        fmt.Errorf("get items: %w", pgx.ErrNoRows),
			expected:   []FaultKind{FaultNotFound},
			wantOK:     true,
			wantKind:   FaultNotFound,
			wantStatus: http.StatusNotFound,
			wantDetail: "The item not found",
		},
		{
			name:     "no rows when not expected",
			err:      fmt.Errorf("get items: %w", pgx.ErrNoRows),
			expected: []FaultKind{FaultIntegrity},
			wantOK:   false,
		},
		{
			name:       "unique violation",
			err:        fmt.Errorf("create items: %w", uniqueViolation()),
			expected:   []FaultKind{FaultNotFound, FaultIntegrity},
			wantOK:     true,
			wantKind:   FaultIntegrity,
			wantStatus: http.StatusBadRequest,
			wantDetail: `Got an error on add: duplicate key value violates unique constraint "items_sku_key"; Key (sku)=(A1) already exists.`,
		},
		{
			name:     "non-integrity pg error",
			err:      &pgconn.PgError{Code: "42P01", Message: `relation "items" does not exist`},
			expected: []FaultKind{FaultIntegrity},
			wantOK:   false,
		},
		{
			name:       "own fault always translated",
			err:        fmt.Errorf("wrapped: %w", NewFault(FaultNotFound, "")),
			expected:   nil,
			wantOK:     true,
			wantKind:   FaultNotFound,
			wantStatus: http.StatusNotFound,
			wantDetail: "The item not found",
		},
		{
			name:       "own fault with custom detail",
			err:        NewFault(FaultIntegrity, "There are no info in the input data"),
			wantOK:     true,
			wantKind:   FaultIntegrity,
			wantStatus: http.StatusBadRequest,
			wantDetail: "There are no info in the input data",
		},
		{
			name:     "unrelated error",
			err:      errors.New("connection reset by peer"),
			expected: []FaultKind{FaultNotFound, FaultIntegrity},
			wantOK:   false,
		},
		{
			name:   "nil",
			err:    nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := Translate(tt.err, tt.expected...)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				assert.Nil(t, f)
				return
			}
			assert.Equal(t, tt.wantKind, f.Kind)
			assert.Equal(t, tt.wantStatus, f.Status)
			assert.Equal(t, tt.wantDetail, f.Detail)
		})
	}
}

func TestTranslate_KeepsCause(t *testing.T) {
	cause := uniqueViolation()
	f, ok := Translate(fmt.Errorf("bulk upsert: %w", cause), FaultIntegrity)
	require.True(t, ok)

	var pgErr *pgconn.PgError
	assert.ErrorAs(t, f, &pgErr)
	assert.Equal(t, "23505", pgErr.Code)
}

func TestExtractDetail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"pg error with detail", uniqueViolation(), `duplicate key value violates unique constraint "items_sku_key"; Key (sku)=(A1) already exists.`},
		{"pg error without detail", &pgconn.PgError{Severity: "ERROR", Message: `null value in column "name" violates not-null constraint`}, `null value in column "name" violates not-null constraint`},
		{"plain error", errors.New("ERROR: boom\nDETAIL: more"), "boom; more"},
		{"no colon", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDetail(tt.err); got != tt.want {
				t.Errorf("ExtractDetail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFaultKind_Defaults(t *testing.T) {
	if got := FaultKind(99).Status(); got != http.StatusInternalServerError {
		t.Errorf("unknown kind Status = %d, want 500", got)
	}
	if got := NewFault(FaultIntegrity, "").Detail; got != "Got an error on add" {
		t.Errorf("empty integrity detail = %q", got)
	}
}
