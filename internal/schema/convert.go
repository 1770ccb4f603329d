package schema

// convert.go turns user-supplied values into the canonical Go value for a
// column kind.
//
// Three entry points:
//   - Parse: text from CSV cells, query parameters and path segments
//   - Coerce: decoded JSON values (json.Number, string, bool, nil)
//   - Normalize: typed Go values from structs or database rows
//
// Canonical values are string, int64, float64, bool, time.Time and uuid.UUID.

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 20

var (
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02T15:04",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// CoerceError is a single value conversion failure.
type CoerceError struct {
	Msg  string
	Type string
}

func (e *CoerceError) Error() string { return e.Msg }

func errKind(k Kind) *CoerceError {
	switch k {
	case KindString:
		return &CoerceError{Msg: "str type expected", Type: "type_error.str"}
	case KindInt:
		return &CoerceError{Msg: "value is not a valid integer", Type: "type_error.integer"}
	case KindFloat:
		return &CoerceError{Msg: "value is not a valid float", Type: "type_error.float"}
	case KindBool:
		return &CoerceError{Msg: "value could not be parsed to a boolean", Type: "type_error.bool"}
	case KindTime:
		return &CoerceError{Msg: "invalid datetime format", Type: "value_error.datetime"}
	case KindUUID:
		return &CoerceError{Msg: "value is not a valid uuid", Type: "type_error.uuid"}
	}
	return &CoerceError{Msg: "unsupported value", Type: "type_error"}
}

// Parse converts text into the column's canonical value.
func (c Column) Parse(s string) (any, error) {
	switch c.Kind {
	case KindString:
		return s, nil
	case KindInt:
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errKind(c.Kind)
		}
		return n, nil
	case KindFloat:
		f, ok := parseFloat(s)
		if !ok {
			return nil, errKind(c.Kind)
		}
		return f, nil
	case KindBool:
		switch strings.TrimSpace(strings.ToLower(s)) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
		return nil, errKind(c.Kind)
	case KindTime:
		t, ok := parseTime(s)
		if !ok {
			return nil, errKind(c.Kind)
		}
		return t, nil
	case KindUUID:
		u, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, errKind(c.Kind)
		}
		return u, nil
	}
	return nil, errKind(c.Kind)
}

// Coerce converts a decoded JSON value into the column's canonical value.
// Strings are parsed for non-text kinds, so "5" is accepted for an integer.
func (c Column) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if c.Kind == KindString {
			return x, nil
		}
		return c.Parse(x)
	case json.Number:
		switch c.Kind {
		case KindInt:
			if n, err := x.Int64(); err == nil {
				return n, nil
			}
			f, err := x.Float64()
			if err != nil {
				return nil, errKind(c.Kind)
			}
			if n, ok := floatToInt(f); ok {
				return n, nil
			}
			return nil, errKind(c.Kind)
		case KindFloat:
			f, err := x.Float64()
			if err != nil {
				return nil, errKind(c.Kind)
			}
			return f, nil
		}
		return nil, errKind(c.Kind)
	case map[string]any, []any:
		return nil, errKind(c.Kind)
	}
	return c.Normalize(v)
}

// Normalize converts a typed Go value into the column's canonical value.
func (c Column) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Kind {
	case KindString:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		}
	case KindInt:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case uint:
			return int64(x), nil
		case uint8:
			return int64(x), nil
		case uint16:
			return int64(x), nil
		case uint32:
			return int64(x), nil
		case uint64:
			if x > math.MaxInt64 {
				break
			}
			return int64(x), nil
		case float64:
			if n, ok := floatToInt(x); ok {
				return n, nil
			}
		case pgtype.Numeric:
			i, err := x.Int64Value()
			if err == nil && i.Valid {
				return i.Int64, nil
			}
		}
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case pgtype.Numeric:
			f, err := x.Float64Value()
			if err == nil && f.Valid {
				return f.Float64, nil
			}
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case pgtype.Timestamptz:
			if x.Valid {
				return x.Time, nil
			}
		case pgtype.Date:
			if x.Valid {
				return x.Time, nil
			}
		}
	case KindUUID:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case [16]byte:
			return uuid.UUID(x), nil
		case pgtype.UUID:
			if x.Valid {
				return uuid.UUID(x.Bytes), nil
			}
		case string:
			if u, err := uuid.Parse(x); err == nil {
				return u, nil
			}
		}
	}
	return nil, errKind(c.Kind)
}

// parseFloat accepts currency symbols, thousands separators and the
// accounting format "(123.45)" for negatives.
// floatToInt converts a whole f that fits in an int64.
func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, "£", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}
