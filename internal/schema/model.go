package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Kind is the primitive type a column value is coerced to.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindUUID
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindTime:
		return "datetime"
	case KindUUID:
		return "uuid"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Column describes one mapped table column.
type Column struct {
	Name       string // Database column name, also the JSON key
	Field      string // Go struct field name
	Kind       Kind
	Nullable   bool
	HasDefault bool // Server-side default; may be omitted on insert
	PrimaryKey bool
	Unique     bool // Member of the table's uniqueness constraint
}

// Model is the reflected description of one mapped struct.
type Model struct {
	Name    string // Go type name: "Item"
	Table   string // Table name: "items"
	Columns []Column

	byName map[string]int
}

// Option configures Reflect.
type Option func(*Model)

// WithTable overrides the derived table name.
func WithTable(name string) Option {
	return func(m *Model) { m.Table = name }
}

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// Reflect builds a Model from a struct value or pointer to struct.
//
// The table name comes from a TableName() string method if present, otherwise
// the pluralized snake_case type name. Column names come from the `db` tag,
// otherwise the snake_case field name. Embedded structs are flattened.
func Reflect(v any, opts ...Option) (*Model, error) {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return nil, fmt.Errorf("reflect model: nil value")
	}
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("reflect model: %s is not a struct", rt)
	}

	m := &Model{
		Name:   rt.Name(),
		Table:  ToPlural(ToSnake(rt.Name())),
		byName: make(map[string]int),
	}
	if tn, ok := reflect.New(rt).Interface().(interface{ TableName() string }); ok && tn.TableName() != "" {
		m.Table = tn.TableName()
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.Table == "" {
		return nil, fmt.Errorf("reflect model %s: empty table name", m.Name)
	}

	if err := m.collect(rt); err != nil {
		return nil, fmt.Errorf("reflect model %s: %w", m.Name, err)
	}
	if len(m.Columns) == 0 {
		return nil, fmt.Errorf("reflect model %s: no columns", m.Name)
	}
	return m, nil
}

// MustReflect is like Reflect but panics on error.
// Use it in package-level registration where a bad model is a programming error.
func MustReflect(v any, opts ...Option) *Model {
	m, err := Reflect(v, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Model) collect(rt reflect.Type) error {
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("db") == "" {
			if err := m.collect(f.Type); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		opts := parseTag(f.Tag.Get("crud"))
		if opts["-"] || f.Tag.Get("db") == "-" {
			continue
		}

		name := f.Tag.Get("db")
		if name == "" {
			name = ToSnake(f.Name)
		}
		if _, dup := m.byName[name]; dup {
			return fmt.Errorf("duplicate column %q", name)
		}

		ft := f.Type
		nullable := opts["null"]
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
			nullable = true
		}
		kind, ok := kindOf(ft)
		if !ok {
			return fmt.Errorf("cannot determine primitive type for column %q (%s)", name, f.Type)
		}

		col := Column{
			Name:       name,
			Field:      f.Name,
			Kind:       kind,
			Nullable:   nullable && !opts["pk"],
			HasDefault: opts["default"],
			PrimaryKey: opts["pk"],
			Unique:     opts["unique"],
		}
		m.byName[name] = len(m.Columns)
		m.Columns = append(m.Columns, col)
	}
	return nil
}

func kindOf(t reflect.Type) (Kind, bool) {
	switch t {
	case timeType:
		return KindTime, true
	case uuidType:
		return KindUUID, true
	}
	switch t.Kind() {
	case reflect.String:
		return KindString, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt, true
	case reflect.Float32, reflect.Float64:
		return KindFloat, true
	case reflect.Bool:
		return KindBool, true
	}
	return 0, false
}

func parseTag(tag string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[part] = true
		}
	}
	return out
}

// Column returns the column with the given name.
func (m *Model) Column(name string) (Column, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Column{}, false
	}
	return m.Columns[i], true
}

// ColumnNames returns all column names in declaration order.
func (m *Model) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the primary key column names.
func (m *Model) PrimaryKey() []string {
	var out []string
	for _, c := range m.Columns {
		if c.PrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}

// UniqueKey returns the columns forming the uniqueness constraint.
func (m *Model) UniqueKey() []string {
	var out []string
	for _, c := range m.Columns {
		if c.Unique {
			out = append(out, c.Name)
		}
	}
	return out
}

// Order returns the keys of v that are model columns, in column order.
func (m *Model) Order(v Values) []string {
	out := make([]string, 0, len(v))
	for _, c := range m.Columns {
		if _, ok := v[c.Name]; ok {
			out = append(out, c.Name)
		}
	}
	return out
}

// ToSnake converts a CamelCase identifier to snake_case, keeping acronyms
// together: "UserID" -> "user_id", "SKU" -> "sku", "HTTPServer" -> "http_server".
func ToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToPlural converts a word to its plural form: "y" becomes "ies", "s" and "o"
// endings get "es", everything else gets "s".
func ToPlural(s string) string {
	switch {
	case s == "":
		return ""
	case strings.HasSuffix(s, "y") && !strings.HasSuffix(s, "ey") && !strings.HasSuffix(s, "ay"):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "o"):
		return s + "es"
	}
	return s + "s"
}
