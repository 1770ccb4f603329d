package schema

import (
	"fmt"
	"slices"
)

// Mode selects how a Schema is derived from a Model.
type Mode int

const (
	// ModeFull keeps column nullability; non-nullable columns without a
	// default are required.
	ModeFull Mode = iota
	// ModePatch makes every field optional and absent by default.
	ModePatch
	// ModeIdentity keeps only identifier columns; at least one must be given.
	ModeIdentity
	// ModeFilter keeps non-identifier columns, all optional. An empty filter
	// matches every row.
	ModeFilter
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModePatch:
		return "patch"
	case ModeIdentity:
		return "identity"
	case ModeFilter:
		return "filter"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Field is one schema member.
type Field struct {
	Column
	Required bool
}

// Schema validates input and serializes output for one purpose.
// A Schema is immutable after Derive and safe for concurrent use.
type Schema struct {
	Name   string
	Mode   Mode
	Fields []Field

	model  *Model
	byName map[string]int
}

type deriveOptions struct {
	name       string
	include    []string
	exclude    []string
	excludeSet bool
	unique     bool
}

// SchemaOption configures Derive.
type SchemaOption func(*deriveOptions)

// Named sets the schema name used in documentation and error output.
func Named(name string) SchemaOption {
	return func(o *deriveOptions) { o.name = name }
}

// Include restricts the schema to the named columns.
func Include(columns ...string) SchemaOption {
	return func(o *deriveOptions) { o.include = append(o.include, columns...) }
}

// Exclude removes the named columns. It replaces the default exclusion of
// Request and Patch.
func Exclude(columns ...string) SchemaOption {
	return func(o *deriveOptions) {
		o.exclude = append(o.exclude, columns...)
		o.excludeSet = true
	}
}

// UniqueMode extends an identity schema with the unique columns.
func UniqueMode() SchemaOption {
	return func(o *deriveOptions) { o.unique = true }
}

// Derive builds a Schema of the given mode.
// Unknown column names in Include or Exclude are an error.
func (m *Model) Derive(mode Mode, opts ...SchemaOption) (*Schema, error) {
	var o deriveOptions
	for _, opt := range opts {
		opt(&o)
	}
	for _, name := range append(slices.Clone(o.include), o.exclude...) {
		if _, ok := m.byName[name]; !ok {
			return nil, fmt.Errorf("derive %s schema for %s: unknown column %q", mode, m.Name, name)
		}
	}

	s := &Schema{
		Name:   o.name,
		Mode:   mode,
		model:  m,
		byName: make(map[string]int),
	}
	if s.Name == "" {
		s.Name = m.Name + "_" + mode.String()
	}

	for _, c := range m.Columns {
		if !selectColumn(c, mode, o) {
			continue
		}
		f := Field{Column: c}
		if mode == ModeFull {
			f.Required = !c.Nullable && !c.HasDefault
		}
		s.byName[c.Name] = len(s.Fields)
		s.Fields = append(s.Fields, f)
	}

	if len(s.Fields) == 0 {
		return nil, fmt.Errorf("derive %s schema for %s: no fields selected", mode, m.Name)
	}
	return s, nil
}

func selectColumn(c Column, mode Mode, o deriveOptions) bool {
	switch mode {
	case ModeIdentity:
		if !c.PrimaryKey && !(o.unique && c.Unique) {
			return false
		}
	case ModeFilter:
		if c.PrimaryKey {
			return false
		}
	case ModeFull, ModePatch:
	}
	if len(o.include) > 0 && !slices.Contains(o.include, c.Name) {
		return false
	}
	return !slices.Contains(o.exclude, c.Name)
}

// MustDerive is like Derive but panics on error.
func (m *Model) MustDerive(mode Mode, opts ...SchemaOption) *Schema {
	s, err := m.Derive(mode, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Response returns the full schema over every column.
func (m *Model) Response(opts ...SchemaOption) *Schema {
	return m.MustDerive(ModeFull, append([]SchemaOption{Named(m.Name)}, opts...)...)
}

// Request returns the full schema used for create and replace bodies.
// The primary key is excluded unless opts carry their own Exclude.
func (m *Model) Request(opts ...SchemaOption) *Schema {
	return m.MustDerive(ModeFull, m.defaultExclude("Create", opts)...)
}

// Patch returns the all-optional schema used for partial updates.
func (m *Model) Patch(opts ...SchemaOption) *Schema {
	return m.MustDerive(ModePatch, m.defaultExclude("Patch", opts)...)
}

// Identity returns the schema of identifier columns.
func (m *Model) Identity(opts ...SchemaOption) *Schema {
	return m.MustDerive(ModeIdentity, append([]SchemaOption{Named(m.Name + "Identity")}, opts...)...)
}

// Filter returns the schema of list query filters.
func (m *Model) Filter(opts ...SchemaOption) *Schema {
	return m.MustDerive(ModeFilter, append([]SchemaOption{Named(m.Name + "Filter")}, opts...)...)
}

func (m *Model) defaultExclude(suffix string, opts []SchemaOption) []SchemaOption {
	var given deriveOptions
	for _, opt := range opts {
		opt(&given)
	}
	base := []SchemaOption{Named(m.Name + suffix)}
	if !given.excludeSet {
		base = append(base, Exclude(m.PrimaryKey()...))
	}
	return append(base, opts...)
}

// Model returns the model the schema was derived from.
func (s *Schema) Model() *Model { return s.model }

// Field returns the field with the given column name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Names returns the field names in column order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Serialize renders v as an ordered object with every schema field.
// Absent fields are rendered as null.
func (s *Schema) Serialize(v Values) Object {
	obj := make(Object, 0, len(s.Fields))
	for _, f := range s.Fields {
		obj = append(obj, Pair{Key: f.Name, Value: v[f.Name]})
	}
	return obj
}

// SerializeAll renders a list of rows.
func (s *Schema) SerializeAll(rows []Values) []Object {
	out := make([]Object, len(rows))
	for i, r := range rows {
		out[i] = s.Serialize(r)
	}
	return out
}
