package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/restfab/internal/config"
	"github.com/JonMunkholm/restfab/internal/core"
	"github.com/JonMunkholm/restfab/internal/schema"
)

// Resource is a registered definition bound to its derived schemas.
// Schemas are built once and only read afterwards.
type Resource struct {
	Def core.Definition

	accessor *core.Accessor
	calls    core.Overrides
	response *schema.Schema
	request  *schema.Schema
	patch    *schema.Schema
	identity *schema.Schema
	filter   *schema.Schema

	limit    int
	maxLimit int
}

// NewResource derives the schemas of def. Limits come from api unless the
// definition overrides the page size.
func NewResource(def core.Definition, api config.APIConfig) (*Resource, error) {
	m := def.Model
	if m == nil {
		return nil, fmt.Errorf("resource %s: nil model", def.Name)
	}
	pk := m.PrimaryKey()
	if len(pk) == 0 {
		return nil, fmt.Errorf("resource %s: model %s has no primary key", def.Name, m.Name)
	}
	readOnly := append(append([]string{}, pk...), def.ReadOnly...)

	res := &Resource{
		Def:      def,
		accessor: core.NewAccessor(m),
		limit:    def.DefaultLimit,
		maxLimit: api.MaxLimit,
	}
	if res.limit <= 0 {
		res.limit = api.DefaultLimit
	}
	if res.limit <= 0 {
		res.limit = core.DefaultLimit
	}

	res.calls = def.Custom.Bind(res.accessor)

	var err error
	if res.response, err = m.Derive(schema.ModeFull, schema.Named(m.Name)); err != nil {
		return nil, fmt.Errorf("resource %s: response schema: %w", def.Name, err)
	}
	if res.request, err = m.Derive(schema.ModeFull, schema.Named(m.Name+"Create"), schema.Exclude(readOnly...)); err != nil {
		return nil, fmt.Errorf("resource %s: request schema: %w", def.Name, err)
	}
	if res.patch, err = m.Derive(schema.ModePatch, schema.Named(m.Name+"Patch"), schema.Exclude(readOnly...)); err != nil {
		return nil, fmt.Errorf("resource %s: patch schema: %w", def.Name, err)
	}
	idOpts := []schema.SchemaOption{schema.Named(m.Name + "Identity")}
	if def.UniqueIdentity {
		// A member of a composite unique key does not identify one row.
		if uk := m.UniqueKey(); len(uk) != 1 {
			return nil, fmt.Errorf("resource %s: unique identity needs exactly one unique column, model %s has %d", def.Name, m.Name, len(uk))
		}
		idOpts = append(idOpts, schema.UniqueMode())
	}
	if res.identity, err = m.Derive(schema.ModeIdentity, idOpts...); err != nil {
		return nil, fmt.Errorf("resource %s: identity schema: %w", def.Name, err)
	}
	if res.filter, err = m.Derive(schema.ModeFilter, schema.Named(m.Name+"Filter")); err != nil {
		return nil, fmt.Errorf("resource %s: filter schema: %w", def.Name, err)
	}
	return res, nil
}

// Deps are the shared services the resource handlers use.
type Deps struct {
	DB      TxBeginner
	Limiter *core.ImportLimiter

	// MaxUploadSize caps request bodies, CSV uploads included.
	MaxUploadSize int64

	// RequestTimeout bounds every route except the CSV import; zero means
	// no bound.
	RequestTimeout time.Duration

	// ImportTimeout bounds one CSV import, upload included; zero means no
	// bound.
	ImportTimeout time.Duration
}

// Mount registers the enabled operations of res on r under res.Def.Path().
//
//	GET    /            list
//	POST   /csv         CSV import
//	POST   /            create
//	GET    /{identity}  get
//	PUT    /{identity}  replace
//	PATCH  /{identity}  patch
//	DELETE /{identity}  delete
func Mount(r chi.Router, res *Resource, deps Deps) {
	h := &resourceHandler{res: res, deps: deps}

	r.Route(res.Def.Path(), func(r chi.Router) {
		if res.Def.Allows(core.OpCSV) {
			r.Post("/csv", h.importCSV)
		}

		r.Group(func(r chi.Router) {
			if deps.RequestTimeout > 0 {
				r.Use(middleware.Timeout(deps.RequestTimeout))
			}
			for _, op := range core.Operations {
				if !res.Def.Allows(op) {
					continue
				}
				switch op {
				case core.OpList:
					r.Get("/", h.list)
				case core.OpCreate:
					r.Post("/", h.create)
				case core.OpGet:
					r.Get("/{identity}", h.get)
				case core.OpReplace:
					r.Put("/{identity}", h.replace)
				case core.OpPatch:
					r.Patch("/{identity}", h.patch)
				case core.OpDelete:
					r.Delete("/{identity}", h.delete)
				}
			}
		})
	})
}

// identityFilter builds the row filter from the {identity} path segment.
// ?by=<column> selects a unique column when the resource allows it;
// composite keys are comma separated in column order.
func (res *Resource) identityFilter(r *http.Request) (schema.Values, error) {
	raw := chi.URLParam(r, "identity")
	cols := res.Def.Model.PrimaryKey()

	if by := r.URL.Query().Get("by"); by != "" {
		f, ok := res.identity.Field(by)
		if !ok {
			return nil, fieldError([]string{"query", "by"},
				fmt.Sprintf("%q is not an identifier column", by), "value_error.identifier")
		}
		cols = []string{f.Name}
	}

	parts := []string{raw}
	if len(cols) > 1 {
		parts = strings.Split(raw, ",")
		if len(parts) != len(cols) {
			return nil, fieldError([]string{"path", "identity"},
				fmt.Sprintf("expected %d comma separated values (%s)", len(cols), strings.Join(cols, ",")),
				"value_error.identifier")
		}
	}

	cells := make(map[string]string, len(cols))
	for i, c := range cols {
		cells[c] = strings.TrimSpace(parts[i])
	}
	return res.identity.ValidateStrings(cells)
}

// page parses offset and limit query values.
func (res *Resource) page(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	offset, limit = 0, res.limit

	if s := q.Get("offset"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, 0, fieldError([]string{"query", "offset"}, "value is not a valid integer", "type_error.integer")
		}
		if n < 0 {
			return 0, 0, fieldError([]string{"query", "offset"}, "ensure this value is greater than or equal to 0", "value_error.number.not_ge")
		}
		offset = n
	}

	if s := q.Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, 0, fieldError([]string{"query", "limit"}, "value is not a valid integer", "type_error.integer")
		}
		switch {
		case n < 0 && res.maxLimit == 0:
			n = core.NoLimit
		case n < 0:
			return 0, 0, fieldError([]string{"query", "limit"}, "ensure this value is greater than or equal to 0", "value_error.number.not_ge")
		case res.maxLimit > 0 && n > res.maxLimit:
			return 0, 0, fieldError([]string{"query", "limit"},
				fmt.Sprintf("ensure this value is less than or equal to %d", res.maxLimit), "value_error.number.not_le")
		}
		limit = n
	}
	return offset, limit, nil
}
