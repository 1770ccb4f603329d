package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/JonMunkholm/restfab/internal/core"
	"github.com/JonMunkholm/restfab/internal/logging"
	"github.com/JonMunkholm/restfab/internal/schema"
)

// resourceHandler serves the routes of one resource.
type resourceHandler struct {
	res  *Resource
	deps Deps
}

// list handles GET / with filter, offset and limit query values.
func (h *resourceHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cells := make(map[string]string)
	for _, name := range h.res.filter.Names() {
		if q.Has(name) {
			cells[name] = q.Get(name)
		}
	}
	filter, err := h.res.filter.ValidateStrings(cells)
	if err != nil {
		respondError(w, r, err)
		return
	}
	offset, limit, err := h.res.page(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var rows []schema.Values
	err = inTx(r.Context(), h.deps.DB, func(tx core.DBTX) error {
		rows, err = h.res.calls.List(r.Context(), tx, filter, offset, limit)
		return err
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.res.response.SerializeAll(rows))
}

// get handles GET /{identity}.
func (h *resourceHandler) get(w http.ResponseWriter, r *http.Request) {
	filter, err := h.res.identityFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var row schema.Values
	err = inTx(r.Context(), h.deps.DB, func(tx core.DBTX) error {
		row, err = h.res.calls.Get(r.Context(), tx, filter)
		return err
	})
	if err != nil {
		respondError(w, r, err, core.FaultNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.res.response.Serialize(row))
}

// create handles POST /.
func (h *resourceHandler) create(w http.ResponseWriter, r *http.Request) {
	data, err := h.decode(w, r, h.res.request)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var row schema.Values
	err = inTx(r.Context(), h.deps.DB, func(tx core.DBTX) error {
		row, err = h.res.calls.Create(r.Context(), tx, data)
		return err
	})
	if err != nil {
		respondError(w, r, err, core.FaultIntegrity)
		return
	}

	logging.FromContext(r.Context()).Info("row created", "resource", h.res.Def.Name)
	writeJSON(w, http.StatusCreated, h.res.response.Serialize(row))
}

// replace handles PUT /{identity}. Every request field is written; omitted
// fields fall back to NULL or the column default.
func (h *resourceHandler) replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.res.request, core.UpdateOptions{Columns: h.res.request.Names()})
}

// patch handles PATCH /{identity}. Only present, non-null fields are written.
func (h *resourceHandler) patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.res.patch, core.UpdateOptions{Patch: true})
}

func (h *resourceHandler) update(w http.ResponseWriter, r *http.Request, s *schema.Schema, opts core.UpdateOptions) {
	filter, err := h.res.identityFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	data, err := h.decode(w, r, s)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var rows []schema.Values
	err = inTx(r.Context(), h.deps.DB, func(tx core.DBTX) error {
		rows, err = h.res.calls.Update(r.Context(), tx, filter, data, opts)
		return err
	})
	if err != nil {
		respondError(w, r, err, core.FaultNotFound, core.FaultIntegrity)
		return
	}
	if len(rows) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, h.res.response.Serialize(rows[0]))
}

// delete handles DELETE /{identity}.
func (h *resourceHandler) delete(w http.ResponseWriter, r *http.Request) {
	filter, err := h.res.identityFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	err = inTx(r.Context(), h.deps.DB, func(tx core.DBTX) error {
		_, err := h.res.calls.Delete(r.Context(), tx, filter, core.DeleteOptions{})
		return err
	})
	if err != nil {
		respondError(w, r, err, core.FaultNotFound, core.FaultIntegrity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON object body and validates it against s.
func (h *resourceHandler) decode(w http.ResponseWriter, r *http.Request, s *schema.Schema) (schema.Values, error) {
	body := r.Body
	if h.deps.MaxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadSize)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, fieldError([]string{"body"}, "request body too large", "value_error.body_size")
		}
		return nil, err
	}

	in := make(map[string]any)
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&in); err != nil {
			return nil, fieldError([]string{"body"}, "value is not a valid JSON object", "value_error.jsondecode")
		}
	}
	return s.Validate(in)
}
