package web

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/JonMunkholm/restfab/internal/core"
	"github.com/JonMunkholm/restfab/internal/logging"
	"github.com/JonMunkholm/restfab/internal/schema"
)

// multipartMemory is how much of a multipart upload is held in memory
// before spilling to temporary files.
const multipartMemory = 32 << 20

// importCSV handles POST /csv?mode=merge|insert.
//
// The file is sent as multipart field "file" or as a raw text/csv body.
// Rows are validated before the transaction starts; the first bad row aborts
// the import with 400 and the row's errors.
func (h *resourceHandler) importCSV(w http.ResponseWriter, r *http.Request) {
	mode, err := core.ParseImportMode(r.URL.Query().Get("mode"))
	if err != nil {
		respondError(w, r, fieldError([]string{"query", "mode"}, err.Error(), "value_error.import_mode"))
		return
	}

	ctx := r.Context()
	if h.deps.ImportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deps.ImportTimeout)
		defer cancel()
		h.extendDeadlines(w, r, time.Now().Add(h.deps.ImportTimeout))
	}

	if h.deps.Limiter != nil {
		if err := h.deps.Limiter.Acquire(r.Context()); err != nil {
			respondError(w, r, err)
			return
		}
		defer h.deps.Limiter.Release()
	}

	file, err := h.uploadBody(w, r)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()

	rows, err := core.ParseCSV(core.WrapUpload(file), h.res.request)
	if err != nil {
		var rowErr *core.RowError
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &rowErr):
			writeDetail(w, http.StatusBadRequest, CSVRowDetail{
				Line:   rowErr.Line,
				Row:    rowErr.Row,
				Detail: rowErr.Errors,
			})
		case errors.As(err, &mbe):
			writeDetail(w, http.StatusRequestEntityTooLarge, "file too large")
		default:
			writeDetail(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	var result core.UpsertResult
	err = inTx(ctx, h.deps.DB, func(tx core.DBTX) error {
		result, err = core.Import(ctx, tx, h.res.accessor, rows, mode, h.res.Def.Preparer)
		return err
	})
	if err != nil {
		respondError(w, r, err, core.FaultIntegrity)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// extendDeadlines lifts the server read and write timeouts for the upload
// and the import that follows it.
func (h *resourceHandler) extendDeadlines(w http.ResponseWriter, r *http.Request, deadline time.Time) {
	rc := http.NewResponseController(w)
	for _, set := range []func(time.Time) error{rc.SetReadDeadline, rc.SetWriteDeadline} {
		if err := set(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logging.FromContext(r.Context()).Warn("extend import deadline", "error", err)
		}
	}
}

// uploadBody returns the CSV stream of the request.
func (h *resourceHandler) uploadBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	if h.deps.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadSize)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, err
		}
		return nil, errors.New("invalid multipart form")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("no file provided: expected multipart field \"file\"")
	}
	return file, nil
}

// csvTemplate returns the header row a CSV upload for s must carry.
func csvTemplate(s *schema.Schema) []string {
	return s.Names()
}
