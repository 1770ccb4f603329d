package core

// fault.go maps store failures onto client-facing faults.
//
// A Fault is either raised directly by the Accessor (update/delete matched no
// rows, empty patch) or produced by Translate from a pgx error. Direct faults
// are always surfaced; pgx errors are only translated when the caller lists
// the matching kind as expected, everything else stays an opaque error.

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// FaultKind is the closed set of translatable store failures.
type FaultKind int

const (
	FaultNotFound FaultKind = iota + 1
	FaultIntegrity
)

func (k FaultKind) String() string {
	switch k {
	case FaultNotFound:
		return "not_found"
	case FaultIntegrity:
		return "integrity"
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// Status is the default HTTP status for the kind.
func (k FaultKind) Status() int {
	switch k {
	case FaultNotFound:
		return http.StatusNotFound
	case FaultIntegrity:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Template is the default detail for the kind. "{}" is replaced with the
// text extracted from the driver error.
func (k FaultKind) Template() string {
	switch k {
	case FaultNotFound:
		return "The item not found"
	case FaultIntegrity:
		return "Got an error on add: {}"
	}
	return "Internal Server Error"
}

// matches reports whether err is the native driver condition for the kind.
func (k FaultKind) matches(err error) bool {
	switch k {
	case FaultNotFound:
		return errors.Is(err, pgx.ErrNoRows)
	case FaultIntegrity:
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}

// Fault is a store failure with a client-facing status and detail.
type Fault struct {
	Kind   FaultKind
	Status int
	Detail string
	Err    error
}

// NewFault creates a fault of the given kind. An empty detail uses the kind's
// template with nothing substituted.
func NewFault(kind FaultKind, detail string) *Fault {
	if detail == "" {
		detail = strings.ReplaceAll(kind.Template(), ": {}", "")
	}
	return &Fault{Kind: kind, Status: kind.Status(), Detail: detail}
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Fault) Unwrap() error { return f.Err }

// withErr attaches the underlying cause.
func (f *Fault) withErr(err error) *Fault {
	f.Err = err
	return f
}

// Translate converts err into a Fault.
//
// A *Fault anywhere in the chain is returned unchanged. Otherwise the expected
// kinds are tried in order and the first whose driver condition matches
// produces a fault with the kind's default status and filled-in template.
// The second result is false when err is not translatable.
func Translate(err error, expected ...FaultKind) (*Fault, bool) {
	if err == nil {
		return nil, false
	}

	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}

	for _, kind := range expected {
		if !kind.matches(err) {
			continue
		}
		detail := strings.ReplaceAll(kind.Template(), "{}", ExtractDetail(err))
		return &Fault{Kind: kind, Status: kind.Status(), Detail: detail, Err: err}, true
	}
	return nil, false
}

// ExtractDetail returns the human-readable part of a driver error: the text
// after the first colon of every message part, trimmed and joined by "; ".
func ExtractDetail(err error) string {
	var parts []string

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		parts = append(parts, pgErr.Severity+": "+pgErr.Message)
		if pgErr.Detail != "" {
			parts = append(parts, "DETAIL: "+pgErr.Detail)
		}
	} else {
		parts = strings.Split(err.Error(), "\n")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if i := strings.Index(p, ":"); i >= 0 {
			p = p[i+1:]
		}
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}
