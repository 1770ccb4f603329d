package schema

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError is one validation problem.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationErrors is the list of problems found in one input.
type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, e := range ve {
		parts[i] = fmt.Sprintf("%s: %s", strings.Join(e.Loc, "."), e.Msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationErrors reports whether err carries ValidationErrors.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var (
	errMissing = FieldError{Msg: "field required", Type: "value_error.missing"}
	errNone    = FieldError{Msg: "none is not an allowed value", Type: "type_error.none.not_allowed"}
	errEmpty   = FieldError{Loc: []string{"__root__"}, Msg: "at least one field required", Type: "value_error.missing"}
)

func at(base FieldError, loc string) FieldError {
	base.Loc = []string{loc}
	return base
}

// Validate checks a decoded JSON object and returns the canonical values.
// Unknown keys are ignored.
func (s *Schema) Validate(in map[string]any) (Values, error) {
	out := make(Values, len(s.Fields))
	var errs ValidationErrors

	for _, f := range s.Fields {
		raw, present := in[f.Name]
		if !present {
			if f.Required {
				errs = append(errs, at(errMissing, f.Name))
			}
			continue
		}
		v, fe := s.accept(f, raw, f.Coerce)
		if fe != nil {
			errs = append(errs, *fe)
			continue
		}
		if v != absent {
			out[f.Name] = v
		}
	}
	return s.finish(out, errs)
}

// ValidateStrings checks text input such as query parameters, path segments
// or CSV cells.
//
// An empty value is null when the column is nullable. For other non-text
// columns it is absent when the column has a default, and a conversion error
// otherwise. Non-nullable text columns keep the empty string.
func (s *Schema) ValidateStrings(in map[string]string) (Values, error) {
	out := make(Values, len(s.Fields))
	var errs ValidationErrors

	for _, f := range s.Fields {
		raw, present := in[f.Name]
		if present && raw == "" {
			switch {
			case f.Nullable:
				if s.Mode == ModeFull {
					out[f.Name] = nil
				}
				continue
			case f.Kind == KindString:
			case f.HasDefault, s.Mode != ModeFull:
				present = false
			}
		}
		if !present {
			if f.Required {
				errs = append(errs, at(errMissing, f.Name))
			}
			continue
		}
		v, fe := s.accept(f, raw, func(x any) (any, error) { return f.Parse(x.(string)) })
		if fe != nil {
			errs = append(errs, *fe)
			continue
		}
		out[f.Name] = v
	}
	return s.finish(out, errs)
}

type absentMarker struct{}

var absent = absentMarker{}

func (s *Schema) accept(f Field, raw any, conv func(any) (any, error)) (any, *FieldError) {
	if raw == nil {
		if s.Mode != ModeFull {
			return absent, nil
		}
		if !f.Nullable {
			fe := at(errNone, f.Name)
			return nil, &fe
		}
		return nil, nil
	}
	v, err := conv(raw)
	if err != nil {
		fe := FieldError{Loc: []string{f.Name}, Msg: err.Error(), Type: "value_error"}
		var ce *CoerceError
		if errors.As(err, &ce) {
			fe.Type = ce.Type
		}
		return nil, &fe
	}
	return v, nil
}

func (s *Schema) finish(out Values, errs ValidationErrors) (Values, error) {
	if len(errs) > 0 {
		return nil, errs
	}
	if s.Mode == ModeIdentity && len(out) == 0 {
		return nil, ValidationErrors{errEmpty}
	}
	return out, nil
}
