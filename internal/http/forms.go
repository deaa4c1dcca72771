package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"savingsbuddy/internal/core"
)

// form carries submitted values back to a template together with the
// per-field errors, so a rejected form re-renders with the user's input.
type form struct {
	Values url.Values
	Errors map[string]string
}

func newForm(values url.Values) *form {
	if values == nil {
		values = url.Values{}
	}
	return &form{Values: values, Errors: map[string]string{}}
}

func (f *form) Get(field string) string {
	return f.Values.Get(field)
}

func (f *form) Set(field, value string) {
	f.Values.Set(field, value)
}

func (f *form) Error(field string) string {
	return f.Errors[field]
}

func (f *form) addError(field, msg string) {
	if _, ok := f.Errors[field]; !ok {
		f.Errors[field] = msg
	}
}

// merge copies field errors out of a ValidationError. It reports false for
// any other error, which the caller must treat as a server failure.
func (f *form) merge(err error) bool {
	ve, ok := core.AsValidation(err)
	if !ok {
		return false
	}
	for k, v := range ve.Fields {
		f.addError(k, v)
	}
	return true
}

func (f *form) Valid() bool {
	return len(f.Errors) == 0
}

// sanitizeInput removes control characters except tab and newlines, and
// trims surrounding whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

func parseForm(w http.ResponseWriter, r *http.Request) (*form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return newForm(r.PostForm), nil
}

func (f *form) amount(field string, required bool) core.Money {
	raw := strings.TrimSpace(f.Get(field))
	if raw == "" {
		if required {
			f.addError(field, "This field is required.")
		}
		return core.Money{}
	}
	m, err := core.ParseAmount(raw)
	if err != nil {
		f.addError(field, core.Sentence(err))
	}
	return m
}

func (f *form) date(field string, required bool) *core.Date {
	raw := strings.TrimSpace(f.Get(field))
	if raw == "" {
		if required {
			f.addError(field, "This field is required.")
		}
		return nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		f.addError(field, core.Sentence(err))
		return nil
	}
	return &d
}

func (f *form) optionalID(field string) *int64 {
	raw := strings.TrimSpace(f.Get(field))
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		f.addError(field, "Select a valid choice. That choice is not one of the available choices.")
		return nil
	}
	return &id
}

var errBadID = errors.New("invalid id")

// pathID reads the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// expenseFilterFrom reads the listing filters. The date range is used only
// when both bounds parse; malformed dates are ignored rather than reported.
func expenseFilterFrom(q url.Values) core.ExpenseFilter {
	f := core.ExpenseFilter{
		Category: sanitizeInput(q.Get("category")),
		Query:    sanitizeInput(q.Get("q")),
	}
	start, errStart := core.ParseDate(q.Get("start"))
	end, errEnd := core.ParseDate(q.Get("end"))
	if errStart == nil && errEnd == nil {
		f.Start, f.End = &start, &end
	}
	return f
}
