package http

import (
	"errors"
	"net/http"

	"savingsbuddy/internal/core"
	applog "savingsbuddy/internal/log"
)

// confirmData drives the shared confirmation page used before any delete.
type confirmData struct {
	Heading string
	Message string
	Action  string
	Cancel  string
}

func (s *Server) renderConfirm(w http.ResponseWriter, r *http.Request, c confirmData) {
	s.render(w, r, http.StatusOK, "confirm_delete.html", c.Heading, c)
}

// lookupFailed maps a failed owner-scoped lookup to 404, anything else to 500.
func (s *Server) lookupFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, core.ErrNotFound) || errors.Is(err, errBadID) {
		s.notFound(w, r)
		return
	}
	s.serverError(w, r, op, err)
}

func (s *Server) recordChanged(r *http.Request, op, kind string, recordID int64) {
	s.recordsChanged.Add(1)
	s.events.LogRecordChanged(r.Context(), op, kind, userID(r.Context()), recordID)
}

func pluralize(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// currentUser is only called behind requireUser.
func currentUser(r *http.Request) core.User {
	if u := userFromContext(r.Context()); u != nil {
		return *u
	}
	return core.User{}
}

func logOp(r *http.Request, msg string, args ...any) {
	applog.FromContext(r.Context()).DebugContext(r.Context(), msg, args...)
}
