package http

import (
	"fmt"
	"net/http"
	"strconv"

	"savingsbuddy/internal/amqp"
	"savingsbuddy/internal/core"
	"savingsbuddy/internal/export"
	applog "savingsbuddy/internal/log"
)

type (
	expenseFilterValues struct {
		Category string
		Start    string
		End      string
		Q        string
	}

	expenseListData struct {
		Expenses   []core.Expense
		Categories []core.Category
		Filter     expenseFilterValues
		Filtered   bool
		Total      core.Money
	}

	expenseFormData struct {
		Form       *form
		Categories []core.Category
		Action     string
		Editing    bool
	}
)

func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	q := r.URL.Query()
	filter := expenseFilterFrom(q)

	expenses, err := s.records.ListExpenses(ctx, user.ID, filter)
	if err != nil {
		s.serverError(w, r, applog.OpList, err)
		return
	}
	categories, err := s.records.Categories(ctx)
	if err != nil {
		s.serverError(w, r, applog.OpList, err)
		return
	}
	logOp(r, "Expenses listed", applog.FieldCount, len(expenses))

	s.render(w, r, http.StatusOK, "expense_list.html", "Expenses", expenseListData{
		Expenses:   expenses,
		Categories: categories,
		Filter: expenseFilterValues{
			Category: q.Get("category"),
			Start:    q.Get("start"),
			End:      q.Get("end"),
			Q:        q.Get("q"),
		},
		Filtered: !filter.IsZero(),
		Total:    core.TotalExpense(expenses),
	})
}

// expenseFromForm validates the expense fields present in f.
func expenseFromForm(f *form) core.Expense {
	f.Set("note", sanitizeInput(f.Get("note")))
	e := core.Expense{
		Amount:     f.amount("amount", true),
		CategoryID: f.optionalID("category"),
		Note:       f.Get("note"),
	}
	if d := f.date("date", true); d != nil {
		e.Date = *d
	}
	return e
}

func expenseToForm(e core.Expense) *form {
	f := newForm(nil)
	f.Set("amount", e.Amount.String())
	f.Set("date", e.Date.String())
	f.Set("note", e.Note)
	if e.CategoryID != nil {
		f.Set("category", strconv.FormatInt(*e.CategoryID, 10))
	}
	return f
}

func (s *Server) renderExpenseForm(w http.ResponseWriter, r *http.Request, status int, f *form, action string, editing bool) {
	categories, err := s.records.Categories(r.Context())
	if err != nil {
		s.serverError(w, r, applog.OpRender, err)
		return
	}
	title := "Add expense"
	if editing {
		title = "Edit expense"
	}
	s.render(w, r, status, "expense_form.html", title, expenseFormData{
		Form:       f,
		Categories: categories,
		Action:     action,
		Editing:    editing,
	})
}

func (s *Server) handleExpenseCreate(w http.ResponseWriter, r *http.Request) {
	const action = "/expenses/add"
	if r.Method == http.MethodGet {
		f := newForm(nil)
		f.Set("date", s.records.Today().String())
		s.renderExpenseForm(w, r, http.StatusOK, f, action, false)
		return
	}

	f, err := parseForm(w, r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	e := expenseFromForm(f)
	f.merge(e.Validate())
	if !f.Valid() {
		s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, f, action, false)
		return
	}

	created, err := s.records.CreateExpense(r.Context(), currentUser(r).ID, e)
	if err != nil {
		if f.merge(err) {
			s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, f, action, false)
			return
		}
		s.serverError(w, r, applog.OpCreate, err)
		return
	}
	s.recordChanged(r, applog.OpCreate, string(amqp.KindExpense), created.ID)
	s.redirectWithFlash(w, r, "/expenses", "Expense added.")
}

func (s *Server) handleExpenseUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		s.lookupFailed(w, r, applog.OpUpdate, err)
		return
	}
	existing, err := s.records.GetExpense(ctx, user.ID, id)
	if err != nil {
		s.lookupFailed(w, r, applog.OpUpdate, err)
		return
	}
	action := fmt.Sprintf("/expenses/%d/edit", id)

	if r.Method == http.MethodGet {
		s.renderExpenseForm(w, r, http.StatusOK, expenseToForm(existing), action, true)
		return
	}

	f, err := parseForm(w, r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	e := expenseFromForm(f)
	f.merge(e.Validate())
	if !f.Valid() {
		s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, f, action, true)
		return
	}
	e.ID = id

	if _, err := s.records.UpdateExpense(ctx, user.ID, e); err != nil {
		if f.merge(err) {
			s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, f, action, true)
			return
		}
		s.lookupFailed(w, r, applog.OpUpdate, err)
		return
	}
	s.recordChanged(r, applog.OpUpdate, string(amqp.KindExpense), id)
	s.redirectWithFlash(w, r, "/expenses", "Expense updated.")
}

func (s *Server) handleExpenseDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		s.lookupFailed(w, r, applog.OpDelete, err)
		return
	}
	e, err := s.records.GetExpense(ctx, user.ID, id)
	if err != nil {
		s.lookupFailed(w, r, applog.OpDelete, err)
		return
	}

	if r.Method == http.MethodGet {
		s.renderConfirm(w, r, confirmData{
			Heading: "Delete expense",
			Message: fmt.Sprintf("Delete the expense of %s on %s?", s.formatMoney(e.Amount), e.Date),
			Action:  fmt.Sprintf("/expenses/%d/delete", id),
			Cancel:  "/expenses",
		})
		return
	}

	if err := s.records.DeleteExpense(ctx, user.ID, id); err != nil {
		s.lookupFailed(w, r, applog.OpDelete, err)
		return
	}
	s.recordChanged(r, applog.OpDelete, string(amqp.KindExpense), id)
	s.redirectWithFlash(w, r, "/expenses", "Expense deleted.")
}

func (s *Server) handleExpenseDeleteAll(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.renderConfirm(w, r, confirmData{
			Heading: "Delete all expenses",
			Message: "Delete every expense you have recorded? This cannot be undone.",
			Action:  "/expenses/delete_all",
			Cancel:  "/expenses",
		})
		return
	}

	n, err := s.records.DeleteAllExpenses(r.Context(), currentUser(r).ID)
	if err != nil {
		s.serverError(w, r, applog.OpDeleteAll, err)
		return
	}
	s.recordChanged(r, applog.OpDeleteAll, string(amqp.KindExpense), 0)
	s.redirectWithFlash(w, r, "/expenses", fmt.Sprintf("Deleted %d %s.", n, pluralize(n, "expense", "expenses")))
}

func (s *Server) handleExpenseExport(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	expenses, err := s.records.ListExpenses(r.Context(), user.ID, core.ExpenseFilter{})
	if err != nil {
		s.serverError(w, r, applog.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	if err := export.WriteCSV(w, expenses); err != nil {
		// Headers are already sent; the truncated download is all we can do.
		s.logger.ErrorContext(r.Context(), "Failed to write CSV export",
			applog.FieldError, err,
			applog.FieldUserID, user.ID,
			applog.FieldOperation, applog.OpExport)
		return
	}
	s.logger.InfoContext(r.Context(), "Expenses exported",
		applog.FieldUserID, user.ID,
		applog.FieldCount, len(expenses),
		applog.FieldOperation, applog.OpExport)
}
