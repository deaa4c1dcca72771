package http

import (
	"fmt"
	"net/http"

	"savingsbuddy/internal/amqp"
	"savingsbuddy/internal/core"
	applog "savingsbuddy/internal/log"
)

type (
	incomeListData struct {
		Incomes []core.Income
		Total   core.Money
	}

	incomeFormData struct {
		Form    *form
		Action  string
		Editing bool
	}
)

func (s *Server) handleIncomeList(w http.ResponseWriter, r *http.Request) {
	incomes, err := s.records.ListIncomes(r.Context(), currentUser(r).ID)
	if err != nil {
		s.serverError(w, r, applog.OpList, err)
		return
	}
	logOp(r, "Incomes listed", applog.FieldCount, len(incomes))
	s.render(w, r, http.StatusOK, "income_list.html", "Income", incomeListData{
		Incomes: incomes,
		Total:   core.TotalIncome(incomes),
	})
}

func incomeFromForm(f *form) core.Income {
	f.Set("source", sanitizeInput(f.Get("source")))
	in := core.Income{
		Source: f.Get("source"),
		Amount: f.amount("amount", true),
	}
	if d := f.date("date", true); d != nil {
		in.Date = *d
	}
	return in
}

func incomeToForm(in core.Income) *form {
	f := newForm(nil)
	f.Set("source", in.Source)
	f.Set("amount", in.Amount.String())
	f.Set("date", in.Date.String())
	return f
}

func (s *Server) renderIncomeForm(w http.ResponseWriter, r *http.Request, status int, f *form, action string, editing bool) {
	title := "Add income"
	if editing {
		title = "Edit income"
	}
	s.render(w, r, status, "income_form.html", title, incomeFormData{Form: f, Action: action, Editing: editing})
}

func (s *Server) handleIncomeCreate(w http.ResponseWriter, r *http.Request) {
	const action = "/incomes/add"
	if r.Method == http.MethodGet {
		f := newForm(nil)
		f.Set("date", s.records.Today().String())
		s.renderIncomeForm(w, r, http.StatusOK, f, action, false)
		return
	}

	f, err := parseForm(w, r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	in := incomeFromForm(f)
	f.merge(in.Validate())
	if !f.Valid() {
		s.renderIncomeForm(w, r, http.StatusUnprocessableEntity, f, action, false)
		return
	}

	created, err := s.records.CreateIncome(r.Context(), currentUser(r).ID, in)
	if err != nil {
		if f.merge(err) {
			s.renderIncomeForm(w, r, http.StatusUnprocessableEntity, f, action, false)
			return
		}
		s.serverError(w, r, applog.OpCreate, err)
		return
	}
	s.recordChanged(r, applog.OpCreate, string(amqp.KindIncome), created.ID)
	s.redirectWithFlash(w, r, "/incomes", "Income added.")
}

func (s *Server) handleIncomeUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		s.lookupFailed(w, r, applog.OpUpdate, err)
		return
	}
	existing, err := s.records.GetIncome(ctx, user.ID, id)
	if err != nil {
		s.lookupFailed(w, r, applog.OpUpdate, err)
		return
	}
	action := fmt.Sprintf("/incomes/%d/edit", id)

	if r.Method == http.MethodGet {
		s.renderIncomeForm(w, r, http.StatusOK, incomeToForm(existing), action, true)
		return
	}

	f, err := parseForm(w, r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	in := incomeFromForm(f)
	f.merge(in.Validate())
	if !f.Valid() {
		s.renderIncomeForm(w, r, http.StatusUnprocessableEntity, f, action, true)
		return
	}
	in.ID = id

	if _, err := s.records.UpdateIncome(ctx, user.ID, in); err != nil {
		if f.merge(err) {
			s.renderIncomeForm(w, r, http.StatusUnprocessableEntity, f, action, true)
			return
		}
		s.lookupFailed(w, r, applog.OpUpdate, err)
		return
	}
	s.recordChanged(r, applog.OpUpdate, string(amqp.KindIncome), id)
	s.redirectWithFlash(w, r, "/incomes", "Income updated.")
}

func (s *Server) handleIncomeDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		s.lookupFailed(w, r, applog.OpDelete, err)
		return
	}
	in, err := s.records.GetIncome(ctx, user.ID, id)
	if err != nil {
		s.lookupFailed(w, r, applog.OpDelete, err)
		return
	}

	if r.Method == http.MethodGet {
		s.renderConfirm(w, r, confirmData{
			Heading: "Delete income",
			Message: fmt.Sprintf("Delete the income %q of %s on %s?", in.Source, s.formatMoney(in.Amount), in.Date),
			Action:  fmt.Sprintf("/incomes/%d/delete", id),
			Cancel:  "/incomes",
		})
		return
	}

	if err := s.records.DeleteIncome(ctx, user.ID, id); err != nil {
		s.lookupFailed(w, r, applog.OpDelete, err)
		return
	}
	s.recordChanged(r, applog.OpDelete, string(amqp.KindIncome), id)
	s.redirectWithFlash(w, r, "/incomes", "Income deleted.")
}

func (s *Server) handleIncomeDeleteAll(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.renderConfirm(w, r, confirmData{
			Heading: "Delete all income",
			Message: "Delete every income entry you have recorded? This cannot be undone.",
			Action:  "/incomes/delete_all",
			Cancel:  "/incomes",
		})
		return
	}

	n, err := s.records.DeleteAllIncomes(r.Context(), currentUser(r).ID)
	if err != nil {
		s.serverError(w, r, applog.OpDeleteAll, err)
		return
	}
	s.recordChanged(r, applog.OpDeleteAll, string(amqp.KindIncome), 0)
	s.redirectWithFlash(w, r, "/incomes", fmt.Sprintf("Deleted %d income %s.", n, pluralize(n, "entry", "entries")))
}
