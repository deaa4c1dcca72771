package http

import (
	"fmt"
	"net/http"

	"savingsbuddy/internal/amqp"
	"savingsbuddy/internal/core"
	applog "savingsbuddy/internal/log"
)

type goalFormData struct {
	Form    *form
	Action  string
	Editing bool
}

func (s *Server) handleGoalList(w http.ResponseWriter, r *http.Request) {
	goals, err := s.records.ListGoals(r.Context(), currentUser(r).ID)
	if err != nil {
		s.serverError(w, r, applog.OpList, err)
		return
	}
	s.render(w, r, http.StatusOK, "goal_list.html", "Savings goals", goals)
}

func goalFromForm(f *form) core.SavingsGoal {
	f.Set("title", sanitizeInput(f.Get("title")))
	return core.SavingsGoal{
		Title:           f.Get("title"),
		TargetAmount:    f.amount("target_amount", true),
		Deadline:        f.date("deadline", false),
		StartingBalance: f.amount("starting_balance", false),
	}
}

func goalToForm(g core.SavingsGoal) *form {
	f := newForm(nil)
	f.Set("title", g.Title)
	f.Set("target_amount", g.TargetAmount.String())
	f.Set("starting_balance", g.StartingBalance.String())
	if g.Deadline != nil {
		f.Set("deadline", g.Deadline.String())
	}
	return f
}

func (s *Server) renderGoalForm(w http.ResponseWriter, r *http.Request, status int, f *form, action string, editing bool) {
	title := "Add savings goal"
	if editing {
		title = "Edit savings goal"
	}
	s.render(w, r, status, "goal_form.html", title, goalFormData{Form: f, Action: action, Editing: editing})
}

func (s *Server) handleGoalCreate(w http.ResponseWriter, r *http.Request) {
	const action = "/goals/add"
	if r.Method == http.MethodGet {
		f := newForm(nil)
		f.Set("starting_balance", core.Money{}.String())
		s.renderGoalForm(w, r, http.StatusOK, f, action, false)
		return
	}

	f, err := parseForm(w, r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	g := goalFromForm(f)
	f.merge(g.Validate())
	if !f.Valid() {
		s.renderGoalForm(w, r, http.StatusUnprocessableEntity, f, action, false)
		return
	}

	created, err := s.records.CreateGoal(r.Context(), currentUser(r).ID, g)
	if err != nil {
		if f.merge(err) {
			s.renderGoalForm(w, r, http.StatusUnprocessableEntity, f, action, false)
			return
		}
		s.serverError(w, r, applog.OpCreate, err)
		return
	}
	s.recordChanged(r, applog.OpCreate, string(amqp.KindGoal), created.ID)
	s.redirectWithFlash(w, r, "/goals", "Savings goal added.")
}

func (s *Server) handleGoalUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		s.lookupFailed(w, r, applog.OpUpdate, err)
		return
	}
	existing, err := s.records.GetGoal(ctx, user.ID, id)
	if err != nil {
		s.lookupFailed(w, r, applog.OpUpdate, err)
		return
	}
	action := fmt.Sprintf("/goals/%d/edit", id)

	if r.Method == http.MethodGet {
		s.renderGoalForm(w, r, http.StatusOK, goalToForm(existing), action, true)
		return
	}

	f, err := parseForm(w, r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	g := goalFromForm(f)
	f.merge(g.Validate())
	if !f.Valid() {
		s.renderGoalForm(w, r, http.StatusUnprocessableEntity, f, action, true)
		return
	}
	g.ID = id

	if _, err := s.records.UpdateGoal(ctx, user.ID, g); err != nil {
		if f.merge(err) {
			s.renderGoalForm(w, r, http.StatusUnprocessableEntity, f, action, true)
			return
		}
		s.lookupFailed(w, r, applog.OpUpdate, err)
		return
	}
	s.recordChanged(r, applog.OpUpdate, string(amqp.KindGoal), id)
	s.redirectWithFlash(w, r, "/goals", "Savings goal updated.")
}

func (s *Server) handleGoalDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		s.lookupFailed(w, r, applog.OpDelete, err)
		return
	}
	g, err := s.records.GetGoal(ctx, user.ID, id)
	if err != nil {
		s.lookupFailed(w, r, applog.OpDelete, err)
		return
	}

	if r.Method == http.MethodGet {
		s.renderConfirm(w, r, confirmData{
			Heading: "Delete savings goal",
			Message: fmt.Sprintf("Delete the savings goal %q?", g.Title),
			Action:  fmt.Sprintf("/goals/%d/delete", id),
			Cancel:  "/goals",
		})
		return
	}

	if err := s.records.DeleteGoal(ctx, user.ID, id); err != nil {
		s.lookupFailed(w, r, applog.OpDelete, err)
		return
	}
	s.recordChanged(r, applog.OpDelete, string(amqp.KindGoal), id)
	s.redirectWithFlash(w, r, "/goals", "Savings goal deleted.")
}
