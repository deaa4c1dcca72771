package http

import (
	"errors"
	"net/http"

	"savingsbuddy/internal/core"
	applog "savingsbuddy/internal/log"
	"savingsbuddy/internal/services"
)

type loginData struct {
	Form  *form
	Next  string
	Error string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, err := s.currentSession(w, r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if _, err := s.currentSession(w, r); err == nil {
			http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusFound)
			return
		}
		s.render(w, r, http.StatusOK, "login.html", "Sign in",
			loginData{Form: newForm(nil), Next: r.URL.Query().Get("next")})
		return
	}

	f, err := parseForm(w, r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	next := f.Get("next")
	username := sanitizeInput(f.Get("username"))
	f.Set("username", username)

	if username == "" {
		f.addError("username", "This field is required.")
	}
	if f.Get("password") == "" {
		f.addError("password", "This field is required.")
	}
	if !f.Valid() {
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", "Sign in", loginData{Form: f, Next: next})
		return
	}

	sess, err := s.accounts.Login(r.Context(), username, f.Get("password"))
	if errors.Is(err, core.ErrInvalidCredentials) {
		s.render(w, r, http.StatusUnauthorized, "login.html", "Sign in", loginData{
			Form:  f,
			Next:  next,
			Error: "Please enter a correct username and password. Note that both fields may be case-sensitive.",
		})
		return
	}
	if err != nil {
		s.serverError(w, r, applog.OpLogin, err)
		return
	}

	s.setSessionCookie(w, sess)
	s.logger.InfoContext(r.Context(), "User signed in",
		applog.FieldUserID, sess.User.ID,
		applog.FieldOperation, applog.OpLogin)
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRegistration {
		s.notFound(w, r)
		return
	}
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "register.html", "Create account", newForm(nil))
		return
	}

	f, err := parseForm(w, r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	in := services.RegisterInput{
		Username:  sanitizeInput(f.Get("username")),
		Email:     sanitizeInput(f.Get("email")),
		Password1: f.Get("password1"),
		Password2: f.Get("password2"),
	}
	f.Set("username", in.Username)
	f.Set("email", in.Email)

	user, err := s.accounts.Register(r.Context(), in)
	if err != nil {
		if f.merge(err) {
			s.render(w, r, http.StatusUnprocessableEntity, "register.html", "Create account", f)
			return
		}
		s.serverError(w, r, applog.OpRegister, err)
		return
	}

	sess, err := s.accounts.StartSession(r.Context(), user)
	if err != nil {
		s.serverError(w, r, applog.OpRegister, err)
		return
	}
	s.setSessionCookie(w, sess)
	s.logger.InfoContext(r.Context(), "User registered",
		applog.FieldUserID, user.ID,
		applog.FieldOperation, applog.OpRegister)
	s.redirectWithFlash(w, r, "/dashboard", "Welcome, "+user.Username+"! Your account has been created.")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.accounts.Logout(r.Context(), c.Value); err != nil {
			s.logger.WarnContext(r.Context(), "Failed to delete session", applog.FieldError, err)
		}
	}
	s.clearSessionCookie(w)
	s.redirectWithFlash(w, r, "/login", "You have been signed out.")
}
