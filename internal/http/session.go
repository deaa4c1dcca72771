package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"savingsbuddy/internal/core"
	applog "savingsbuddy/internal/log"
	"savingsbuddy/internal/services"
)

const sessionCookie = "session"

type userKey struct{}

func withUser(ctx context.Context, u *core.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// userFromContext returns the signed-in user, or nil on public pages.
func userFromContext(ctx context.Context) *core.User {
	u, _ := ctx.Value(userKey{}).(*core.User)
	return u
}

func userID(ctx context.Context) int64 {
	if u := userFromContext(ctx); u != nil {
		return u.ID
	}
	return 0
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentSession validates the session cookie, reissuing it when the
// session was renewed.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) (services.Session, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return services.Session{}, core.ErrAuthRequired
	}
	sess, err := s.accounts.ValidateSession(r.Context(), c.Value)
	if err != nil {
		if errors.Is(err, core.ErrAuthRequired) {
			s.clearSessionCookie(w)
		}
		return services.Session{}, err
	}
	if sess.Renewed {
		s.setSessionCookie(w, sess)
	}
	return sess, nil
}

// requireUser redirects anonymous requests to the login page and puts the
// user into the context otherwise.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.currentSession(w, r)
		if errors.Is(err, core.ErrAuthRequired) {
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		if err != nil {
			s.serverError(w, r, applog.OpValidate, err)
			return
		}

		user := sess.User
		ctx := withUser(r.Context(), &user)
		logger := applog.FromContext(ctx).With(applog.FieldUserID, user.ID)
		ctx = applog.WithLogger(ctx, logger)
		next(w, r.WithContext(ctx))
	})
}

// safeNext keeps only local absolute paths so the login form cannot be
// used as an open redirect.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/dashboard"
	}
	return next
}
