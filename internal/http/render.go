package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"savingsbuddy/internal/core"
	applog "savingsbuddy/internal/log"
)

const (
	layoutTemplate   = "templates/base.html"
	partialsTemplate = "templates/partials.html"

	flashCookie = "flash"
)

// page is what every template receives.
type page struct {
	Title    string
	User     *core.User
	Flash    string
	Currency string
	// CanRegister hides the register link when registration is closed.
	CanRegister bool
	Data        any
}

// loadPages parses every page template together with the shared layout
// and partials, keyed by file name.
func loadPages(fsys fs.FS, funcs template.FuncMap) (map[string]*template.Template, error) {
	names, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layoutTemplate || name == partialsTemplate {
			continue
		}
		t, err := template.New(path.Base(name)).Funcs(funcs).ParseFS(fsys, layoutTemplate, partialsTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[path.Base(name)] = t
	}
	return pages, nil
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": s.formatMoney,
		"date": func(d core.Date) string {
			return d.String()
		},
		"optdate": func(d *core.Date) string {
			if d == nil {
				return ""
			}
			return d.String()
		},
		"percent": func(d decimal.Decimal) string {
			return d.StringFixed(1)
		},
		"cents": func(m core.Money) int64 {
			return m.Cents
		},
		"maxcents": func(values []core.Money) int64 {
			var max int64
			for _, v := range values {
				if v.Cents > max {
					max = v.Cents
				}
			}
			return max
		},
	}
}

// formatMoney renders an amount in the configured display currency.
func (s *Server) formatMoney(m core.Money) string {
	return money.New(m.Cents, s.currency).Display()
}

// render executes a page inside the layout. The body is buffered so that a
// template failure still produces a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	t, ok := s.pages[name]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Template not loaded",
			"template", name,
			applog.FieldPath, r.URL.Path,
			"error_type", applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	p := page{
		Title:       title,
		User:        userFromContext(r.Context()),
		Flash:       s.popFlash(w, r),
		Currency:    s.currency,
		CanRegister: s.allowRegistration,
		Data:        data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", p); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending flash message and expires its cookie.
func (s *Server) popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(msg)
}

// redirectWithFlash finishes a successful POST.
func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, to, msg string) {
	if msg != "" {
		s.setFlash(w, msg)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

type errorPage struct {
	Status  int
	Message string
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error.html", "Not found",
		errorPage{Status: http.StatusNotFound, Message: "The page you requested does not exist."})
}

// serverError logs err and renders the generic 500 page.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(),
		"Request failed", err, applog.ComponentHTTP, op,
		applog.NewFields().WithUser(userID(r.Context())).WithHTTPRequest(r.Method, r.URL.Path, "", "", ""))
	s.render(w, r, http.StatusInternalServerError, "error.html", "Server error",
		errorPage{Status: http.StatusInternalServerError, Message: "Something went wrong. Please try again."})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.notFound(w, r)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	s.render(w, r, http.StatusTooManyRequests, "error.html", "Too many requests",
		errorPage{Status: http.StatusTooManyRequests, Message: "Too many attempts. Please wait a minute and try again."})
}
