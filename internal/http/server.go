package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "savingsbuddy/internal/log"
	"savingsbuddy/internal/middleware/ratelimit"
	"savingsbuddy/internal/middleware/security"
	"savingsbuddy/internal/middleware/trace"
	"savingsbuddy/internal/services"
	appweb "savingsbuddy/web"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Addr     string
	Records  *services.RecordService
	Accounts *services.AccountService
	DB       Pinger
	Logger   *applog.Logger

	// Currency is the ISO 4217 code used to display amounts.
	Currency          string
	SecureCookie      bool
	AllowRegistration bool
	// LoginRateLimit caps POSTs per minute per client on /login and /register.
	LoginRateLimit int
}

type Server struct {
	http.Server
	records  *services.RecordService
	accounts *services.AccountService
	db       Pinger
	logger   *applog.Logger
	events   *applog.StructuredLogger
	pages    map[string]*template.Template

	currency          string
	secureCookie      bool
	allowRegistration bool

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	started        time.Time
	recordsChanged atomic.Int64
	shutdownOnce   sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		records:           opts.Records,
		accounts:          opts.Accounts,
		db:                opts.DB,
		logger:            logger,
		events:            applog.NewStructuredLogger(logger),
		currency:          opts.Currency,
		secureCookie:      opts.SecureCookie,
		allowRegistration: opts.AllowRegistration,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerWindow: opts.LoginRateLimit,
			Window:            time.Minute,
		}),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	if s.currency == "" {
		s.currency = "INR"
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	pages, err := loadPages(appweb.TemplatesFS, s.templateFuncs())
	if err != nil {
		logger.Error("Failed parsing templates", applog.FieldError, err)
	}
	s.pages = pages

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	authScope := applog.Scoped(applog.ComponentAuth)
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)
	mux.Handle("GET /login", authScope(http.HandlerFunc(s.handleLogin)))
	mux.Handle("POST /login", authScope(limited(http.HandlerFunc(s.handleLogin))))
	mux.Handle("GET /register", authScope(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /register", authScope(limited(http.HandlerFunc(s.handleRegister))))
	mux.Handle("POST /logout", authScope(http.HandlerFunc(s.handleLogout)))

	mux.Handle("GET /dashboard", s.recordRoute(s.handleDashboard))

	mux.Handle("GET /expenses", s.recordRoute(s.handleExpenseList))
	mux.Handle("GET /expenses/export", s.recordRoute(s.handleExpenseExport))
	s.handleForm(mux, "/expenses/add", s.handleExpenseCreate)
	s.handleForm(mux, "/expenses/{id}/edit", s.handleExpenseUpdate)
	s.handleForm(mux, "/expenses/{id}/delete", s.handleExpenseDelete)
	s.handleForm(mux, "/expenses/delete_all", s.handleExpenseDeleteAll)

	mux.Handle("GET /incomes", s.recordRoute(s.handleIncomeList))
	s.handleForm(mux, "/incomes/add", s.handleIncomeCreate)
	s.handleForm(mux, "/incomes/{id}/edit", s.handleIncomeUpdate)
	s.handleForm(mux, "/incomes/{id}/delete", s.handleIncomeDelete)
	s.handleForm(mux, "/incomes/delete_all", s.handleIncomeDeleteAll)

	mux.Handle("GET /goals", s.recordRoute(s.handleGoalList))
	s.handleForm(mux, "/goals/add", s.handleGoalCreate)
	s.handleForm(mux, "/goals/{id}/edit", s.handleGoalUpdate)
	s.handleForm(mux, "/goals/{id}/delete", s.handleGoalDelete)

	mux.HandleFunc("/", s.handleNotFound)
}

// recordRoute guards h behind a session and logs it under the records
// component.
func (s *Server) recordRoute(h http.HandlerFunc) http.Handler {
	return applog.Scoped(applog.ComponentRecords)(s.requireUser(h))
}

// handleForm registers an authenticated GET (render) and POST (submit) pair.
func (s *Server) handleForm(mux *http.ServeMux, path string, h http.HandlerFunc) {
	guarded := s.recordRoute(h)
	mux.Handle("GET "+path, guarded)
	mux.Handle("POST "+path, guarded)
}

// middleware wraps the mux; the outermost handler runs first.
func (s *Server) middleware(next http.Handler) http.Handler {
	headers := security.NewHeadersMiddleware(s.headersConfig())

	h := next
	h = s.detector.Middleware(h)
	h = headers.Middleware(h)
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = s.tracer.Middleware(h)
	h = applog.Middleware(s.logger)(h)
	return h
}

func (s *Server) headersConfig() security.HeadersConfig {
	cfg := security.DefaultHeadersConfig()
	cfg.TrustForwardedProto = s.secureCookie
	return cfg
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Close stops background work without draining connections.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.Server.Close()
}

// RunSessionJanitor deletes expired sessions every interval until ctx ends.
func (s *Server) RunSessionJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.accounts.CleanExpiredSessions(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "Failed to clean expired sessions", applog.FieldError, err)
				continue
			}
			if n > 0 {
				s.logger.InfoContext(ctx, "Expired sessions removed", applog.FieldCount, n)
			}
		}
	}
}
