package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"savingsbuddy/internal/auth"
	"savingsbuddy/internal/core"
	"savingsbuddy/internal/storage"
)

// DefaultSessionDuration is used when no positive duration is configured.
const DefaultSessionDuration = 30 * 24 * time.Hour

type (
	// RegisterInput is the submitted registration form.
	RegisterInput struct {
		Username  string
		Email     string
		Password1 string
		Password2 string
	}

	// Session is an authenticated browser session.
	Session struct {
		Token     string
		User      core.User
		ExpiresAt time.Time
		// Renewed is set when validation pushed ExpiresAt forward and the
		// cookie must be reissued.
		Renewed bool
	}
)

// AccountService manages users and their sessions.
type AccountService struct {
	storage         *storage.SQLiteRepository
	sessionDuration time.Duration
	now             func() time.Time
}

func NewAccountService(storage *storage.SQLiteRepository, sessionDuration time.Duration) *AccountService {
	if sessionDuration <= 0 {
		sessionDuration = DefaultSessionDuration
	}
	return &AccountService{
		storage:         storage,
		sessionDuration: sessionDuration,
		now:             time.Now,
	}
}

// SessionDuration is the lifetime given to new and renewed sessions.
func (a *AccountService) SessionDuration() time.Duration {
	return a.sessionDuration
}

func validUsernameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r)
}

func validateUsername(v *core.ValidationError, username string) {
	switch {
	case username == "":
		v.Add("username", "This field is required.")
	case utf8.RuneCountInString(username) > core.MaxUsernameLen:
		v.Add("username", "Ensure this value has at most 150 characters.")
	case strings.IndexFunc(username, func(r rune) bool { return !validUsernameRune(r) }) >= 0:
		v.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
}

func validateEmail(v *core.ValidationError, email string) {
	if email == "" {
		return
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		v.Add("email", "Enter a valid email address.")
	}
}

// Register validates the form, creates the user and reports every field
// problem at once. Unlike CreateUser, it requires an email address.
func (a *AccountService) Register(ctx context.Context, in RegisterInput) (core.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	v := core.NewValidationError()
	validateUsername(v, username)
	if email == "" {
		v.Add("email", "This field is required.")
	} else {
		validateEmail(v, email)
	}
	switch {
	case in.Password1 == "":
		v.Add("password1", "This field is required.")
	case in.Password2 == "":
		v.Add("password2", "This field is required.")
	case in.Password1 != in.Password2:
		v.Add("password2", "The two password fields didn't match.")
	default:
		if err := auth.ValidatePassword(in.Password1); err != nil {
			v.Add("password2", core.Sentence(err))
		}
	}
	if err := v.OrNil(); err != nil {
		return core.User{}, err
	}

	return a.createUser(ctx, username, email, in.Password1)
}

// CreateUser adds a user without the registration form's confirmation
// field. Used by the admin CLI and admin seeding.
func (a *AccountService) CreateUser(ctx context.Context, username, email, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	v := core.NewValidationError()
	validateUsername(v, username)
	validateEmail(v, email)
	if err := auth.ValidatePassword(password); err != nil {
		v.Add("password", core.Sentence(err))
	}
	if err := v.OrNil(); err != nil {
		return core.User{}, err
	}
	return a.createUser(ctx, username, email, password)
}

func (a *AccountService) createUser(ctx context.Context, username, email, password string) (core.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u, err := a.storage.CreateUser(ctx, username, email, hash)
	if errors.Is(err, core.ErrDuplicate) {
		v := core.NewValidationError()
		v.Add("username", "A user with that username already exists.")
		return core.User{}, v
	}
	return u, err
}

// Authenticate checks credentials. Unknown users and wrong passwords both
// yield core.ErrInvalidCredentials.
func (a *AccountService) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	u, err := a.storage.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return core.User{}, core.ErrInvalidCredentials
	}
	return u, nil
}

// Login authenticates and opens a new session.
func (a *AccountService) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := a.Authenticate(ctx, username, password)
	if err != nil {
		slog.WarnContext(ctx, "Login failed", "username", username, "error", err)
		return Session{}, err
	}
	return a.StartSession(ctx, u)
}

// StartSession opens a session for an already authenticated user.
func (a *AccountService) StartSession(ctx context.Context, u core.User) (Session, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return Session{}, err
	}
	expires := a.now().Add(a.sessionDuration).UTC().Truncate(time.Second)
	if err := a.storage.CreateSession(ctx, token, u.ID, expires); err != nil {
		return Session{}, err
	}
	slog.InfoContext(ctx, "Session started", "user_id", u.ID)
	return Session{Token: token, User: u, ExpiresAt: expires}, nil
}

// ValidateSession resolves token to its user. Sessions with less than half
// of their lifetime left are extended. Missing or expired sessions yield
// core.ErrAuthRequired.
func (a *AccountService) ValidateSession(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, core.ErrAuthRequired
	}
	now := a.now()
	info, err := a.storage.ValidateSession(ctx, token, now)
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, core.ErrAuthRequired
	}
	if err != nil {
		return Session{}, err
	}

	s := Session{Token: token, User: info.User, ExpiresAt: info.ExpiresAt}
	if info.ExpiresAt.Sub(now) < a.sessionDuration/2 {
		expires := now.Add(a.sessionDuration).UTC().Truncate(time.Second)
		if err := a.storage.RenewSession(ctx, token, now, expires); err != nil {
			slog.WarnContext(ctx, "Failed to renew session", "user_id", info.User.ID, "error", err)
			return s, nil
		}
		s.ExpiresAt = expires
		s.Renewed = true
	}
	return s, nil
}

func (a *AccountService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return a.storage.DeleteSession(ctx, token)
}

// CleanExpiredSessions removes sessions that expired before now.
func (a *AccountService) CleanExpiredSessions(ctx context.Context) (int64, error) {
	return a.storage.CleanExpiredSessions(ctx, a.now())
}

// SeedAdmin creates the given user only when the database has no users.
// It reports whether a user was created.
func (a *AccountService) SeedAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	n, err := a.storage.UserCount(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := a.CreateUser(ctx, username, "", password); err != nil {
		return false, fmt.Errorf("seed admin user: %w", err)
	}
	slog.InfoContext(ctx, "Seeded admin user", "username", username)
	return true, nil
}

func (a *AccountService) ListUsers(ctx context.Context) ([]core.User, error) {
	return a.storage.ListUsers(ctx)
}

// DeleteUser removes a user by name together with every record they own.
func (a *AccountService) DeleteUser(ctx context.Context, username string) error {
	u, err := a.storage.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return err
	}
	return a.storage.DeleteUser(ctx, u.ID)
}

// UserByUsername looks a user up by name, case-insensitively.
func (a *AccountService) UserByUsername(ctx context.Context, username string) (core.User, error) {
	return a.storage.GetUserByUsername(ctx, strings.TrimSpace(username))
}
