package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"todolist/internal/auth"
	"todolist/internal/clock"
	apperrors "todolist/internal/errors"
	"todolist/internal/model"
	"todolist/internal/repository"
)

var (
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = fmt.Errorf("%w: email already registered", apperrors.ErrDuplicate)
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	// ErrWrongPassword is returned when a password change names the wrong current password.
	ErrWrongPassword = apperrors.Validation("current_password", "current password is incorrect")
	// ErrPasswordUnchanged is returned when the new password equals the current one.
	ErrPasswordUnchanged = apperrors.Validation("new_password", "new password must differ from the current password")
)

// AuthService handles credentials and cookie-bound sessions.
type AuthService interface {
	SignUp(ctx context.Context, jar auth.CookieJar, email, password string) (*model.AuthUser, error)
	SignIn(ctx context.Context, jar auth.CookieJar, email, password string) (*model.AuthUser, error)
	CurrentUser(ctx context.Context, jar auth.CookieJar) (*model.AuthUser, error)
	RequireUser(ctx context.Context, jar auth.CookieJar) (*model.AuthUser, error)
	SignOut(ctx context.Context, jar auth.CookieJar) error
	ChangePassword(ctx context.Context, jar auth.CookieJar, currentPassword, newPassword string) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

type authService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	userSvc  UserService
	clock    clock.Clock
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	userSvc UserService,
	clk clock.Clock,
	logger *slog.Logger,
) AuthService {
	if clk == nil {
		clk = clock.System
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		users:    users,
		sessions: sessions,
		userSvc:  userSvc,
		clock:    clk,
		logger:   logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a new user and starts a session for them.
func (s *authService) SignUp(ctx context.Context, jar auth.CookieJar, email, password string) (user *model.AuthUser, err error) {
	defer func() { authEventsTotal.WithLabelValues("signup", outcome(err)).Inc() }()

	email = normalizeEmail(email)
	if email == "" {
		return nil, apperrors.Validation("email", "email is required")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, ErrEmailTaken
	}
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	created := &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, created); err != nil {
		// Lost a race with a concurrent sign-up for the same address.
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if err := s.issueSession(ctx, jar, created.ID); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user signed up", slog.String("user_id", created.ID.String()))
	return &model.AuthUser{ID: created.ID, Email: created.Email}, nil
}

// SignIn verifies credentials and starts a session. Unknown email and wrong
// password fail identically.
func (s *authService) SignIn(ctx context.Context, jar auth.CookieJar, email, password string) (user *model.AuthUser, err error) {
	defer func() { authEventsTotal.WithLabelValues("signin", outcome(err)).Inc() }()

	found, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(password, found.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.issueSession(ctx, jar, found.ID); err != nil {
		return nil, err
	}
	return &model.AuthUser{ID: found.ID, Email: found.Email}, nil
}

// CurrentUser resolves the session cookie. A missing, unknown or expired
// session yields (nil, nil); stale cookies and expired rows are cleaned up.
func (s *authService) CurrentUser(ctx context.Context, jar auth.CookieJar) (*model.AuthUser, error) {
	token := jar.SessionToken()
	if token == "" {
		sessionResolutionsTotal.WithLabelValues("anonymous").Inc()
		return nil, nil
	}

	session, err := s.sessions.FindByTokenHash(ctx, auth.HashSessionToken(token))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			sessionResolutionsTotal.WithLabelValues("unknown").Inc()
			jar.ClearSessionToken()
			return nil, nil
		}
		return nil, err
	}

	if session.Expired(s.clock.Now()) {
		sessionResolutionsTotal.WithLabelValues("expired").Inc()
		if err := s.sessions.DeleteByID(ctx, session.ID); err != nil {
			return nil, err
		}
		jar.ClearSessionToken()
		return nil, nil
	}

	user, err := s.userSvc.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			sessionResolutionsTotal.WithLabelValues("orphaned").Inc()
			jar.ClearSessionToken()
			return nil, nil
		}
		return nil, err
	}

	sessionResolutionsTotal.WithLabelValues("ok").Inc()
	return &model.AuthUser{ID: user.ID, Email: user.Email}, nil
}

// RequireUser is CurrentUser with anonymous callers rejected.
func (s *authService) RequireUser(ctx context.Context, jar auth.CookieJar) (*model.AuthUser, error) {
	user, err := s.CurrentUser(ctx, jar)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrAuthRequired
	}
	return user, nil
}

// SignOut deletes the caller's session, if any, and always clears the cookie.
func (s *authService) SignOut(ctx context.Context, jar auth.CookieJar) (err error) {
	defer func() { authEventsTotal.WithLabelValues("signout", outcome(err)).Inc() }()

	if token := jar.SessionToken(); token != "" {
		err = s.sessions.DeleteByTokenHash(ctx, auth.HashSessionToken(token))
	}
	jar.ClearSessionToken()
	return err
}

// ChangePassword replaces the caller's password, revokes every session of
// theirs and issues a fresh one for the current client.
func (s *authService) ChangePassword(ctx context.Context, jar auth.CookieJar, currentPassword, newPassword string) (err error) {
	defer func() { authEventsTotal.WithLabelValues("password_change", outcome(err)).Inc() }()

	current, err := s.RequireUser(ctx, jar)
	if err != nil {
		return err
	}
	if newPassword == currentPassword {
		return ErrPasswordUnchanged
	}

	user, err := s.users.FindByID(ctx, current.ID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(currentPassword, user.PasswordHash) {
		return ErrWrongPassword
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.clock.Now()); err != nil {
		return err
	}
	s.userSvc.Invalidate(ctx, user.ID)

	revoked, err := s.sessions.DeleteByUserID(ctx, user.ID)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID.String()),
		slog.Int64("revoked_sessions", revoked))

	return s.issueSession(ctx, jar, user.ID)
}

// DeleteSession removes one session by id; missing ids are a no-op.
func (s *authService) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return s.sessions.DeleteByID(ctx, id)
}

func (s *authService) issueSession(ctx context.Context, jar auth.CookieJar, userID uuid.UUID) error {
	token, err := auth.NewSessionToken()
	if err != nil {
		return err
	}

	now := s.clock.Now()
	session := &model.Session{
		UserID:    userID,
		TokenHash: auth.HashSessionToken(token),
		ExpiresAt: now.Add(auth.SessionMaxAge).UnixMilli(),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return err
	}

	jar.SetSessionToken(token)
	return nil
}
