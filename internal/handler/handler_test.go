package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"todolist/internal/auth"
	apperrors "todolist/internal/errors"
	"todolist/internal/model"
)

// MockAuthService is a mock implementation of service.AuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) SignUp(ctx context.Context, jar auth.CookieJar, email, password string) (*model.AuthUser, error) {
	args := m.Called(ctx, jar, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthUser), args.Error(1)
}

func (m *MockAuthService) SignIn(ctx context.Context, jar auth.CookieJar, email, password string) (*model.AuthUser, error) {
	args := m.Called(ctx, jar, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthUser), args.Error(1)
}

func (m *MockAuthService) CurrentUser(ctx context.Context, jar auth.CookieJar) (*model.AuthUser, error) {
	args := m.Called(ctx, jar)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthUser), args.Error(1)
}

func (m *MockAuthService) RequireUser(ctx context.Context, jar auth.CookieJar) (*model.AuthUser, error) {
	args := m.Called(ctx, jar)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthUser), args.Error(1)
}

func (m *MockAuthService) SignOut(ctx context.Context, jar auth.CookieJar) error {
	return m.Called(ctx, jar).Error(0)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, jar auth.CookieJar, currentPassword, newPassword string) error {
	return m.Called(ctx, jar, currentPassword, newPassword).Error(0)
}

func (m *MockAuthService) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type structValidator struct{}

func (structValidator) Validate(any) error { return nil }

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "validation", err: apperrors.Validation("title", "title is required"), wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "not found", err: fmt.Errorf("find todo: %w", apperrors.ErrNotFound), wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "auth required", err: apperrors.ErrAuthRequired, wantStatus: http.StatusUnauthorized, wantCode: "AUTH_REQUIRED"},
		{name: "duplicate", err: fmt.Errorf("%w: tag", apperrors.ErrDuplicate), wantStatus: http.StatusConflict, wantCode: "DUPLICATE_RESOURCE"},
		{name: "storage failure", err: errors.New("dial tcp: refused"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := respondError(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.Code)
			body, ok := httpErr.Message.(apperrors.ErrorResponse)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotContains(t, body.Error, "dial tcp")
		})
	}
}

func TestSessionsRequire(t *testing.T) {
	user := &model.AuthUser{ID: uuid.New(), Email: "a@x.com"}

	tests := []struct {
		name       string
		user       *model.AuthUser
		err        error
		wantStatus int
	}{
		{name: "signed in", user: user, wantStatus: http.StatusOK},
		{name: "anonymous", err: apperrors.ErrAuthRequired, wantStatus: http.StatusUnauthorized},
		{name: "store down", err: errors.New("connection refused"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authSvc := new(MockAuthService)
			if tt.user != nil {
				authSvc.On("RequireUser", mock.Anything, mock.Anything).Return(tt.user, nil)
			} else {
				authSvc.On("RequireUser", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/todos", nil), httptest.NewRecorder())

			var seen *model.AuthUser
			next := func(c echo.Context) error {
				seen = userFrom(c)
				return c.NoContent(http.StatusOK)
			}

			err := NewSessions(authSvc, false).Require(next)(c)
			if tt.wantStatus == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, tt.user, seen)
			} else {
				var httpErr *echo.HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, tt.wantStatus, httpErr.Code)
				assert.Nil(t, seen)
			}
			authSvc.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_MeAnonymous(t *testing.T) {
	authSvc := new(MockAuthService)
	authSvc.On("CurrentUser", mock.Anything, mock.Anything).Return(nil, nil)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), rec)

	h := NewAuthHandler(authSvc, NewSessions(authSvc, false))
	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
}

func TestAuthHandler_SignUpPassesJar(t *testing.T) {
	authSvc := new(MockAuthService)
	user := &model.AuthUser{ID: uuid.New(), Email: "a@x.com"}
	authSvc.On("SignUp", mock.Anything, mock.AnythingOfType("*auth.echoCookieJar"), "a@x.com", "pw123456").Return(user, nil)

	e := echo.New()
	e.Validator = structValidator{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{"email":"a@x.com","password":"pw123456"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewAuthHandler(authSvc, NewSessions(authSvc, false))
	require.NoError(t, h.SignUp(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	authSvc.AssertExpectations(t)
}

func TestIntQuery(t *testing.T) {
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=25", nil), httptest.NewRecorder())
	v, err := intQuery(c, "limit")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 25, *v)

	v, err = intQuery(c, "offset")
	require.NoError(t, err)
	assert.Nil(t, v)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=lots", nil), httptest.NewRecorder())
	_, err = intQuery(c, "limit")
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}
