package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"todolist/internal/auth"
	apperrors "todolist/internal/errors"
	"todolist/internal/model"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, now time.Time) error {
	args := m.Called(ctx, id, passwordHash, now)
	return args.Error(0)
}

// MockSessionRepository is a mock implementation of SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *model.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *MockSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockSessionRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func newMockAuthService(users *MockUserRepository, sessions *MockSessionRepository, clk *stepClock) AuthService {
	return NewAuthService(users, sessions, NewUserService(users, nil), clk, discardLogger())
}

func TestAuthService_SignUp(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		setupMock     func(*MockUserRepository, *MockSessionRepository)
		expectedError error
	}{
		{
			name:  "successful registration",
			email: "  New@Example.com ",
			setupMock: func(mUsers *MockUserRepository, mSessions *MockSessionRepository) {
				mUsers.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, apperrors.ErrNotFound)
				mUsers.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
				mSessions.On("Create", mock.Anything, mock.AnythingOfType("*model.Session")).Return(nil)
			},
		},
		{
			name:  "email already registered",
			email: "existing@example.com",
			setupMock: func(mUsers *MockUserRepository, mSessions *MockSessionRepository) {
				mUsers.On("FindByEmail", mock.Anything, "existing@example.com").Return(&model.User{Email: "existing@example.com"}, nil)
			},
			expectedError: ErrEmailTaken,
		},
		{
			name:  "unique index race",
			email: "race@example.com",
			setupMock: func(mUsers *MockUserRepository, mSessions *MockSessionRepository) {
				mUsers.On("FindByEmail", mock.Anything, "race@example.com").Return(nil, apperrors.ErrNotFound)
				mUsers.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(apperrors.ErrDuplicate)
			},
			expectedError: ErrEmailTaken,
		},
		{
			name:          "blank email",
			email:         "   ",
			setupMock:     func(*MockUserRepository, *MockSessionRepository) {},
			expectedError: &apperrors.ValidationError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mUsers := new(MockUserRepository)
			mSessions := new(MockSessionRepository)
			tt.setupMock(mUsers, mSessions)
			jar := &fakeJar{}

			svc := newMockAuthService(mUsers, mSessions, newStepClock())
			user, err := svc.SignUp(context.Background(), jar, tt.email, "pw123456")

			if tt.expectedError != nil {
				assert.Error(t, err)
				var ve *apperrors.ValidationError
				if errors.As(tt.expectedError, &ve) {
					assert.True(t, apperrors.IsValidation(err))
				} else {
					assert.Equal(t, tt.expectedError, err)
				}
				assert.Nil(t, user)
				assert.Empty(t, jar.token)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, user)
				assert.Equal(t, "new@example.com", user.Email)
				assert.Len(t, jar.token, 64)
			}

			mUsers.AssertExpectations(t)
			mSessions.AssertExpectations(t)
		})
	}
}

func TestAuthService_SignIn(t *testing.T) {
	hash, err := auth.HashPassword("pw123456")
	require.NoError(t, err)
	userID := uuid.New()
	stored := &model.User{ID: userID, Email: "a@x.com", PasswordHash: hash}

	tests := []struct {
		name          string
		email         string
		password      string
		setupMock     func(*MockUserRepository, *MockSessionRepository)
		expectedError error
	}{
		{
			name:     "successful sign in",
			email:    "A@X.com",
			password: "pw123456",
			setupMock: func(mUsers *MockUserRepository, mSessions *MockSessionRepository) {
				mUsers.On("FindByEmail", mock.Anything, "a@x.com").Return(stored, nil)
				mSessions.On("Create", mock.Anything, mock.MatchedBy(func(s *model.Session) bool {
					return s.UserID == userID && len(s.TokenHash) == 64
				})).Return(nil)
			},
		},
		{
			name:     "unknown email",
			email:    "nobody@x.com",
			password: "pw123456",
			setupMock: func(mUsers *MockUserRepository, mSessions *MockSessionRepository) {
				mUsers.On("FindByEmail", mock.Anything, "nobody@x.com").Return(nil, apperrors.ErrNotFound)
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name:     "wrong password",
			email:    "a@x.com",
			password: "not-the-password",
			setupMock: func(mUsers *MockUserRepository, mSessions *MockSessionRepository) {
				mUsers.On("FindByEmail", mock.Anything, "a@x.com").Return(stored, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mUsers := new(MockUserRepository)
			mSessions := new(MockSessionRepository)
			tt.setupMock(mUsers, mSessions)
			jar := &fakeJar{}

			svc := newMockAuthService(mUsers, mSessions, newStepClock())
			user, err := svc.SignIn(context.Background(), jar, tt.email, tt.password)

			if tt.expectedError != nil {
				assert.Equal(t, tt.expectedError, err)
				assert.Nil(t, user)
				assert.Equal(t, 0, jar.sets)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, user)
				assert.Equal(t, userID, user.ID)
				assert.Equal(t, 1, jar.sets)
			}

			mUsers.AssertExpectations(t)
			mSessions.AssertExpectations(t)
		})
	}
}

func TestAuthService_CurrentUser_ExpiredSessionIsDeleted(t *testing.T) {
	clk := newStepClock()
	mUsers := new(MockUserRepository)
	mSessions := new(MockSessionRepository)

	sessionID := uuid.New()
	expired := &model.Session{
		ID:        sessionID,
		UserID:    uuid.New(),
		ExpiresAt: clk.now.Add(-time.Minute).UnixMilli(),
	}
	mSessions.On("FindByTokenHash", mock.Anything, auth.HashSessionToken("stale")).Return(expired, nil)
	mSessions.On("DeleteByID", mock.Anything, sessionID).Return(nil)

	jar := &fakeJar{token: "stale"}
	user, err := newMockAuthService(mUsers, mSessions, clk).CurrentUser(context.Background(), jar)

	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, 1, jar.clears)
	mSessions.AssertExpectations(t)
	mUsers.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestAuthService_CurrentUser_StorageErrorPropagates(t *testing.T) {
	mUsers := new(MockUserRepository)
	mSessions := new(MockSessionRepository)
	boom := errors.New("connection reset")
	mSessions.On("FindByTokenHash", mock.Anything, mock.Anything).Return(nil, boom)

	jar := &fakeJar{token: "tok"}
	user, err := newMockAuthService(mUsers, mSessions, newStepClock()).CurrentUser(context.Background(), jar)

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, user)
	assert.Equal(t, 0, jar.clears)
}

func TestAuthService_SessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	jar := &fakeJar{}
	user, err := env.authSvc.SignUp(ctx, jar, "a@x.com", "pw123456")
	require.NoError(t, err)
	token := jar.token
	require.NotEmpty(t, token)

	current, err := env.authSvc.CurrentUser(ctx, &fakeJar{token: token})
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, user.ID, current.ID)
	assert.Equal(t, "a@x.com", current.Email)

	_, err = env.authSvc.SignUp(ctx, &fakeJar{}, "A@x.com ", "other-password")
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	require.NoError(t, env.authSvc.SignOut(ctx, jar))
	assert.Empty(t, jar.token)

	stale := &fakeJar{token: token}
	current, err = env.authSvc.CurrentUser(ctx, stale)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Equal(t, 1, stale.clears)

	_, err = env.authSvc.RequireUser(ctx, &fakeJar{token: token})
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)

	_, err = env.authSvc.RequireUser(ctx, &fakeJar{})
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)

	// signing out again without a session is harmless
	assert.NoError(t, env.authSvc.SignOut(ctx, &fakeJar{}))
}

func TestAuthService_SignInWithWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.authSvc.SignUp(ctx, &fakeJar{}, "a@x.com", "pw123456")
	require.NoError(t, err)

	_, err = env.authSvc.SignIn(ctx, &fakeJar{}, "a@x.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.authSvc.SignIn(ctx, &fakeJar{}, "b@x.com", "pw123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	jar := &fakeJar{}
	user, err := env.authSvc.SignIn(ctx, jar, " A@X.COM", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NotEmpty(t, jar.token)
}

func TestAuthService_ExpiredSessionSelfCleans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	jar := &fakeJar{}
	_, err := env.authSvc.SignUp(ctx, jar, "a@x.com", "pw123456")
	require.NoError(t, err)
	token := jar.token

	env.clock.Set(env.clock.Now().Add(auth.SessionMaxAge + time.Second))

	probe := &fakeJar{token: token}
	user, err := env.authSvc.CurrentUser(ctx, probe)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, 1, probe.clears)

	_, err = env.sessions.FindByTokenHash(ctx, auth.HashSessionToken(token))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAuthService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	browser := &fakeJar{}
	_, err := env.authSvc.SignUp(ctx, browser, "a@x.com", "pw123456")
	require.NoError(t, err)
	phone := &fakeJar{}
	_, err = env.authSvc.SignIn(ctx, phone, "a@x.com", "pw123456")
	require.NoError(t, err)
	oldBrowserToken := browser.token

	err = env.authSvc.ChangePassword(ctx, browser, "pw123456", "pw123456")
	assert.ErrorIs(t, err, ErrPasswordUnchanged)

	err = env.authSvc.ChangePassword(ctx, browser, "wrong-current", "new-password")
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.True(t, apperrors.IsValidation(err))

	err = env.authSvc.ChangePassword(ctx, &fakeJar{}, "pw123456", "new-password")
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)

	require.NoError(t, env.authSvc.ChangePassword(ctx, browser, "pw123456", "new-password"))
	assert.NotEqual(t, oldBrowserToken, browser.token)

	user, err := env.authSvc.CurrentUser(ctx, &fakeJar{token: phone.token})
	require.NoError(t, err)
	assert.Nil(t, user, "sessions issued before the change are revoked")

	user, err = env.authSvc.CurrentUser(ctx, &fakeJar{token: oldBrowserToken})
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = env.authSvc.CurrentUser(ctx, &fakeJar{token: browser.token})
	require.NoError(t, err)
	require.NotNil(t, user)

	_, err = env.authSvc.SignIn(ctx, &fakeJar{}, "a@x.com", "pw123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.authSvc.SignIn(ctx, &fakeJar{}, "a@x.com", "new-password")
	assert.NoError(t, err)
}

func TestAuthService_DeleteSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	jar := &fakeJar{}
	_, err := env.authSvc.SignUp(ctx, jar, "a@x.com", "pw123456")
	require.NoError(t, err)

	session, err := env.sessions.FindByTokenHash(ctx, auth.HashSessionToken(jar.token))
	require.NoError(t, err)
	require.NoError(t, env.authSvc.DeleteSession(ctx, session.ID))

	user, err := env.authSvc.CurrentUser(ctx, &fakeJar{token: jar.token})
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, env.authSvc.DeleteSession(ctx, session.ID))
}
