package service

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"todolist/internal/blob"
	"todolist/internal/db"
	"todolist/internal/repository"
)

// stepClock advances by step on every read so rows get distinct timestamps.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), step: time.Second}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakeJar is an in-memory cookie jar.
type fakeJar struct {
	token  string
	sets   int
	clears int
}

func (j *fakeJar) SessionToken() string { return j.token }

func (j *fakeJar) SetSessionToken(token string) {
	j.token = token
	j.sets++
}

func (j *fakeJar) ClearSessionToken() {
	j.token = ""
	j.clears++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

type testEnv struct {
	db       *gorm.DB
	clock    *stepClock
	blobs    blob.Store
	users    repository.UserRepository
	sessions repository.SessionRepository
	todoRepo repository.TodoRepository
	tagRepo  repository.TagRepository
	linkRepo repository.TodoTagRepository
	subRepo  repository.SubtaskRepository
	uploads  repository.UploadRepository

	userSvc    UserService
	authSvc    AuthService
	tagSvc     TagService
	todoSvc    TodoService
	subtaskSvc SubtaskService
}

// newTestEnv wires every service against a fresh in-memory database. The
// cache is nil, which behaves as an always-empty cache.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := newTestDB(t)
	clk := newStepClock()
	logger := discardLogger()

	blobs, err := blob.NewFSStore(filepath.Join(t.TempDir(), "blobs"), "/files")
	require.NoError(t, err)

	env := &testEnv{
		db:       gdb,
		clock:    clk,
		blobs:    blobs,
		users:    repository.NewUserRepository(gdb),
		sessions: repository.NewSessionRepository(gdb),
		todoRepo: repository.NewTodoRepository(gdb),
		tagRepo:  repository.NewTagRepository(gdb),
		linkRepo: repository.NewTodoTagRepository(gdb),
		subRepo:  repository.NewSubtaskRepository(gdb),
		uploads:  repository.NewUploadRepository(gdb),
	}
	env.userSvc = NewUserService(env.users, nil)
	env.authSvc = NewAuthService(env.users, env.sessions, env.userSvc, clk, logger)
	env.tagSvc = NewTagService(env.tagRepo, env.linkRepo, env.todoRepo, clk, logger)
	env.todoSvc = NewTodoService(env.todoRepo, env.linkRepo, env.subRepo, env.tagSvc, blobs, env.uploads, nil, clk, logger)
	env.subtaskSvc = NewSubtaskService(env.subRepo, env.todoRepo, clk, logger)
	return env
}
