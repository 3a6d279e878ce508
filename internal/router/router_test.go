package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todolist/internal/auth"
	"todolist/internal/blob"
	"todolist/internal/db"
	"todolist/internal/handler"
	"todolist/internal/model"
	"todolist/internal/repository"
	"todolist/internal/service"
)

type memTicketStore struct {
	mu      sync.Mutex
	tickets map[string]uuid.UUID
}

func (s *memTicketStore) StoreTicket(_ context.Context, ticketID string, userID uuid.UUID, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[ticketID] = userID
	return nil
}

func (s *memTicketStore) ConsumeTicket(_ context.Context, ticketID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tickets[ticketID]
	if !ok {
		return uuid.Nil, auth.ErrTicketUsed
	}
	delete(s.tickets, ticketID)
	return userID, nil
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	gdb, err := db.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	blobDir := filepath.Join(t.TempDir(), "blobs")
	blobs, err := blob.NewFSStore(blobDir, "/files")
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(gdb)
	todoRepo := repository.NewTodoRepository(gdb)
	linkRepo := repository.NewTodoTagRepository(gdb)
	subRepo := repository.NewSubtaskRepository(gdb)
	uploadRepo := repository.NewUploadRepository(gdb)

	tickets := auth.NewTicketService("test-secret", nil)
	userSvc := service.NewUserService(userRepo, nil)
	authSvc := service.NewAuthService(userRepo, repository.NewSessionRepository(gdb), userSvc, nil, nil)
	tagSvc := service.NewTagService(repository.NewTagRepository(gdb), linkRepo, todoRepo, nil, nil)
	todoSvc := service.NewTodoService(todoRepo, linkRepo, subRepo, tagSvc, blobs, uploadRepo, nil, nil, nil)
	subtaskSvc := service.NewSubtaskService(subRepo, todoRepo, nil, nil)
	attachmentSvc := service.NewAttachmentService(tickets, &memTicketStore{tickets: map[string]uuid.UUID{}}, blobs, uploadRepo, userSvc, nil)

	sessions := handler.NewSessions(authSvc, false)
	e := echo.New()
	Register(e, Handlers{
		Sessions:    sessions,
		Auth:        handler.NewAuthHandler(authSvc, sessions),
		Todos:       handler.NewTodoHandler(todoSvc, tagSvc),
		Tags:        handler.NewTagHandler(tagSvc),
		Subtasks:    handler.NewSubtaskHandler(subtaskSvc),
		Attachments: handler.NewAttachmentHandler(attachmentSvc),
	}, Options{DB: gdb, Tickets: tickets, BlobDir: blobDir})
	return e
}

// client replays the session cookie across requests.
type client struct {
	t      *testing.T
	e      *echo.Echo
	cookie *http.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return c.send(req)
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name != auth.SessionCookieName {
			continue
		}
		if cookie.MaxAge < 0 || cookie.Value == "" {
			c.cookie = nil
		} else {
			c.cookie = cookie
		}
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func signedIn(t *testing.T, e *echo.Echo, email string) *client {
	t.Helper()
	c := &client{t: t, e: e}
	rec := c.do(http.MethodPost, "/api/auth/signup", map[string]string{"email": email, "password": "pw123456"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, c.cookie)
	return c
}

func TestAuthFlow(t *testing.T) {
	e := newTestServer(t)
	c := &client{t: t, e: e}

	rec := c.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/auth/signup", map[string]string{"email": "A@X.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/api/auth/signup", map[string]string{"email": "A@X.com", "password": "pw123456"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[model.AuthUser](t, rec)
	assert.Equal(t, "a@x.com", user.Email)
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.cookie.SameSite)

	rec = c.do(http.MethodGet, "/api/auth/me", nil)
	me := decode[handler.MeResponse](t, rec)
	require.NotNil(t, me.User)
	assert.Equal(t, user.ID, me.User.ID)

	other := &client{t: t, e: e}
	rec = other.do(http.MethodPost, "/api/auth/signup", map[string]string{"email": "a@x.com", "password": "pw123456"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = other.do(http.MethodPost, "/api/auth/signin", map[string]string{"email": "a@x.com", "password": "wrong-pw"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode[map[string]string](t, rec)["code"])

	rec = c.do(http.MethodPost, "/api/auth/password", map[string]string{"current_password": "pw123456", "new_password": "pw654321"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = c.do(http.MethodGet, "/api/todos", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "a fresh session is issued after a password change")

	rec = c.do(http.MethodPost, "/api/auth/signout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, c.cookie)

	rec = c.do(http.MethodGet, "/api/todos", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_REQUIRED", decode[map[string]string](t, rec)["code"])

	rec = other.do(http.MethodPost, "/api/auth/signin", map[string]string{"email": "a@x.com", "password": "pw654321"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTodoEndpoints(t *testing.T) {
	e := newTestServer(t)
	c := signedIn(t, e, "a@x.com")

	due := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	rec := c.do(http.MethodPost, "/api/todos", map[string]any{
		"title":                   "Buy milk",
		"due_date":                due.Format(time.RFC3339),
		"reminder_minutes_before": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	id := created["id"].(string)

	rec = c.do(http.MethodGet, "/api/todos?list=my-day", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]map[string]any](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0]["id"])
	assert.Equal(t, []any{}, items[0]["tags"])
	assert.Equal(t, float64(0), items[0]["subtask_count"])
	assert.Equal(t, []any{}, items[0]["attachments"])

	rec = c.do(http.MethodGet, "/api/todos?list=someday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.do(http.MethodGet, "/api/todos?limit=ten", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.do(http.MethodGet, "/api/todos/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPatch, "/api/todos/"+id, map[string]any{"due_date": nil, "important": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[map[string]any](t, rec)
	assert.Nil(t, updated["due_date"])
	assert.Nil(t, updated["reminder_minutes_before"])
	assert.Equal(t, true, updated["important"])
	assert.Equal(t, "Buy milk", updated["title"], "absent fields are untouched")

	rec = c.do(http.MethodPost, "/api/todos/"+id+"/completed", map[string]any{"value": true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodPost, "/api/todos/"+id+"/completed", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodGet, "/api/todos/counts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"my_day":0,"important":0,"planned":0,"tasks":0}`, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/todos/reminders?lookback=120", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/todos/page", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[service.PageData](t, rec)
	assert.Equal(t, "a@x.com", page.User.Email)
	assert.Empty(t, page.Todos)

	intruder := signedIn(t, e, "b@x.com")
	rec = intruder.do(http.MethodGet, "/api/todos/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = intruder.do(http.MethodDelete, "/api/todos/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.do(http.MethodDelete, "/api/todos/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do(http.MethodDelete, "/api/todos/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do(http.MethodGet, "/api/todos/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTagAndSubtaskEndpoints(t *testing.T) {
	e := newTestServer(t)
	c := signedIn(t, e, "a@x.com")

	rec := c.do(http.MethodPost, "/api/tags", map[string]string{"name": "work"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tag := decode[model.Tag](t, rec)
	assert.Equal(t, model.DefaultTagColor, tag.Color)

	rec = c.do(http.MethodPost, "/api/tags", map[string]string{"name": "work"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = c.do(http.MethodPost, "/api/tags", map[string]string{"name": "bad", "color": "blue"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/api/todos", map[string]any{"title": "report"})
	require.Equal(t, http.StatusCreated, rec.Code)
	todoID := decode[model.Todo](t, rec).ID.String()

	rec = c.do(http.MethodPut, "/api/todos/"+todoID+"/tags", map[string]any{"tag_ids": []string{tag.ID.String(), uuid.NewString()}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]model.Tag](t, rec), 1)

	rec = c.do(http.MethodGet, "/api/tags?counts=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counted := decode[[]model.TagWithCount](t, rec)
	require.Len(t, counted, 1)
	assert.Equal(t, int64(1), counted[0].TodoCount)

	rec = c.do(http.MethodGet, "/api/todos?tag_id="+tag.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = c.do(http.MethodDelete, "/api/todos/"+todoID+"/tags/"+tag.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do(http.MethodPost, "/api/todos/"+todoID+"/tags/"+tag.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.do(http.MethodPatch, "/api/tags/"+tag.ID.String(), map[string]any{"name": "office"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "office", decode[model.Tag](t, rec).Name)

	var subtaskIDs []string
	for _, title := range []string{"draft", "review"} {
		rec = c.do(http.MethodPost, "/api/todos/"+todoID+"/subtasks", map[string]any{"title": title})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		subtaskIDs = append(subtaskIDs, decode[model.Subtask](t, rec).ID.String())
	}

	rec = c.do(http.MethodPut, "/api/todos/"+todoID+"/subtasks/order", map[string]any{"subtasks": []map[string]any{
		{"id": subtaskIDs[1], "order": 0},
		{"id": subtaskIDs[0], "order": 1},
	}})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPut, "/api/todos/"+todoID+"/subtasks/order", map[string]any{"subtasks": []map[string]any{
		{"id": subtaskIDs[0], "order": 0},
		{"id": subtaskIDs[0], "order": 1},
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodGet, "/api/todos/"+todoID+"/subtasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	subtasks := decode[[]model.Subtask](t, rec)
	require.Len(t, subtasks, 2)
	assert.Equal(t, "review", subtasks[0].Title)

	rec = c.do(http.MethodPost, "/api/subtasks/"+subtaskIDs[0]+"/toggle", map[string]any{"value": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.Subtask](t, rec).Completed)

	rec = c.do(http.MethodPatch, "/api/subtasks/"+subtaskIDs[0], map[string]any{"title": "final draft"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/api/todos/"+todoID, nil)
	item := decode[map[string]any](t, rec)
	assert.Equal(t, float64(2), item["subtask_count"])
	assert.Equal(t, float64(1), item["subtask_completed_count"])

	rec = c.do(http.MethodDelete, "/api/subtasks/"+subtaskIDs[0], nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do(http.MethodDelete, "/api/subtasks/"+subtaskIDs[0], nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodDelete, "/api/tags/"+tag.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func uploadRequest(t *testing.T, target, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestUploadEndpoints(t *testing.T) {
	e := newTestServer(t)
	c := signedIn(t, e, "a@x.com")

	rec := c.do(http.MethodPost, "/api/attachments/upload-url", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	target := decode[service.UploadTarget](t, rec)
	require.True(t, strings.HasPrefix(target.UploadURL, "/api/uploads?token="))

	rec = c.send(uploadRequest(t, target.UploadURL, "notes.txt", "hello"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	attachment := decode[model.Attachment](t, rec)
	assert.Equal(t, "notes.txt", attachment.Name)
	assert.Equal(t, int64(5), attachment.Size)

	rec = c.send(uploadRequest(t, target.UploadURL, "again.txt", "replay"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.send(uploadRequest(t, "/api/uploads?token=garbage", "x.txt", "x"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = c.send(uploadRequest(t, "/api/uploads", "x.txt", "x"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/api/todos", map[string]any{
		"title":       "with file",
		"attachments": []model.Attachment{attachment},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[map[string]any](t, rec)
	attachments := item["attachments"].([]any)
	require.Len(t, attachments, 1)
	url := attachments[0].(map[string]any)["url"].(string)
	assert.Equal(t, "/files/"+attachment.StorageID, url)

	rec = c.do(http.MethodGet, url, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())

	other := signedIn(t, e, "b@x.com")
	rec = other.do(http.MethodPost, "/api/todos", map[string]any{
		"title":       "not mine",
		"attachments": []model.Attachment{attachment},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	anonymous := &client{t: t, e: e}
	rec = anonymous.do(http.MethodPost, "/api/attachments/upload-url", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	e := newTestServer(t)
	c := signedIn(t, e, "ops@x.com")

	rec := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = c.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "todolist_auth_events_total")
}
