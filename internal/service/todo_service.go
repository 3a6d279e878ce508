package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"todolist/internal/blob"
	"todolist/internal/cache"
	"todolist/internal/clock"
	apperrors "todolist/internal/errors"
	"todolist/internal/model"
	"todolist/internal/repository"
)

// ListType selects one of the sidebar lists.
type ListType string

const (
	ListMyDay     ListType = "my-day"
	ListImportant ListType = "important"
	ListPlanned   ListType = "planned"
	ListTasks     ListType = "tasks"
)

const (
	maxListLimit  = 200
	pageDataLimit = 50

	defaultReminderLookback = 300
	minReminderLookback     = 60
	maxReminderLookback     = 3600

	countsCacheTTL = time.Minute
)

// ListTodosInput selects and pages a user's todos.
type ListTodosInput struct {
	Search string
	List   ListType
	TagID  *uuid.UUID
	Offset int
	// Limit <= 0 means unbounded; larger than 200 is capped.
	Limit int
}

// AttachmentView is an attachment with its resolved download URL, or null
// when the blob cannot be resolved.
type AttachmentView struct {
	model.Attachment
	URL *string `json:"url"`
}

// TodoItem is a todo decorated with its tags and subtask totals.
type TodoItem struct {
	model.Todo
	Attachments           []AttachmentView `json:"attachments"`
	Tags                  []model.Tag      `json:"tags"`
	SubtaskCount          int64            `json:"subtask_count"`
	SubtaskCompletedCount int64            `json:"subtask_completed_count"`
}

// TodoReminder is a todo whose reminder time fell inside the lookback window.
type TodoReminder struct {
	ID                    uuid.UUID `json:"id"`
	Title                 string    `json:"title"`
	DueDate               time.Time `json:"due_date"`
	ReminderMinutesBefore int       `json:"reminder_minutes_before"`
	RemindAt              time.Time `json:"remind_at"`
}

// PageData is everything the main page renders on first load.
type PageData struct {
	User   *model.AuthUser   `json:"user"`
	Todos  []TodoItem        `json:"todos"`
	Tags   []model.Tag       `json:"tags"`
	Counts *model.ListCounts `json:"counts"`
}

// CreateTodoInput describes a new todo. ReminderMinutesBefore is a float so
// non-finite input can be rejected rather than silently truncated.
type CreateTodoInput struct {
	Title                 string
	Description           *string
	Important             bool
	DueDate               *time.Time
	ReminderMinutesBefore *float64
	Attachments           []model.Attachment
	TagIDs                []uuid.UUID
}

// UpdateTodoInput is a partial update; absent fields are left untouched and
// explicit nulls clear nullable columns.
type UpdateTodoInput struct {
	Title                 model.Optional[string]
	Description           model.Optional[string]
	Completed             model.Optional[bool]
	Important             model.Optional[bool]
	DueDate               model.Optional[time.Time]
	ReminderMinutesBefore model.Optional[float64]
	Attachments           model.Optional[[]model.Attachment]
	TagIDs                model.Optional[[]uuid.UUID]
}

// TodoService is the todo query engine plus todo CRUD.
type TodoService interface {
	ListTodos(ctx context.Context, userID uuid.UUID, in ListTodosInput) ([]TodoItem, error)
	GetListCounts(ctx context.Context, userID uuid.UUID) (*model.ListCounts, error)
	GetDueTodoReminders(ctx context.Context, userID uuid.UUID, lookbackSeconds *int) ([]TodoReminder, error)
	GetPageData(ctx context.Context, user *model.AuthUser) (*PageData, error)
	GetTodo(ctx context.Context, userID, id uuid.UUID) (*TodoItem, error)
	CreateTodo(ctx context.Context, userID uuid.UUID, in CreateTodoInput) (*TodoItem, error)
	UpdateTodo(ctx context.Context, userID, id uuid.UUID, in UpdateTodoInput) (*TodoItem, error)
	SetCompleted(ctx context.Context, userID, id uuid.UUID, completed bool) (*TodoItem, error)
	SetImportant(ctx context.Context, userID, id uuid.UUID, important bool) (*TodoItem, error)
	DeleteTodo(ctx context.Context, userID, id uuid.UUID) error
}

type todoService struct {
	todos    repository.TodoRepository
	links    repository.TodoTagRepository
	subtasks repository.SubtaskRepository
	tags     TagService
	blobs    blob.Store
	uploads  repository.UploadRepository
	cache    *cache.Client
	clock    clock.Clock
	logger   *slog.Logger
}

// NewTodoService creates a new todo service.
func NewTodoService(
	todos repository.TodoRepository,
	links repository.TodoTagRepository,
	subtasks repository.SubtaskRepository,
	tags TagService,
	blobs blob.Store,
	uploads repository.UploadRepository,
	cache *cache.Client,
	clk clock.Clock,
	logger *slog.Logger,
) TodoService {
	if clk == nil {
		clk = clock.System
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &todoService{
		todos:    todos,
		links:    links,
		subtasks: subtasks,
		tags:     tags,
		blobs:    blobs,
		uploads:  uploads,
		cache:    cache,
		clock:    clk,
		logger:   logger,
	}
}

// listFilter maps a list type onto its storage predicate. Every list hides
// completed todos; my-day and tasks are the same list.
func listFilter(list ListType) (repository.TodoFilter, error) {
	incomplete := false
	filter := repository.TodoFilter{Completed: &incomplete}
	switch list {
	case "", ListMyDay, ListTasks:
	case ListImportant:
		filter.ImportantOnly = true
	case ListPlanned:
		filter.PlannedOnly = true
	default:
		return filter, apperrors.Validation("list", fmt.Sprintf("unknown list %q", list))
	}
	return filter, nil
}

// ListTodos scans the user's todos important-first then newest-first and
// applies tag, list and title filters in that order before paging.
func (s *todoService) ListTodos(ctx context.Context, userID uuid.UUID, in ListTodosInput) ([]TodoItem, error) {
	filter, err := listFilter(in.List)
	if err != nil {
		return nil, err
	}

	offset := max(0, in.Offset)
	limit := in.Limit
	if limit < 0 {
		limit = 0
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	if in.TagID != nil {
		ids, err := s.links.TodoIDsByTag(ctx, userID, *in.TagID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []TodoItem{}, nil
		}
		filter.IDs = ids
	}

	search := strings.ToLower(strings.TrimSpace(in.Search))
	var todos []model.Todo
	if search == "" {
		filter.Offset, filter.Limit = offset, limit
		todos, err = s.todos.List(ctx, userID, filter)
	} else {
		skipped := 0
		err = s.todos.Each(ctx, userID, filter, func(todo *model.Todo) bool {
			if !strings.Contains(strings.ToLower(todo.Title), search) {
				return true
			}
			if skipped < offset {
				skipped++
				return true
			}
			todos = append(todos, *todo)
			return limit == 0 || len(todos) < limit
		})
	}
	if err != nil {
		return nil, err
	}

	return s.decorate(ctx, userID, todos)
}

func (s *todoService) countsKey(userID uuid.UUID) string {
	return "todo_counts:" + userID.String()
}

// GetListCounts returns the sidebar totals, read through a short-lived cache.
func (s *todoService) GetListCounts(ctx context.Context, userID uuid.UUID) (*model.ListCounts, error) {
	var cached model.ListCounts
	if s.cache.GetJSON(ctx, s.countsKey(userID), &cached) {
		return &cached, nil
	}

	counts, err := s.todos.Counts(ctx, userID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, s.countsKey(userID), counts, countsCacheTTL)
	return counts, nil
}

func (s *todoService) invalidateCounts(ctx context.Context, userID uuid.UUID) {
	_ = s.cache.Delete(ctx, s.countsKey(userID))
}

// GetDueTodoReminders returns reminders whose remind-at instant lies within
// the last lookbackSeconds, oldest first. nil selects the default window.
func (s *todoService) GetDueTodoReminders(ctx context.Context, userID uuid.UUID, lookbackSeconds *int) ([]TodoReminder, error) {
	lookback := defaultReminderLookback
	if lookbackSeconds != nil {
		lookback = min(max(*lookbackSeconds, minReminderLookback), maxReminderLookback)
	}
	window := time.Duration(lookback) * time.Second

	candidates, err := s.todos.ReminderCandidates(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	reminders := []TodoReminder{}
	for _, todo := range candidates {
		if todo.DueDate == nil || todo.ReminderMinutesBefore == nil {
			continue
		}
		minutes := *todo.ReminderMinutesBefore
		remindAt := todo.DueDate.Add(-time.Duration(minutes) * time.Minute)
		if remindAt.After(now) || now.Sub(remindAt) > window {
			continue
		}
		reminders = append(reminders, TodoReminder{
			ID:                    todo.ID,
			Title:                 todo.Title,
			DueDate:               todo.DueDate.UTC(),
			ReminderMinutesBefore: minutes,
			RemindAt:              remindAt.UTC(),
		})
	}

	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].RemindAt.Before(reminders[j].RemindAt)
	})
	return reminders, nil
}

// GetPageData loads the first my-day page, all tags and the counts together.
func (s *todoService) GetPageData(ctx context.Context, user *model.AuthUser) (*PageData, error) {
	data := &PageData{User: user}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		todos, err := s.ListTodos(gctx, user.ID, ListTodosInput{List: ListMyDay, Limit: pageDataLimit})
		data.Todos = todos
		return err
	})
	g.Go(func() error {
		tags, err := s.tags.ListTags(gctx, user.ID)
		data.Tags = tags
		return err
	})
	g.Go(func() error {
		counts, err := s.GetListCounts(gctx, user.ID)
		data.Counts = counts
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *todoService) GetTodo(ctx context.Context, userID, id uuid.UUID) (*TodoItem, error) {
	todo, err := s.todos.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	items, err := s.decorate(ctx, userID, []model.Todo{*todo})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *todoService) CreateTodo(ctx context.Context, userID uuid.UUID, in CreateTodoInput) (*TodoItem, error) {
	title, err := validTitle(in.Title)
	if err != nil {
		return nil, err
	}
	reminder, err := normalizeReminder(in.ReminderMinutesBefore)
	if err != nil {
		return nil, err
	}
	if in.DueDate == nil {
		reminder = nil
	}
	attachments, err := validAttachments(in.Attachments)
	if err != nil {
		return nil, err
	}
	if err := s.checkUploads(ctx, userID, attachments, nil); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	todo := &model.Todo{
		UserID:                userID,
		Title:                 title,
		Description:           in.Description,
		Important:             in.Important,
		DueDate:               utcPtr(in.DueDate),
		ReminderMinutesBefore: reminder,
		Attachments:           attachments,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, err
	}
	s.invalidateCounts(ctx, userID)
	todoMutationsTotal.WithLabelValues("create").Inc()

	if len(in.TagIDs) > 0 {
		if err := s.tags.SyncTodoTags(ctx, userID, todo.ID, in.TagIDs); err != nil {
			return nil, err
		}
	}
	return s.GetTodo(ctx, userID, todo.ID)
}

func (s *todoService) UpdateTodo(ctx context.Context, userID, id uuid.UUID, in UpdateTodoInput) (*TodoItem, error) {
	todo, err := s.todos.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Title.Set {
		if !in.Title.Valid {
			return nil, apperrors.Validation("title", "title is required")
		}
		title, err := validTitle(in.Title.Value)
		if err != nil {
			return nil, err
		}
		fields["title"] = title
	}
	if in.Description.Set {
		fields["description"] = nullable(in.Description.Ptr())
	}
	if in.Completed.Set {
		if !in.Completed.Valid {
			return nil, apperrors.Validation("completed", "completed must be true or false")
		}
		fields["completed"] = in.Completed.Value
	}
	if in.Important.Set {
		if !in.Important.Valid {
			return nil, apperrors.Validation("important", "important must be true or false")
		}
		fields["important"] = in.Important.Value
	}

	dueDate := todo.DueDate
	if in.DueDate.Set {
		dueDate = utcPtr(in.DueDate.Ptr())
		fields["due_date"] = nullable(dueDate)
	}
	if in.ReminderMinutesBefore.Set {
		reminder, err := normalizeReminder(in.ReminderMinutesBefore.Ptr())
		if err != nil {
			return nil, err
		}
		fields["reminder_minutes_before"] = nullable(reminder)
	}
	if dueDate == nil {
		fields["reminder_minutes_before"] = nil
	}

	var dropped []string
	if in.Attachments.Set {
		attachments, err := validAttachments(in.Attachments.Value)
		if err != nil {
			return nil, err
		}
		if err := s.checkUploads(ctx, userID, attachments, todo.Attachments); err != nil {
			return nil, err
		}
		fields["attachments"] = attachments
		dropped = removedBlobs(todo.Attachments, attachments)
	}

	fields["updated_at"] = s.clock.Now()
	if err := s.todos.Update(ctx, todo, fields); err != nil {
		return nil, err
	}
	s.invalidateCounts(ctx, userID)
	todoMutationsTotal.WithLabelValues("update").Inc()

	if in.TagIDs.Set {
		if err := s.tags.SyncTodoTags(ctx, userID, id, in.TagIDs.Value); err != nil {
			return nil, err
		}
	}
	s.deleteBlobs(ctx, userID, todo.ID, dropped)

	return s.GetTodo(ctx, userID, id)
}

func (s *todoService) SetCompleted(ctx context.Context, userID, id uuid.UUID, completed bool) (*TodoItem, error) {
	return s.UpdateTodo(ctx, userID, id, UpdateTodoInput{Completed: model.Some(completed)})
}

func (s *todoService) SetImportant(ctx context.Context, userID, id uuid.UUID, important bool) (*TodoItem, error) {
	return s.UpdateTodo(ctx, userID, id, UpdateTodoInput{Important: model.Some(important)})
}

// DeleteTodo removes a todo with its tag links, subtasks and attachment
// blobs. Deleting a missing or foreign todo is a no-op. Link and subtask
// removal run concurrently and the first storage error wins; blob failures
// are logged and dropped.
func (s *todoService) DeleteTodo(ctx context.Context, userID, id uuid.UUID) error {
	todo, err := s.todos.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.links.DeleteByTodo(gctx, userID, id)
	})
	g.Go(func() error {
		return s.subtasks.DeleteByTodo(gctx, userID, id)
	})
	g.Go(func() error {
		s.deleteBlobs(gctx, userID, id, storageIDs(todo.Attachments))
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.todos.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.invalidateCounts(ctx, userID)
	todoMutationsTotal.WithLabelValues("delete").Inc()
	return nil
}

// checkUploads rejects attachments whose blob userID did not upload. Refs
// already attached to the todo pass unchanged.
func (s *todoService) checkUploads(ctx context.Context, userID uuid.UUID, attachments, current model.Attachments) error {
	attached := make(map[string]struct{}, len(current))
	for _, attachment := range current {
		attached[attachment.StorageID] = struct{}{}
	}
	var fresh []string
	for _, attachment := range attachments {
		if _, ok := attached[attachment.StorageID]; !ok {
			fresh = append(fresh, attachment.StorageID)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	owned, err := s.uploads.OwnedRefs(ctx, userID, fresh)
	if err != nil {
		return err
	}
	mine := make(map[string]struct{}, len(owned))
	for _, ref := range owned {
		mine[ref] = struct{}{}
	}
	for _, ref := range fresh {
		if _, ok := mine[ref]; !ok {
			return apperrors.Validation("attachments", "unknown storage_id "+ref)
		}
	}
	return nil
}

// deleteBlobs removes attachment blobs and their upload records best-effort.
func (s *todoService) deleteBlobs(ctx context.Context, userID, todoID uuid.UUID, refs []string) {
	if len(refs) == 0 {
		return
	}
	if s.blobs != nil {
		var g errgroup.Group
		for _, ref := range refs {
			g.Go(func() error {
				if err := s.blobs.Delete(ctx, ref); err != nil && !errors.Is(err, blob.ErrNotFound) {
					blobCleanupFailuresTotal.Inc()
					s.logger.WarnContext(ctx, "attachment cleanup failed",
						slog.String("todo_id", todoID.String()),
						slog.String("storage_id", ref),
						slog.Any("error", err))
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	if err := s.uploads.Delete(ctx, userID, refs); err != nil {
		s.logger.WarnContext(ctx, "upload record cleanup failed",
			slog.String("todo_id", todoID.String()),
			slog.Any("error", err))
	}
}

// decorate attaches tags, subtask totals and attachment URLs, preserving order.
func (s *todoService) decorate(ctx context.Context, userID uuid.UUID, todos []model.Todo) ([]TodoItem, error) {
	items := make([]TodoItem, len(todos))
	if len(todos) == 0 {
		return items, nil
	}

	ids := make([]uuid.UUID, len(todos))
	for i, todo := range todos {
		ids[i] = todo.ID
	}

	var (
		tagsByTodo   map[uuid.UUID][]model.Tag
		countsByTodo map[uuid.UUID]repository.SubtaskCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tagsByTodo, err = s.tags.TagsForTodos(gctx, userID, ids)
		return err
	})
	g.Go(func() error {
		var err error
		countsByTodo, err = s.subtasks.CountsByTodos(gctx, userID, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, todo := range todos {
		tags := tagsByTodo[todo.ID]
		if tags == nil {
			tags = []model.Tag{}
		}
		counts := countsByTodo[todo.ID]
		items[i] = TodoItem{
			Todo:                  todo,
			Attachments:           s.resolveAttachments(ctx, todo.Attachments),
			Tags:                  tags,
			SubtaskCount:          counts.Total,
			SubtaskCompletedCount: counts.Completed,
		}
	}
	return items, nil
}

func (s *todoService) resolveAttachments(ctx context.Context, attachments model.Attachments) []AttachmentView {
	views := make([]AttachmentView, len(attachments))
	for i, attachment := range attachments {
		views[i] = AttachmentView{Attachment: attachment}
		if s.blobs == nil {
			continue
		}
		if url, err := s.blobs.URL(ctx, attachment.StorageID); err == nil {
			views[i].URL = &url
		}
	}
	return views
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperrors.Validation("title", "title is required")
	}
	return title, nil
}

// normalizeReminder floors a reminder offset to a non-negative whole minute.
func normalizeReminder(v *float64) (*int, error) {
	if v == nil {
		return nil, nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil, apperrors.Validation("reminder_minutes_before", "reminder minutes must be a finite number")
	}
	minutes := int(math.Min(math.Max(0, math.Floor(*v)), math.MaxInt32))
	return &minutes, nil
}

func validAttachments(in []model.Attachment) (model.Attachments, error) {
	out := make(model.Attachments, 0, len(in))
	for _, attachment := range in {
		if strings.TrimSpace(attachment.StorageID) == "" {
			return nil, apperrors.Validation("attachments", "storage_id is required")
		}
		if attachment.Size < 0 {
			return nil, apperrors.Validation("attachments", "size must not be negative")
		}
		out = append(out, attachment)
	}
	return out, nil
}

func storageIDs(attachments model.Attachments) []string {
	refs := make([]string, 0, len(attachments))
	for _, attachment := range attachments {
		refs = append(refs, attachment.StorageID)
	}
	return refs
}

func removedBlobs(before, after model.Attachments) []string {
	kept := make(map[string]struct{}, len(after))
	for _, attachment := range after {
		kept[attachment.StorageID] = struct{}{}
	}
	var removed []string
	for _, attachment := range before {
		if _, ok := kept[attachment.StorageID]; !ok {
			removed = append(removed, attachment.StorageID)
		}
	}
	return removed
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// nullable turns a nil pointer into an untyped nil so GORM writes NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
