package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"todolist/internal/clock"
	apperrors "todolist/internal/errors"
	"todolist/internal/model"
	"todolist/internal/repository"
)

const maxTagNameLength = 100

// ErrTagExists is returned when a user already has a tag with that name.
var ErrTagExists = fmt.Errorf("%w: tag name already in use", apperrors.ErrDuplicate)

// UpdateTagInput carries the tag fields to change; absent fields stay as is.
type UpdateTagInput struct {
	Name  model.Optional[string]
	Color model.Optional[string]
}

// TagService manages tags and their links to todos.
type TagService interface {
	ListTags(ctx context.Context, userID uuid.UUID) ([]model.Tag, error)
	ListTagsWithCounts(ctx context.Context, userID uuid.UUID) ([]model.TagWithCount, error)
	CreateTag(ctx context.Context, userID uuid.UUID, name, color string) (*model.Tag, error)
	UpdateTag(ctx context.Context, userID, id uuid.UUID, in UpdateTagInput) (*model.Tag, error)
	DeleteTag(ctx context.Context, userID, id uuid.UUID) error
	GetTodoTags(ctx context.Context, userID, todoID uuid.UUID) ([]model.Tag, error)
	TagsForTodos(ctx context.Context, userID uuid.UUID, todoIDs []uuid.UUID) (map[uuid.UUID][]model.Tag, error)
	SyncTodoTags(ctx context.Context, userID, todoID uuid.UUID, tagIDs []uuid.UUID) error
	AddTagToTodo(ctx context.Context, userID, todoID, tagID uuid.UUID) error
	RemoveTagFromTodo(ctx context.Context, userID, todoID, tagID uuid.UUID) error
}

type tagService struct {
	tags   repository.TagRepository
	links  repository.TodoTagRepository
	todos  repository.TodoRepository
	clock  clock.Clock
	logger *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(
	tags repository.TagRepository,
	links repository.TodoTagRepository,
	todos repository.TodoRepository,
	clk clock.Clock,
	logger *slog.Logger,
) TagService {
	if clk == nil {
		clk = clock.System
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &tagService{tags: tags, links: links, todos: todos, clock: clk, logger: logger}
}

func (s *tagService) ListTags(ctx context.Context, userID uuid.UUID) ([]model.Tag, error) {
	tags, err := s.tags.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	sortTags(tags)
	return tags, nil
}

func (s *tagService) ListTagsWithCounts(ctx context.Context, userID uuid.UUID) ([]model.TagWithCount, error) {
	tags, err := s.tags.ListWithCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []model.TagWithCount{}
	}
	sortTagsWithCount(tags)
	return tags, nil
}

func (s *tagService) CreateTag(ctx context.Context, userID uuid.UUID, name, color string) (*model.Tag, error) {
	name, err := validTagName(name)
	if err != nil {
		return nil, err
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = model.DefaultTagColor
	}
	if !isHexColor(color) {
		return nil, apperrors.Validation("color", "color must be a hex color such as #3b82f6")
	}

	if err := s.ensureNameFree(ctx, userID, name, uuid.Nil); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tag := &model.Tag{
		UserID:    userID,
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, ErrTagExists
		}
		return nil, err
	}
	todoMutationsTotal.WithLabelValues("tag_create").Inc()
	return tag, nil
}

func (s *tagService) UpdateTag(ctx context.Context, userID, id uuid.UUID, in UpdateTagInput) (*model.Tag, error) {
	tag, err := s.tags.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Name.Set {
		if !in.Name.Valid {
			return nil, apperrors.Validation("name", "name is required")
		}
		name, err := validTagName(in.Name.Value)
		if err != nil {
			return nil, err
		}
		if name != tag.Name {
			if err := s.ensureNameFree(ctx, userID, name, tag.ID); err != nil {
				return nil, err
			}
		}
		fields["name"] = name
	}
	if in.Color.Set {
		if !in.Color.Valid || !isHexColor(in.Color.Value) {
			return nil, apperrors.Validation("color", "color must be a hex color such as #3b82f6")
		}
		fields["color"] = in.Color.Value
	}
	fields["updated_at"] = s.clock.Now()

	if err := s.tags.Update(ctx, tag, fields); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, ErrTagExists
		}
		return nil, err
	}
	todoMutationsTotal.WithLabelValues("tag_update").Inc()
	return s.tags.FindByID(ctx, userID, id)
}

// DeleteTag removes the tag and every link the user had to it.
func (s *tagService) DeleteTag(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.tags.FindByID(ctx, userID, id); err != nil {
		return err
	}
	if err := s.links.DeleteByTag(ctx, userID, id); err != nil {
		return err
	}
	if err := s.tags.Delete(ctx, userID, id); err != nil {
		return err
	}
	todoMutationsTotal.WithLabelValues("tag_delete").Inc()
	return nil
}

// GetTodoTags returns the tags on one todo; an unknown todo has none.
func (s *tagService) GetTodoTags(ctx context.Context, userID, todoID uuid.UUID) ([]model.Tag, error) {
	grouped, err := s.TagsForTodos(ctx, userID, []uuid.UUID{todoID})
	if err != nil {
		return nil, err
	}
	return grouped[todoID], nil
}

// TagsForTodos returns sorted tags for each requested todo. Every requested id
// is present in the result, with an empty slice when untagged.
func (s *tagService) TagsForTodos(ctx context.Context, userID uuid.UUID, todoIDs []uuid.UUID) (map[uuid.UUID][]model.Tag, error) {
	grouped, err := s.tags.ForTodos(ctx, userID, todoIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range todoIDs {
		tags := grouped[id]
		if tags == nil {
			tags = []model.Tag{}
		}
		sortTags(tags)
		grouped[id] = tags
	}
	return grouped, nil
}

// SyncTodoTags reconciles a todo's links with tagIDs: extras are removed in
// one statement and only missing, owned tags are inserted. Unknown or foreign
// tag ids are ignored.
func (s *tagService) SyncTodoTags(ctx context.Context, userID, todoID uuid.UUID, tagIDs []uuid.UUID) error {
	if _, err := s.todos.FindByID(ctx, userID, todoID); err != nil {
		return err
	}

	target := make([]uuid.UUID, 0, len(tagIDs))
	targetSet := make(map[uuid.UUID]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		if _, dup := targetSet[id]; dup {
			continue
		}
		targetSet[id] = struct{}{}
		target = append(target, id)
	}

	existing, err := s.links.ListByTodo(ctx, userID, todoID)
	if err != nil {
		return err
	}
	linked := make(map[uuid.UUID]struct{}, len(existing))
	var extras []uuid.UUID
	for _, link := range existing {
		linked[link.TagID] = struct{}{}
		if _, keep := targetSet[link.TagID]; !keep {
			extras = append(extras, link.ID)
		}
	}
	if err := s.links.DeleteByIDs(ctx, userID, extras); err != nil {
		return err
	}

	var missing []uuid.UUID
	for _, id := range target {
		if _, ok := linked[id]; !ok {
			missing = append(missing, id)
		}
	}
	owned, err := s.tags.OwnedIDs(ctx, userID, missing)
	if err != nil {
		return err
	}
	ownedSet := make(map[uuid.UUID]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}

	now := s.clock.Now()
	links := make([]model.TodoTag, 0, len(owned))
	for _, id := range missing {
		if _, ok := ownedSet[id]; !ok {
			continue
		}
		links = append(links, model.TodoTag{UserID: userID, TodoID: todoID, TagID: id, CreatedAt: now})
	}
	if err := s.links.Create(ctx, links); err != nil {
		return err
	}

	if len(extras) > 0 || len(links) > 0 {
		todoMutationsTotal.WithLabelValues("tag_sync").Inc()
		s.logger.DebugContext(ctx, "synced todo tags",
			slog.String("todo_id", todoID.String()),
			slog.Int("removed", len(extras)),
			slog.Int("added", len(links)))
	}
	return nil
}

// AddTagToTodo links one owned tag to one owned todo; already linked is a no-op.
func (s *tagService) AddTagToTodo(ctx context.Context, userID, todoID, tagID uuid.UUID) error {
	if _, err := s.todos.FindByID(ctx, userID, todoID); err != nil {
		return err
	}
	if _, err := s.tags.FindByID(ctx, userID, tagID); err != nil {
		return err
	}

	existing, err := s.links.ListByTodo(ctx, userID, todoID)
	if err != nil {
		return err
	}
	for _, link := range existing {
		if link.TagID == tagID {
			return nil
		}
	}

	link := model.TodoTag{UserID: userID, TodoID: todoID, TagID: tagID, CreatedAt: s.clock.Now()}
	if err := s.links.Create(ctx, []model.TodoTag{link}); err != nil && !errors.Is(err, apperrors.ErrDuplicate) {
		return err
	}
	todoMutationsTotal.WithLabelValues("tag_add").Inc()
	return nil
}

// RemoveTagFromTodo unlinks a tag; an absent link is a no-op.
func (s *tagService) RemoveTagFromTodo(ctx context.Context, userID, todoID, tagID uuid.UUID) error {
	if _, err := s.todos.FindByID(ctx, userID, todoID); err != nil {
		return err
	}
	if err := s.links.DeleteLink(ctx, userID, todoID, tagID); err != nil {
		return err
	}
	todoMutationsTotal.WithLabelValues("tag_remove").Inc()
	return nil
}

func (s *tagService) ensureNameFree(ctx context.Context, userID uuid.UUID, name string, self uuid.UUID) error {
	existing, err := s.tags.FindByName(ctx, userID, name)
	switch {
	case err == nil && existing.ID != self:
		return ErrTagExists
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return err
	}
	return nil
}

func validTagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.Validation("name", "name is required")
	}
	if len([]rune(name)) > maxTagNameLength {
		return "", apperrors.Validation("name", fmt.Sprintf("name must be at most %d characters", maxTagNameLength))
	}
	return name, nil
}
