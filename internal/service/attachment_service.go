package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"todolist/internal/auth"
	"todolist/internal/blob"
	"todolist/internal/cache"
	apperrors "todolist/internal/errors"
	"todolist/internal/model"
	"todolist/internal/repository"
)

// UploadPath is where one-time upload URLs point.
const UploadPath = "/api/uploads"

// UploadTarget is a one-time URL a client may POST a single file body to.
type UploadTarget struct {
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AttachmentService issues upload tickets and stores uploaded blobs.
type AttachmentService interface {
	IssueUploadURL(ctx context.Context, userID uuid.UUID) (*UploadTarget, error)
	Upload(ctx context.Context, claims *auth.UploadClaims, name, contentType string, body io.Reader) (*model.Attachment, error)
}

type attachmentService struct {
	tickets *auth.TicketService
	store   auth.TicketStoreInterface
	blobs   blob.Store
	uploads repository.UploadRepository
	users   UserService
	logger  *slog.Logger
}

// NewAttachmentService creates a new attachment service.
func NewAttachmentService(
	tickets *auth.TicketService,
	store auth.TicketStoreInterface,
	blobs blob.Store,
	uploads repository.UploadRepository,
	users UserService,
	logger *slog.Logger,
) AttachmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &attachmentService{tickets: tickets, store: store, blobs: blobs, uploads: uploads, users: users, logger: logger}
}

// IssueUploadURL signs a ticket for userID and records it as outstanding.
func (s *attachmentService) IssueUploadURL(ctx context.Context, userID uuid.UUID) (*UploadTarget, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.Issue(userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.StoreTicket(ctx, ticket.ID, userID, auth.UploadTicketExpiry); err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			return nil, fmt.Errorf("store upload ticket: %w", apperrors.ErrUnavailable)
		}
		return nil, fmt.Errorf("store upload ticket: %w", err)
	}

	return &UploadTarget{
		UploadURL: UploadPath + "?token=" + url.QueryEscape(ticket.Token),
		ExpiresAt: ticket.ExpiresAt.UTC(),
	}, nil
}

// Upload consumes the ticket named by claims and stores body as a new blob
// owned by the ticket's user. A ticket works once; replays fail with
// ErrAuthRequired.
func (s *attachmentService) Upload(ctx context.Context, claims *auth.UploadClaims, name, contentType string, body io.Reader) (*model.Attachment, error) {
	subject, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrAuthRequired, err)
	}
	owner, err := s.store.ConsumeTicket(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrAuthRequired, err)
	}
	if owner != subject {
		return nil, apperrors.ErrAuthRequired
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("name", "file name is required")
	}

	ref, size, err := s.blobs.Put(ctx, body)
	if err != nil {
		return nil, err
	}
	if err := s.uploads.Create(ctx, &model.Upload{StorageID: ref, UserID: owner}); err != nil {
		if delErr := s.blobs.Delete(ctx, ref); delErr != nil {
			s.logger.WarnContext(ctx, "orphaned upload blob",
				slog.String("storage_id", ref),
				slog.Any("error", delErr))
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "attachment uploaded",
		slog.String("user_id", owner.String()),
		slog.String("storage_id", ref),
		slog.Int64("size", size))

	attachment := &model.Attachment{StorageID: ref, Name: name, Size: size}
	if contentType = strings.TrimSpace(contentType); contentType != "" {
		attachment.ContentType = &contentType
	}
	return attachment, nil
}
