package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"todolist/internal/cache"
)

const uploadTicketKeyPrefix = "upload_ticket:"

// ErrTicketUsed is returned when a ticket was already consumed, expired from
// the store, or the store is unreachable.
var ErrTicketUsed = errors.New("upload ticket already used")

// TicketStoreInterface defines the interface for one-time ticket bookkeeping.
type TicketStoreInterface interface {
	StoreTicket(ctx context.Context, ticketID string, userID uuid.UUID, ttl time.Duration) error
	ConsumeTicket(ctx context.Context, ticketID string) (uuid.UUID, error)
}

// TicketStore records outstanding upload tickets in Redis.
type TicketStore struct {
	cache *cache.Client
}

// Ensure TicketStore implements TicketStoreInterface
var _ TicketStoreInterface = (*TicketStore)(nil)

// NewTicketStore creates a new ticket store.
func NewTicketStore(cache *cache.Client) *TicketStore {
	return &TicketStore{cache: cache}
}

// StoreTicket marks a ticket as outstanding until ttl elapses. It fails with
// cache.ErrUnavailable when redis cannot record the ticket.
func (s *TicketStore) StoreTicket(ctx context.Context, ticketID string, userID uuid.UUID, ttl time.Duration) error {
	return s.cache.SetRequired(ctx, uploadTicketKeyPrefix+ticketID, []byte(userID.String()), ttl)
}

// ConsumeTicket removes the ticket and returns the user it was issued to.
func (s *TicketStore) ConsumeTicket(ctx context.Context, ticketID string) (uuid.UUID, error) {
	data, _ := s.cache.Take(ctx, uploadTicketKeyPrefix+ticketID)
	if data == nil {
		return uuid.Nil, ErrTicketUsed
	}
	userID, err := uuid.ParseBytes(data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode ticket owner: %w", err)
	}
	return userID, nil
}
