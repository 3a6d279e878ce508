package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"todolist/internal/clock"
)

// UploadTicketExpiry is how long a generated upload URL stays usable.
const UploadTicketExpiry = 15 * time.Minute

// ErrInvalidTicket is returned for unsigned, expired or malformed tickets.
var ErrInvalidTicket = errors.New("invalid or expired upload ticket")

// UploadClaims identifies who may upload and the one-time ticket id (jti).
type UploadClaims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *UploadClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TicketService signs and validates upload tickets.
type TicketService struct {
	secret []byte
	clock  clock.Clock
}

// NewTicketService creates a ticket service with the given HMAC secret.
func NewTicketService(secret string, clk clock.Clock) *TicketService {
	if clk == nil {
		clk = clock.System
	}
	return &TicketService{
		secret: []byte(secret),
		clock:  clk,
	}
}

// IssuedTicket is a signed upload ticket and the id it must be redeemed under.
type IssuedTicket struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

// Issue signs a fresh ticket for userID.
func (s *TicketService) Issue(userID uuid.UUID) (*IssuedTicket, error) {
	now := s.clock.Now()
	ticket := &IssuedTicket{
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(UploadTicketExpiry),
	}
	claims := &UploadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ticket.ID,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(ticket.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign upload ticket: %w", err)
	}
	ticket.Token = token
	return ticket, nil
}

// Validate checks signature, method and expiry and returns the claims.
func (s *TicketService) Validate(tokenString string) (*UploadClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UploadClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidTicket
	}

	claims, ok := token.Claims.(*UploadClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidTicket
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidTicket
	}
	return claims, nil
}
