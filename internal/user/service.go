// Package user resolves WhatsApp phone numbers to directory entries. Every
// inbound message passes through here first so the rest of the system can
// work with stable user IDs instead of raw phone numbers.
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// Service is the user directory.
type Service struct {
	store domain.UserStore
}

// NewService creates a new directory service.
func NewService(store domain.UserStore) *Service {
	return &Service{store: store}
}

// Resolve returns the user behind a phone number, registering them on first
// contact. The display name is only recorded at creation time; a returning
// user keeps the name they registered with.
func (s *Service) Resolve(ctx context.Context, phoneNumber, displayName string) (*domain.User, error) {
	if phoneNumber == "" {
		return nil, fmt.Errorf("resolve user: %w", domain.ErrUserNotFound)
	}
	if displayName == "" {
		displayName = phoneNumber
	}

	u, err := s.store.ResolveOrCreate(ctx, phoneNumber, displayName)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	slog.Debug("user resolved", "user_id", u.ID, "phone", u.PhoneNumber)
	return u, nil
}

// FindByPhone retrieves a known user without creating one.
func (s *Service) FindByPhone(ctx context.Context, phoneNumber string) (*domain.User, error) {
	return s.store.FindByPhone(ctx, phoneNumber)
}

// FindByID retrieves a known user by directory ID.
func (s *Service) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.store.FindByID(ctx, id)
}
