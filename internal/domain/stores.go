package domain

import (
	"context"

	"github.com/google/uuid"
)

// UserStore persists users keyed by phone number.
type UserStore interface {
	// ResolveOrCreate looks a user up by phone number, creating the record
	// on first contact. When two concurrent messages race to create the same
	// phone number, the loser of the uniqueness conflict returns the winner's
	// row instead of an error.
	ResolveOrCreate(ctx context.Context, phoneNumber, displayName string) (*User, error)

	// FindByPhone is a pure lookup; ErrUserNotFound when absent.
	FindByPhone(ctx context.Context, phoneNumber string) (*User, error)

	// FindByID is a pure lookup; ErrUserNotFound when absent.
	FindByID(ctx context.Context, id int64) (*User, error)
}

// SessionStore persists sessions and the user<->session membership relation.
// Lifecycle rules live in the session service; these are raw mutations backed
// by the store's transactional guarantees.
type SessionStore interface {
	// Create persists a new active session with a fresh identifier. The
	// store enforces at most one active session per owner via a partial
	// unique constraint; a violation surfaces as ErrActiveSessionExists.
	Create(ctx context.Context, description string, ownerID int64) (*Session, error)

	// GetByID fails with ErrSessionNotFound when no such session exists.
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)

	// SetStatus is a raw status mutation.
	SetStatus(ctx context.Context, id uuid.UUID, status SessionStatus) error

	// AddMember records membership. Adding an existing member is a no-op;
	// the returned bool reports whether a new row was inserted.
	AddMember(ctx context.Context, sessionID uuid.UUID, userID int64) (bool, error)

	// RemoveMember drops a membership row if present.
	RemoveMember(ctx context.Context, sessionID uuid.UUID, userID int64) error

	// IsMember reports whether the user holds a membership row.
	IsMember(ctx context.Context, sessionID uuid.UUID, userID int64) (bool, error)

	// ListParticipants returns the owner first, then members, each user
	// exactly once even when the owner also holds a membership row.
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]Participant, error)

	// ListActiveByUser returns the distinct active sessions where the user
	// is owner or member, owned sessions first.
	ListActiveByUser(ctx context.Context, userID int64) ([]*Session, error)
}

// InvoiceStore persists scanned receipts and their items.
type InvoiceStore interface {
	// CreateWithItems persists an invoice and its items atomically.
	CreateWithItems(ctx context.Context, inv *Invoice, items []InvoiceItem) (*Invoice, []InvoiceItem, error)

	// ListBySession returns the invoices attached to a session.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*Invoice, error)
}
