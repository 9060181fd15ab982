package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a bill-splitting session.
// Transitions are monotone: active -> closed, and closed is terminal.
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusClosed SessionStatus = "closed"
)

// Session is a bounded bill-splitting context. It has exactly one owner,
// set at creation and never transferred, and any number of members added
// via join. The UUID doubles as the shareable join token.
type Session struct {
	ID          uuid.UUID
	Description string
	OwnerID     int64
	Status      SessionStatus
	CreatedAt   time.Time
}

// IsActive reports whether the session still accepts receipts and joins.
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// ShareToken renders the session identifier in the canonical form users
// paste into chat to join.
func (s *Session) ShareToken() string {
	return s.ID.String()
}

// Role distinguishes the session owner from joined members when listing
// participants. The owner is always a participant, with or without an
// explicit membership row.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Participant is one user's view into a session, tagged with their role.
type Participant struct {
	UserID      int64
	PhoneNumber string
	Role        Role
}

// ParseSessionID validates and parses a session token. Only the canonical
// lowercase-hyphenated 36-character UUID form is accepted; anything else
// fails with ErrInvalidSessionID before a store lookup is attempted.
func ParseSessionID(raw string) (uuid.UUID, error) {
	if len(raw) != 36 || raw != strings.ToLower(raw) {
		return uuid.Nil, ErrInvalidSessionID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidSessionID
	}
	return id, nil
}
