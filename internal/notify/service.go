// Package notify fans session lifecycle events out to every participant
// over WhatsApp. Delivery to one recipient never blocks or cancels delivery
// to the rest.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// Sender delivers a text message to a single phone number.
type Sender interface {
	SendText(ctx context.Context, toPhone, body string) error
}

// Service resolves a session's audience and pushes notices to it.
type Service struct {
	sessions domain.SessionStore
	sender   Sender
}

// NewService creates a new fan-out service.
func NewService(sessions domain.SessionStore, sender Sender) *Service {
	return &Service{sessions: sessions, sender: sender}
}

// Participants returns the session's audience, owner first, each person
// exactly once.
func (s *Service) Participants(ctx context.Context, sessionID uuid.UUID) ([]domain.Participant, error) {
	participants, err := s.sessions.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// NotifyClosed tells every participant the session is over. The owner gets
// a confirmation, everyone else an announcement. Each send is attempted
// independently; failures are logged per recipient and the first one is
// returned after the whole audience has been tried.
func (s *Service) NotifyClosed(ctx context.Context, sess *domain.Session) error {
	participants, err := s.Participants(ctx, sess.ID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, p := range participants {
		body := closedNoticeParticipant(sess)
		if p.Role == domain.RoleOwner {
			body = closedNoticeOwner(sess)
		}
		if err := s.sender.SendText(ctx, p.PhoneNumber, body); err != nil {
			slog.Error("close notice delivery failed",
				"session_id", sess.ID,
				"recipient", p.PhoneNumber,
				"error", err,
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("notify %s: %w", p.PhoneNumber, err)
			}
		}
	}
	return firstErr
}
