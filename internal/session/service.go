// Package session implements the lifecycle rules for bill-splitting
// sessions: who may create one, who may close one, and how joining a new
// session retires the previous one. It is the sole authority for the
// one-active-session-per-user invariant; no caller mutates status or
// membership directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// Service is the session lifecycle engine.
type Service struct {
	users    domain.UserStore
	sessions domain.SessionStore
}

// NewService creates a new lifecycle service.
func NewService(users domain.UserStore, sessions domain.SessionStore) *Service {
	return &Service{users: users, sessions: sessions}
}

// Create starts a new active session owned by the user behind ownerPhone.
// It fails with domain.ErrActiveSessionExists when the owner already has an
// active session, as owner or as member. The check-then-insert is backed by
// the store's partial unique constraint, so two concurrent creators cannot
// both succeed: the loser surfaces the same conflict.
func (s *Service) Create(ctx context.Context, ownerPhone, description string) (*domain.Session, error) {
	owner, err := s.users.FindByPhone(ctx, ownerPhone)
	if err != nil {
		return nil, err
	}

	active, err := s.HasActive(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, domain.ErrActiveSessionExists
	}

	sess, err := s.sessions.Create(ctx, description, owner.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("session created",
		"session_id", sess.ID,
		"owner_id", owner.ID,
		"description", description,
	)
	return sess, nil
}

// HasActive reports whether the user is owner of, or member in, an active
// session. Finding more than one distinct candidate is a data-integrity
// problem and surfaces as domain.ErrAmbiguousActiveSession rather than
// silently picking one.
func (s *Service) HasActive(ctx context.Context, userID int64) (bool, error) {
	_, err := s.Active(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNoActiveSession):
		return false, nil
	default:
		return false, err
	}
}

// Active returns the user's single active session. It fails with
// domain.ErrNoActiveSession when there is none and with
// domain.ErrAmbiguousActiveSession when more than one distinct active
// session claims the user.
func (s *Service) Active(ctx context.Context, userID int64) (*domain.Session, error) {
	candidates, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	switch len(candidates) {
	case 0:
		return nil, domain.ErrNoActiveSession
	case 1:
		return candidates[0], nil
	default:
		slog.Error("multiple active sessions for user",
			"user_id", userID,
			"count", len(candidates),
		)
		return nil, domain.ErrAmbiguousActiveSession
	}
}

// Close transitions a session to closed. Only the owner may close it; the
// transition is monotone and a repeat close by the owner is a harmless
// no-op. Returns the closed session.
func (s *Service) Close(ctx context.Context, rawID, requesterPhone string) (*domain.Session, error) {
	id, err := domain.ParseSessionID(rawID)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	requester, err := s.users.FindByPhone(ctx, requesterPhone)
	if err != nil {
		return nil, err
	}

	if sess.OwnerID != requester.ID {
		return nil, domain.ErrNotOwner
	}

	if err := s.sessions.SetStatus(ctx, sess.ID, domain.StatusClosed); err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	sess.Status = domain.StatusClosed

	slog.Info("session closed", "session_id", sess.ID, "owner_id", requester.ID)
	return sess, nil
}

// Join adds the user behind phone to the target session. The second return
// value reports whether the user was already a participant, in which case
// nothing is mutated. Joining a closed session fails with
// domain.ErrSessionClosed. When the user has a different active session,
// that session is retired first: closed if they own it, or their membership
// row removed if they merely joined it. Retirement is best effort — any
// failure is logged and never aborts the join.
func (s *Service) Join(ctx context.Context, rawID, phone string) (*domain.Session, bool, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}

	id, err := domain.ParseSessionID(rawID)
	if err != nil {
		return nil, false, err
	}

	target, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if !target.IsActive() {
		return nil, false, domain.ErrSessionClosed
	}

	if target.OwnerID == user.ID {
		// The owner is already a participant of their own session.
		return target, true, nil
	}

	isMember, err := s.sessions.IsMember(ctx, target.ID, user.ID)
	if err != nil {
		return nil, false, fmt.Errorf("check membership: %w", err)
	}
	if isMember {
		return target, true, nil
	}

	s.retirePrior(ctx, user.ID, target)

	if _, err := s.sessions.AddMember(ctx, target.ID, user.ID); err != nil {
		return nil, false, fmt.Errorf("add member: %w", err)
	}

	slog.Info("user joined session", "session_id", target.ID, "user_id", user.ID)
	return target, false, nil
}

// retirePrior leaves the user's other active sessions behind before they
// join target: sessions they own are closed, sessions they merely joined
// lose the membership row. Every failure here is logged and swallowed —
// switching sessions must succeed even if the old one cannot be cleaned up,
// but the errors stay visible in telemetry.
func (s *Service) retirePrior(ctx context.Context, userID int64, target *domain.Session) {
	priors, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		slog.Warn("could not list prior sessions, continuing join",
			"user_id", userID, "error", err)
		return
	}

	for _, prior := range priors {
		if prior.ID == target.ID {
			continue
		}
		if prior.OwnerID == userID {
			if err := s.sessions.SetStatus(ctx, prior.ID, domain.StatusClosed); err != nil {
				slog.Warn("could not close prior owned session, continuing join",
					"user_id", userID, "session_id", prior.ID, "error", err)
			}
			continue
		}
		if err := s.sessions.RemoveMember(ctx, prior.ID, userID); err != nil {
			slog.Warn("could not leave prior session, continuing join",
				"user_id", userID, "session_id", prior.ID, "error", err)
		}
	}
}
