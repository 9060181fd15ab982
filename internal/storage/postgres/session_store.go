package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// SessionStore implements domain.SessionStore backed by Postgres.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new Postgres-backed session store.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create persists a new active session. The partial unique index
// sessions_one_active_per_owner makes concurrent creates for the same owner
// race on the constraint: the loser gets domain.ErrActiveSessionExists.
func (s *SessionStore) Create(ctx context.Context, description string, ownerID int64) (*domain.Session, error) {
	sess := &domain.Session{
		Description: description,
		OwnerID:     ownerID,
		Status:      domain.StatusActive,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO sessions (description, owner_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		sess.Description, sess.OwnerID, string(sess.Status),
	)
	if err := row.Scan(&sess.ID, &sess.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrActiveSessionExists
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetByID retrieves a session by its identifier.
func (s *SessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, description, owner_id, status, created_at
		FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// SetStatus is a raw status mutation; lifecycle rules are enforced upstream.
func (s *SessionStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE sessions SET status = $1 WHERE id = $2", string(status), id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// AddMember records membership, ignoring duplicates. Reports whether a new
// row was inserted.
func (s *SessionStore) AddMember(ctx context.Context, sessionID uuid.UUID, userID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO session_members (session_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (session_id, user_id) DO NOTHING`,
		sessionID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("insert member: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveMember drops a membership row if present.
func (s *SessionStore) RemoveMember(ctx context.Context, sessionID uuid.UUID, userID int64) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM session_members WHERE session_id = $1 AND user_id = $2",
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// IsMember reports whether the user holds a membership row.
func (s *SessionStore) IsMember(ctx context.Context, sessionID uuid.UUID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM session_members WHERE session_id = $1 AND user_id = $2
		)`, sessionID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return exists, nil
}

// ListParticipants returns the owner first, then members ordered by user id,
// each user exactly once even when the owner also holds a member row.
func (s *SessionStore) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]domain.Participant, error) {
	// Existence check so an unknown session is a NotFound, not an empty list.
	if _, err := s.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}

	// ORDER BY after a set operation only accepts output columns, so each
	// arm carries an explicit rank.
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.phone_number, 'owner' AS role, 0 AS pos
		FROM sessions s
		JOIN users u ON u.id = s.owner_id
		WHERE s.id = $1
		UNION ALL
		SELECT u.id, u.phone_number, 'member' AS role, 1 AS pos
		FROM session_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.session_id = $1 AND m.user_id != (SELECT owner_id FROM sessions WHERE id = $1)
		ORDER BY pos, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		var role string
		var pos int
		if err := rows.Scan(&p.UserID, &p.PhoneNumber, &role, &pos); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.Role = domain.Role(role)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ListActiveByUser returns the distinct active sessions where the user is
// owner or member, owned sessions first.
func (s *SessionStore) ListActiveByUser(ctx context.Context, userID int64) ([]*domain.Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT s.id, s.description, s.owner_id, s.status, s.created_at,
			s.owner_id = $1 AS owned
		FROM sessions s
		LEFT JOIN session_members m ON m.session_id = s.id
		WHERE s.status = 'active' AND (s.owner_id = $1 OR m.user_id = $1)
		ORDER BY owned DESC, s.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		var sess domain.Session
		var status string
		var owned bool
		if err := rows.Scan(&sess.ID, &sess.Description, &sess.OwnerID, &status, &sess.CreatedAt, &owned); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess.Status = domain.SessionStatus(status)
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var sess domain.Session
	var status string
	err := row.Scan(&sess.ID, &sess.Description, &sess.OwnerID, &status, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.Status = domain.SessionStatus(status)
	return &sess, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Ensure SessionStore implements domain.SessionStore
var _ domain.SessionStore = (*SessionStore)(nil)
