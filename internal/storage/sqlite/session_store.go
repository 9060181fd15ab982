package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// SessionStore implements domain.SessionStore backed by SQLite.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SQLite-backed session store.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create persists a new active session. The partial unique index on
// (owner_id) WHERE status='active' rejects a second active session for the
// same owner; that violation surfaces as domain.ErrActiveSessionExists.
func (s *SessionStore) Create(ctx context.Context, description string, ownerID int64) (*domain.Session, error) {
	sess := &domain.Session{
		ID:          uuid.New(),
		Description: description,
		OwnerID:     ownerID,
		Status:      domain.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, description, owner_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.Description, sess.OwnerID, string(sess.Status), sess.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrActiveSessionExists
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetByID retrieves a session by its identifier.
func (s *SessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, description, owner_id, status, created_at
		FROM sessions WHERE id = ?`, id.String())
	return scanSession(row)
}

// SetStatus is a raw status mutation; lifecycle rules are enforced upstream.
func (s *SessionStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET status = ? WHERE id = ?", string(status), id.String())
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// AddMember records membership, ignoring duplicates. Reports whether a new
// row was inserted.
func (s *SessionStore) AddMember(ctx context.Context, sessionID uuid.UUID, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO session_members (session_id, user_id)
		VALUES (?, ?)
		ON CONFLICT(session_id, user_id) DO NOTHING`,
		sessionID.String(), userID,
	)
	if err != nil {
		return false, fmt.Errorf("insert member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// RemoveMember drops a membership row if present.
func (s *SessionStore) RemoveMember(ctx context.Context, sessionID uuid.UUID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM session_members WHERE session_id = ? AND user_id = ?",
		sessionID.String(), userID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// IsMember reports whether the user holds a membership row.
func (s *SessionStore) IsMember(ctx context.Context, sessionID uuid.UUID, userID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM session_members WHERE session_id = ? AND user_id = ?",
		sessionID.String(), userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count member: %w", err)
	}
	return count > 0, nil
}

// ListParticipants returns the owner first, then members ordered by join
// time, each user exactly once even when the owner also holds a member row.
func (s *SessionStore) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]domain.Participant, error) {
	// Existence check so an unknown session is a NotFound, not an empty list.
	if _, err := s.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}

	// A compound-select ORDER BY may only name result columns, so each arm
	// carries an explicit rank.
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.phone_number, 'owner' AS role, 0 AS pos
		FROM sessions s
		JOIN users u ON u.id = s.owner_id
		WHERE s.id = ?
		UNION ALL
		SELECT u.id, u.phone_number, 'member' AS role, 1 AS pos
		FROM session_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.session_id = ? AND m.user_id != (SELECT owner_id FROM sessions WHERE id = ?)
		ORDER BY pos, id`,
		sessionID.String(), sessionID.String(), sessionID.String(),
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT s.id, s.description, s.owner_id, s.status, s.created_at,
			s.owner_id = ? AS owned
		FROM sessions s
		LEFT JOIN session_members m ON m.session_id = s.id
		WHERE s.status = 'active' AND (s.owner_id = ? OR m.user_id = ?)
		ORDER BY owned DESC, s.created_at`,
		userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		var sess domain.Session
		var rawID, status string
		var owned bool
		if err := rows.Scan(&rawID, &sess.Description, &sess.OwnerID, &status, &sess.CreatedAt, &owned); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess.ID, err = uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse session id: %w", err)
		}
		sess.Status = domain.SessionStatus(status)
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var sess domain.Session
	var rawID, status string
	err := row.Scan(&rawID, &sess.Description, &sess.OwnerID, &status, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	sess.Status = domain.SessionStatus(status)
	return &sess, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Ensure SessionStore implements domain.SessionStore
var _ domain.SessionStore = (*SessionStore)(nil)
