package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// UserStore implements domain.UserStore backed by SQLite.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new SQLite-backed user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// ResolveOrCreate looks a user up by phone number, creating one on first
// contact. The insert ignores uniqueness conflicts so a concurrent creator
// for the same phone number transparently resolves to the winner's row.
func (s *UserStore) ResolveOrCreate(ctx context.Context, phoneNumber, displayName string) (*domain.User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (phone_number, display_name)
		VALUES (?, ?)
		ON CONFLICT(phone_number) DO NOTHING`,
		phoneNumber, displayName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.FindByPhone(ctx, phoneNumber)
}

// FindByPhone retrieves a user by phone number.
func (s *UserStore) FindByPhone(ctx context.Context, phoneNumber string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, phone_number, display_name, created_at
		FROM users WHERE phone_number = ?`, phoneNumber)
	return scanUser(row)
}

// FindByID retrieves a user by ID.
func (s *UserStore) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, phone_number, display_name, created_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.PhoneNumber, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// Ensure UserStore implements domain.UserStore
var _ domain.UserStore = (*UserStore)(nil)
