package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// UserStore implements domain.UserStore backed by Postgres.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new Postgres-backed user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// ResolveOrCreate looks a user up by phone number, creating one on first
// contact. ON CONFLICT DO NOTHING makes the insert race-safe: the loser of
// a concurrent create falls through to the lookup and returns the winner's
// row.
func (s *UserStore) ResolveOrCreate(ctx context.Context, phoneNumber, displayName string) (*domain.User, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (phone_number, display_name)
		VALUES ($1, $2)
		ON CONFLICT (phone_number) DO NOTHING`,
		phoneNumber, displayName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.FindByPhone(ctx, phoneNumber)
}

// FindByPhone retrieves a user by phone number.
func (s *UserStore) FindByPhone(ctx context.Context, phoneNumber string) (*domain.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, phone_number, display_name, created_at
		FROM users WHERE phone_number = $1`, phoneNumber)
	return scanUser(row)
}

// FindByID retrieves a user by ID.
func (s *UserStore) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, phone_number, display_name, created_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.PhoneNumber, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// Ensure UserStore implements domain.UserStore
var _ domain.UserStore = (*UserStore)(nil)
