package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// InvoiceStore implements domain.InvoiceStore backed by Postgres.
type InvoiceStore struct {
	db *DB
}

// NewInvoiceStore creates a new Postgres-backed invoice store.
func NewInvoiceStore(db *DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

// CreateWithItems persists an invoice and its items in one transaction.
func (s *InvoiceStore) CreateWithItems(ctx context.Context, inv *domain.Invoice, items []domain.InvoiceItem) (*domain.Invoice, []domain.InvoiceItem, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO invoices (session_id, user_id, merchant, purchased_at, total_amount, tip_ratio)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		inv.SessionID, inv.UserID, inv.Merchant, inv.PurchasedAt, inv.TotalAmount, inv.TipRatio,
	)
	if err := row.Scan(&inv.ID, &inv.CreatedAt); err != nil {
		return nil, nil, fmt.Errorf("insert invoice: %w", err)
	}

	for i := range items {
		items[i].InvoiceID = inv.ID
		row := tx.QueryRow(ctx, `
			INSERT INTO invoice_items (invoice_id, description, amount, count)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			items[i].InvoiceID, items[i].Description, items[i].Amount, items[i].Count,
		)
		if err := row.Scan(&items[i].ID); err != nil {
			return nil, nil, fmt.Errorf("insert invoice item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit invoice: %w", err)
	}
	return inv, items, nil
}

// ListBySession returns the invoices attached to a session, oldest first.
func (s *InvoiceStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Invoice, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, user_id, merchant, purchased_at, total_amount, tip_ratio, created_at
		FROM invoices WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.SessionID, &inv.UserID, &inv.Merchant,
			&inv.PurchasedAt, &inv.TotalAmount, &inv.TipRatio, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, &inv)
	}
	return invoices, rows.Err()
}

// Ensure InvoiceStore implements domain.InvoiceStore
var _ domain.InvoiceStore = (*InvoiceStore)(nil)
