package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// InvoiceStore implements domain.InvoiceStore backed by SQLite.
type InvoiceStore struct {
	db *DB
}

// NewInvoiceStore creates a new SQLite-backed invoice store.
func NewInvoiceStore(db *DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

// CreateWithItems persists an invoice and its items in one transaction.
func (s *InvoiceStore) CreateWithItems(ctx context.Context, inv *domain.Invoice, items []domain.InvoiceItem) (*domain.Invoice, []domain.InvoiceItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inv.CreatedAt = time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (session_id, user_id, merchant, purchased_at, total_amount, tip_ratio, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.SessionID.String(), inv.UserID, inv.Merchant, inv.PurchasedAt,
		inv.TotalAmount, inv.TipRatio, inv.CreatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert invoice: %w", err)
	}
	inv.ID, err = result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("invoice id: %w", err)
	}

	for i := range items {
		items[i].InvoiceID = inv.ID
		result, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, description, amount, count)
			VALUES (?, ?, ?, ?)`,
			items[i].InvoiceID, items[i].Description, items[i].Amount, items[i].Count,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("insert invoice item: %w", err)
		}
		items[i].ID, err = result.LastInsertId()
		if err != nil {
			return nil, nil, fmt.Errorf("invoice item id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit invoice: %w", err)
	}
	return inv, items, nil
}

// ListBySession returns the invoices attached to a session, oldest first.
func (s *InvoiceStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, merchant, purchased_at, total_amount, tip_ratio, created_at
		FROM invoices WHERE session_id = ? ORDER BY created_at`, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		var rawID string
		if err := rows.Scan(&inv.ID, &rawID, &inv.UserID, &inv.Merchant,
			&inv.PurchasedAt, &inv.TotalAmount, &inv.TipRatio, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.SessionID, err = uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse invoice session id: %w", err)
		}
		invoices = append(invoices, &inv)
	}
	return invoices, rows.Err()
}

// Ensure InvoiceStore implements domain.InvoiceStore
var _ domain.InvoiceStore = (*InvoiceStore)(nil)
