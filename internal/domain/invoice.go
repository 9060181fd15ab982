package domain

import (
	"time"

	"github.com/google/uuid"
)

// Invoice is a scanned receipt attached to a session. The tip is stored as
// a ratio of the total so per-item shares can be settled later.
type Invoice struct {
	ID          int64
	SessionID   uuid.UUID
	UserID      int64
	Merchant    string
	PurchasedAt string
	TotalAmount float64
	TipRatio    float64
	CreatedAt   time.Time
}

// InvoiceItem is a single line of a scanned receipt.
type InvoiceItem struct {
	ID          int64
	InvoiceID   int64
	Description string
	Amount      float64
	Count       int
}
