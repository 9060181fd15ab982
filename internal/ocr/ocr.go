// Package ocr turns photos of receipts and bank-transfer screenshots into
// structured data using a vision-capable chat model.
package ocr

import "context"

// DocumentType classifies what kind of document a photo shows.
type DocumentType string

const (
	DocumentReceipt  DocumentType = "receipt"
	DocumentTransfer DocumentType = "transfer"
)

// ReceiptItem is one line on a receipt.
type ReceiptItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Count       int     `json:"count"`
}

// Receipt is the structured content of a purchase receipt. Date is kept as
// the YYYY-MM-DD string the model reads off the paper; receipts are routinely
// blurry and a failed time.Parse should not discard an otherwise good scan.
type Receipt struct {
	Merchant    string        `json:"merchant"`
	Date        string        `json:"date"`
	TotalAmount float64       `json:"total_amount"`
	Tip         float64       `json:"tip"`
	Items       []ReceiptItem `json:"items"`
}

// TipRatio returns the tip as a fraction of the total, 0 when the total is
// unusable.
func (r *Receipt) TipRatio() float64 {
	if r.TotalAmount <= 0 {
		return 0
	}
	return r.Tip / r.TotalAmount
}

// Transfer is the structured content of a bank transfer voucher.
type Transfer struct {
	Recipient   string  `json:"recipient"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

// Extraction is the model's verdict on one image: the document type plus
// exactly one of Receipt or Transfer.
type Extraction struct {
	DocumentType DocumentType `json:"document_type"`
	Receipt      *Receipt     `json:"receipt,omitempty"`
	Transfer     *Transfer    `json:"transfer,omitempty"`
}

// Extractor scans an image and extracts its structured content.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*Extraction, error)
}
