package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/splitbot/internal/domain"
	"github.com/felixgeelhaar/splitbot/internal/ocr"
)

// ImageDownloader fetches message media.
type ImageDownloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// Receiver is the entry point for inbound messages. It makes sure the
// sender exists in the directory and routes by message type: text goes to
// the dispatcher, photos go through the receipt pipeline.
type Receiver struct {
	dispatcher *Dispatcher
	users      Directory
	engine     SessionEngine
	downloader ImageDownloader
	extractor  ocr.Extractor
	invoices   domain.InvoiceStore
	sender     Sender

	extractTimeout time.Duration
}

// NewReceiver creates a new message receiver.
func NewReceiver(
	dispatcher *Dispatcher,
	users Directory,
	engine SessionEngine,
	downloader ImageDownloader,
	extractor ocr.Extractor,
	invoices domain.InvoiceStore,
	sender Sender,
) *Receiver {
	return &Receiver{
		dispatcher:     dispatcher,
		users:          users,
		engine:         engine,
		downloader:     downloader,
		extractor:      extractor,
		invoices:       invoices,
		sender:         sender,
		extractTimeout: 90 * time.Second,
	}
}

// ensureUser registers the sender on first contact. Failure is logged but
// never blocks handling; the row may have been created by a concurrent
// webhook already.
func (r *Receiver) ensureUser(ctx context.Context, phone, displayName string) {
	if _, err := r.users.Resolve(ctx, phone, displayName); err != nil {
		slog.Error("could not ensure user", "phone", phone, "error", err)
	}
}

// OnText handles one inbound text message.
func (r *Receiver) OnText(ctx context.Context, text, sender, senderName string) error {
	r.ensureUser(ctx, sender, senderName)
	return r.dispatcher.HandleText(ctx, text, sender)
}

// OnImage handles one inbound image message: download, extract, and either
// register a receipt against the sender's active session or acknowledge a
// transfer voucher. Extraction failures are recoverable: the sender is told
// to retry and no partial state is written.
func (r *Receiver) OnImage(ctx context.Context, imageURL, sender, senderName string) error {
	r.ensureUser(ctx, sender, senderName)

	image, mimeType, err := r.downloader.Download(ctx, imageURL)
	if err != nil {
		slog.Error("image download failed", "sender", sender, "error", err)
		r.reply(ctx, sender, replyExtractionError)
		return err
	}

	extractCtx, cancel := context.WithTimeout(ctx, r.extractTimeout)
	defer cancel()

	extraction, err := r.extractor.Extract(extractCtx, image, mimeType)
	if err != nil {
		slog.Error("document extraction failed", "sender", sender, "error", err)
		r.reply(ctx, sender, replyExtractionError)
		return err
	}

	switch extraction.DocumentType {
	case ocr.DocumentReceipt:
		return r.handleReceipt(ctx, extraction.Receipt, sender)
	case ocr.DocumentTransfer:
		slog.Info("transfer voucher received",
			"sender", sender,
			"recipient", extraction.Transfer.Recipient,
			"amount", extraction.Transfer.Amount,
		)
		r.reply(ctx, sender, replyTransferNoted)
		return nil
	default:
		r.reply(ctx, sender, replyExtractionError)
		return nil
	}
}

// handleReceipt attaches a scanned receipt to the sender's active session.
func (r *Receiver) handleReceipt(ctx context.Context, receipt *ocr.Receipt, sender string) error {
	u, err := r.users.FindByPhone(ctx, sender)
	if err != nil {
		slog.Error("receipt from unknown sender", "sender", sender, "error", err)
		r.reply(ctx, sender, replyGenericError)
		return err
	}

	sess, err := r.engine.Active(ctx, u.ID)
	switch {
	case errors.Is(err, domain.ErrNoActiveSession):
		r.reply(ctx, sender, replyNoActiveSession)
		return nil
	case errors.Is(err, domain.ErrAmbiguousActiveSession):
		r.reply(ctx, sender, replyAlreadyActiveSession)
		return nil
	case err != nil:
		slog.Error("active session lookup failed", "sender", sender, "error", err)
		r.reply(ctx, sender, replyGenericError)
		return err
	}

	inv := &domain.Invoice{
		SessionID:   sess.ID,
		UserID:      u.ID,
		Merchant:    receipt.Merchant,
		PurchasedAt: receipt.Date,
		TotalAmount: receipt.TotalAmount,
		TipRatio:    receipt.TipRatio(),
	}
	items := make([]domain.InvoiceItem, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		items = append(items, domain.InvoiceItem{
			Description: item.Description,
			Amount:      item.Amount,
			Count:       item.Count,
		})
	}

	inv, items, err = r.invoices.CreateWithItems(ctx, inv, items)
	if err != nil {
		slog.Error("invoice persistence failed", "sender", sender, "session_id", sess.ID, "error", err)
		r.reply(ctx, sender, replyGenericError)
		return err
	}

	slog.Info("invoice registered",
		"invoice_id", inv.ID,
		"session_id", sess.ID,
		"user_id", u.ID,
		"total", inv.TotalAmount,
	)

	r.reply(ctx, sender, invoiceCreatedReply(inv, items))
	r.reply(ctx, sender, replyShareIntro)
	r.reply(ctx, sender, shareLink(sess))
	return nil
}

func (r *Receiver) reply(ctx context.Context, to, body string) {
	if err := r.sender.SendText(ctx, to, body); err != nil {
		slog.Error("reply delivery failed", "to", to, "error", err)
	}
}
