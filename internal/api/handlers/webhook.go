// Package handlers holds the HTTP handlers for the webhook surface.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// MessageReceiver routes inbound messages by type.
type MessageReceiver interface {
	OnText(ctx context.Context, text, sender, senderName string) error
	OnImage(ctx context.Context, imageURL, sender, senderName string) error
}

// WebhookHandler accepts message-received callbacks from the WhatsApp
// provider.
type WebhookHandler struct {
	receiver MessageReceiver
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(receiver MessageReceiver) *WebhookHandler {
	return &WebhookHandler{receiver: receiver}
}

// webhookPayload is the provider's message-received callback body.
type webhookPayload struct {
	Message struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Sender string `json:"sender"`
		Text   *struct {
			Body string `json:"body"`
		} `json:"text,omitempty"`
		Image *struct {
			Link string `json:"link"`
		} `json:"image,omitempty"`
	} `json:"message"`
	Conversation struct {
		PhoneNumber string `json:"phone_number"`
		ContactName string `json:"contact_name"`
	} `json:"conversation"`
}

// MessageReceived handles POST /webhooks/whatsapp/received. Handled
// payloads are always answered 200, even when processing fails: the
// provider delivers at-least-once and a non-2xx would replay the message.
func (h *WebhookHandler) MessageReceived(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("malformed webhook payload", "error", err)
		http.Error(w, `{"error":"malformed payload"}`, http.StatusBadRequest)
		return
	}

	sender := payload.Message.Sender
	if sender == "" {
		sender = payload.Conversation.PhoneNumber
	}
	if sender == "" {
		slog.Warn("webhook without sender", "message_id", payload.Message.ID)
		http.Error(w, `{"error":"missing sender"}`, http.StatusBadRequest)
		return
	}
	senderName := payload.Conversation.ContactName

	slog.Info("webhook message received",
		"message_id", payload.Message.ID,
		"type", payload.Message.Type,
		"sender", sender,
	)

	ctx := r.Context()
	switch {
	case payload.Message.Type == "text" && payload.Message.Text != nil:
		if err := h.receiver.OnText(ctx, payload.Message.Text.Body, sender, senderName); err != nil {
			slog.Error("text handling failed", "message_id", payload.Message.ID, "error", err)
		}
	case payload.Message.Type == "image" && payload.Message.Image != nil:
		if err := h.receiver.OnImage(ctx, payload.Message.Image.Link, sender, senderName); err != nil {
			slog.Error("image handling failed", "message_id", payload.Message.ID, "error", err)
		}
	default:
		slog.Info("ignoring unsupported message type",
			"message_id", payload.Message.ID,
			"type", payload.Message.Type,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
