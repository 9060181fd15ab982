package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// recordingReceiver captures what the webhook handler dispatched.
type recordingReceiver struct {
	texts  []string
	images []string
	sender string
	name   string
}

func (r *recordingReceiver) OnText(_ context.Context, text, sender, senderName string) error {
	r.texts = append(r.texts, text)
	r.sender = sender
	r.name = senderName
	return nil
}

func (r *recordingReceiver) OnImage(_ context.Context, imageURL, sender, senderName string) error {
	r.images = append(r.images, imageURL)
	r.sender = sender
	r.name = senderName
	return nil
}

func newTestRouter(receiver *recordingReceiver) http.Handler {
	return NewRouter(&App{
		Receiver:       receiver,
		PingStore:      func(context.Context) error { return nil },
		QueueConnected: func() bool { return true },
	})
}

func TestWebhook_TextMessage(t *testing.T) {
	receiver := &recordingReceiver{}
	router := newTestRouter(receiver)

	body := `{
		"message": {"id": "msg-1", "type": "text", "sender": "+1000", "text": {"body": "hola bot"}},
		"conversation": {"phone_number": "+1000", "contact_name": "Ana"}
	}`
	req := httptest.NewRequest("POST", "/webhooks/whatsapp/received", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(receiver.texts) != 1 || receiver.texts[0] != "hola bot" {
		t.Errorf("texts = %v", receiver.texts)
	}
	if receiver.sender != "+1000" || receiver.name != "Ana" {
		t.Errorf("sender = (%q, %q)", receiver.sender, receiver.name)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response lacks X-Request-ID header")
	}
}

func TestWebhook_ImageMessage(t *testing.T) {
	receiver := &recordingReceiver{}
	router := newTestRouter(receiver)

	body := `{
		"message": {"id": "msg-2", "type": "image", "sender": "+2000", "image": {"link": "https://cdn/r.jpg"}},
		"conversation": {"phone_number": "+2000", "contact_name": "Beto"}
	}`
	req := httptest.NewRequest("POST", "/webhooks/whatsapp/received", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(receiver.images) != 1 || receiver.images[0] != "https://cdn/r.jpg" {
		t.Errorf("images = %v", receiver.images)
	}
}

func TestWebhook_SenderFallsBackToConversation(t *testing.T) {
	receiver := &recordingReceiver{}
	router := newTestRouter(receiver)

	body := `{
		"message": {"id": "msg-3", "type": "text", "text": {"body": "hola"}},
		"conversation": {"phone_number": "+3000"}
	}`
	req := httptest.NewRequest("POST", "/webhooks/whatsapp/received", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if receiver.sender != "+3000" {
		t.Errorf("sender = %q, want conversation phone", receiver.sender)
	}
}

func TestWebhook_MalformedPayload(t *testing.T) {
	router := newTestRouter(&recordingReceiver{})

	req := httptest.NewRequest("POST", "/webhooks/whatsapp/received", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhook_MissingSender(t *testing.T) {
	router := newTestRouter(&recordingReceiver{})

	body := `{"message": {"id": "msg-4", "type": "text", "text": {"body": "hola"}}}`
	req := httptest.NewRequest("POST", "/webhooks/whatsapp/received", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhook_UnsupportedTypeStillAccepted(t *testing.T) {
	receiver := &recordingReceiver{}
	router := newTestRouter(receiver)

	body := `{
		"message": {"id": "msg-5", "type": "audio", "sender": "+1000"},
		"conversation": {"phone_number": "+1000"}
	}`
	req := httptest.NewRequest("POST", "/webhooks/whatsapp/received", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(receiver.texts)+len(receiver.images) != 0 {
		t.Error("unsupported type was dispatched")
	}
}

func TestHealthAndReady(t *testing.T) {
	router := newTestRouter(&recordingReceiver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /ready status = %d", rec.Code)
	}
}

func TestReady_DegradedDependencies(t *testing.T) {
	router := NewRouter(&App{
		Receiver:       &recordingReceiver{},
		PingStore:      func(context.Context) error { return errors.New("connection refused") },
		QueueConnected: func() bool { return false },
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /ready status = %d, want 503", rec.Code)
	}
}
