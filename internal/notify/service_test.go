package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// stubSessionStore serves canned participants; only the methods the fan-out
// service touches do anything.
type stubSessionStore struct {
	participants []domain.Participant
	err          error
}

func (s *stubSessionStore) Create(context.Context, string, int64) (*domain.Session, error) {
	panic("not used")
}
func (s *stubSessionStore) GetByID(context.Context, uuid.UUID) (*domain.Session, error) {
	panic("not used")
}
func (s *stubSessionStore) SetStatus(context.Context, uuid.UUID, domain.SessionStatus) error {
	panic("not used")
}
func (s *stubSessionStore) AddMember(context.Context, uuid.UUID, int64) (bool, error) {
	panic("not used")
}
func (s *stubSessionStore) RemoveMember(context.Context, uuid.UUID, int64) error {
	panic("not used")
}
func (s *stubSessionStore) IsMember(context.Context, uuid.UUID, int64) (bool, error) {
	panic("not used")
}
func (s *stubSessionStore) ListActiveByUser(context.Context, int64) ([]*domain.Session, error) {
	panic("not used")
}

func (s *stubSessionStore) ListParticipants(context.Context, uuid.UUID) ([]domain.Participant, error) {
	return s.participants, s.err
}

// recordingSender captures sends and can fail selected recipients.
type recordingSender struct {
	sent    map[string]string
	failing map[string]error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[string]string), failing: make(map[string]error)}
}

func (r *recordingSender) SendText(_ context.Context, toPhone, body string) error {
	if err, ok := r.failing[toPhone]; ok {
		return err
	}
	r.sent[toPhone] = body
	return nil
}

func testSession(description string) *domain.Session {
	return &domain.Session{
		ID:          uuid.New(),
		Description: description,
		OwnerID:     1,
		Status:      domain.StatusClosed,
	}
}

func threeParticipants() []domain.Participant {
	return []domain.Participant{
		{UserID: 1, PhoneNumber: "+1000", Role: domain.RoleOwner},
		{UserID: 2, PhoneNumber: "+2000", Role: domain.RoleMember},
		{UserID: 3, PhoneNumber: "+3000", Role: domain.RoleMember},
	}
}

func TestNotifyClosed_ReachesEveryParticipant(t *testing.T) {
	sender := newRecordingSender()
	svc := NewService(&stubSessionStore{participants: threeParticipants()}, sender)

	if err := svc.NotifyClosed(context.Background(), testSession("cena")); err != nil {
		t.Fatalf("NotifyClosed() error = %v", err)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(sender.sent))
	}

	if !strings.Contains(sender.sent["+1000"], "Cerraste") {
		t.Errorf("owner notice = %q, want the owner variant", sender.sent["+1000"])
	}
	for _, phone := range []string{"+2000", "+3000"} {
		if !strings.Contains(sender.sent[phone], "fue cerrada por su creador") {
			t.Errorf("participant notice to %s = %q, want the participant variant", phone, sender.sent[phone])
		}
	}
	for phone, body := range sender.sent {
		if !strings.Contains(body, "cena") {
			t.Errorf("notice to %s = %q does not name the session", phone, body)
		}
	}
}

func TestNotifyClosed_EmptyDescriptionGetsPlaceholder(t *testing.T) {
	sender := newRecordingSender()
	svc := NewService(&stubSessionStore{participants: threeParticipants()[:1]}, sender)

	if err := svc.NotifyClosed(context.Background(), testSession("")); err != nil {
		t.Fatalf("NotifyClosed() error = %v", err)
	}
	if !strings.Contains(sender.sent["+1000"], "Sin descripción") {
		t.Errorf("notice = %q, want the placeholder description", sender.sent["+1000"])
	}
}

func TestNotifyClosed_FailureIsolatedPerRecipient(t *testing.T) {
	sender := newRecordingSender()
	sendErr := errors.New("provider unavailable")
	sender.failing["+2000"] = sendErr

	svc := NewService(&stubSessionStore{participants: threeParticipants()}, sender)

	err := svc.NotifyClosed(context.Background(), testSession("cena"))
	if !errors.Is(err, sendErr) {
		t.Fatalf("NotifyClosed() error = %v, want the delivery failure", err)
	}

	// The failed recipient never stops the rest of the audience.
	if _, ok := sender.sent["+1000"]; !ok {
		t.Error("owner was not notified")
	}
	if _, ok := sender.sent["+3000"]; !ok {
		t.Error("recipient after the failure was not notified")
	}
}

func TestParticipants_UnknownSession(t *testing.T) {
	svc := NewService(&stubSessionStore{err: domain.ErrSessionNotFound}, newRecordingSender())

	_, err := svc.Participants(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Participants() error = %v, want ErrSessionNotFound", err)
	}
}
