// Package bot is the conversational surface: it takes raw inbound WhatsApp
// messages, asks the classifier what the sender wants, drives the session
// engine, and answers in the bot's voice.
package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/splitbot/internal/classify"
	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// SessionEngine is the slice of the lifecycle engine the dispatcher drives.
type SessionEngine interface {
	Create(ctx context.Context, ownerPhone, description string) (*domain.Session, error)
	HasActive(ctx context.Context, userID int64) (bool, error)
	Active(ctx context.Context, userID int64) (*domain.Session, error)
	Close(ctx context.Context, rawID, requesterPhone string) (*domain.Session, error)
	Join(ctx context.Context, rawID, phone string) (*domain.Session, bool, error)
}

// Directory resolves phone numbers to users.
type Directory interface {
	Resolve(ctx context.Context, phoneNumber, displayName string) (*domain.User, error)
	FindByPhone(ctx context.Context, phoneNumber string) (*domain.User, error)
}

// Sender delivers a reply to a single phone number.
type Sender interface {
	SendText(ctx context.Context, toPhone, body string) error
}

// Notifier fans a close notice out to a session's participants.
type Notifier interface {
	NotifyClosed(ctx context.Context, sess *domain.Session) error
}

// Dispatcher routes classified text commands to the session engine.
type Dispatcher struct {
	engine     SessionEngine
	users      Directory
	classifier classify.Classifier
	sender     Sender
	notifier   Notifier
}

// NewDispatcher creates a new command dispatcher.
func NewDispatcher(engine SessionEngine, users Directory, classifier classify.Classifier, sender Sender, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		engine:     engine,
		users:      users,
		classifier: classifier,
		sender:     sender,
		notifier:   notifier,
	}
}

// HandleText classifies one text message and executes the resulting command.
// Every outcome, including failure, is answered with a fixed Spanish reply;
// the returned error is for the caller's telemetry only.
func (d *Dispatcher) HandleText(ctx context.Context, text, sender string) error {
	action, err := d.classifier.Classify(ctx, text)
	if err != nil {
		slog.Error("classification failed", "sender", sender, "error", err)
		action = &classify.Action{Type: classify.ActionUnknown}
	}

	slog.Info("dispatching command", "sender", sender, "action", action.Type)

	switch action.Type {
	case classify.ActionCreateSession:
		return d.handleCreate(ctx, action, sender)
	case classify.ActionCloseSession:
		return d.handleClose(ctx, action, sender)
	case classify.ActionJoinSession:
		return d.handleJoin(ctx, action, sender)
	case classify.ActionAssignItem:
		return d.handleAssign(ctx, sender)
	default:
		return d.handleUnknown(ctx, sender)
	}
}

func (d *Dispatcher) handleCreate(ctx context.Context, action *classify.Action, sender string) error {
	sess, err := d.engine.Create(ctx, sender, action.Description)
	switch {
	case err == nil:
		d.reply(ctx, sender, replySessionCreated)
		d.reply(ctx, sender, replyShareIntro)
		d.reply(ctx, sender, shareLink(sess))
		return nil
	case errors.Is(err, domain.ErrActiveSessionExists),
		errors.Is(err, domain.ErrAmbiguousActiveSession):
		d.reply(ctx, sender, replyAlreadyActiveSession)
		return nil
	default:
		slog.Error("create session failed", "sender", sender, "error", err)
		d.reply(ctx, sender, replyGenericError)
		return err
	}
}

func (d *Dispatcher) handleClose(ctx context.Context, action *classify.Action, sender string) error {
	sessionID := action.SessionID
	if sessionID == "" {
		// No explicit ID in the message: close the requester's own session.
		sess, err := d.activeSessionOf(ctx, sender)
		if err != nil {
			d.reply(ctx, sender, replyNoSessionToClose)
			return nil
		}
		sessionID = sess.ShareToken()
	}

	closed, err := d.engine.Close(ctx, sessionID, sender)
	switch {
	case err == nil:
		if err := d.notifier.NotifyClosed(ctx, closed); err != nil {
			slog.Error("close notification incomplete", "session_id", closed.ID, "error", err)
		}
		return nil
	case errors.Is(err, domain.ErrNotOwner):
		d.reply(ctx, sender, replyNotOwner)
		return nil
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrInvalidSessionID):
		d.reply(ctx, sender, replySessionNotFound)
		return nil
	case errors.Is(err, domain.ErrUserNotFound):
		// A sender without a user row cannot own anything to close.
		d.reply(ctx, sender, replyNoSessionToClose)
		return nil
	default:
		slog.Error("close session failed", "sender", sender, "session_id", sessionID, "error", err)
		d.reply(ctx, sender, replyGenericError)
		return err
	}
}

func (d *Dispatcher) handleJoin(ctx context.Context, action *classify.Action, sender string) error {
	if action.SessionID == "" {
		d.reply(ctx, sender, replyMissingJoinID)
		return nil
	}

	sess, already, err := d.engine.Join(ctx, action.SessionID, sender)
	switch {
	case err == nil && already:
		d.reply(ctx, sender, alreadyJoinedReply(sess))
		return nil
	case err == nil:
		d.reply(ctx, sender, joinedReply(sess))
		return nil
	case errors.Is(err, domain.ErrSessionClosed):
		d.reply(ctx, sender, replySessionClosedJoin)
		return nil
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrInvalidSessionID):
		d.reply(ctx, sender, replySessionNotFound)
		return nil
	default:
		slog.Error("join session failed", "sender", sender, "session_id", action.SessionID, "error", err)
		d.reply(ctx, sender, replyGenericError)
		return err
	}
}

func (d *Dispatcher) handleAssign(ctx context.Context, sender string) error {
	if !d.senderHasActive(ctx, sender) {
		d.reply(ctx, sender, replyNoActiveSession)
		return nil
	}
	d.reply(ctx, sender, replyAssignComingSoon)
	return nil
}

func (d *Dispatcher) handleUnknown(ctx context.Context, sender string) error {
	if d.senderHasActive(ctx, sender) {
		d.reply(ctx, sender, replyUnknownWithSession)
	} else {
		d.reply(ctx, sender, replyUnknownNoSession)
	}
	return nil
}

// activeSessionOf resolves the sender's single active session.
func (d *Dispatcher) activeSessionOf(ctx context.Context, sender string) (*domain.Session, error) {
	u, err := d.users.FindByPhone(ctx, sender)
	if err != nil {
		return nil, err
	}
	return d.engine.Active(ctx, u.ID)
}

// senderHasActive reports whether the sender participates in an active
// session. An ambiguous state counts as having one; the lookup errors are
// deliberately collapsed to false.
func (d *Dispatcher) senderHasActive(ctx context.Context, sender string) bool {
	u, err := d.users.FindByPhone(ctx, sender)
	if err != nil {
		return false
	}
	active, err := d.engine.HasActive(ctx, u.ID)
	if errors.Is(err, domain.ErrAmbiguousActiveSession) {
		return true
	}
	return err == nil && active
}

// reply sends a message to the sender, logging delivery failures instead of
// propagating them; the command itself already ran.
func (d *Dispatcher) reply(ctx context.Context, to, body string) {
	if err := d.sender.SendText(ctx, to, body); err != nil {
		slog.Error("reply delivery failed", "to", to, "error", err)
	}
}
