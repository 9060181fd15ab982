// Package classify maps free-form WhatsApp text to one of the bot's
// actions. The heavy lifting is delegated to an OpenAI-compatible chat
// model that answers with a single JSON object.
package classify

import "context"

// ActionType identifies what the sender wants the bot to do.
type ActionType string

const (
	ActionCreateSession ActionType = "CREATE_SESSION"
	ActionCloseSession  ActionType = "CLOSE_SESSION"
	ActionJoinSession   ActionType = "JOIN_SESSION"
	ActionAssignItem    ActionType = "ASSIGN_ITEM_TO_USER"
	ActionUnknown       ActionType = "UNKNOWN"
)

// Action is the classifier's verdict on one inbound message. Only the
// fields relevant to the action type are populated.
type Action struct {
	Type ActionType `json:"action"`

	// Description of the session to create (CREATE_SESSION).
	Description string `json:"description,omitempty"`

	// SessionID quoted in the message (CLOSE_SESSION, JOIN_SESSION).
	SessionID string `json:"session_id,omitempty"`

	// Item and Assignee for expense assignment (ASSIGN_ITEM_TO_USER).
	Item     string `json:"item,omitempty"`
	Assignee string `json:"assignee,omitempty"`
}

// Classifier turns message text into an Action.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Action, error)
}

// normalize collapses anything the model invented into UNKNOWN.
func normalize(a *Action) *Action {
	switch a.Type {
	case ActionCreateSession, ActionCloseSession, ActionJoinSession, ActionAssignItem:
		return a
	default:
		return &Action{Type: ActionUnknown}
	}
}
