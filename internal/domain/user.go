package domain

import "time"

// User is a person known to the bot, identified by phone number.
// Users are created lazily on first inbound message and never deleted;
// the phone number is the natural key and is immutable once created.
type User struct {
	ID          int64
	PhoneNumber string
	DisplayName string
	CreatedAt   time.Time
}
