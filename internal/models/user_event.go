package models

// User lifecycle event names.
const (
	UserCreated = "user.created"
	UserUpdated = "user.updated"
	UserDeleted = "user.deleted"
)

// UserEvent is published to Kafka after a successful write
type UserEvent struct {
	Event     string `json:"event"`     // One of UserCreated, UserUpdated, UserDeleted
	UserID    int64  `json:"user_id"`   // Affected user
	Username  string `json:"username"`  // Username after the write
	Timestamp int64  `json:"timestamp"` // Unix timestamp
}
