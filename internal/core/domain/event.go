package domain

import "time"

// UserEventType names a user lifecycle transition.
type UserEventType string

const (
	EventUserCreated     UserEventType = "user.created"
	EventUserReactivated UserEventType = "user.reactivated"
	EventUserUpdated     UserEventType = "user.updated"
	EventUserDisabled    UserEventType = "user.disabled"
)

// UserEvent is emitted after a lifecycle operation has been persisted.
type UserEvent struct {
	Type       UserEventType `json:"type"`
	UserID     string        `json:"user_id"`
	Email      string        `json:"email"`
	FirstName  string        `json:"first_name,omitempty"`
	Role       string        `json:"role,omitempty"`
	Actor      string        `json:"actor,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
