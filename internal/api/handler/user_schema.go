package handler

import "time"

// --- Request / Response types ---

// Field rules for user bodies live in the service so they are reported
// together with the email and role rules.
type userRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type updateUserRequest struct {
	userRequest
	IsEnabled *bool `json:"isEnabled,omitempty"`
}

type listUsersQuery struct {
	IsEnabled string `query:"is_enabled" validate:"omitempty,oneof=true false all"`
}

type createUserResponse struct {
	ID string `json:"id"`
}

type userResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	UserName       string    `json:"userName"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Role           string    `json:"role"`
	IsEnabled      bool      `json:"isEnabled"`
	EmailConfirmed bool      `json:"emailConfirmed"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
