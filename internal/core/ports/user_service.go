package ports

import (
	"context"
	"time"
)

// CreateUserInput is the DTO passed from the transport layer to UserService.Create.
type CreateUserInput struct {
	Email     string `validate:"required,email,max=255"`
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Role      string `validate:"required"`
	Actor     string // subject of the caller's token, recorded on events
}

// UpdateUserInput carries the full desired state of an existing user.
type UpdateUserInput struct {
	ID        string `validate:"required"`
	Email     string `validate:"required,email,max=255"`
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Role      string `validate:"required"`
	IsEnabled *bool  // nil leaves the flag untouched
	Actor     string
}

// ListUsersInput selects users by enabled flag. Nil lists everyone.
type ListUsersInput struct {
	IsEnabled *bool
}

// UserView is the composed read model: identity fields plus the first
// given/family name claims and the single role.
type UserView struct {
	ID             string
	Email          string
	UserName       string
	FirstName      string
	LastName       string
	Role           string
	IsEnabled      bool
	EmailConfirmed bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserService defines the user lifecycle use cases.
type UserService interface {
	List(ctx context.Context, input ListUsersInput) ([]UserView, error)
	// Get returns nil, nil when no user has the given id.
	Get(ctx context.Context, id string) (*UserView, error)
	// Create returns the id of the new or reactivated user.
	Create(ctx context.Context, input CreateUserInput) (string, error)
	Update(ctx context.Context, input UpdateUserInput) error
	Delete(ctx context.Context, id, actor string) error
}
