package ports

import (
	"context"

	"github.com/ssoserver/user-directory/internal/core/domain"
)

// UserFilter narrows ListUsers. A nil IsEnabled returns every user.
type UserFilter struct {
	IsEnabled *bool
}

// IdentityStore persists users, their claims and their role memberships.
// Lookups that find nothing return domain.ErrUserNotFound. Writes that break
// the one-active-user-per-email constraint return domain.ErrConflict.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error

	GetClaims(ctx context.Context, userID string) ([]domain.Claim, error)
	AddClaim(ctx context.Context, userID string, claim domain.Claim) error
	// ReplaceClaim swaps the first claim equal to old for replacement.
	ReplaceClaim(ctx context.Context, userID string, old, replacement domain.Claim) error

	// GetRoles returns role names in the order the store keeps them.
	GetRoles(ctx context.Context, userID string) ([]string, error)
	AddToRole(ctx context.Context, userID, role string) error
	RemoveFromRole(ctx context.Context, userID, role string) error

	ListUsers(ctx context.Context, filter UserFilter) ([]*domain.User, error)

	// WithinTransaction runs fn so that every store call made with the ctx it
	// receives commits or rolls back as one unit.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RoleStore manages the catalogue of role names. Used by seeding.
type RoleStore interface {
	EnsureRole(ctx context.Context, name string) error
}
