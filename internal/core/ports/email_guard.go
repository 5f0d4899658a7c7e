package ports

import "context"

// EmailGuard serializes create requests for the same email across instances.
// Acquire reports false when another request already holds the email.
type EmailGuard interface {
	Acquire(ctx context.Context, email string) (bool, error)
	Release(ctx context.Context, email string) error
}
