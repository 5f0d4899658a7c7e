package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
)

const defaultGuardTTL = 30 * time.Second

// EmailGuard holds a short-lived lock per normalized email so concurrent
// creates for the same address are serialized across instances.
// Key format: userdir:email-lock:<normalized_email>
type EmailGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEmailGuard creates an EmailGuard. A non-positive ttl uses defaultGuardTTL.
func NewEmailGuard(client *redis.Client, ttl time.Duration) *EmailGuard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &EmailGuard{client: client, ttl: ttl}
}

var _ ports.EmailGuard = (*EmailGuard)(nil)

// Acquire reports false when another request already holds the email.
func (g *EmailGuard) Acquire(ctx context.Context, email string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(email), time.Now().UTC().Format(time.RFC3339Nano), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("email guard acquire: %w", err)
	}
	return ok, nil
}

// Release drops the lock. The TTL covers a crash before release.
func (g *EmailGuard) Release(ctx context.Context, email string) error {
	if err := g.client.Del(ctx, g.key(email)).Err(); err != nil {
		return fmt.Errorf("email guard release: %w", err)
	}
	return nil
}

func (g *EmailGuard) key(email string) string {
	return "userdir:email-lock:" + domain.NormalizeEmail(email)
}
