// Package seed creates the roles and the initial administrator a fresh
// identity store needs.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
	"github.com/ssoserver/user-directory/pkg/logger"
)

// Store is the identity store plus role catalogue management.
type Store interface {
	ports.IdentityStore
	ports.RoleStore
}

// User describes an account to seed.
type User struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// DefaultAdmin is seeded when no override is configured.
var DefaultAdmin = User{
	Email:     "admin@test.ca",
	Password:  "Password123$",
	FirstName: "Admin",
	LastName:  "Test",
	Role:      domain.RoleAdministrator,
}

type Seeder struct {
	store Store
	log   zerolog.Logger
}

func NewSeeder(store Store, log zerolog.Logger) *Seeder {
	return &Seeder{store: store, log: log}
}

// Run ensures every supported role exists, then seeds users that are absent.
// Existing users are never modified.
func (s *Seeder) Run(ctx context.Context, users ...User) error {
	for _, role := range domain.SupportedRoles {
		if err := s.store.EnsureRole(ctx, role); err != nil {
			return err
		}
		s.log.Debug().Str("role", role).Msg("role ensured")
	}
	for _, u := range users {
		if err := s.seedUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	return nil
}

func (s *Seeder) seedUser(ctx context.Context, in User) error {
	if !domain.IsSupportedRole(in.Role) {
		return fmt.Errorf("unsupported role %q", in.Role)
	}

	_, err := s.store.FindByEmail(ctx, in.Email)
	if err == nil {
		s.log.Debug().Str("email", logger.MaskEmail(in.Email)).Msg("user already exists")
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		IsEnabled:    true,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.SetEmail(in.Email)

	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := s.store.Create(ctx, user)
		if err != nil {
			return err
		}
		if err := s.store.AddToRole(ctx, created.ID, in.Role); err != nil {
			return err
		}
		for _, c := range []domain.Claim{
			{Type: domain.ClaimGivenName, Value: in.FirstName},
			{Type: domain.ClaimFamilyName, Value: in.LastName},
		} {
			if err := s.store.AddClaim(ctx, created.ID, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("email", logger.MaskEmail(in.Email)).Str("role", in.Role).Msg("seeded user")
	return nil
}
