package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
	"github.com/ssoserver/user-directory/pkg/logger"
)

const credentialBytes = 32

// UserService implements the user lifecycle on top of an IdentityStore.
type UserService struct {
	store     ports.IdentityStore
	guard     ports.EmailGuard     // optional
	events    ports.EventPublisher // optional
	recorder  ports.OperationRecorder
	validator *userValidator
	log       zerolog.Logger
	now       func() time.Time
}

// NewUserService wires the lifecycle handler. guard, events and recorder may be nil.
func NewUserService(store ports.IdentityStore, guard ports.EmailGuard, events ports.EventPublisher, recorder ports.OperationRecorder, log zerolog.Logger) *UserService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &UserService{
		store:     store,
		guard:     guard,
		events:    events,
		recorder:  recorder,
		validator: newUserValidator(store),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var _ ports.UserService = (*UserService)(nil)

// List returns users matching the enabled filter, ordered by username.
func (s *UserService) List(ctx context.Context, in ports.ListUsersInput) (views []ports.UserView, err error) {
	defer func() { s.record("list", err) }()

	users, err := s.store.ListUsers(ctx, ports.UserFilter{IsEnabled: in.IsEnabled})
	if err != nil {
		return nil, domain.WrapStoreError("list users", err)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].UserName < users[j].UserName })

	views = make([]ports.UserView, 0, len(users))
	for _, u := range users {
		v, err := s.compose(ctx, u)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Get returns the composed view of a user, or nil, nil when the id is unknown.
func (s *UserService) Get(ctx context.Context, id string) (view *ports.UserView, err error) {
	defer func() { s.record("get", err) }()

	u, err := s.store.FindByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapStoreError("find user by id", err)
	}
	v, err := s.compose(ctx, u)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create adds a user, or reactivates the disabled user holding the same email.
// It returns the user id in both cases.
func (s *UserService) Create(ctx context.Context, in ports.CreateUserInput) (id string, err error) {
	op := "create"
	defer func() { s.record(op, err) }()

	email := strings.TrimSpace(in.Email)
	if s.guard != nil && email != "" {
		release, err := s.acquire(ctx, email)
		if err != nil {
			return "", err
		}
		defer release()
	}

	existing, err := s.validator.validateCreate(ctx, in)
	if err != nil {
		return "", err
	}

	if existing != nil {
		op = "reactivate"
		enabled := true
		err := s.update(ctx, existing, ports.UpdateUserInput{
			ID:        existing.ID,
			Email:     email,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Role:      in.Role,
			IsEnabled: &enabled,
			Actor:     in.Actor,
		})
		if err != nil {
			return "", fmt.Errorf("reactivate user: %w", err)
		}
		s.log.Info().Str("user_id", existing.ID).Str("email", logger.MaskEmail(email)).Msg("user reactivated")
		s.publish(ctx, domain.EventUserReactivated, existing, in.FirstName, in.Role, in.Actor)
		return existing.ID, nil
	}

	hash, err := randomCredentialHash()
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		IsEnabled:    true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.SetEmail(email)

	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := s.store.Create(ctx, user)
		if err != nil {
			return domain.WrapStoreError("create user", err)
		}
		user = created
		for _, c := range []domain.Claim{
			{Type: domain.ClaimGivenName, Value: in.FirstName},
			{Type: domain.ClaimFamilyName, Value: in.LastName},
		} {
			if err := s.store.AddClaim(ctx, user.ID, c); err != nil {
				return domain.WrapStoreError("add claim", err)
			}
		}
		if err := s.store.AddToRole(ctx, user.ID, in.Role); err != nil {
			return domain.WrapStoreError("add to role", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("email", logger.MaskEmail(email)).Msg("failed to create user")
		return "", err
	}

	s.log.Info().Str("user_id", user.ID).Str("email", logger.MaskEmail(email)).Str("role", in.Role).Msg("user created")
	s.publish(ctx, domain.EventUserCreated, user, in.FirstName, in.Role, in.Actor)
	return user.ID, nil
}

// Update overwrites the profile, role and optionally the enabled flag of a user.
func (s *UserService) Update(ctx context.Context, in ports.UpdateUserInput) (err error) {
	defer func() { s.record("update", err) }()

	if err := s.validator.validateUpdate(ctx, in); err != nil {
		return err
	}

	user, err := s.store.FindByID(ctx, in.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", domain.WrapStoreError("find user by id", err))
	}

	prev := user.Status()
	if err := s.update(ctx, user, in); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	eventType := domain.EventUserUpdated
	switch {
	case prev == domain.StatusDisabled && user.IsEnabled:
		eventType = domain.EventUserReactivated
	case prev == domain.StatusEnabled && !user.IsEnabled:
		eventType = domain.EventUserDisabled
	}
	s.log.Info().Str("user_id", user.ID).Str("event", string(eventType)).Msg("user updated")
	s.publish(ctx, eventType, user, in.FirstName, in.Role, in.Actor)
	return nil
}

// Delete soft-deletes a user by clearing its enabled flag.
func (s *UserService) Delete(ctx context.Context, id, actor string) (err error) {
	defer func() { s.record("delete", err) }()

	user, err := s.validator.validateDelete(ctx, id)
	var verr *domain.ValidationError
	if errors.As(err, &verr) && verr.Has(domain.CodeNotFound) {
		return fmt.Errorf("delete user %s: %w", id, domain.ErrUserNotFound)
	}
	if err != nil {
		return err
	}

	user.IsEnabled = false
	user.UpdatedAt = s.now()
	if err := s.store.Update(ctx, user); err != nil {
		s.log.Error().Err(err).Str("user_id", id).Msg("failed to disable user")
		return domain.WrapStoreError("disable user", err)
	}

	s.log.Info().Str("user_id", id).Msg("user disabled")
	s.publish(ctx, domain.EventUserDisabled, user, "", "", actor)
	return nil
}

// update writes the user record and reconciles its claims and role in one
// store transaction.
func (s *UserService) update(ctx context.Context, user *domain.User, in ports.UpdateUserInput) error {
	user.SetEmail(strings.TrimSpace(in.Email))
	if in.IsEnabled != nil {
		user.IsEnabled = *in.IsEnabled
	}
	user.UpdatedAt = s.now()

	return s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, user); err != nil {
			return domain.WrapStoreError("update user", err)
		}
		if err := s.reconcileClaims(ctx, user.ID, in.FirstName, in.LastName); err != nil {
			return err
		}
		return s.reconcileRole(ctx, user.ID, in.Role)
	})
}

// reconcileClaims adds missing name claims and replaces differing ones.
// Equal claims are left untouched.
func (s *UserService) reconcileClaims(ctx context.Context, userID, firstName, lastName string) error {
	current, err := s.store.GetClaims(ctx, userID)
	if err != nil {
		return domain.WrapStoreError("get claims", err)
	}
	for _, want := range []domain.Claim{
		{Type: domain.ClaimGivenName, Value: firstName},
		{Type: domain.ClaimFamilyName, Value: lastName},
	} {
		have, ok := domain.FirstClaim(current, want.Type)
		switch {
		case !ok:
			err = s.store.AddClaim(ctx, userID, want)
		case have.Value != want.Value:
			err = s.store.ReplaceClaim(ctx, userID, have, want)
		default:
			continue
		}
		if err != nil {
			return domain.WrapStoreError("write claim "+want.Type, err)
		}
	}
	return nil
}

// reconcileRole leaves the user holding exactly role. Names compare
// case-insensitively.
func (s *UserService) reconcileRole(ctx context.Context, userID, role string) error {
	current, err := s.store.GetRoles(ctx, userID)
	if err != nil {
		return domain.WrapStoreError("get roles", err)
	}
	held := false
	for _, r := range current {
		if !held && strings.EqualFold(r, role) {
			held = true
			continue
		}
		if err := s.store.RemoveFromRole(ctx, userID, r); err != nil {
			return domain.WrapStoreError("remove from role", err)
		}
	}
	if held {
		return nil
	}
	if err := s.store.AddToRole(ctx, userID, role); err != nil {
		return domain.WrapStoreError("add to role", err)
	}
	return nil
}

func (s *UserService) compose(ctx context.Context, u *domain.User) (ports.UserView, error) {
	claims, err := s.store.GetClaims(ctx, u.ID)
	if err != nil {
		return ports.UserView{}, domain.WrapStoreError("get claims", err)
	}
	roles, err := s.store.GetRoles(ctx, u.ID)
	if err != nil {
		return ports.UserView{}, domain.WrapStoreError("get roles", err)
	}

	role, ambiguous := domain.PrimaryRole(roles)
	if ambiguous {
		s.recorder.RoleIntegrityWarning()
		s.log.Warn().Str("user_id", u.ID).Strs("roles", roles).Str("resolved", role).Msg("user holds more than one role")
	}

	v := ports.UserView{
		ID:             u.ID,
		Email:          u.Email,
		UserName:       u.UserName,
		Role:           role,
		IsEnabled:      u.IsEnabled,
		EmailConfirmed: u.EmailConfirmed,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if c, ok := domain.FirstClaim(claims, domain.ClaimGivenName); ok {
		v.FirstName = c.Value
	}
	if c, ok := domain.FirstClaim(claims, domain.ClaimFamilyName); ok {
		v.LastName = c.Value
	}
	return v, nil
}

// acquire takes the email guard. A guard outage is logged and tolerated.
func (s *UserService) acquire(ctx context.Context, email string) (func(), error) {
	ok, err := s.guard.Acquire(ctx, email)
	if err != nil {
		s.log.Warn().Err(err).Str("email", logger.MaskEmail(email)).Msg("email guard unavailable, continuing without it")
		return func() {}, nil
	}
	if !ok {
		return nil, fmt.Errorf("create user %s: %w", email, domain.ErrConflict)
	}
	return func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), email); err != nil {
			s.log.Warn().Err(err).Str("email", logger.MaskEmail(email)).Msg("failed to release email guard")
		}
	}, nil
}

func (s *UserService) publish(ctx context.Context, t domain.UserEventType, u *domain.User, firstName, role, actor string) {
	if s.events == nil {
		return
	}
	event := domain.UserEvent{
		Type:       t,
		UserID:     u.ID,
		Email:      u.Email,
		FirstName:  firstName,
		Role:       role,
		Actor:      actor,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.recorder.PublishFailed()
		s.log.Warn().Err(err).Str("user_id", u.ID).Str("event", string(t)).Msg("failed to publish user event")
	}
}

// randomCredentialHash hashes an unguessable password that is never returned.
func randomCredentialHash() (string, error) {
	b := make([]byte, credentialBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(base64.RawURLEncoding.EncodeToString(b)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *UserService) record(operation string, err error) {
	s.recorder.Operation(operation, Outcome(err))
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Violations {
			s.recorder.Violation(v.Code)
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) Operation(string, string) {}
func (nopRecorder) Violation(string)         {}
func (nopRecorder) RoleIntegrityWarning()    {}
func (nopRecorder) PublishFailed()           {}

// Outcome classifies err into the metric label used for operation results.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "store_failure"
	}
}
