package service

import (
	"context"
	"errors"
	"sync"

	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory identity store
// ---------------------------------------------------------------------------

type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users  map[string]*domain.User
	claims map[string][]domain.Claim
	roles  map[string][]string

	userWrites  int
	claimWrites int
	roleWrites  int

	failOn map[string]error // op name -> error returned by that op
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]*domain.User),
		claims: make(map[string][]domain.Claim),
		roles:  make(map[string][]string),
		failOn: make(map[string]error),
	}
}

func (s *memStore) fail(op string) error {
	return s.failOn[op]
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("find_by_email"); err != nil {
		return nil, err
	}
	var found *domain.User
	for _, u := range s.users {
		if u.NormalizedEmail != domain.NormalizeEmail(email) {
			continue
		}
		if found == nil || (u.IsEnabled && !found.IsEnabled) {
			found = u
		}
	}
	if found == nil {
		return nil, domain.ErrUserNotFound
	}
	clone := *found
	return &clone, nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

// activeConflict mirrors the partial unique index on enabled emails.
func (s *memStore) activeConflict(u *domain.User) bool {
	if !u.IsEnabled {
		return false
	}
	for id, other := range s.users {
		if id != u.ID && other.IsEnabled && other.NormalizedEmail == u.NormalizedEmail {
			return true
		}
	}
	return false
}

func (s *memStore) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("create"); err != nil {
		return nil, err
	}
	if s.activeConflict(u) {
		return nil, domain.ErrConflict
	}
	clone := *u
	s.users[u.ID] = &clone
	s.userWrites++
	out := clone
	return &out, nil
}

func (s *memStore) Update(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("update"); err != nil {
		return err
	}
	if _, ok := s.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	if s.activeConflict(u) {
		return domain.ErrConflict
	}
	clone := *u
	s.users[u.ID] = &clone
	s.userWrites++
	return nil
}

func (s *memStore) GetClaims(_ context.Context, userID string) ([]domain.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Claim(nil), s.claims[userID]...), nil
}

func (s *memStore) AddClaim(_ context.Context, userID string, c domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("add_claim"); err != nil {
		return err
	}
	s.claims[userID] = append(s.claims[userID], c)
	s.claimWrites++
	return nil
}

func (s *memStore) ReplaceClaim(_ context.Context, userID string, old, replacement domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.claims[userID] {
		if c == old {
			s.claims[userID][i] = replacement
			s.claimWrites++
			return nil
		}
	}
	return errors.New("claim not found")
}

func (s *memStore) GetRoles(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roles[userID]...), nil
}

func (s *memStore) AddToRole(_ context.Context, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("add_to_role"); err != nil {
		return err
	}
	s.roles[userID] = append(s.roles[userID], role)
	s.roleWrites++
	return nil
}

func (s *memStore) RemoveFromRole(_ context.Context, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.roles[userID][:0:0]
	for _, r := range s.roles[userID] {
		if r != role {
			kept = append(kept, r)
		}
	}
	s.roles[userID] = kept
	s.roleWrites++
	return nil
}

func (s *memStore) ListUsers(_ context.Context, f ports.UserFilter) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.User
	for _, u := range s.users {
		if f.IsEnabled != nil && u.IsEnabled != *f.IsEnabled {
			continue
		}
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

// WithinTransaction serializes transactions and restores a snapshot when fn fails.
func (s *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	users := make(map[string]*domain.User, len(s.users))
	for k, v := range s.users {
		clone := *v
		users[k] = &clone
	}
	claims := make(map[string][]domain.Claim, len(s.claims))
	for k, v := range s.claims {
		claims[k] = append([]domain.Claim(nil), v...)
	}
	roles := make(map[string][]string, len(s.roles))
	for k, v := range s.roles {
		roles[k] = append([]string(nil), v...)
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users, s.claims, s.roles = users, claims, roles
		s.mu.Unlock()
		return err
	}
	return nil
}

// seedUser inserts a user directly, bypassing the service.
func (s *memStore) seedUser(id, email, first, last string, enabled bool, roles ...string) *domain.User {
	u := &domain.User{ID: id, IsEnabled: enabled}
	u.SetEmail(email)
	s.users[id] = u
	s.claims[id] = []domain.Claim{
		{Type: domain.ClaimGivenName, Value: first},
		{Type: domain.ClaimFamilyName, Value: last},
	}
	s.roles[id] = roles
	return u
}

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userWrites + s.claimWrites + s.roleWrites
}

// ---------------------------------------------------------------------------
// Event publisher and email guard stubs
// ---------------------------------------------------------------------------

type stubPublisher struct {
	mu     sync.Mutex
	events []domain.UserEvent
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, e domain.UserEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *stubPublisher) types() []domain.UserEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.UserEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type stubGuard struct {
	held       map[string]bool
	err        error
	releaseLog []string
}

func (g *stubGuard) Acquire(_ context.Context, email string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.held[email] {
		return false, nil
	}
	g.held[email] = true
	return true, nil
}

func (g *stubGuard) Release(_ context.Context, email string) error {
	delete(g.held, email)
	g.releaseLog = append(g.releaseLog, email)
	return nil
}

type stubRecorder struct {
	operations    []string
	violations    []string
	roleWarnings  int
	publishFailed int
}

func (r *stubRecorder) Operation(operation, outcome string) {
	r.operations = append(r.operations, operation+":"+outcome)
}

func (r *stubRecorder) Violation(code string) { r.violations = append(r.violations, code) }

func (r *stubRecorder) RoleIntegrityWarning() { r.roleWarnings++ }

func (r *stubRecorder) PublishFailed() { r.publishFailed++ }
