package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// IdentityStore implements ports.IdentityStore on the users, user_claims,
// roles and user_roles tables.
type IdentityStore struct {
	pool *pgxpool.Pool
}

func NewIdentityStore(pool *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{pool: pool}
}

var (
	_ ports.IdentityStore = (*IdentityStore)(nil)
	_ ports.RoleStore     = (*IdentityStore)(nil)
)

// db returns the transaction carried by ctx, or the pool.
func (s *IdentityStore) db(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// WithinTransaction runs fn in a single database transaction. Nested calls
// join the outer transaction.
func (s *IdentityStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

const userColumns = `id, username, email, normalized_email, email_confirmed, is_enabled, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.NormalizedEmail, &u.EmailConfirmed,
		&u.IsEnabled, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// FindByEmail prefers the enabled user when disabled ones share the email,
// then the most recently updated.
func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE normalized_email = $1
		ORDER BY is_enabled DESC, updated_at DESC
		LIMIT 1
	`, domain.NormalizeEmail(email))
	return s.one(row, "find user by email")
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return s.one(row, "find user by id")
}

func (s *IdentityStore) one(row pgx.Row, op string) (*domain.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *IdentityStore) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}
	row := s.db(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, email, normalized_email, email_confirmed, is_enabled, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+userColumns,
		id, user.UserName, user.Email, domain.NormalizeEmail(user.Email), user.EmailConfirmed,
		user.IsEnabled, user.PasswordHash, user.CreatedAt, user.UpdatedAt)

	created, err := scanUser(row)
	if err != nil {
		return nil, mapWriteError("insert user", err)
	}
	return created, nil
}

func (s *IdentityStore) Update(ctx context.Context, user *domain.User) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE users
		SET username = $2, email = $3, normalized_email = $4, email_confirmed = $5, is_enabled = $6, updated_at = $7
		WHERE id = $1
	`, user.ID, user.UserName, user.Email, domain.NormalizeEmail(user.Email), user.EmailConfirmed,
		user.IsEnabled, user.UpdatedAt)
	if err != nil {
		return mapWriteError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *IdentityStore) GetClaims(ctx context.Context, userID string) ([]domain.Claim, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT claim_type, claim_value FROM user_claims WHERE user_id = $1 ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get claims: %w", err)
	}
	claims, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Claim, error) {
		var c domain.Claim
		err := row.Scan(&c.Type, &c.Value)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan claims: %w", err)
	}
	return claims, nil
}

func (s *IdentityStore) AddClaim(ctx context.Context, userID string, claim domain.Claim) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO user_claims (user_id, claim_type, claim_value) VALUES ($1, $2, $3)
	`, userID, claim.Type, claim.Value)
	if err != nil {
		return mapWriteError("add claim", err)
	}
	return nil
}

// ReplaceClaim rewrites the oldest claim row equal to old.
func (s *IdentityStore) ReplaceClaim(ctx context.Context, userID string, old, replacement domain.Claim) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE user_claims SET claim_type = $4, claim_value = $5
		WHERE id = (
			SELECT id FROM user_claims
			WHERE user_id = $1 AND claim_type = $2 AND claim_value = $3
			ORDER BY id LIMIT 1
		)
	`, userID, old.Type, old.Value, replacement.Type, replacement.Value)
	if err != nil {
		return fmt.Errorf("replace claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("replace claim %s: no matching claim for user %s", old.Type, userID)
	}
	return nil
}

// GetRoles returns role names in the order they were granted.
func (s *IdentityStore) GetRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT role_name FROM user_roles WHERE user_id = $1 ORDER BY added_at, role_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get roles: %w", err)
	}
	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan roles: %w", err)
	}
	return roles, nil
}

// AddToRole grants the role whose normalized name matches role.
func (s *IdentityStore) AddToRole(ctx context.Context, userID, role string) error {
	tag, err := s.db(ctx).Exec(ctx, `
		INSERT INTO user_roles (user_id, role_name)
		SELECT $1, name FROM roles WHERE normalized_name = $2
		ON CONFLICT (user_id, role_name) DO NOTHING
	`, userID, strings.ToUpper(role))
	if err != nil {
		return mapWriteError("add to role", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE normalized_name = $1)`, strings.ToUpper(role)).Scan(&exists); err != nil {
			return fmt.Errorf("check role: %w", err)
		}
		if !exists {
			return fmt.Errorf("add to role: role %q does not exist", role)
		}
	}
	return nil
}

func (s *IdentityStore) RemoveFromRole(ctx context.Context, userID, role string) error {
	_, err := s.db(ctx).Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_name = $2`, userID, role)
	if err != nil {
		return fmt.Errorf("remove from role: %w", err)
	}
	return nil
}

func (s *IdentityStore) ListUsers(ctx context.Context, filter ports.UserFilter) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if filter.IsEnabled != nil {
		query += ` WHERE is_enabled = $1`
		args = append(args, *filter.IsEnabled)
	}
	query += ` ORDER BY username COLLATE "C"`

	rows, err := s.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

// EnsureRole inserts the role if no role with the same normalized name exists.
func (s *IdentityStore) EnsureRole(ctx context.Context, name string) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO roles (name, normalized_name) VALUES ($1, $2)
		ON CONFLICT (normalized_name) DO NOTHING
	`, name, strings.ToUpper(name))
	if err != nil {
		return fmt.Errorf("ensure role %s: %w", name, err)
	}
	return nil
}

// Ping reports whether the pool can reach the database.
func (s *IdentityStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return domain.ErrConflict
		case codeForeignKeyViolation:
			return domain.ErrUserNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
