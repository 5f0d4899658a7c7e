package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
)

// userValidator checks request shape and the store-backed business rules.
// Every rule runs; failures are collected into one *domain.ValidationError.
type userValidator struct {
	fields *validator.Validate
	store  ports.IdentityStore
}

func newUserValidator(store ports.IdentityStore) *userValidator {
	return &userValidator{fields: validator.New(), store: store}
}

// validateCreate returns the disabled user holding the requested email, if
// any, so the caller can take the reactivation path.
func (v *userValidator) validateCreate(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	violations := v.fieldViolations(in)
	violations = append(violations, roleViolations(in.Role)...)

	var existing *domain.User
	if email := strings.TrimSpace(in.Email); email != "" {
		u, err := v.findByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if u != nil && u.IsEnabled {
			violations = append(violations, domain.Violation{
				Field:   "email",
				Code:    domain.CodeDuplicateActiveEmail,
				Message: fmt.Sprintf("an active user with email %q already exists", email),
			})
		} else {
			existing = u
		}
	}

	if len(violations) > 0 {
		return nil, &domain.ValidationError{Violations: violations}
	}
	return existing, nil
}

func (v *userValidator) validateUpdate(ctx context.Context, in ports.UpdateUserInput) error {
	violations := v.fieldViolations(in)
	violations = append(violations, roleViolations(in.Role)...)

	if email := strings.TrimSpace(in.Email); email != "" {
		u, err := v.findByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u != nil && u.ID != in.ID {
			violations = append(violations, domain.Violation{
				Field:   "email",
				Code:    domain.CodeEmailInUse,
				Message: fmt.Sprintf("email %q is already used by another user", email),
			})
		}
	}

	if len(violations) > 0 {
		return &domain.ValidationError{Violations: violations}
	}
	return nil
}

// validateDelete returns the user to disable.
func (v *userValidator) validateDelete(ctx context.Context, id string) (*domain.User, error) {
	u, err := v.store.FindByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, &domain.ValidationError{Violations: []domain.Violation{{
			Field:   "id",
			Code:    domain.CodeNotFound,
			Message: fmt.Sprintf("user %q not found", id),
		}}}
	}
	if err != nil {
		return nil, domain.WrapStoreError("find user by id", err)
	}
	return u, nil
}

func (v *userValidator) findByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := v.store.FindByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapStoreError("find user by email", err)
	}
	return u, nil
}

func (v *userValidator) fieldViolations(s any) []domain.Violation {
	err := v.fields.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []domain.Violation{{Code: "invalid", Message: err.Error()}}
	}
	out := make([]domain.Violation, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldViolation(fe))
	}
	return out
}

// roleViolations skips the empty role, which the required rule already reports.
func roleViolations(role string) []domain.Violation {
	if role == "" || domain.IsSupportedRole(role) {
		return nil
	}
	return []domain.Violation{{
		Field:   "role",
		Code:    domain.CodeInvalidRole,
		Message: fmt.Sprintf("role %q is not supported; must be one of: %s", role, strings.Join(domain.SupportedRoles, ", ")),
	}}
}

// FieldViolation converts a validator field error into a domain violation.
func FieldViolation(fe validator.FieldError) domain.Violation {
	field := jsonName(fe.Field())
	v := domain.Violation{Field: field, Code: fe.Tag()}
	switch fe.Tag() {
	case "required":
		v.Message = field + " is required"
	case "email":
		v.Code = domain.CodeInvalidEmail
		v.Message = field + " must be a valid email"
	case "max":
		v.Code = domain.CodeTooLong
		v.Message = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		v.Message = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		v.Message = fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
	return v
}

// jsonName turns a Go field name into its lowerCamel request name ("FirstName" -> "firstName", "ID" -> "id").
func jsonName(field string) string {
	if strings.ToUpper(field) == field {
		return strings.ToLower(field)
	}
	r := []rune(field)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
