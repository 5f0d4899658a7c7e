package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
)

func TestValidateCreate_DisabledOwnerIsNotAViolation(t *testing.T) {
	store := newMemStore()
	store.seedUser("u1", "a@x.com", "Jane", "Doe", false, domain.RoleFinance)
	v := newUserValidator(store)

	existing, err := v.validateCreate(context.Background(), createInput("a@x.com", "Jane", "Doe", "Finance"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if existing == nil || existing.ID != "u1" {
		t.Errorf("expected disabled user u1 for reactivation, got %+v", existing)
	}
}

func TestValidateCreate_LengthLimits(t *testing.T) {
	v := newUserValidator(newMemStore())
	in := createInput("a@x.com", strings.Repeat("J", 101), strings.Repeat("D", 101), "Finance")

	_, err := v.validateCreate(context.Background(), in)
	verr := mustValidationError(t, err)

	fields := map[string]bool{}
	for _, viol := range verr.Violations {
		if viol.Code == domain.CodeTooLong {
			fields[viol.Field] = true
		}
	}
	if !fields["firstName"] {
		t.Errorf("expected max violation on firstName, got %+v", verr.Violations)
	}
	if !fields["lastName"] {
		t.Errorf("expected max violation on lastName, got %+v", verr.Violations)
	}
}

func TestValidateCreate_StoreErrorIsNotAViolation(t *testing.T) {
	store := newMemStore()
	store.failOn["find_by_email"] = errors.New("connection reset")
	v := newUserValidator(store)

	_, err := v.validateCreate(context.Background(), createInput("a@x.com", "Jane", "Doe", "Finance"))
	if !errors.Is(err, domain.ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
	if errors.Is(err, domain.ErrValidationFailed) {
		t.Error("store failure must not be reported as validation failure")
	}
}

func TestValidateUpdate_SameUserKeepsEmail(t *testing.T) {
	store := newMemStore()
	store.seedUser("u1", "a@x.com", "Jane", "Doe", true, domain.RoleFinance)
	v := newUserValidator(store)

	err := v.validateUpdate(context.Background(), ports.UpdateUserInput{
		ID: "u1", Email: "A@x.com", FirstName: "Jane", LastName: "Doe", Role: "Finance",
	})
	if err != nil {
		t.Fatalf("own email must not be reported in use: %v", err)
	}
}

func TestValidateDelete_NotFound(t *testing.T) {
	v := newUserValidator(newMemStore())

	_, err := v.validateDelete(context.Background(), "missing")
	verr := mustValidationError(t, err)
	if !verr.Has(domain.CodeNotFound) {
		t.Errorf("expected not-found violation, got %+v", verr.Violations)
	}
}

func TestJSONName(t *testing.T) {
	cases := map[string]string{
		"Email":     "email",
		"FirstName": "firstName",
		"ID":        "id",
	}
	for in, want := range cases {
		if got := jsonName(in); got != want {
			t.Errorf("jsonName(%q): want %q, got %q", in, want, got)
		}
	}
}
