package main

import (
	"testing"

	"github.com/ssoserver/user-directory/internal/infrastructure/config"
	"github.com/ssoserver/user-directory/internal/infrastructure/seed"
)

func TestAdminUser_Defaults(t *testing.T) {
	got := adminUser(config.SeedConfig{})
	if got != seed.DefaultAdmin {
		t.Fatalf("expected default admin, got %+v", got)
	}
}

func TestAdminUser_Overrides(t *testing.T) {
	got := adminUser(config.SeedConfig{AdminEmail: "root@example.com", AdminLastName: "Root"})
	if got.Email != "root@example.com" || got.LastName != "Root" {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.FirstName != seed.DefaultAdmin.FirstName || got.Role != seed.DefaultAdmin.Role {
		t.Fatalf("unset fields must keep defaults: %+v", got)
	}
}
