package domain

import (
	"sort"
	"strings"
	"time"
)

// Role is a coarse-grained authorization label. A user holds exactly one.
type Role = string

const (
	RoleAdministrator Role = "Administrator"
	RoleFinance       Role = "Finance"
)

// SupportedRoles lists every role a user may be assigned.
var SupportedRoles = []Role{RoleAdministrator, RoleFinance}

// IsSupportedRole reports whether role is one of SupportedRoles (exact match).
func IsSupportedRole(role string) bool {
	for _, r := range SupportedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Profile claim types stored alongside the user record.
const (
	ClaimGivenName  = "given_name"
	ClaimFamilyName = "family_name"
)

// Claim is a typed key/value attribute attached to a user.
type Claim struct {
	Type  string `json:"type" bson:"type"`
	Value string `json:"value" bson:"value"`
}

// FirstClaim returns the first claim of the given type, if any.
func FirstClaim(claims []Claim, claimType string) (Claim, bool) {
	for _, c := range claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// PrimaryRole resolves the single role of a user from the store's role set.
// Multiple roles resolve to the alphabetically first one; the second return
// value reports whether that happened.
func PrimaryRole(roles []string) (role string, ambiguous bool) {
	switch len(roles) {
	case 0:
		return "", false
	case 1:
		return roles[0], false
	}
	sorted := append([]string(nil), roles...)
	sort.Strings(sorted)
	return sorted[0], true
}

// User is the identity-store record. Email doubles as the username.
type User struct {
	ID              string    `json:"id"`
	UserName        string    `json:"username"`
	Email           string    `json:"email"`
	NormalizedEmail string    `json:"-"`
	EmailConfirmed  bool      `json:"email_confirmed"`
	IsEnabled       bool      `json:"is_enabled"`
	PasswordHash    string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SetEmail assigns email as both username and email and confirms it.
func (u *User) SetEmail(email string) {
	u.UserName = email
	u.Email = email
	u.NormalizedEmail = NormalizeEmail(email)
	u.EmailConfirmed = true
}

// Status derives the lifecycle state from the enabled flag.
func (u *User) Status() UserStatus {
	if u == nil {
		return StatusNonExistent
	}
	if u.IsEnabled {
		return StatusEnabled
	}
	return StatusDisabled
}

// NormalizeEmail returns the canonical form used for email lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStatus represents the lifecycle state of a user record.
type UserStatus string

const (
	StatusNonExistent UserStatus = "non_existent"
	StatusEnabled     UserStatus = "enabled"
	StatusDisabled    UserStatus = "disabled"
)
