// Package auth handles accounts, sessions and role derivation.
//
// Users log in with a short username; the account email is synthesized
// as <username>@<domain> so the rest of the system (and the email
// notifier) always has an address to work with.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"stockroom/internal/types"
)

// Errors callers branch on.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("invalid username")
)

// SyntheticEmail maps a username to its account email.
func SyntheticEmail(username, domain string) string {
	return strings.ToLower(username) + "@" + domain
}

// UsernameFromEmail recovers the login name from a synthetic email.
func UsernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// NormalizeUsername lowercases and validates a login name.
func NormalizeUsername(username string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(username))
	if u == "" || len(u) > 64 {
		return "", ErrInvalidUsername
	}
	for _, r := range u {
		ok := r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '-' || r == '_'
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidUsername, username)
		}
	}
	return u, nil
}

// DeriveRole determines the role for a username: accounts on the
// configured admin list are admins, everyone else is a member.
func DeriveRole(username string, adminUsernames []string) types.Role {
	for _, admin := range adminUsernames {
		if strings.EqualFold(admin, username) {
			return types.RoleAdmin
		}
	}
	return types.RoleMember
}

// HashPassword hashes a password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a password against its stored hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
