package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity and resolved grants embedded in an
// access token. Permissions are materialized at issue time, so a
// verifier never has to reach the credential store.
type Claims struct {
	TenantID    string   `json:"tenant_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// HasRole reports whether the claims carry the given role name.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the claims grant the required
// "resource:action" key, either exactly or through the wildcard.
func (c *Claims) HasPermission(required string) bool {
	if required == "" {
		return false
	}
	for _, p := range c.Permissions {
		if p == PermissionWildcard || p == required {
			return true
		}
	}
	return false
}
