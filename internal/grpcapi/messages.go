package grpcapi

import "time"

type LoginRequest struct {
	TenantID string `json:"tenant_id"`
	// Identifier is a username or email; Username is accepted as an
	// alias for callers that predate email login.
	Identifier string `json:"identifier,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password"`
}

func (r *LoginRequest) identifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return r.Username
}

type TokenPairResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

type LogoutRequest struct{}

type LogoutResponse struct {
	Message string `json:"message"`
}

type RefreshRequest struct {
	TenantID     string `json:"tenant_id"`
	UserID       string `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

type VerifyRequest struct {
	TenantID    string `json:"tenant_id,omitempty"`
	AccessToken string `json:"access_token"`
}

type VerifyResponse struct {
	TenantID       string    `json:"tenant_id"`
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Roles          []string  `json:"roles"`
	Permissions    []string  `json:"permissions"`
	IsSystemTenant bool      `json:"is_system_tenant"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type RevokeRequest struct {
	TenantID    string `json:"tenant_id"`
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token,omitempty"`
}

type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

type RevokeTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

type RevokeTenantResponse struct {
	AccessTokensRevoked  int64 `json:"access_tokens_revoked"`
	RefreshTokensRevoked int64 `json:"refresh_tokens_revoked"`
}

type CheckPermissionsRequest struct {
	TenantID    string   `json:"tenant_id"`
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}

type CheckPermissionsResponse struct {
	Results map[string]bool `json:"results"`
}

type HasPermissionRequest struct {
	TenantID       string `json:"tenant_id"`
	UserID         string `json:"user_id"`
	Permission     string `json:"permission"`
	TargetTenantID string `json:"target_tenant_id,omitempty"`
}

type HasPermissionResponse struct {
	Allowed bool `json:"allowed"`
}
