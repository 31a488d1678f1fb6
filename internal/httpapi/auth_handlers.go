package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/TamirHazut/ERP/internal/audit"
	"github.com/TamirHazut/ERP/internal/auth"
	"github.com/TamirHazut/ERP/internal/obs"
)

type loginRequest struct {
	TenantID string `json:"tenant_id"`
	// Identifier is a username or email. Username is accepted as an
	// alias for callers that predate email login.
	Identifier string `json:"identifier,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password"`
}

func (r loginRequest) identifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return r.Username
}

type tokenPairResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

type refreshRequest struct {
	TenantID     string `json:"tenant_id"`
	UserID       string `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

type verifyRequest struct {
	TenantID    string `json:"tenant_id,omitempty"`
	AccessToken string `json:"access_token"`
}

type verifyResponse struct {
	*auth.Claims
	IsSystemTenant bool `json:"is_system_tenant"`
}

type hasPermissionRequest struct {
	TenantID       string `json:"tenant_id"`
	UserID         string `json:"user_id"`
	Permission     string `json:"permission"`
	TargetTenantID string `json:"target_tenant_id,omitempty"`
}

type checkPermissionsRequest struct {
	TenantID    string   `json:"tenant_id"`
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}

type revokeRequest struct {
	TenantID    string `json:"tenant_id"`
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token,omitempty"`
}

func pairResponse(pair *auth.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.tokens.Login(r.Context(), req.TenantID, req.identifier(), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.ObserveLogin("denied")
		} else if !errors.Is(err, auth.ErrInvalidInput) {
			obs.ObserveLogin("error")
		}
		handleServiceError(w, r, err)
		return
	}
	obs.ObserveLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"tenant_id":  req.TenantID,
		"identifier": req.identifier(),
	})
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := a.tokens.Logout(r.Context(), claims.TenantID, claims.Subject); err != nil {
		handleServiceError(w, r, err)
		return
	}
	obs.ObserveRevocations(1)
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "logout successful"})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.tokens.Refresh(r.Context(), req.TenantID, req.UserID, req.RefreshToken)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"tenant_id": req.TenantID,
		"user_id":   req.UserID,
	})
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	claims, err := a.tokens.Verify(r.Context(), req.AccessToken)
	if err != nil {
		obs.ObserveVerification("denied")
		handleServiceError(w, r, err)
		return
	}
	// A token from another tenant is invalid here, not merely denied.
	if req.TenantID != "" && req.TenantID != claims.TenantID {
		obs.ObserveVerification("denied")
		handleServiceError(w, r, auth.ErrInvalidToken)
		return
	}
	sys, err := a.tokens.IsSystemTenantUser(r.Context(), claims)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	obs.ObserveVerification("ok")
	writeJSON(w, http.StatusOK, verifyResponse{Claims: claims, IsSystemTenant: sys})
}

// handleHasPermission answers a single permission question, optionally
// against another tenant. Cross-tenant checks only succeed for system
// tenant users. Same caller rules as handleCheckPermissions.
func (a *API) handleHasPermission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}
	var req hasPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	self := req.TenantID == claims.TenantID && req.UserID == claims.Subject
	if !self {
		if err := a.tokens.Authorize(r.Context(), claims, auth.PermUserManage, req.TenantID); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}
	allowed, err := a.tokens.HasPermission(r.Context(), req.TenantID, req.UserID, req.Permission, req.TargetTenantID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

// handleCheckPermissions answers which of the requested permissions a
// user holds. Callers may ask about themselves; asking about someone
// else needs user:manage on the target tenant.
func (a *API) handleCheckPermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}
	var req checkPermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	self := req.TenantID == claims.TenantID && req.UserID == claims.Subject
	if !self {
		if err := a.tokens.Authorize(r.Context(), claims, auth.PermUserManage, req.TenantID); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}
	results, err := a.tokens.CheckPermissions(r.Context(), req.TenantID, req.UserID, req.Permissions)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleRevoke invalidates another user's session. The caller needs
// token:revoke on the target tenant unless revoking itself.
func (a *API) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}
	var req revokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	self := req.TenantID == claims.TenantID && req.UserID == claims.Subject
	if !self {
		if err := a.tokens.Authorize(r.Context(), claims, auth.PermTokenRevoke, req.TenantID); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}
	if err := a.tokens.Revoke(r.Context(), req.TenantID, req.UserID, req.AccessToken); err != nil {
		handleServiceError(w, r, err)
		return
	}
	obs.ObserveRevocations(1)
	_ = audit.LogEvent(r.Context(), "auth.revoke", map[string]any{
		"tenant_id": req.TenantID,
		"user_id":   req.UserID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleTenantRevoke drops every session in the tenant.
func (a *API) handleTenantRevoke(w http.ResponseWriter, r *http.Request, tenantID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermission(w, r, auth.PermTokenRevoke, tenantID) {
		return
	}
	access, refresh, err := a.tokens.RevokeTenant(r.Context(), tenantID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	obs.ObserveRevocations(access + refresh)
	_ = audit.LogEvent(r.Context(), "auth.revoke_tenant", map[string]any{
		"tenant_id":      tenantID,
		"access_tokens":  access,
		"refresh_tokens": refresh,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"access_tokens_revoked":  access,
		"refresh_tokens_revoked": refresh,
	})
}
