package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/TamirHazut/ERP/internal/audit"
	"github.com/TamirHazut/ERP/internal/auth"
)

type createTenantRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Status string `json:"status"`
}

type updateTenantRequest struct {
	Name     *string           `json:"name"`
	Domain   *string           `json:"domain"`
	Status   *string           `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

type createUserRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	RoleIDs  []string `json:"role_ids"`
	Status   string   `json:"status"`
}

type updateUserRequest struct {
	Email         *string `json:"email"`
	EmailVerified *bool   `json:"email_verified"`
	Password      *string `json:"password"`
	Status        *string `json:"status"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
}

type createRoleRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permission_ids"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type rolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type createPermissionRequest struct {
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	IsDangerous bool   `json:"is_dangerous"`
}

type updatePermissionRequest struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	IsDangerous *bool   `json:"is_dangerous"`
}

func (a *API) handleTenants(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	switch r.Method {
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermTenantManage, claims.TenantID) {
			return
		}
		var req createTenantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		tenant, err := a.rbac.CreateTenant(r.Context(), req.Name, req.Domain, req.Status)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.tenant.create", map[string]any{"tenant_id": tenant.ID, "name": tenant.Name})
		w.Header().Set("Location", fmt.Sprintf("/v1/tenants/%s", tenant.ID))
		writeJSON(w, http.StatusCreated, tenant)
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermTenantManage, claims.TenantID) {
			return
		}
		tenants, err := a.rbac.ListTenants(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

// handleTenantScoped routes /v1/tenants/{id}[/...] by hand.
func (a *API) handleTenantScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/tenants/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	tenantID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleTenantResource(w, r, tenantID)
	case parts[1] == "revoke" && len(parts) == 2:
		a.handleTenantRevoke(w, r, tenantID)
	case parts[1] == "audit" && len(parts) == 2:
		a.handleTenantAudit(w, r, tenantID)
	case parts[1] == "users":
		a.handleTenantUsers(w, r, tenantID, parts[2:])
	case parts[1] == "roles":
		a.handleTenantRoles(w, r, tenantID, parts[2:])
	case parts[1] == "permissions":
		a.handleTenantPermissions(w, r, tenantID, parts[2:])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleTenantResource(w http.ResponseWriter, r *http.Request, tenantID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermTenantManage, tenantID) {
			return
		}
		tenant, err := a.rbac.GetTenant(r.Context(), tenantID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tenant)
	case http.MethodPatch:
		if !a.ensurePermission(w, r, auth.PermTenantManage, tenantID) {
			return
		}
		var req updateTenantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		tenant, err := a.rbac.UpdateTenant(r.Context(), tenantID, auth.TenantUpdate{
			Name:     req.Name,
			Domain:   req.Domain,
			Status:   req.Status,
			Metadata: req.Metadata,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.tenant.update", map[string]any{"tenant_id": tenantID})
		writeJSON(w, http.StatusOK, tenant)
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermTenantManage, tenantID) {
			return
		}
		if err := a.rbac.DeleteTenant(r.Context(), tenantID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.tenant.delete", map[string]any{"tenant_id": tenantID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleTenantAudit(w http.ResponseWriter, r *http.Request, tenantID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, auth.PermAuditRead, tenantID) {
		return
	}
	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	entries, err := a.rbac.ListAudit(r.Context(), tenantID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleTenantUsers(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if !a.ensurePermission(w, r, auth.PermUserManage, tenantID) {
		return
	}
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodPost:
			var req createUserRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			user, err := a.rbac.CreateUser(r.Context(), tenantID, req.Username, req.Email, req.Password, req.RoleIDs, req.Status)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			_ = audit.LogEvent(r.Context(), "rbac.user.create", map[string]any{"tenant_id": tenantID, "user_id": user.ID})
			w.Header().Set("Location", fmt.Sprintf("/v1/tenants/%s/users/%s", tenantID, user.ID))
			writeJSON(w, http.StatusCreated, user)
		case http.MethodGet:
			users, err := a.rbac.ListUsers(r.Context(), tenantID)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"users": users})
		default:
			methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
		}
	case len(rest) == 1:
		a.handleUserResource(w, r, tenantID, rest[0])
	case len(rest) == 2 && rest[1] == "roles":
		a.handleUserRoles(w, r, tenantID, rest[0])
	case len(rest) == 2 && rest[1] == "permissions":
		a.handleUserPermissions(w, r, tenantID, rest[0])
	case len(rest) == 3 && rest[1] == "roles":
		a.handleUserRoleResource(w, r, tenantID, rest[0], rest[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request, tenantID, userID string) {
	switch r.Method {
	case http.MethodGet:
		user, err := a.rbac.GetUser(r.Context(), tenantID, userID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.UpdateUser(r.Context(), tenantID, userID, auth.UserUpdate{
			Email:         req.Email,
			EmailVerified: req.EmailVerified,
			Password:      req.Password,
			Status:        req.Status,
			FirstName:     req.FirstName,
			LastName:      req.LastName,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.user.update", map[string]any{"tenant_id": tenantID, "user_id": userID})
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := a.rbac.DeleteUser(r.Context(), tenantID, userID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		// Deleting a user does not revoke an in-flight session; the
		// access token dies at its TTL and refresh fails on lookup.
		_ = audit.LogEvent(r.Context(), "rbac.user.delete", map[string]any{"tenant_id": tenantID, "user_id": userID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, tenantID, userID string) {
	switch r.Method {
	case http.MethodGet:
		roleIDs, err := a.tokens.GetUserRoles(r.Context(), tenantID, userID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"role_ids": roleIDs})
	case http.MethodPost:
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.AssignRole(r.Context(), tenantID, userID, req.RoleID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.user.assign_role", map[string]any{
			"tenant_id": tenantID, "user_id": userID, "role_id": req.RoleID,
		})
		writeJSON(w, http.StatusOK, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserPermissions(w http.ResponseWriter, r *http.Request, tenantID, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	perms, err := a.tokens.GetUserPermissions(r.Context(), tenantID, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (a *API) handleUserRoleResource(w http.ResponseWriter, r *http.Request, tenantID, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	user, err := a.rbac.RemoveRole(r.Context(), tenantID, userID, roleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.user.remove_role", map[string]any{
		"tenant_id": tenantID, "user_id": userID, "role_id": roleID,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleTenantRoles(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if !a.ensurePermission(w, r, auth.PermRoleManage, tenantID) {
		return
	}
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodPost:
			var req createRoleRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			role, err := a.rbac.CreateRole(r.Context(), tenantID, req.Name, req.Description, req.PermissionIDs)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			_ = audit.LogEvent(r.Context(), "rbac.role.create", map[string]any{"tenant_id": tenantID, "role_id": role.ID})
			w.Header().Set("Location", fmt.Sprintf("/v1/tenants/%s/roles/%s", tenantID, role.ID))
			writeJSON(w, http.StatusCreated, role)
		case http.MethodGet:
			roles, err := a.rbac.ListRoles(r.Context(), tenantID)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
		default:
			methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
		}
	case len(rest) == 1:
		a.handleRoleResource(w, r, tenantID, rest[0])
	case len(rest) == 2 && rest[1] == "permissions":
		a.handleRolePermissions(w, r, tenantID, rest[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request, tenantID, roleID string) {
	switch r.Method {
	case http.MethodGet:
		role, err := a.rbac.GetRole(r.Context(), tenantID, roleID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPatch:
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.UpdateRole(r.Context(), tenantID, roleID, auth.RoleUpdate{
			Name:        req.Name,
			Description: req.Description,
			Status:      req.Status,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.update", map[string]any{"tenant_id": tenantID, "role_id": roleID})
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if err := a.rbac.DeleteRole(r.Context(), tenantID, roleID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.delete", map[string]any{"tenant_id": tenantID, "role_id": roleID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, tenantID, roleID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	var req rolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.rbac.SetRolePermissions(r.Context(), tenantID, roleID, req.PermissionIDs)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.permissions.update", map[string]any{
		"tenant_id": tenantID, "role_id": roleID, "count": len(role.Permissions),
	})
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleTenantPermissions(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if !a.ensurePermission(w, r, auth.PermPermissionManage, tenantID) {
		return
	}
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodPost:
			var req createPermissionRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			perm, err := a.rbac.CreatePermission(r.Context(), tenantID, req.Resource, req.Action, req.DisplayName, req.Description, req.IsDangerous)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			_ = audit.LogEvent(r.Context(), "rbac.permission.create", map[string]any{"tenant_id": tenantID, "permission": perm.Key()})
			w.Header().Set("Location", fmt.Sprintf("/v1/tenants/%s/permissions/%s", tenantID, perm.ID))
			writeJSON(w, http.StatusCreated, perm)
		case http.MethodGet:
			perms, err := a.rbac.ListPermissions(r.Context(), tenantID)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
		default:
			methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
		}
	case len(rest) == 1:
		a.handlePermissionResource(w, r, tenantID, rest[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handlePermissionResource(w http.ResponseWriter, r *http.Request, tenantID, id string) {
	switch r.Method {
	case http.MethodGet:
		perm, err := a.rbac.GetPermission(r.Context(), tenantID, id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, perm)
	case http.MethodPatch:
		var req updatePermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.rbac.UpdatePermission(r.Context(), tenantID, id, auth.PermissionUpdate{
			DisplayName: req.DisplayName,
			Description: req.Description,
			Status:      req.Status,
			IsDangerous: req.IsDangerous,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.permission.update", map[string]any{"tenant_id": tenantID, "permission_id": id})
		writeJSON(w, http.StatusOK, perm)
	case http.MethodDelete:
		if err := a.rbac.DeletePermission(r.Context(), tenantID, id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.permission.delete", map[string]any{"tenant_id": tenantID, "permission_id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}
