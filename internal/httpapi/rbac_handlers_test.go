package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/TamirHazut/ERP/internal/auth"
)

func TestTenantCRUD(t *testing.T) {
	_, _, handler := testAPI(t)
	admin := login(t, handler, "sys", "root", "rootpw")

	rec := doJSON(t, handler, http.MethodPost, "/v1/tenants", admin.AccessToken, createTenantRequest{
		Name:   "globex",
		Domain: "globex.example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tenant returned %d: %s", rec.Code, rec.Body.String())
	}
	var tenant auth.Tenant
	if err := json.Unmarshal(rec.Body.Bytes(), &tenant); err != nil {
		t.Fatalf("decode tenant: %v", err)
	}
	if tenant.ID == "" || tenant.Status != auth.TenantStatusActive {
		t.Fatalf("unexpected tenant: %+v", tenant)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/tenants/"+tenant.ID {
		t.Fatalf("unexpected Location %q", loc)
	}

	// Duplicate name conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/v1/tenants", admin.AccessToken, createTenantRequest{Name: "globex"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate tenant returned %d, want 409", rec.Code)
	}

	status := auth.TenantStatusSuspended
	rec = doJSON(t, handler, http.MethodPatch, "/v1/tenants/"+tenant.ID, admin.AccessToken, updateTenantRequest{Status: &status})
	if rec.Code != http.StatusOK {
		t.Fatalf("update tenant returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/tenants/"+tenant.ID, admin.AccessToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete tenant returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/tenants/"+tenant.ID, admin.AccessToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted tenant returned %d, want 404", rec.Code)
	}
}

func TestSystemTenantCannotBeDeleted(t *testing.T) {
	_, _, handler := testAPI(t)
	admin := login(t, handler, "sys", "root", "rootpw")

	rec := doJSON(t, handler, http.MethodDelete, "/v1/tenants/sys", admin.AccessToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("delete system tenant returned %d, want 400", rec.Code)
	}
}

func TestUserLifecycle(t *testing.T) {
	_, _, handler := testAPI(t)
	admin := login(t, handler, "sys", "root", "rootpw")

	rec := doJSON(t, handler, http.MethodPost, "/v1/tenants/t1/users", admin.AccessToken, createUserRequest{
		Username: "Bob",
		Email:    "Bob@Example.com",
		Password: "bobpw123",
		RoleIDs:  []string{"r1"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user returned %d: %s", rec.Code, rec.Body.String())
	}
	var user auth.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.Username != "bob" || user.Email != "bob@example.com" {
		t.Fatalf("user was not normalized: %+v", user)
	}
	if user.Status != auth.UserStatusActive {
		t.Fatalf("status = %q, want active", user.Status)
	}

	// The new user can sign in right away.
	login(t, handler, "t1", "bob", "bobpw123")

	rec = doJSON(t, handler, http.MethodPost, "/v1/tenants/t1/users/"+user.ID+"/roles", admin.AccessToken, assignRoleRequest{RoleID: "t1-admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign role returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/tenants/t1/users/"+user.ID+"/roles/r1", admin.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove role returned %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if len(user.Roles) != 1 || user.Roles[0].RoleID != "t1-admin" {
		t.Fatalf("roles = %+v, want the tenant admin assignment", user.Roles)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/tenants/t1/users/"+user.ID+"/roles", admin.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list roles returned %d: %s", rec.Code, rec.Body.String())
	}
	var roleBody struct {
		RoleIDs []string `json:"role_ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &roleBody); err != nil {
		t.Fatalf("decode roles: %v", err)
	}
	if len(roleBody.RoleIDs) != 1 || roleBody.RoleIDs[0] != "t1-admin" {
		t.Fatalf("role_ids = %v", roleBody.RoleIDs)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/tenants/t1/users/"+user.ID, admin.AccessToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete user returned %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	_, _, handler := testAPI(t)
	admin := login(t, handler, "sys", "root", "rootpw")

	rec := doJSON(t, handler, http.MethodPost, "/v1/tenants/t1/users", admin.AccessToken, createUserRequest{
		Username: "carol",
		Email:    "carol@example.com",
		Password: "carolpw",
		RoleIDs:  []string{"no-such-role"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("create user returned %d, want 400", rec.Code)
	}
}

func TestRoleAndPermissionEndpoints(t *testing.T) {
	_, _, handler := testAPI(t)
	admin := login(t, handler, "sys", "root", "rootpw")

	rec := doJSON(t, handler, http.MethodPost, "/v1/tenants/t1/permissions", admin.AccessToken, createPermissionRequest{
		Resource:    "invoice",
		Action:      "write",
		DisplayName: "Write Invoices",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create permission returned %d: %s", rec.Code, rec.Body.String())
	}
	var writePerm auth.Permission
	if err := json.Unmarshal(rec.Body.Bytes(), &writePerm); err != nil {
		t.Fatalf("decode permission: %v", err)
	}
	if writePerm.Key() != "invoice:write" || writePerm.Status != auth.PermissionStatusActive {
		t.Fatalf("unexpected permission: %+v", writePerm)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/tenants/t1/roles", admin.AccessToken, createRoleRequest{
		Name:          "billing",
		PermissionIDs: []string{"p1", writePerm.ID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create role returned %d: %s", rec.Code, rec.Body.String())
	}
	var role auth.Role
	if err := json.Unmarshal(rec.Body.Bytes(), &role); err != nil {
		t.Fatalf("decode role: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPut, "/v1/tenants/t1/roles/"+role.ID+"/permissions", admin.AccessToken, rolePermissionsRequest{
		PermissionIDs: []string{"p1"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set permissions returned %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &role); err != nil {
		t.Fatalf("decode role: %v", err)
	}
	if len(role.Permissions) != 1 || role.Permissions[0] != "p1" {
		t.Fatalf("permissions = %v", role.Permissions)
	}

	// Unknown permission ids are rejected.
	rec = doJSON(t, handler, http.MethodPut, "/v1/tenants/t1/roles/"+role.ID+"/permissions", admin.AccessToken, rolePermissionsRequest{
		PermissionIDs: []string{"no-such-permission"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown permission returned %d, want 400", rec.Code)
	}

	// Retire the new permission, then remove it.
	inactive := auth.PermissionStatusInactive
	rec = doJSON(t, handler, http.MethodPatch, "/v1/tenants/t1/permissions/"+writePerm.ID, admin.AccessToken, updatePermissionRequest{Status: &inactive})
	if rec.Code != http.StatusOK {
		t.Fatalf("update permission returned %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &writePerm); err != nil {
		t.Fatalf("decode permission: %v", err)
	}
	if writePerm.Status != auth.PermissionStatusInactive {
		t.Fatalf("status = %q, want inactive", writePerm.Status)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/tenants/t1/permissions", admin.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list permissions returned %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/tenants/t1/permissions/"+writePerm.ID, admin.AccessToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete permission returned %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodGet, "/v1/tenants/t1/permissions/"+writePerm.ID, admin.AccessToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted permission returned %d, want 404", rec.Code)
	}
}

func TestTenantEndpointsDenyRegularUser(t *testing.T) {
	_, _, handler := testAPI(t)
	alice := login(t, handler, "t1", "alice", "alicepw")

	rec := doJSON(t, handler, http.MethodPost, "/v1/tenants", alice.AccessToken, createTenantRequest{Name: "rogue"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("create tenant returned %d, want 403", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/tenants/sys/users", alice.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-tenant user list returned %d, want 403", rec.Code)
	}
}

func TestAuditEndpoint(t *testing.T) {
	_, store, handler := testAPI(t)
	admin := login(t, handler, "sys", "root", "rootpw")

	store.audits = append(store.audits, &auth.AuditEntry{ID: "a1", TenantID: "t1", Action: "auth.login"})

	rec := doJSON(t, handler, http.MethodGet, "/v1/tenants/t1/audit?limit=10", admin.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit returned %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Entries []auth.AuditEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Entries) != 1 || body.Entries[0].Action != "auth.login" {
		t.Fatalf("entries = %+v", body.Entries)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/tenants/t1/audit?limit=abc", admin.AccessToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit returned %d, want 400", rec.Code)
	}
}
