package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TamirHazut/ERP/internal/ids"
)

// TenantUpdate carries optional tenant field changes.
type TenantUpdate struct {
	Name     *string
	Domain   *string
	Status   *string
	Metadata map[string]string
}

// UserUpdate carries optional user field changes.
type UserUpdate struct {
	Email         *string
	EmailVerified *bool
	Password      *string
	Status        *string
	FirstName     *string
	LastName      *string
}

// RoleUpdate carries optional role field changes.
type RoleUpdate struct {
	Name        *string
	Description *string
	Status      *string
}

// PermissionUpdate carries optional permission field changes. The
// resource and action are identity and cannot change.
type PermissionUpdate struct {
	DisplayName *string
	Description *string
	Status      *string
	IsDangerous *bool
}

// RBACService provides tenant, user, role and permission management
// on top of the credential store. It validates input and owns id and
// timestamp generation; the store only persists.
type RBACService struct {
	store Store
	now   func() time.Time
}

// NewRBACService constructs the management service.
func NewRBACService(store Store) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &RBACService{store: store, now: time.Now}, nil
}

// EnsureBuiltins upserts the builtin permission catalog for a tenant.
func (s *RBACService) EnsureBuiltins(ctx context.Context, tenantID string) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	perms := make([]Permission, len(BuiltinPermissions))
	copy(perms, BuiltinPermissions)
	now := s.now().UTC()
	for i := range perms {
		perms[i].ID = ids.New()
		perms[i].TenantID = tenantID
		perms[i].Status = PermissionStatusActive
		perms[i].CreatedAt = now
		perms[i].UpdatedAt = now
	}
	return s.store.Permissions(ctx).Ensure(ctx, perms)
}

// EnsureTenantDefaults provisions the builtin permissions and the
// system-typed admin roles for a tenant. Idempotent.
func (s *RBACService) EnsureTenantDefaults(ctx context.Context, tenant *Tenant) error {
	if tenant == nil {
		return fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	if err := s.EnsureBuiltins(ctx, tenant.ID); err != nil {
		return err
	}
	adminRoles := []string{RoleTenantAdmin}
	if tenant.System {
		adminRoles = append(adminRoles, RoleSystemAdmin)
	}
	roles := s.store.Roles(ctx)
	for _, name := range adminRoles {
		if _, err := roles.FindByName(ctx, tenant.ID, name); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		now := s.now().UTC()
		role := &Role{
			ID:          ids.New(),
			TenantID:    tenant.ID,
			Name:        name,
			Description: "builtin administrator role",
			Status:      RoleStatusActive,
			Type:        RoleTypeSystem,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := roles.Create(ctx, role); err != nil && !errors.Is(err, ErrAlreadyExists) {
			return err
		}
	}
	return nil
}

// --- tenants ---

func (s *RBACService) CreateTenant(ctx context.Context, name, domain, status string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tenant name is required", ErrInvalidInput)
	}
	status, err := normalizeTenantStatus(status)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	tenant := &Tenant{
		ID:        ids.New(),
		Name:      name,
		Slug:      slugify(name),
		Domain:    strings.TrimSpace(domain),
		Status:    status,
		CreatedAt: now,
		CreatedBy: actorID(ctx),
		UpdatedAt: now,
	}
	if err := s.store.Tenants(ctx).Create(ctx, tenant); err != nil {
		return nil, err
	}
	// New tenants start with the builtin catalog and a tenant_admin role.
	if err := s.EnsureTenantDefaults(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *RBACService) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return s.store.Tenants(ctx).Find(ctx, id)
}

func (s *RBACService) ListTenants(ctx context.Context) ([]*Tenant, error) {
	return s.store.Tenants(ctx).List(ctx)
}

func (s *RBACService) UpdateTenant(ctx context.Context, id string, upd TenantUpdate) (*Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	tenant, err := s.store.Tenants(ctx).Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tenant name is required", ErrInvalidInput)
		}
		tenant.Name = name
		tenant.Slug = slugify(name)
	}
	if upd.Domain != nil {
		tenant.Domain = strings.TrimSpace(*upd.Domain)
	}
	if upd.Status != nil {
		status, err := normalizeTenantStatus(*upd.Status)
		if err != nil {
			return nil, err
		}
		tenant.Status = status
	}
	if upd.Metadata != nil {
		tenant.Metadata = upd.Metadata
	}
	tenant.UpdatedAt = s.now().UTC()
	if err := s.store.Tenants(ctx).Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *RBACService) DeleteTenant(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	tenant, err := s.store.Tenants(ctx).Find(ctx, id)
	if err != nil {
		return err
	}
	if tenant.System {
		return fmt.Errorf("%w: system tenant cannot be deleted", ErrInvalidInput)
	}
	return s.store.Tenants(ctx).Delete(ctx, id)
}

// --- users ---

func (s *RBACService) CreateUser(ctx context.Context, tenantID, username, email, password string, roleIDs []string, status string) (*User, error) {
	tenantID = strings.TrimSpace(tenantID)
	username = strings.TrimSpace(strings.ToLower(username))
	email = strings.TrimSpace(strings.ToLower(email))
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	status, err := normalizeUserStatus(status)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Tenants(ctx).Find(ctx, tenantID); err != nil {
		return nil, err
	}
	if err := s.validateRoleIDs(ctx, tenantID, roleIDs); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	actor := actorID(ctx)
	assignments := make([]RoleAssignment, 0, len(roleIDs))
	for _, id := range dedupeStrings(roleIDs) {
		assignments = append(assignments, RoleAssignment{
			RoleID:     id,
			TenantID:   tenantID,
			AssignedAt: now,
			AssignedBy: actor,
		})
	}
	user := &User{
		ID:           ids.New(),
		TenantID:     tenantID,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        assignments,
		Status:       status,
		CreatedAt:    now,
		CreatedBy:    actor,
		UpdatedAt:    now,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *RBACService) GetUser(ctx context.Context, tenantID, userID string) (*User, error) {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return nil, fmt.Errorf("%w: tenant_id and user_id are required", ErrInvalidInput)
	}
	return s.store.Users(ctx).Find(ctx, tenantID, userID)
}

func (s *RBACService) ListUsers(ctx context.Context, tenantID string) ([]*User, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return s.store.Users(ctx).ListByTenant(ctx, tenantID)
}

func (s *RBACService) UpdateUser(ctx context.Context, tenantID, userID string, upd UserUpdate) (*User, error) {
	user, err := s.GetUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		if email != user.Email {
			user.Email = email
			user.EmailVerified = false
		}
	}
	if upd.EmailVerified != nil {
		user.EmailVerified = *upd.EmailVerified
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if upd.Status != nil {
		status, err := normalizeUserStatus(*upd.Status)
		if err != nil {
			return nil, err
		}
		user.Status = status
	}
	if upd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		user.LastName = strings.TrimSpace(*upd.LastName)
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.store.Users(ctx).Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *RBACService) DeleteUser(ctx context.Context, tenantID, userID string) error {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return fmt.Errorf("%w: tenant_id and user_id are required", ErrInvalidInput)
	}
	return s.store.Users(ctx).Delete(ctx, tenantID, userID)
}

// AssignRole adds a role assignment to the user. The role must exist
// in the user's tenant; assigning a held role is a no-op.
func (s *RBACService) AssignRole(ctx context.Context, tenantID, userID, roleID string) (*User, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	user, err := s.GetUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.validateRoleIDs(ctx, user.TenantID, []string{roleID}); err != nil {
		return nil, err
	}
	if user.HasRoleID(roleID) {
		return user, nil
	}
	user.Roles = append(user.Roles, RoleAssignment{
		RoleID:     roleID,
		TenantID:   user.TenantID,
		AssignedAt: s.now().UTC(),
		AssignedBy: actorID(ctx),
	})
	user.UpdatedAt = s.now().UTC()
	if err := s.store.Users(ctx).Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RemoveRole removes a role assignment from the user. Removing an
// absent assignment is not an error.
func (s *RBACService) RemoveRole(ctx context.Context, tenantID, userID, roleID string) (*User, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	user, err := s.GetUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	kept := user.Roles[:0]
	for _, a := range user.Roles {
		if a.RoleID != roleID {
			kept = append(kept, a)
		}
	}
	user.Roles = kept
	user.UpdatedAt = s.now().UTC()
	if err := s.store.Users(ctx).Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// --- roles ---

func (s *RBACService) CreateRole(ctx context.Context, tenantID, name, description string, permissionIDs []string) (*Role, error) {
	tenantID = strings.TrimSpace(tenantID)
	name = strings.TrimSpace(name)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if name == RoleSystemAdmin || name == RoleTenantAdmin {
		return nil, fmt.Errorf("%w: role name %q is reserved", ErrInvalidInput, name)
	}
	if _, err := s.store.Tenants(ctx).Find(ctx, tenantID); err != nil {
		return nil, err
	}
	permIDs, err := s.validatedPermissionIDs(ctx, tenantID, permissionIDs)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	role := &Role{
		ID:          ids.New(),
		TenantID:    tenantID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Permissions: permIDs,
		Status:      RoleStatusActive,
		Type:        RoleTypeCustom,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Roles(ctx).Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *RBACService) GetRole(ctx context.Context, tenantID, roleID string) (*Role, error) {
	tenantID = strings.TrimSpace(tenantID)
	roleID = strings.TrimSpace(roleID)
	if tenantID == "" || roleID == "" {
		return nil, fmt.Errorf("%w: tenant_id and role_id are required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).Find(ctx, tenantID, roleID)
}

func (s *RBACService) ListRoles(ctx context.Context, tenantID string) ([]*Role, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).ListByTenant(ctx, tenantID)
}

func (s *RBACService) UpdateRole(ctx context.Context, tenantID, roleID string, upd RoleUpdate) (*Role, error) {
	role, err := s.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return nil, err
	}
	if role.Type == RoleTypeSystem {
		return nil, fmt.Errorf("%w: system roles cannot be modified", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		if name == RoleSystemAdmin || name == RoleTenantAdmin {
			return nil, fmt.Errorf("%w: role name %q is reserved", ErrInvalidInput, name)
		}
		role.Name = name
	}
	if upd.Description != nil {
		role.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Status != nil {
		status, err := normalizeRoleStatus(*upd.Status)
		if err != nil {
			return nil, err
		}
		role.Status = status
	}
	role.UpdatedAt = s.now().UTC()
	if err := s.store.Roles(ctx).Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// SetRolePermissions replaces the role's grant list with the given
// permission ids. Sessions issued before the change keep their
// materialized permissions until refresh.
func (s *RBACService) SetRolePermissions(ctx context.Context, tenantID, roleID string, permissionIDs []string) (*Role, error) {
	role, err := s.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return nil, err
	}
	if role.Type == RoleTypeSystem {
		return nil, fmt.Errorf("%w: system roles cannot be modified", ErrInvalidInput)
	}
	permIDs, err := s.validatedPermissionIDs(ctx, tenantID, permissionIDs)
	if err != nil {
		return nil, err
	}
	role.Permissions = permIDs
	role.UpdatedAt = s.now().UTC()
	if err := s.store.Roles(ctx).Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes the role. Assignments referencing the deleted
// role remain on users and grant nothing once the role is gone.
func (s *RBACService) DeleteRole(ctx context.Context, tenantID, roleID string) error {
	role, err := s.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if role.Type == RoleTypeSystem {
		return fmt.Errorf("%w: system roles cannot be deleted", ErrInvalidInput)
	}
	return s.store.Roles(ctx).Delete(ctx, tenantID, roleID)
}

// --- permissions ---

func (s *RBACService) CreatePermission(ctx context.Context, tenantID, resource, action, displayName, description string, dangerous bool) (*Permission, error) {
	tenantID = strings.TrimSpace(tenantID)
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	if resource == "" || action == "" {
		return nil, fmt.Errorf("%w: resource and action are required", ErrInvalidInput)
	}
	if strings.Contains(resource, ":") || strings.Contains(action, ":") {
		return nil, fmt.Errorf("%w: resource and action must not contain ':'", ErrInvalidInput)
	}
	if _, err := s.store.Tenants(ctx).Find(ctx, tenantID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	perm := &Permission{
		ID:          ids.New(),
		TenantID:    tenantID,
		Resource:    resource,
		Action:      action,
		DisplayName: strings.TrimSpace(displayName),
		Description: strings.TrimSpace(description),
		Status:      PermissionStatusActive,
		IsDangerous: dangerous,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Permissions(ctx).Create(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

func (s *RBACService) GetPermission(ctx context.Context, tenantID, id string) (*Permission, error) {
	tenantID = strings.TrimSpace(tenantID)
	id = strings.TrimSpace(id)
	if tenantID == "" || id == "" {
		return nil, fmt.Errorf("%w: tenant_id and permission_id are required", ErrInvalidInput)
	}
	return s.store.Permissions(ctx).Find(ctx, tenantID, id)
}

func (s *RBACService) ListPermissions(ctx context.Context, tenantID string) ([]*Permission, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return s.store.Permissions(ctx).ListByTenant(ctx, tenantID)
}

func (s *RBACService) UpdatePermission(ctx context.Context, tenantID, id string, upd PermissionUpdate) (*Permission, error) {
	perm, err := s.GetPermission(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if upd.DisplayName != nil {
		perm.DisplayName = strings.TrimSpace(*upd.DisplayName)
	}
	if upd.Description != nil {
		perm.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Status != nil {
		status, err := normalizePermissionStatus(*upd.Status)
		if err != nil {
			return nil, err
		}
		perm.Status = status
	}
	if upd.IsDangerous != nil {
		perm.IsDangerous = *upd.IsDangerous
	}
	perm.UpdatedAt = s.now().UTC()
	if err := s.store.Permissions(ctx).Update(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

func (s *RBACService) DeletePermission(ctx context.Context, tenantID, id string) error {
	tenantID = strings.TrimSpace(tenantID)
	id = strings.TrimSpace(id)
	if tenantID == "" || id == "" {
		return fmt.Errorf("%w: tenant_id and permission_id are required", ErrInvalidInput)
	}
	return s.store.Permissions(ctx).Delete(ctx, tenantID, id)
}

// ListAudit returns the most recent audit entries for the tenant.
func (s *RBACService) ListAudit(ctx context.Context, tenantID string, limit int64) ([]*AuditEntry, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.Audit(ctx).ListByTenant(ctx, tenantID, limit)
}

// --- helpers ---

func (s *RBACService) validateRoleIDs(ctx context.Context, tenantID string, roleIDs []string) error {
	store := s.store.Roles(ctx)
	for _, id := range roleIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
		}
		if _, err := store.Find(ctx, tenantID, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, id)
			}
			return err
		}
	}
	return nil
}

// validatedPermissionIDs checks every id against the tenant's catalog
// and returns the deduplicated list.
func (s *RBACService) validatedPermissionIDs(ctx context.Context, tenantID string, permissionIDs []string) ([]string, error) {
	store := s.store.Permissions(ctx)
	out := dedupeStrings(permissionIDs)
	for _, id := range out {
		if _, err := store.Find(ctx, tenantID, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, id)
			}
			return nil, err
		}
	}
	return out, nil
}

// actorID returns the authenticated caller's user id, if any.
func actorID(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Subject
	}
	return ""
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func normalizeTenantStatus(status string) (string, error) {
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		return TenantStatusActive, nil
	}
	switch status {
	case TenantStatusActive, TenantStatusSuspended, TenantStatusInactive, TenantStatusTrial:
		return status, nil
	}
	return "", fmt.Errorf("%w: unsupported tenant status %q", ErrInvalidInput, status)
}

func normalizeUserStatus(status string) (string, error) {
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		return UserStatusActive, nil
	}
	switch status {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended, UserStatusInvited:
		return status, nil
	}
	return "", fmt.Errorf("%w: unsupported user status %q", ErrInvalidInput, status)
}

func normalizeRoleStatus(status string) (string, error) {
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		return RoleStatusActive, nil
	}
	switch status {
	case RoleStatusActive, RoleStatusInactive:
		return status, nil
	}
	return "", fmt.Errorf("%w: unsupported role status %q", ErrInvalidInput, status)
}

func normalizePermissionStatus(status string) (string, error) {
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		return PermissionStatusActive, nil
	}
	switch status {
	case PermissionStatusActive, PermissionStatusInactive:
		return status, nil
	}
	return "", fmt.Errorf("%w: unsupported permission status %q", ErrInvalidInput, status)
}

func dedupeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
