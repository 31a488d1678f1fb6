package auth

import "time"

const (
	// PermissionWildcard grants every action on every resource.
	PermissionWildcard = "*:*"

	RoleSystemAdmin = "system_admin"
	RoleTenantAdmin = "tenant_admin"
)

const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
	UserStatusInvited   = "invited"
)

const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusInactive  = "inactive"
	TenantStatusTrial     = "trial"
)

const (
	RoleStatusActive   = "active"
	RoleStatusInactive = "inactive"

	RoleTypeSystem = "system"
	RoleTypeCustom = "custom"
)

const (
	PermissionStatusActive   = "active"
	PermissionStatusInactive = "inactive"
)

// Tenant is an isolated customer namespace. At most one tenant carries
// the System flag; its users may operate across tenant boundaries.
type Tenant struct {
	ID        string            `json:"id" bson:"_id"`
	Name      string            `json:"name" bson:"name"`
	Slug      string            `json:"slug" bson:"slug"`
	Domain    string            `json:"domain,omitempty" bson:"domain,omitempty"`
	Status    string            `json:"status" bson:"status"`
	System    bool              `json:"system,omitempty" bson:"system"`
	Metadata  map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at"`
	CreatedBy string            `json:"created_by,omitempty" bson:"created_by,omitempty"`
	UpdatedAt time.Time         `json:"updated_at" bson:"updated_at"`
}

// RoleAssignment binds a user to a role within a tenant.
type RoleAssignment struct {
	RoleID     string    `json:"role_id" bson:"role_id"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id"`
	AssignedAt time.Time `json:"assigned_at" bson:"assigned_at"`
	AssignedBy string    `json:"assigned_by,omitempty" bson:"assigned_by,omitempty"`
}

// User is a human or service account scoped to a single tenant.
type User struct {
	ID            string           `json:"id" bson:"_id"`
	TenantID      string           `json:"tenant_id" bson:"tenant_id"`
	Username      string           `json:"username" bson:"username"`
	Email         string           `json:"email" bson:"email"`
	EmailVerified bool             `json:"email_verified" bson:"email_verified"`
	PasswordHash  string           `json:"-" bson:"password_hash"`
	FirstName     string           `json:"first_name,omitempty" bson:"first_name,omitempty"`
	LastName      string           `json:"last_name,omitempty" bson:"last_name,omitempty"`
	Roles         []RoleAssignment `json:"roles" bson:"roles"`
	Status        string           `json:"status" bson:"status"`
	CreatedAt     time.Time        `json:"created_at" bson:"created_at"`
	CreatedBy     string           `json:"created_by,omitempty" bson:"created_by,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at" bson:"updated_at"`
}

// RoleIDs returns the ids of the user's role assignments.
func (u *User) RoleIDs() []string {
	out := make([]string, 0, len(u.Roles))
	for _, a := range u.Roles {
		out = append(out, a.RoleID)
	}
	return out
}

// HasRoleID reports whether the user holds an assignment for the role.
func (u *User) HasRoleID(roleID string) bool {
	for _, a := range u.Roles {
		if a.RoleID == roleID {
			return true
		}
	}
	return false
}

// Role groups permissions inside a tenant. Permissions holds
// permission ids, expanded to strings at resolution time. System-typed
// roles are managed by provisioning and cannot be modified or deleted.
type Role struct {
	ID          string    `json:"id" bson:"_id"`
	TenantID    string    `json:"tenant_id" bson:"tenant_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Permissions []string  `json:"permissions" bson:"permissions"`
	Status      string    `json:"status" bson:"status"`
	Type        string    `json:"type" bson:"type"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Permission is a tenant-scoped capability identified by
// "resource:action". Inactive permissions grant nothing.
type Permission struct {
	ID          string    `json:"id" bson:"_id"`
	TenantID    string    `json:"tenant_id" bson:"tenant_id"`
	Resource    string    `json:"resource" bson:"resource"`
	Action      string    `json:"action" bson:"action"`
	DisplayName string    `json:"display_name,omitempty" bson:"display_name,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Status      string    `json:"status" bson:"status"`
	IsDangerous bool      `json:"is_dangerous,omitempty" bson:"is_dangerous,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Key returns the canonical "resource:action" form.
func (p Permission) Key() string {
	return p.Resource + ":" + p.Action
}

// AuditEntry is an append-only record of a security-relevant action.
type AuditEntry struct {
	ID           string            `json:"id" bson:"_id"`
	OccurredAt   time.Time         `json:"occurred_at" bson:"occurred_at"`
	TenantID     string            `json:"tenant_id" bson:"tenant_id"`
	ActorUserID  string            `json:"actor_user_id,omitempty" bson:"actor_user_id,omitempty"`
	Action       string            `json:"action" bson:"action"`
	ResourceType string            `json:"resource_type,omitempty" bson:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty" bson:"resource_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// IsAdminRole reports whether any of the role names short-circuits
// permission resolution to the wildcard grant.
func IsAdminRole(roleNames []string) bool {
	for _, r := range roleNames {
		if r == RoleSystemAdmin || r == RoleTenantAdmin {
			return true
		}
	}
	return false
}
