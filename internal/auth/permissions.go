package auth

const (
	PermTenantManage     = "tenant:manage"
	PermUserManage       = "user:manage"
	PermRoleManage       = "role:manage"
	PermPermissionManage = "permission:manage"
	PermTokenRevoke      = "token:revoke"
	PermAuditRead        = "audit:read"
)

// BuiltinPermissions is the catalog every tenant is provisioned with.
// EnsureBuiltins stamps tenant id, status and timestamps before writing.
var BuiltinPermissions = []Permission{
	{Resource: "tenant", Action: "manage", DisplayName: "Manage Tenants", Description: "Create, update and delete tenants", IsDangerous: true},
	{Resource: "user", Action: "manage", DisplayName: "Manage Users", Description: "Create, update and delete users", IsDangerous: true},
	{Resource: "role", Action: "manage", DisplayName: "Manage Roles", Description: "Create roles and edit their grants", IsDangerous: true},
	{Resource: "permission", Action: "manage", DisplayName: "Manage Permissions", Description: "Maintain the permission catalog", IsDangerous: true},
	{Resource: "token", Action: "revoke", DisplayName: "Revoke Tokens", Description: "Revoke sessions of other users", IsDangerous: true},
	{Resource: "audit", Action: "read", DisplayName: "Read Audit Log", Description: "Read tenant audit entries", IsDangerous: false},
}
