package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Tenants(ctx context.Context) TenantStore
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
	Audit(ctx context.Context) AuditStore
}

// TenantStore manages tenants.
type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	Find(ctx context.Context, id string) (*Tenant, error)
	FindByName(ctx context.Context, name string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, id string) error
}

// UserStore manages users inside a tenant.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, tenantID, id string) (*User, error)
	FindByUsername(ctx context.Context, tenantID, username string) (*User, error)
	FindByEmail(ctx context.Context, tenantID, email string) (*User, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, tenantID, id string) error
}

// RoleStore manages roles inside a tenant.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, tenantID, id string) (*Role, error)
	FindByName(ctx context.Context, tenantID, name string) (*Role, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, tenantID, id string) error
}

// PermissionStore manages a tenant's permission catalog.
type PermissionStore interface {
	// Ensure upserts permissions keyed by (tenant_id, resource, action),
	// leaving existing documents untouched.
	Ensure(ctx context.Context, perms []Permission) error
	Create(ctx context.Context, p *Permission) error
	Find(ctx context.Context, tenantID, id string) (*Permission, error)
	FindByKey(ctx context.Context, tenantID, key string) (*Permission, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Permission, error)
	Update(ctx context.Context, p *Permission) error
	Delete(ctx context.Context, tenantID, id string) error
}

// AuditStore appends immutable entries.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListByTenant(ctx context.Context, tenantID string, limit int64) ([]*AuditEntry, error)
}

// TokenIndex tracks the single active access/refresh pair per
// (tenant, user). Implementations must replace both members of a pair
// atomically so a reader never observes a half-rotated session.
type TokenIndex interface {
	// PutPair stores both tokens, overwriting any previous pair.
	PutPair(ctx context.Context, tenantID, userID, access string, accessTTL time.Duration, refresh string, refreshTTL time.Duration) error

	// Access returns the active access token or ErrNotFound.
	Access(ctx context.Context, tenantID, userID string) (string, error)

	// Refresh returns the active refresh token or ErrNotFound.
	Refresh(ctx context.Context, tenantID, userID string) (string, error)

	// DeletePair removes both tokens. Deleting an absent pair is not an error.
	DeletePair(ctx context.Context, tenantID, userID string) error

	// CompareAndDelete removes the pair only if the stored access token
	// equals the supplied one. Reports whether a deletion happened.
	CompareAndDelete(ctx context.Context, tenantID, userID, access string) (bool, error)

	// ReplacePair swaps in a new pair only if the stored refresh token
	// still equals oldRefresh, so a rotation never clobbers a pair
	// written concurrently. Reports whether the swap happened.
	ReplacePair(ctx context.Context, tenantID, userID, oldRefresh, access string, accessTTL time.Duration, refresh string, refreshTTL time.Duration) (bool, error)

	// FindRefreshOwner returns the user id whose stored refresh token
	// equals the supplied one, or ErrNotFound.
	FindRefreshOwner(ctx context.Context, tenantID, refresh string) (string, error)

	// RevokeTenant removes every pair belonging to the tenant and
	// returns how many access and refresh tokens were deleted. The
	// counts can differ when one half of a pair already expired.
	RevokeTenant(ctx context.Context, tenantID string) (access, refresh int64, err error)
}
