package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// IsSystemTenantUser reports whether the claims belong to a user of
// the system tenant.
func (s *Service) IsSystemTenantUser(ctx context.Context, claims *Claims) (bool, error) {
	if claims == nil || claims.TenantID == "" {
		return false, nil
	}
	tenant, err := s.store.Tenants(ctx).Find(ctx, claims.TenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return tenant.System, nil
}

// Authorize checks that the claims grant the required permission on
// the target tenant. Crossing a tenant boundary is reserved for system
// tenant users; everyone else is confined to their own tenant no
// matter what permissions they hold.
func (s *Service) Authorize(ctx context.Context, claims *Claims, permission, tenantID string) error {
	if claims == nil {
		return ErrInvalidToken
	}
	permission = strings.TrimSpace(permission)
	tenantID = strings.TrimSpace(tenantID)
	if permission == "" || tenantID == "" {
		return fmt.Errorf("%w: permission and tenant_id are required", ErrInvalidInput)
	}
	if tenantID != claims.TenantID {
		system, err := s.IsSystemTenantUser(ctx, claims)
		if err != nil {
			return err
		}
		if !system {
			return ErrPermissionDenied
		}
	}
	if !claims.HasPermission(permission) {
		return ErrPermissionDenied
	}
	return nil
}

// GetUserPermissions maps every permission string the user effectively
// holds to true. The resolution is live, so role or permission edits
// show up on the next call.
func (s *Service) GetUserPermissions(ctx context.Context, tenantID, userID string) (map[string]bool, error) {
	user, err := s.store.Users(ctx).Find(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	perms, err := s.ResolvePermissions(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(perms))
	for _, p := range perms {
		out[p] = true
	}
	return out, nil
}

// CheckPermissions answers, per requested string, whether the user
// holds that exact permission or the wildcard.
func (s *Service) CheckPermissions(ctx context.Context, tenantID, userID string, requested []string) (map[string]bool, error) {
	held, err := s.GetUserPermissions(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	wildcard := held[PermissionWildcard]
	out := make(map[string]bool, len(requested))
	for _, p := range requested {
		out[p] = wildcard || held[p]
	}
	return out, nil
}

// HasPermission is the single-permission form of CheckPermissions with
// tenant isolation: a check against a foreign tenant only passes for
// system tenant users.
func (s *Service) HasPermission(ctx context.Context, tenantID, userID, permission, targetTenantID string) (bool, error) {
	if targetTenantID != "" && targetTenantID != tenantID {
		tenant, err := s.store.Tenants(ctx).Find(ctx, tenantID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if !tenant.System {
			return false, nil
		}
	}
	checked, err := s.CheckPermissions(ctx, tenantID, userID, []string{permission})
	if err != nil {
		return false, err
	}
	return checked[permission], nil
}

// GetUserRoles returns the ids of the user's role assignments.
func (s *Service) GetUserRoles(ctx context.Context, tenantID, userID string) ([]string, error) {
	user, err := s.store.Users(ctx).Find(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return user.RoleIDs(), nil
}
