// Package seed provisions the system tenant and the first
// administrator so a fresh deployment can be signed into.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TamirHazut/ERP/internal/auth"
	"github.com/TamirHazut/ERP/internal/ids"
	"github.com/TamirHazut/ERP/internal/obs"
)

// Options selects what gets provisioned.
type Options struct {
	TenantName string
	Username   string
	Password   string
}

// Bootstrap is idempotent: existing tenants and users are left alone.
// When Password is empty the admin user is skipped, which lets a
// deployment opt out once the first operator exists.
func Bootstrap(ctx context.Context, store auth.Store, rbac *auth.RBACService, opts Options) error {
	if store == nil || rbac == nil {
		return errors.New("seed: store and rbac service are required")
	}
	tenantName := strings.ToLower(strings.TrimSpace(opts.TenantName))
	if tenantName == "" {
		return fmt.Errorf("%w: tenant name is required", auth.ErrInvalidInput)
	}

	tenant, err := ensureSystemTenant(ctx, store, tenantName)
	if err != nil {
		return err
	}
	if err := rbac.EnsureTenantDefaults(ctx, tenant); err != nil {
		return fmt.Errorf("seed: ensure tenant defaults: %w", err)
	}

	if opts.Password == "" {
		logger := obs.Logger()
		logger.Info().Str("tenant", tenantName).Msg("bootstrap password not set, skipping admin user")
		return nil
	}
	return ensureAdminUser(ctx, store, tenant, opts.Username, opts.Password)
}

func ensureSystemTenant(ctx context.Context, store auth.Store, name string) (*auth.Tenant, error) {
	tenants := store.Tenants(ctx)
	tenant, err := tenants.FindByName(ctx, name)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return nil, fmt.Errorf("seed: find tenant: %w", err)
	}

	now := time.Now().UTC()
	tenant = &auth.Tenant{
		ID:        ids.New(),
		Name:      name,
		Slug:      name,
		Status:    auth.TenantStatusActive,
		System:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tenants.Create(ctx, tenant); err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) {
			// Lost a race with another instance.
			return tenants.FindByName(ctx, name)
		}
		return nil, fmt.Errorf("seed: create tenant: %w", err)
	}
	logger := obs.Logger()
	logger.Info().Str("tenant_id", tenant.ID).Str("name", name).Msg("created system tenant")
	return tenant, nil
}

func ensureAdminUser(ctx context.Context, store auth.Store, tenant *auth.Tenant, username, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return fmt.Errorf("%w: admin username is required", auth.ErrInvalidInput)
	}

	users := store.Users(ctx)
	if _, err := users.FindByUsername(ctx, tenant.ID, username); err == nil {
		return nil
	} else if !errors.Is(err, auth.ErrNotFound) {
		return fmt.Errorf("seed: find admin user: %w", err)
	}

	adminRole, err := store.Roles(ctx).FindByName(ctx, tenant.ID, auth.RoleSystemAdmin)
	if err != nil {
		return fmt.Errorf("seed: find %s role: %w", auth.RoleSystemAdmin, err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("seed: hash admin password: %w", err)
	}
	now := time.Now().UTC()
	user := &auth.User{
		ID:           ids.New(),
		TenantID:     tenant.ID,
		Username:     username,
		Email:        username + "@" + tenant.Name + ".local",
		PasswordHash: hash,
		Roles: []auth.RoleAssignment{{
			RoleID:     adminRole.ID,
			TenantID:   tenant.ID,
			AssignedAt: now,
		}},
		Status:    auth.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("seed: create admin user: %w", err)
	}
	logger := obs.Logger()
	logger.Info().Str("tenant_id", tenant.ID).Str("user_id", user.ID).Msg("created bootstrap admin")
	return nil
}
