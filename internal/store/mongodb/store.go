// Package mongodb implements the auth.Store contract on MongoDB.
// Entities live in one collection each; tenant-scoped uniqueness is
// enforced with compound unique indexes, so the store can translate
// duplicate-key errors into auth.ErrAlreadyExists without extra reads.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TamirHazut/ERP/internal/auth"
)

const (
	collTenants     = "tenants"
	collUsers       = "users"
	collRoles       = "roles"
	collPermissions = "permissions"
	collAudit       = "audit_logs"
)

// Store is a MongoDB-backed credential store.
type Store struct {
	db *mongo.Database
}

// New wraps an established database handle.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

var _ auth.Store = (*Store)(nil)

func (s *Store) Tenants(context.Context) auth.TenantStore {
	return &tenantStore{coll: s.db.Collection(collTenants)}
}

func (s *Store) Users(context.Context) auth.UserStore {
	return &userStore{coll: s.db.Collection(collUsers)}
}

func (s *Store) Roles(context.Context) auth.RoleStore {
	return &roleStore{coll: s.db.Collection(collRoles)}
}

func (s *Store) Permissions(context.Context) auth.PermissionStore {
	return &permissionStore{coll: s.db.Collection(collPermissions)}
}

func (s *Store) Audit(context.Context) auth.AuditStore {
	return &auditStore{coll: s.db.Collection(collAudit)}
}

// EnsureIndexes creates the unique and lookup indexes the store
// relies on. Safe to call on every startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		collTenants: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique},
		},
		collUsers: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "username", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "email", Value: 1}}, Options: unique},
		},
		collRoles: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "name", Value: 1}}, Options: unique},
		},
		collPermissions: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "resource", Value: 1}, {Key: "action", Value: 1}}, Options: unique},
		},
		collAudit: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
		},
	}
	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongodb: ensure indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// translateError maps driver errors onto the auth error taxonomy.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return auth.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return auth.ErrAlreadyExists
	default:
		return err
	}
}
