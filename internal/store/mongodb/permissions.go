package mongodb

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TamirHazut/ERP/internal/auth"
)

type permissionStore struct {
	coll *mongo.Collection
}

var _ auth.PermissionStore = (*permissionStore)(nil)

// Ensure upserts catalog entries keyed by (tenant_id, resource, action)
// without touching entries that already exist.
func (s *permissionStore) Ensure(ctx context.Context, perms []auth.Permission) error {
	if len(perms) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(perms))
	for i := range perms {
		p := perms[i]
		filter := bson.M{"tenant_id": p.TenantID, "resource": p.Resource, "action": p.Action}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.M{"$setOnInsert": p}).
			SetUpsert(true))
	}
	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("mongodb: ensure permissions: %w", translateError(err))
	}
	return nil
}

func (s *permissionStore) Create(ctx context.Context, p *auth.Permission) error {
	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		return translateError(err)
	}
	return nil
}

func (s *permissionStore) Find(ctx context.Context, tenantID, id string) (*auth.Permission, error) {
	var perm auth.Permission
	if err := s.coll.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&perm); err != nil {
		return nil, translateError(err)
	}
	return &perm, nil
}

func (s *permissionStore) FindByKey(ctx context.Context, tenantID, key string) (*auth.Permission, error) {
	resource, action, ok := strings.Cut(key, ":")
	if !ok {
		return nil, auth.ErrNotFound
	}
	filter := bson.M{"tenant_id": tenantID, "resource": resource, "action": action}
	var perm auth.Permission
	if err := s.coll.FindOne(ctx, filter).Decode(&perm); err != nil {
		return nil, translateError(err)
	}
	return &perm, nil
}

func (s *permissionStore) ListByTenant(ctx context.Context, tenantID string) ([]*auth.Permission, error) {
	sort := bson.D{{Key: "resource", Value: 1}, {Key: "action", Value: 1}}
	cur, err := s.coll.Find(ctx, bson.M{"tenant_id": tenantID}, options.Find().SetSort(sort))
	if err != nil {
		return nil, translateError(err)
	}
	var perms []*auth.Permission
	if err := cur.All(ctx, &perms); err != nil {
		return nil, fmt.Errorf("mongodb: decode permissions: %w", err)
	}
	return perms, nil
}

func (s *permissionStore) Update(ctx context.Context, p *auth.Permission) error {
	filter := bson.M{"_id": p.ID, "tenant_id": p.TenantID}
	res, err := s.coll.ReplaceOne(ctx, filter, p)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *permissionStore) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}
