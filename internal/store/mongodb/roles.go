package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TamirHazut/ERP/internal/auth"
)

type roleStore struct {
	coll *mongo.Collection
}

var _ auth.RoleStore = (*roleStore)(nil)

func (s *roleStore) Create(ctx context.Context, role *auth.Role) error {
	if _, err := s.coll.InsertOne(ctx, role); err != nil {
		return translateError(err)
	}
	return nil
}

func (s *roleStore) Find(ctx context.Context, tenantID, id string) (*auth.Role, error) {
	var role auth.Role
	filter := bson.M{"_id": id, "tenant_id": tenantID}
	if err := s.coll.FindOne(ctx, filter).Decode(&role); err != nil {
		return nil, translateError(err)
	}
	return &role, nil
}

func (s *roleStore) FindByName(ctx context.Context, tenantID, name string) (*auth.Role, error) {
	var role auth.Role
	filter := bson.M{"tenant_id": tenantID, "name": name}
	if err := s.coll.FindOne(ctx, filter).Decode(&role); err != nil {
		return nil, translateError(err)
	}
	return &role, nil
}

func (s *roleStore) ListByTenant(ctx context.Context, tenantID string) ([]*auth.Role, error) {
	filter := bson.M{"tenant_id": tenantID}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, translateError(err)
	}
	var roles []*auth.Role
	if err := cur.All(ctx, &roles); err != nil {
		return nil, fmt.Errorf("mongodb: decode roles: %w", err)
	}
	return roles, nil
}

func (s *roleStore) Update(ctx context.Context, role *auth.Role) error {
	filter := bson.M{"_id": role.ID, "tenant_id": role.TenantID}
	res, err := s.coll.ReplaceOne(ctx, filter, role)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *roleStore) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}
