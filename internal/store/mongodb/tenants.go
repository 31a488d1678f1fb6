package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TamirHazut/ERP/internal/auth"
)

type tenantStore struct {
	coll *mongo.Collection
}

var _ auth.TenantStore = (*tenantStore)(nil)

func (s *tenantStore) Create(ctx context.Context, t *auth.Tenant) error {
	if _, err := s.coll.InsertOne(ctx, t); err != nil {
		return translateError(err)
	}
	return nil
}

func (s *tenantStore) Find(ctx context.Context, id string) (*auth.Tenant, error) {
	var tenant auth.Tenant
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&tenant); err != nil {
		return nil, translateError(err)
	}
	return &tenant, nil
}

func (s *tenantStore) FindByName(ctx context.Context, name string) (*auth.Tenant, error) {
	var tenant auth.Tenant
	if err := s.coll.FindOne(ctx, bson.M{"name": name}).Decode(&tenant); err != nil {
		return nil, translateError(err)
	}
	return &tenant, nil
}

func (s *tenantStore) List(ctx context.Context) ([]*auth.Tenant, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, translateError(err)
	}
	var tenants []*auth.Tenant
	if err := cur.All(ctx, &tenants); err != nil {
		return nil, fmt.Errorf("mongodb: decode tenants: %w", err)
	}
	return tenants, nil
}

func (s *tenantStore) Update(ctx context.Context, t *auth.Tenant) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": t.ID}, t)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *tenantStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}
